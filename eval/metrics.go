package eval

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/birucan/lawcite"
	"github.com/birucan/lawcite/citation"
)

// normalizeText lowercases s and folds the Unicode spaces, hyphens and
// zero-width characters models like to emit into plain ASCII.
func normalizeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		case r == '\u2010' || r == '\u2011' || r == '\u2012' || r == '\u2013' || r == '\u2014':
			b.WriteByte('-')
		case r == '\u200B' || r == '\u200C' || r == '\u200D' || r == '\uFEFF':
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// factMatcher tests expected facts against one body of text, tolerating
// differences in spacing and hyphenation.
type factMatcher struct {
	normalized, spaceless, hyphenless string
}

func newFactMatcher(text string) factMatcher {
	n := normalizeText(text)
	return factMatcher{
		normalized: n,
		spaceless:  strings.ReplaceAll(n, " ", ""),
		hyphenless: strings.ReplaceAll(strings.ReplaceAll(n, "-", ""), " ", ""),
	}
}

func (m factMatcher) matches(fact string) bool {
	for _, alt := range strings.Split(fact, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			continue
		}
		n := normalizeText(alt)
		if strings.Contains(m.normalized, n) ||
			strings.Contains(m.spaceless, strings.ReplaceAll(n, " ", "")) ||
			strings.Contains(m.hyphenless, strings.ReplaceAll(strings.ReplaceAll(n, "-", ""), " ", "")) {
			return true
		}
	}
	return false
}

func factFraction(text string, facts []string) float64 {
	if len(facts) == 0 {
		return 0
	}
	m := newFactMatcher(text)
	found := 0
	for _, f := range facts {
		if m.matches(f) {
			found++
		}
	}
	return float64(found) / float64(len(facts))
}

func citedText(res *lawcite.QueryResult) string {
	var b strings.Builder
	for _, c := range res.Citations {
		b.WriteString(c.Source)
		b.WriteByte(' ')
		b.WriteString(c.Text)
		b.WriteByte(' ')
	}
	return b.String()
}

// computeAccuracy is the fraction of expected facts present in the answer.
func computeAccuracy(res *lawcite.QueryResult, facts []string) float64 {
	if res == nil || res.Response == "" {
		return 0
	}
	return factFraction(res.Response, facts)
}

// computeContextRecall is the fraction of expected facts present in the
// cited text, i.e. whether retrieval surfaced the evidence.
func computeContextRecall(res *lawcite.QueryResult, facts []string) float64 {
	if res == nil || len(res.Citations) == 0 {
		return 0
	}
	return factFraction(citedText(res), facts)
}

// computeSourceRecall is the fraction of expected section labels that were
// cited. With no expectations it is 1.
func computeSourceRecall(res *lawcite.QueryResult, expected []string) float64 {
	if len(expected) == 0 {
		return 1
	}
	if res == nil {
		return 0
	}
	cited := make(map[string]bool, len(res.Citations))
	for _, c := range res.Citations {
		cited[strings.ToLower(strings.TrimSpace(c.Source))] = true
	}
	found := 0
	for _, e := range expected {
		if cited[strings.ToLower(strings.TrimSpace(e))] {
			found++
		}
	}
	return float64(found) / float64(len(expected))
}

// computeCitationValidity scores the answer's [n] markers: 0 with no
// markers, otherwise the fraction that point at an existing citation.
func computeCitationValidity(res *lawcite.QueryResult) float64 {
	if res == nil || res.Response == "" {
		return 0
	}
	markers := citation.Markers(res.Response)
	if len(markers) == 0 {
		return 0
	}
	valid := 0
	for _, n := range markers {
		if n >= 1 && n <= len(res.Citations) {
			valid++
		}
	}
	return float64(valid) / float64(len(markers))
}

var numberPattern = regexp.MustCompile(`\b\d+(?:\.\d+)?\b`)

// computeClaimGrounding is the fraction of significant answer terms that
// occur somewhere in the cited text.
func computeClaimGrounding(res *lawcite.QueryResult) float64 {
	if res == nil || res.Response == "" || len(res.Citations) == 0 {
		return 0
	}
	corpus := normalizeText(citedText(res))
	answer := normalizeText(citation.StripMarkers(res.Response))

	seen := make(map[string]bool)
	var terms []string
	for _, w := range significantWords(answer) {
		if !seen[w] {
			seen[w] = true
			terms = append(terms, w)
		}
	}
	for _, n := range numberPattern.FindAllString(answer, -1) {
		if !seen[n] {
			seen[n] = true
			terms = append(terms, n)
		}
	}
	if len(terms) == 0 {
		return 1
	}

	grounded := 0
	for _, t := range terms {
		if strings.Contains(corpus, t) {
			grounded++
		}
	}
	return clamp(float64(grounded) / float64(len(terms)))
}

var stopWords = map[string]bool{
	"the": true, "are": true, "was": true, "were": true, "for": true,
	"with": true, "what": true, "which": true, "who": true, "how": true,
	"where": true, "when": true, "that": true, "this": true, "and": true,
	"not": true, "from": true, "have": true, "has": true, "their": true,
	"they": true, "must": true, "may": true, "shall": true, "any": true,
}

func significantWords(text string) []string {
	var words []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(strings.ToLower(w), ".,;:!?\"'()[]")
		if len(w) > 2 && !stopWords[w] {
			words = append(words, w)
		}
	}
	return words
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package sectioner

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	// **3.** **Title** as rendered for bold numbered law headers.
	lawHeaderRe = regexp.MustCompile(`\*\*(\d+)\.\*\* \*\*([^*]+)\*\*`)

	// Dotted subsection markers such as 2.1.
	subsectionRe = regexp.MustCompile(`(\d+\.\d+\.)`)
)

// rule is one ordered pattern attempt.
type rule struct {
	name  string
	split func(text string) []Section
}

// PatternStrategy splits text with fixed structural patterns. Rules are
// tried in order and the first one that yields any Section wins; no rule
// is treated as more authoritative than another.
type PatternStrategy struct {
	rules []rule
}

// NewPatternStrategy returns the law-header rule followed by the dotted
// subsection rule.
func NewPatternStrategy() *PatternStrategy {
	return &PatternStrategy{rules: []rule{
		{name: "law_headers", split: SplitLawHeaders},
		{name: "subsections", split: SplitSubsections},
	}}
}

// Sections implements Strategy. It never returns an error; text matching no
// rule yields an empty, non-nil slice.
func (p *PatternStrategy) Sections(_ context.Context, text string) ([]Section, error) {
	for _, r := range p.rules {
		if sections := r.split(text); len(sections) > 0 {
			slog.Debug("sectioner: pattern matched", "rule", r.name, "sections", len(sections))
			return sections, nil
		}
	}
	return []Section{}, nil
}

// SplitLawHeaders splits text at bold "**N.** **Title**" headers. Each
// header owns the text up to the next header. Text before the first header
// is dropped.
func SplitLawHeaders(text string) []Section {
	locs := lawHeaderRe.FindAllStringSubmatchIndex(text, -1)
	sections := make([]Section, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		num := text[loc[2]:loc[3]]
		title := strings.TrimSpace(text[loc[4]:loc[5]])
		content := strings.TrimSpace(text[loc[1]:end])

		sections = append(sections, Section{
			ID:      i + 1,
			Label:   "Law " + num,
			Title:   title,
			Content: fmt.Sprintf("%s. %s: %s", num, title, content),
			Source:  SourceRegex,
			Metadata: map[string]string{
				MetaSection:       "Law " + num,
				MetaTitle:         title,
				MetaSectionNumber: num,
			},
		})
	}
	return sections
}

// SplitSubsections splits text at dotted "N.M." markers. Each marker owns
// the text up to the next marker. Text before the first marker is dropped.
func SplitSubsections(text string) []Section {
	locs := subsectionRe.FindAllStringIndex(text, -1)
	sections := make([]Section, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		num := text[loc[0]:loc[1]]
		content := strings.TrimSpace(text[loc[1]:end])

		sections = append(sections, Section{
			ID:      i + 1,
			Label:   "Section " + num,
			Content: num + " " + content,
			Source:  SourceRegex,
			Metadata: map[string]string{
				MetaSection:          "Section " + num,
				MetaSubsectionNumber: num,
			},
		})
	}
	return sections
}

// lawNumber normalizes a model-reported section number, dropping a trailing
// dot so "3." and "3" label the same law.
func lawNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ".")
	if n, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(n)
	}
	return s
}

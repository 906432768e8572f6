// Package chunker cuts section content into bounded-size chunks that are
// verbatim slices of the input, so a citation's text can always be found in
// the section it came from.
package chunker

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Config controls the chunking behaviour.
type Config struct {
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"` // Maximum estimated tokens per chunk.
	Overlap   int `json:"overlap" yaml:"overlap"`       // Token overlap between consecutive chunks.
}

// Chunker splits text into citation-sized chunks.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration.
// Zero-value fields are replaced with sensible defaults.
func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 512
	}
	switch {
	case cfg.Overlap == 0:
		cfg.Overlap = 20
	case cfg.Overlap < 0: // disabled
		cfg.Overlap = 0
	}
	if cfg.Overlap >= cfg.MaxTokens {
		cfg.Overlap = cfg.MaxTokens / 2
	}
	return &Chunker{cfg: cfg}
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// span is a half-open byte range into the text being split.
type span struct {
	start, end int
}

// Split returns the chunks of text in order. Chunks are cut at sentence
// boundaries; a sentence longer than MaxTokens is cut at word boundaries.
// Consecutive chunks share up to Overlap tokens of whole sentences. Every
// chunk is a trimmed substring of text. Blank input yields no chunks.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if estimateTokens(text) <= c.cfg.MaxTokens {
		return []string{strings.TrimSpace(text)}
	}

	var units []span
	for _, s := range sentenceSpans(text) {
		if estimateTokens(text[s.start:s.end]) <= c.cfg.MaxTokens {
			units = append(units, s)
			continue
		}
		units = append(units, c.wordWindows(text, s)...)
	}

	tokens := func(i, j int) int {
		return estimateTokens(text[units[i].start:units[j].end])
	}

	var chunks []string
	i := 0
	for i < len(units) {
		j := i
		for j+1 < len(units) && tokens(i, j+1) <= c.cfg.MaxTokens {
			j++
		}
		chunks = append(chunks, text[units[i].start:units[j].end])
		if j == len(units)-1 {
			break
		}

		// Step back over trailing units that fit in the overlap budget, but
		// never so far that the next chunk cannot take a new unit.
		next := j + 1
		for next-1 > i && tokens(next-1, j) <= c.cfg.Overlap && tokens(next-1, j+1) <= c.cfg.MaxTokens {
			next--
		}
		i = next
	}
	return chunks
}

// wordWindows cuts an oversized sentence into runs of whole words that each
// fit within MaxTokens.
func (c *Chunker) wordWindows(text string, s span) []span {
	words := wordSpans(text, s)
	maxWords := max(int(float64(c.cfg.MaxTokens)/1.3), 1)

	var out []span
	for i := 0; i < len(words); i += maxWords {
		end := min(i+maxWords, len(words))
		out = append(out, span{start: words[i].start, end: words[end-1].end})
	}
	return out
}

// sentenceSpans splits text on '.', '?' or '!' followed by whitespace or end
// of string. Spans are trimmed and never empty.
func sentenceSpans(text string) []span {
	var out []span
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '?', '!':
			if i+1 >= len(text) || spaceAt(text, i+1) > 0 {
				if s, ok := trimSpan(text, start, i+1); ok {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s, ok := trimSpan(text, start, len(text)); ok {
		out = append(out, s)
	}
	return out
}

// wordSpans returns the whitespace-separated words inside s.
func wordSpans(text string, s span) []span {
	var out []span
	inWord := false
	wordStart := 0
	for i := s.start; i < s.end; {
		if n := spaceAt(text[:s.end], i); n > 0 {
			if inWord {
				out = append(out, span{start: wordStart, end: i})
				inWord = false
			}
			i += n
			continue
		}
		if !inWord {
			wordStart = i
			inWord = true
		}
		_, size := utf8.DecodeRuneInString(text[i:s.end])
		i += size
	}
	if inWord {
		out = append(out, span{start: wordStart, end: s.end})
	}
	return out
}

func trimSpan(text string, start, end int) (span, bool) {
	for start < end {
		n := spaceAt(text[:end], start)
		if n == 0 {
			break
		}
		start += n
	}
	for end > start {
		r, size := utf8.DecodeLastRuneInString(text[start:end])
		if !unicode.IsSpace(r) {
			break
		}
		end -= size
	}
	return span{start: start, end: end}, start < end
}

// spaceAt returns the byte width of the Unicode space starting at text[i],
// or 0 when text[i] does not start one.
func spaceAt(text string, i int) int {
	r, size := utf8.DecodeRuneInString(text[i:])
	if !unicode.IsSpace(r) {
		return 0
	}
	return size
}

// estimateTokens approximates the token count of text using a simple
// word-based heuristic: tokens ~ words * 1.3.
func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

// EstimateTokens exposes the heuristic used to size chunks.
func EstimateTokens(text string) int {
	return estimateTokens(text)
}

package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, 512, c.Config().MaxTokens)
	assert.Equal(t, 20, c.Config().Overlap)
}

func TestNewCustomConfig(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"custom", Config{MaxTokens: 100, Overlap: 10}, Config{MaxTokens: 100, Overlap: 10}},
		{"overlap disabled", Config{MaxTokens: 100, Overlap: -1}, Config{MaxTokens: 100, Overlap: 0}},
		{"overlap clamped", Config{MaxTokens: 10, Overlap: 30}, Config{MaxTokens: 10, Overlap: 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.in).Config())
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"hello", 2},             // ceil(1*1.3) = 2
		{"hello world", 3},       // ceil(2*1.3) = 3
		{"one two three four", 6}, // ceil(4*1.3) = 6
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateTokens(tt.input), "input %q", tt.input)
	}
}

func TestSplitEmpty(t *testing.T) {
	c := New(Config{})
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \t "))
}

func TestSplitShort(t *testing.T) {
	got := New(Config{}).Split("  1. Theft: Theft is punishable by hanging.  ")
	assert.Equal(t, []string{"1. Theft: Theft is punishable by hanging."}, got)
}

func sentences(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("Clause %d binds every citizen of the realm equally.", i)
	}
	return strings.Join(parts, " ")
}

func TestSplitLongRespectsBoundsAndIsVerbatim(t *testing.T) {
	text := sentences(60)
	c := New(Config{MaxTokens: 40, Overlap: 12})
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, EstimateTokens(ch), 40, "chunk %d too large", i)
		assert.Contains(t, text, ch, "chunk %d is not a substring", i)
		assert.Equal(t, strings.TrimSpace(ch), ch)
		assert.True(t, strings.HasSuffix(ch, "."), "chunk %d not cut at sentence end: %q", i, ch)
	}
	assert.True(t, strings.HasPrefix(chunks[0], "Clause 0 "))
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "Clause 59 binds every citizen of the realm equally."))
}

func TestSplitOverlap(t *testing.T) {
	// Each sentence is 9 words = 12 tokens; two fit in 30 tokens.
	text := sentences(6)
	chunks := New(Config{MaxTokens: 30, Overlap: 12}).Split(text)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prevLast := chunks[i-1][strings.LastIndex(chunks[i-1], "Clause"):]
		assert.True(t, strings.HasPrefix(chunks[i], prevLast), "chunk %d does not start with overlap %q", i, prevLast)
	}
}

func TestSplitNoOverlap(t *testing.T) {
	text := sentences(6)
	chunks := New(Config{MaxTokens: 30, Overlap: -1}).Split(text)
	assert.Equal(t, text, strings.Join(chunks, " "))
}

func TestSplitOversizedSentence(t *testing.T) {
	words := make([]string, 100)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, " ")
	chunks := New(Config{MaxTokens: 14, Overlap: -1}).Split(text)
	require.Len(t, chunks, 10)
	for _, ch := range chunks {
		assert.Contains(t, text, ch)
		assert.LessOrEqual(t, EstimateTokens(ch), 14)
	}
	assert.Equal(t, text, strings.Join(chunks, " "))
}

func TestSentenceSpans(t *testing.T) {
	text := " First one. Second?  Third!Not split. v1.2 stays "
	var got []string
	for _, s := range sentenceSpans(text) {
		got = append(got, text[s.start:s.end])
	}
	assert.Equal(t, []string{"First one.", "Second?", "Third!Not split.", "v1.2 stays"}, got)
}

func TestSplitUnicodeSpaces(t *testing.T) {
	const nbsp = "\u00a0"
	words := make([]string, 100)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, nbsp)
	chunks := New(Config{MaxTokens: 14, Overlap: -1}).Split(text)
	require.Len(t, chunks, 10)
	for _, ch := range chunks {
		assert.Contains(t, text, ch)
		assert.LessOrEqual(t, EstimateTokens(ch), 14)
		assert.False(t, strings.HasPrefix(ch, nbsp) || strings.HasSuffix(ch, nbsp))
	}
	assert.Equal(t, text, strings.Join(chunks, nbsp))
}

func TestSentenceSpansUnicodeSpaces(t *testing.T) {
	text := "\u2003First one.\u00a0Second.\u3000"
	var got []string
	for _, s := range sentenceSpans(text) {
		got = append(got, text[s.start:s.end])
	}
	assert.Equal(t, []string{"First one.", "Second."}, got)
}

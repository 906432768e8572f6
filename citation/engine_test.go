package citation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birucan/lawcite/llm"
	"github.com/birucan/lawcite/llm/llmtest"
	"github.com/birucan/lawcite/vectorstore"
)

// fakeRetriever returns its matches truncated to k.
type fakeRetriever struct {
	matches []vectorstore.Match
	err     error
	gotK    int
}

func (f *fakeRetriever) Search(_ context.Context, _ []float32, k int) ([]vectorstore.Match, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.matches[:min(k, len(f.matches))], nil
}

func match(label, content string) vectorstore.Match {
	return vectorstore.Match{Label: label, Content: content}
}

func TestQueryBuildsCitationsInRankOrder(t *testing.T) {
	r := &fakeRetriever{matches: []vectorstore.Match{
		match("Law 1", "1. Theft: Theft is punishable by hanging."),
		match("Law 2", "2. Tax: Tax evasion is punishable by banishment."),
	}}
	gen := llmtest.Reply("  Theft is punishable by hanging [1].  ")
	e := NewEngine(Config{TopK: 2, Model: "gpt-4"}, r, &llmtest.Embedder{}, gen)

	res, err := e.Query(context.Background(), "what happens to thieves?")
	require.NoError(t, err)
	assert.Equal(t, 2, r.gotK)
	assert.Equal(t, "what happens to thieves?", res.Query)
	assert.Equal(t, "Theft is punishable by hanging [1].", res.Response)
	assert.Equal(t, []Citation{
		{Source: "Law 1", Text: "1. Theft: Theft is punishable by hanging."},
		{Source: "Law 2", Text: "2. Tax: Tax evasion is punishable by banishment."},
	}, res.Citations)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "gpt-4", reqs[0].Model)
	prompt := reqs[0].Messages[1].Content
	assert.Contains(t, prompt, "Source 1:\n1. Theft: Theft is punishable by hanging.")
	assert.Contains(t, prompt, "Source 2:\n2. Tax:")
	assert.Contains(t, prompt, "Query: what happens to thieves?")
	assert.Less(t, strings.Index(prompt, "Source 1:"), strings.Index(prompt, "Source 2:"))
}

func TestQueryEmptyIndex(t *testing.T) {
	gen := llmtest.Fail(errors.New("must not be called"))
	e := NewEngine(Config{}, &fakeRetriever{}, &llmtest.Embedder{}, gen)

	res, err := e.Query(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, NoGroundingResponse, res.Response)
	assert.NotNil(t, res.Citations)
	assert.Empty(t, res.Citations)
	assert.Empty(t, gen.Requests())
}

func TestQueryTrimsChunksToTopK(t *testing.T) {
	long := func(topic string, n int) string {
		parts := make([]string, n)
		for i := range parts {
			parts[i] = fmt.Sprintf("Rule %d about %s applies here.", i, topic)
		}
		return strings.Join(parts, " ")
	}
	r := &fakeRetriever{matches: []vectorstore.Match{
		match("Law 1", long("taxes", 8)),
		match("Law 2", long("voting", 8)),
	}}
	e := NewEngine(Config{TopK: 2, ChunkSize: 20, ChunkOverlap: -1}, r, &llmtest.Embedder{Dim: 256}, llmtest.Reply("answer [1] [2]"))

	res, err := e.Query(context.Background(), "voting rules")
	require.NoError(t, err)
	require.Len(t, res.Citations, 2)
	for _, c := range res.Citations {
		var owner string
		for _, m := range r.matches {
			if m.Label == c.Source {
				owner = m.Content
			}
		}
		assert.Contains(t, owner, c.Text, "citation text must be a verbatim slice of its section")
	}
	assert.Equal(t, "Law 2", res.Citations[0].Source, "most similar chunk ranks first")
	assert.Equal(t, "Law 2", res.Citations[1].Source)
}

func TestQueryGenerationFailureIsDegraded(t *testing.T) {
	r := &fakeRetriever{matches: []vectorstore.Match{match("Law 1", "1. Theft: hanging.")}}
	cause := fmt.Errorf("%w: 429 quota", llm.ErrBackendUnavailable)

	tests := []struct {
		name string
		gen  llm.Generator
	}{
		{"backend error", llmtest.Fail(cause)},
		{"empty answer", llmtest.Reply("   ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(Config{}, r, &llmtest.Embedder{}, tt.gen)
			res, err := e.Query(context.Background(), "theft?")
			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, ErrGenerationFailed)
			assert.ErrorIs(t, err, llm.ErrBackendUnavailable)

			var de *DegradedError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "theft?", de.Query)
			assert.Equal(t, []Citation{{Source: "Law 1", Text: "1. Theft: hanging."}}, de.Citations)
		})
	}
}

func TestQueryEmbeddingFailure(t *testing.T) {
	r := &fakeRetriever{matches: []vectorstore.Match{match("Law 1", "x")}}
	e := NewEngine(Config{}, r, &llmtest.Embedder{Err: errors.New("connection refused")}, llmtest.Reply("a"))

	_, err := e.Query(context.Background(), "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
	assert.NotErrorIs(t, err, ErrGenerationFailed)
}

func TestQueryRetrievalFailure(t *testing.T) {
	r := &fakeRetriever{err: vectorstore.ErrClosed}
	e := NewEngine(Config{}, r, &llmtest.Embedder{}, llmtest.Reply("a"))

	_, err := e.Query(context.Background(), "q")
	assert.ErrorIs(t, err, vectorstore.ErrClosed)
}

func TestMarkers(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"no markers", nil},
		{"a [1] b [2] c [1]", []int{1, 2}},
		{"[3][1] and [x] and [12]", []int{3, 1, 12}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Markers(tt.in), tt.in)
	}
}

func TestStripMarkers(t *testing.T) {
	assert.Equal(t, "Hanging. Voting at 18.", StripMarkers("Hanging[1]. Voting at 18[2][1]."))
	assert.Equal(t, "no markers", StripMarkers("no markers"))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{0, 0}, []float32{1, 0}))
	assert.Zero(t, cosine([]float32{1}, []float32{1, 0}))
}

//go:build cgo

package index

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
	"github.com/birucan/lawcite/sectioner"
)

var fiveLaws = "**1.** **Theft** Theft is punishable by hanging." +
	"**2.** **Tax** Tax evasion is punishable by banishment." +
	"**3.** **Voting** Every citizen may vote in the yearly assembly." +
	"**4.** **Marriage** Marriage requires the consent of both parties." +
	"**5.** **Trade** Merchants must weigh goods on the public scales."

func connected(t *testing.T, cfg Config, gen llm.Generator) (*Adapter, *llmtest.Embedder) {
	t.Helper()
	emb := &llmtest.Embedder{}
	a := New(cfg, emb, gen)
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { a.Close() })
	return a, emb
}

func TestScenarioTopKCitationsAreVerbatim(t *testing.T) {
	ctx := context.Background()
	sections := sectioner.SplitLawHeaders(fiveLaws)
	require.Len(t, sections, 5)

	a, _ := connected(t, Config{TopK: 2}, llmtest.Reply("Thieves are hanged [1]."))
	require.NoError(t, a.Load(ctx, sections))

	res, err := a.Query(ctx, "what is the punishment for theft?")
	require.NoError(t, err)
	assert.Equal(t, "Thieves are hanged [1].", res.Response)
	require.NotEmpty(t, res.Citations)
	assert.LessOrEqual(t, len(res.Citations), 2)

	for _, c := range res.Citations {
		found := false
		for _, s := range sections {
			if s.Label == c.Source && strings.Contains(s.Content, c.Text) {
				found = true
			}
		}
		assert.True(t, found, "citation %+v is not a verbatim slice of a loaded section", c)
	}
}

func TestQueryBeforeLoad(t *testing.T) {
	ctx := context.Background()

	unconnected := New(Config{}, &llmtest.Embedder{}, llmtest.Reply("x"))
	_, err := unconnected.Query(ctx, "q")
	assert.ErrorIs(t, err, ErrNotReady)

	a, _ := connected(t, Config{}, llmtest.Reply("x"))
	res, err := a.Query(ctx, "q")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.Nil(t, res)
}

func TestLoadBeforeConnect(t *testing.T) {
	a := New(Config{}, &llmtest.Embedder{}, llmtest.Reply("x"))
	err := a.Load(context.Background(), sectioner.SplitLawHeaders(fiveLaws))
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestConnectTwice(t *testing.T) {
	a, _ := connected(t, Config{}, llmtest.Reply("x"))
	assert.ErrorIs(t, a.Connect(context.Background()), ErrAlreadyConnected)
}

func TestEmptyLoadIsQueryable(t *testing.T) {
	ctx := context.Background()
	gen := llmtest.Reply("unused")
	a, _ := connected(t, Config{}, gen)
	require.NoError(t, a.Load(ctx, nil))

	res, err := a.Query(ctx, "anything")
	require.NoError(t, err)
	assert.Empty(t, res.Citations)
	assert.Empty(t, gen.Requests())
}

func TestLoadIsAdditive(t *testing.T) {
	ctx := context.Background()
	sections := sectioner.SplitLawHeaders(fiveLaws)
	a, _ := connected(t, Config{}, llmtest.Reply("x"))
	require.NoError(t, a.Load(ctx, sections))
	require.NoError(t, a.Load(ctx, sections))

	n, err := a.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestLoadBatches(t *testing.T) {
	ctx := context.Background()
	var b strings.Builder
	for i := 1; i <= 70; i++ {
		fmt.Fprintf(&b, "**%d.** **Rule %d** Body of rule %d.", i, i, i)
	}
	sections := sectioner.SplitLawHeaders(b.String())
	require.Len(t, sections, 70)

	a, emb := connected(t, Config{EmbeddingDim: llmtest.DefaultDim}, llmtest.Reply("x"))
	require.NoError(t, a.Load(ctx, sections))
	assert.Equal(t, 3, emb.Calls(), "70 sections embed in three batches of at most 32")
}

func TestFailedLoadInsertsNothing(t *testing.T) {
	ctx := context.Background()
	var b strings.Builder
	for i := 1; i <= 70; i++ {
		fmt.Fprintf(&b, "**%d.** **Rule %d** Body of rule %d.", i, i, i)
	}
	sections := sectioner.SplitLawHeaders(b.String())

	down := errors.New("connection reset")
	emb := &llmtest.Embedder{Err: down, FailAfter: 1}
	a := New(Config{EmbeddingDim: llmtest.DefaultDim}, emb, llmtest.Reply("x"))
	require.NoError(t, a.Connect(ctx))
	defer a.Close()

	err := a.Load(ctx, sections)
	assert.ErrorIs(t, err, down)
	assert.Equal(t, 2, emb.Calls(), "second batch fails")
	n, err := a.store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "earlier batches are not kept")

	_, err = a.Query(ctx, "rule 1")
	assert.ErrorIs(t, err, ErrNotReady)

	emb.Err = nil
	require.NoError(t, a.Load(ctx, sections))
	n, err = a.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 70, n, "retry inserts each section once")
}

func TestConnectProbesDimension(t *testing.T) {
	emb := &llmtest.Embedder{Dim: 8}
	a := New(Config{}, emb, llmtest.Reply("x"))
	require.NoError(t, a.Connect(context.Background()))
	defer a.Close()
	assert.Equal(t, 8, a.store.Dim())
	assert.Equal(t, 1, emb.Calls())
}

func TestDimensionMismatchIsRejected(t *testing.T) {
	ctx := context.Background()
	a := New(Config{EmbeddingDim: 4}, &llmtest.Embedder{Dim: 8}, llmtest.Reply("x"))
	require.NoError(t, a.Connect(ctx))
	defer a.Close()

	err := a.Load(ctx, sectioner.SplitLawHeaders(fiveLaws))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension mismatch")
}

func TestBackendUnavailable(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")

	a := New(Config{}, &llmtest.Embedder{Err: down}, llmtest.Reply("x"))
	assert.ErrorIs(t, a.Connect(ctx), llm.ErrBackendUnavailable)

	emb := &llmtest.Embedder{}
	b := New(Config{EmbeddingDim: llmtest.DefaultDim}, emb, llmtest.Reply("x"))
	require.NoError(t, b.Connect(ctx))
	defer b.Close()
	emb.Err = down
	err := b.Load(ctx, sectioner.SplitLawHeaders(fiveLaws))
	assert.ErrorIs(t, err, llm.ErrBackendUnavailable)
	assert.ErrorIs(t, err, down)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	a, _ := connected(t, Config{}, llmtest.Reply("x"))
	require.NoError(t, a.Load(ctx, sectioner.SplitLawHeaders(fiveLaws)))
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	_, err := a.Query(ctx, "q")
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, a.Connect(ctx), ErrNotReady)
}

func TestTruncateForEmbed(t *testing.T) {
	short := "short"
	assert.Equal(t, short, truncateForEmbed(short))

	long := strings.Repeat("é", maxEmbedChars) // two bytes per rune
	got := truncateForEmbed(long)
	assert.LessOrEqual(t, len(got), maxEmbedChars)
	assert.True(t, strings.HasPrefix(long, got))
	assert.Equal(t, 0, len(got)%2)
}

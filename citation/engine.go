// Package citation answers queries from retrieved sections and maps every
// numbered marker in the answer back to the section text it came from.
package citation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/birucan/lawcite/chunker"
	"github.com/birucan/lawcite/llm"
	"github.com/birucan/lawcite/vectorstore"
)

// ErrGenerationFailed marks a query whose retrieval succeeded but whose
// answer could not be generated.
var ErrGenerationFailed = errors.New("citation: generation failed")

// Citation links a marker in an answer to the chunk it refers to.
type Citation struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// QueryResult is the answer to one query. Marker [n] in Response refers to
// Citations[n-1].
type QueryResult struct {
	Query     string     `json:"query"`
	Response  string     `json:"response"`
	Citations []Citation `json:"citations"`
}

// DegradedError is returned when retrieval worked but generation did not.
// It carries what was retrieved so callers can still show it.
type DegradedError struct {
	Query     string
	Citations []Citation
	Err       error
}

func (e *DegradedError) Error() string {
	return fmt.Sprintf("citation: generation failed after retrieving %d citations: %v", len(e.Citations), e.Err)
}

// Unwrap lets errors.Is match ErrGenerationFailed and
// llm.ErrBackendUnavailable as well as the underlying cause.
func (e *DegradedError) Unwrap() []error {
	return []error{ErrGenerationFailed, llm.ErrBackendUnavailable, e.Err}
}

// Retriever finds the nearest stored sections to a query vector.
type Retriever interface {
	Search(ctx context.Context, query []float32, k int) ([]vectorstore.Match, error)
}

// Config controls retrieval breadth, chunking and generation.
type Config struct {
	TopK         int     `json:"top_k" yaml:"top_k"`
	ChunkSize    int     `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int     `json:"chunk_overlap" yaml:"chunk_overlap"`
	Model        string  `json:"model" yaml:"model"`
	MaxTokens    int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature  float64 `json:"temperature" yaml:"temperature"`
}

// Engine runs the retrieve-chunk-generate pipeline.
type Engine struct {
	cfg       Config
	retriever Retriever
	embedder  llm.Embedder
	gen       llm.Generator
	chunker   *chunker.Chunker
}

// NewEngine returns an Engine. TopK defaults to 2 and ChunkSize to 512.
func NewEngine(cfg Config, retriever Retriever, embedder llm.Embedder, gen llm.Generator) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = 2
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	return &Engine{
		cfg:       cfg,
		retriever: retriever,
		embedder:  embedder,
		gen:       gen,
		chunker:   chunker.New(chunker.Config{MaxTokens: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}),
	}
}

// chunk is a retrieved piece of a section.
type chunk struct {
	label string
	text  string
	rank  int // retrieval rank of the originating section
}

// Query answers text from the retrieved sections. An empty index yields a
// result with NoGroundingResponse and no citations. Embedding or retrieval
// failures are returned as errors wrapping llm.ErrBackendUnavailable when
// the backend is at fault; a generation failure returns a *DegradedError.
func (e *Engine) Query(ctx context.Context, text string) (*QueryResult, error) {
	start := time.Now()

	vecs, err := e.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %w", llm.ErrBackendUnavailable, err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: embedding query: got %d vectors", llm.ErrBackendUnavailable, len(vecs))
	}
	queryVec := vecs[0]

	matches, err := e.retriever.Search(ctx, queryVec, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieving sections: %w", err)
	}
	if len(matches) == 0 {
		slog.Info("citation: no sections retrieved", "query", text)
		return &QueryResult{Query: text, Response: NoGroundingResponse, Citations: []Citation{}}, nil
	}

	chunks := e.split(matches)
	if len(chunks) > e.cfg.TopK {
		chunks, err = e.rerank(ctx, queryVec, chunks)
		if err != nil {
			return nil, err
		}
	}

	citations := make([]Citation, len(chunks))
	for i, c := range chunks {
		citations[i] = Citation{Source: c.label, Text: c.text}
	}

	resp, err := e.gen.Chat(ctx, llm.ChatRequest{
		Model: e.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: citationSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(citationPrompt, renderSources(chunks), text)},
		},
		Temperature: e.cfg.Temperature,
		MaxTokens:   e.cfg.MaxTokens,
	})
	if err != nil {
		return nil, &DegradedError{Query: text, Citations: citations, Err: err}
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return nil, &DegradedError{Query: text, Citations: citations, Err: errors.New("empty answer")}
	}

	for _, n := range Markers(answer) {
		if n > len(citations) {
			slog.Warn("citation: answer references unknown source", "marker", n, "sources", len(citations))
		}
	}
	slog.Info("citation: query answered",
		"sections", len(matches),
		"citations", len(citations),
		"total_tokens", resp.TotalTokens,
		"elapsed", time.Since(start).Round(time.Millisecond))

	return &QueryResult{Query: text, Response: answer, Citations: citations}, nil
}

// split chunks every match, keeping retrieval rank order.
func (e *Engine) split(matches []vectorstore.Match) []chunk {
	var out []chunk
	for rank, m := range matches {
		for _, t := range e.chunker.Split(m.Content) {
			out = append(out, chunk{label: m.Label, text: t, rank: rank})
		}
	}
	return out
}

// rerank keeps the TopK chunks most similar to the query. Ties keep
// retrieval order.
func (e *Engine) rerank(ctx context.Context, queryVec []float32, chunks []chunk) ([]chunk, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.text
	}
	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding chunks: %w", llm.ErrBackendUnavailable, err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("%w: embedding chunks: got %d vectors for %d chunks",
			llm.ErrBackendUnavailable, len(vecs), len(chunks))
	}

	scores := make([]float64, len(chunks))
	for i, v := range vecs {
		scores[i] = cosine(queryVec, v)
	}
	idx := make([]int, len(chunks))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	out := make([]chunk, e.cfg.TopK)
	for i := range out {
		out[i] = chunks[idx[i]]
	}
	return out, nil
}

func renderSources(chunks []chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		fmt.Fprintf(&b, "Source %d:\n%s\n\n", i+1, c.text)
	}
	return b.String()
}

var markerRe = regexp.MustCompile(`\[(\d+)\]`)

// Markers returns the distinct citation numbers referenced in response, in
// order of first appearance.
func Markers(response string) []int {
	var out []int
	seen := make(map[int]bool)
	for _, m := range markerRe.FindAllStringSubmatch(response, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// StripMarkers removes [n] markers from response.
func StripMarkers(response string) string {
	return markerRe.ReplaceAllString(response, "")
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

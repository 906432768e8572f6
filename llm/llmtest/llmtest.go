// Package llmtest provides deterministic in-process backends for tests.
package llmtest

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/birucan/lawcite/llm"
)

// DefaultDim is the vector length produced by a zero-value Embedder.
const DefaultDim = 16

// Embedder is a bag-of-words hashing embedder. Texts sharing words get
// similar vectors, identical texts get identical vectors.
type Embedder struct {
	Dim int
	Err error // returned by every call when set
	// FailAfter lets the first FailAfter calls succeed before Err applies.
	FailAfter int

	mu    sync.Mutex
	calls int
}

// Embed implements llm.Embedder.
func (e *Embedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()
	if e.Err != nil && n > e.FailAfter {
		return nil, e.Err
	}
	dim := e.Dim
	if dim <= 0 {
		dim = DefaultDim
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = Vector(t, dim)
	}
	return out, nil
}

// Calls reports how many Embed calls were made.
func (e *Embedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// Vector returns the normalized hashed bag-of-words vector for text.
func Vector(text string, dim int) []float32 {
	v := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}

// Generator replays scripted responses in order and records every request.
// Once the script is exhausted the last entry repeats.
type Generator struct {
	Responses []Response

	mu       sync.Mutex
	requests []llm.ChatRequest
}

// Response is one scripted reply.
type Response struct {
	Content      string
	FinishReason string
	Err          error
}

// ErrNoScript is returned when a Generator has no responses configured.
var ErrNoScript = errors.New("llmtest: no scripted response")

// Reply returns a Generator that always answers content.
func Reply(content string) *Generator {
	return &Generator{Responses: []Response{{Content: content, FinishReason: "stop"}}}
}

// Fail returns a Generator whose every call fails with err.
func Fail(err error) *Generator {
	return &Generator{Responses: []Response{{Err: err}}}
}

// Chat implements llm.Generator.
func (g *Generator) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := len(g.requests)
	g.requests = append(g.requests, req)

	if len(g.Responses) == 0 {
		return nil, ErrNoScript
	}
	r := g.Responses[min(n, len(g.Responses)-1)]
	if r.Err != nil {
		return nil, r.Err
	}
	return &llm.ChatResponse{Content: r.Content, FinishReason: r.FinishReason, Model: req.Model}, nil
}

// Requests returns a copy of the requests received so far.
func (g *Generator) Requests() []llm.ChatRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]llm.ChatRequest(nil), g.requests...)
}

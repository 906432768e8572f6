// Package index binds a private vector store to one embedding backend and
// one generation backend behind Connect, Load and Query.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/birucan/lawcite/citation"
	"github.com/birucan/lawcite/llm"
	"github.com/birucan/lawcite/sectioner"
	"github.com/birucan/lawcite/vectorstore"
)

var (
	// ErrNotReady is returned when an operation runs before the one it
	// depends on has completed, or after Close.
	ErrNotReady = errors.New("index: not ready")

	// ErrAlreadyConnected is returned by a second Connect.
	ErrAlreadyConnected = errors.New("index: already connected")
)

const (
	embedBatchSize = 32

	// maxEmbedChars keeps a single input within common embedding context
	// windows.
	maxEmbedChars = 8000
)

// Config is fixed for the life of an Adapter.
type Config struct {
	TopK            int     `json:"top_k" yaml:"top_k"`
	ChunkSize       int     `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap    int     `json:"chunk_overlap" yaml:"chunk_overlap"`
	EmbeddingDim    int     `json:"embedding_dim" yaml:"embedding_dim"` // 0 probes the embedder
	Model           string  `json:"model" yaml:"model"`
	AnswerMaxTokens int     `json:"answer_max_tokens" yaml:"answer_max_tokens"`
	Temperature     float64 `json:"temperature" yaml:"temperature"`
}

type state int

const (
	stateNew state = iota
	stateConnected
	stateLoaded
	stateClosed
)

// Adapter owns one ephemeral index. It is safe for concurrent use, but is
// meant to live for a single request.
type Adapter struct {
	cfg      Config
	embedder llm.Embedder
	gen      llm.Generator

	mu     sync.Mutex
	state  state
	store  *vectorstore.Store
	engine *citation.Engine
}

// New returns an unconnected Adapter. TopK defaults to 2 and ChunkSize to
// 512. The embedder is used for both loading and querying.
func New(cfg Config, embedder llm.Embedder, gen llm.Generator) *Adapter {
	if cfg.TopK <= 0 {
		cfg.TopK = 2
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	return &Adapter{cfg: cfg, embedder: embedder, gen: gen}
}

// Connect provisions a fresh in-memory store.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case stateConnected, stateLoaded:
		return ErrAlreadyConnected
	case stateClosed:
		return fmt.Errorf("%w: adapter closed", ErrNotReady)
	}

	dim := a.cfg.EmbeddingDim
	if dim <= 0 {
		probe, err := a.embedder.Embed(ctx, []string{"dimension probe"})
		if err != nil {
			return fmt.Errorf("%w: probing embedding dimension: %w", llm.ErrBackendUnavailable, err)
		}
		if len(probe) != 1 || len(probe[0]) == 0 {
			return fmt.Errorf("%w: probing embedding dimension: empty result", llm.ErrBackendUnavailable)
		}
		dim = len(probe[0])
	}

	store, err := vectorstore.Open(ctx, dim)
	if err != nil {
		return fmt.Errorf("index: opening store: %w", err)
	}
	a.store = store
	a.engine = citation.NewEngine(citation.Config{
		TopK:         a.cfg.TopK,
		ChunkSize:    a.cfg.ChunkSize,
		ChunkOverlap: a.cfg.ChunkOverlap,
		Model:        a.cfg.Model,
		MaxTokens:    a.cfg.AnswerMaxTokens,
		Temperature:  a.cfg.Temperature,
	}, store, a.embedder, a.gen)
	a.state = stateConnected

	slog.Debug("index: connected", "store", store.Name(), "dim", dim, "top_k", a.cfg.TopK)
	return nil
}

// Load embeds and inserts sections. Repeated calls add more rows; nothing
// is replaced or deduplicated. Loading zero sections still marks the index
// ready for queries.
func (a *Adapter) Load(ctx context.Context, sections []sectioner.Section) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state != stateConnected && a.state != stateLoaded {
		return fmt.Errorf("%w: load before connect", ErrNotReady)
	}

	// All batches are embedded before one all-or-nothing insert.
	start := time.Now()
	records := make([]vectorstore.Record, 0, len(sections))
	for i := 0; i < len(sections); i += embedBatchSize {
		batch := sections[i:min(i+embedBatchSize, len(sections))]

		texts := make([]string, len(batch))
		for j, s := range batch {
			texts[j] = truncateForEmbed(s.Content)
		}
		vecs, err := a.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("%w: embedding sections %d-%d: %w",
				llm.ErrBackendUnavailable, i, i+len(batch)-1, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("%w: got %d embeddings for %d sections",
				llm.ErrBackendUnavailable, len(vecs), len(batch))
		}

		for j, s := range batch {
			records = append(records, vectorstore.Record{
				Label:     s.Label,
				Title:     s.Title,
				Content:   s.Content,
				Source:    string(s.Source),
				Metadata:  s.Metadata,
				Embedding: vecs[j],
			})
		}
	}
	if len(records) > 0 {
		if _, err := a.store.Insert(ctx, records); err != nil {
			return fmt.Errorf("index: inserting sections: %w", err)
		}
	}

	a.state = stateLoaded
	slog.Info("index: loaded sections",
		"sections", len(sections),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// Query answers text from the loaded sections. It fails with ErrNotReady
// unless a Load has completed.
func (a *Adapter) Query(ctx context.Context, text string) (*citation.QueryResult, error) {
	a.mu.Lock()
	if a.state != stateLoaded {
		a.mu.Unlock()
		return nil, fmt.Errorf("%w: query before load", ErrNotReady)
	}
	engine := a.engine
	a.mu.Unlock()

	return engine.Query(ctx, text)
}

// Close releases the store. Further operations return ErrNotReady.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == stateClosed {
		return nil
	}
	a.state = stateClosed
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// truncateForEmbed cuts text to maxEmbedChars at a rune boundary.
func truncateForEmbed(s string) string {
	if len(s) <= maxEmbedChars {
		return s
	}
	cut := maxEmbedChars
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}


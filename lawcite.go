// Package lawcite turns a legal document into labeled sections and answers
// questions about it with citations that point back to the section text.
//
// Every call re-reads, re-sections and re-indexes its document into a
// private in-memory index that is discarded when the call returns.
package lawcite

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/birucan/lawcite/citation"
	"github.com/birucan/lawcite/index"
	"github.com/birucan/lawcite/llm"
	"github.com/birucan/lawcite/loader"
	"github.com/birucan/lawcite/sectioner"
)

// Section is one labeled unit of document text.
type Section = sectioner.Section

// QueryResult is a cited answer.
type QueryResult = citation.QueryResult

// Citation links an answer marker to the text it cites.
type Citation = citation.Citation

// Service is the main entry point.
type Service interface {
	// Sections reads and sections a document without indexing it.
	Sections(ctx context.Context, location string, opts ...Option) ([]Section, error)

	// CreateDocuments sections a document and indexes it in a throwaway
	// index, returning the sections. Model-assisted sectioning is off unless
	// WithModelAssist(true) is given.
	CreateDocuments(ctx context.Context, location string, opts ...Option) ([]Section, error)

	// Query sections and indexes a document, then answers query against it.
	// Model-assisted sectioning is on unless WithModelAssist(false) is given.
	Query(ctx context.Context, query, location string, opts ...Option) (*QueryResult, error)
}

// Option configures a single call.
type Option func(*callOptions)

type callOptions struct {
	modelAssist *bool
	topK        int
}

// WithModelAssist selects model-assisted (true) or pattern (false)
// sectioning for this call.
func WithModelAssist(on bool) Option {
	return func(o *callOptions) { o.modelAssist = &on }
}

// WithTopK overrides the number of citations retrieved for this call.
func WithTopK(n int) Option {
	return func(o *callOptions) { o.topK = n }
}

// ModelAssist reports whether opts request model-assisted sectioning,
// falling back to def when no option sets it.
func ModelAssist(opts []Option, def bool) bool {
	o := resolveOptions(opts)
	if o.modelAssist == nil {
		return def
	}
	return *o.modelAssist
}

func resolveOptions(opts []Option) callOptions {
	var o callOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// service is the concrete implementation of Service.
type service struct {
	cfg       Config
	embedder  llm.Embedder
	chat      llm.Generator
	loaders   *loader.Registry
	extractor *sectioner.Extractor
}

// New creates a Service whose backends are built from cfg.
func New(cfg Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	chatLLM, err := llm.NewProvider(cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("creating chat provider: %w", err)
	}
	embedLLM, err := llm.NewProvider(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	return NewWithProviders(cfg, chatLLM, embedLLM)
}

// NewWithProviders creates a Service around existing backends. Provider
// fields of cfg are not consulted.
func NewWithProviders(cfg Config, chat llm.Generator, embedder llm.Embedder) (Service, error) {
	if cfg.TopK < 1 {
		return nil, fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidConfig, cfg.TopK)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	return &service{
		cfg:      cfg,
		embedder: embedder,
		chat:     chat,
		loaders:  loader.NewRegistry(),
		extractor: sectioner.NewExtractor(chat, sectioner.ModelConfig{
			Model:       cfg.SectioningModel,
			Temperature: cfg.SectioningTemperature,
			MaxTokens:   cfg.SectioningMaxTokens,
		}),
	}, nil
}

func (s *service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, s.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

// Sections loads, cleans and sections the document at location.
func (s *service) Sections(ctx context.Context, location string, opts ...Option) ([]Section, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.sections(ctx, location, ModelAssist(opts, false))
}

func (s *service) sections(ctx context.Context, location string, modelAssist bool) ([]Section, error) {
	raw, err := s.loaders.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	res := s.extractor.Extract(ctx, loader.Clean(raw), modelAssist)
	slog.Info("sectioning: document sectioned",
		"path", location,
		"strategy", res.Strategy,
		"sections", len(res.Sections),
		"degraded", res.Degraded != nil)
	return res.Sections, nil
}

// build sections a document into a new loaded adapter. The caller closes it.
func (s *service) build(ctx context.Context, location string, modelAssist bool, topK int) (*index.Adapter, []Section, error) {
	sections, err := s.sections(ctx, location, modelAssist)
	if err != nil {
		return nil, nil, err
	}

	if topK <= 0 {
		topK = s.cfg.TopK
	}
	adapter := index.New(index.Config{
		TopK:            topK,
		ChunkSize:       s.cfg.ChunkSize,
		ChunkOverlap:    s.cfg.ChunkOverlap,
		EmbeddingDim:    s.cfg.EmbeddingDim,
		AnswerMaxTokens: s.cfg.AnswerMaxTokens,
		Temperature:     s.cfg.AnswerTemperature,
	}, s.embedder, s.chat)
	if err := adapter.Connect(ctx); err != nil {
		return nil, nil, err
	}
	if err := adapter.Load(ctx, sections); err != nil {
		adapter.Close()
		return nil, nil, err
	}
	return adapter, sections, nil
}

func (s *service) CreateDocuments(ctx context.Context, location string, opts ...Option) ([]Section, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o := resolveOptions(opts)
	start := time.Now()
	adapter, sections, err := s.build(ctx, location, ModelAssist(opts, false), o.topK)
	if err != nil {
		return nil, err
	}
	defer adapter.Close()

	slog.Info("create_documents: document indexed",
		"path", location,
		"sections", len(sections),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return sections, nil
}

func (s *service) Query(ctx context.Context, query, location string, opts ...Option) (*QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if s.chat == nil {
		return nil, fmt.Errorf("%w: no generation backend configured", ErrInvalidConfig)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	o := resolveOptions(opts)
	start := time.Now()
	adapter, sections, err := s.build(ctx, location, ModelAssist(opts, true), o.topK)
	if err != nil {
		return nil, err
	}
	defer adapter.Close()

	result, err := adapter.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	slog.Info("query: answered",
		"path", location,
		"sections", len(sections),
		"citations", len(result.Citations),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return result, nil
}

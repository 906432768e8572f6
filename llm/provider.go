package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrBackendUnavailable is wrapped by every error that originates from a
// failed or unusable call to an embedding or generation backend.
var ErrBackendUnavailable = errors.New("llm: backend unavailable")

// Generator produces chat completions.
type Generator interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// Embedder turns texts into vectors. Implementations return one vector per
// input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Provider is a backend that can both generate and embed.
type Provider interface {
	Generator
	Embedder
}

// ChatRequest is a chat completion request.
type ChatRequest struct {
	Model       string    `json:"model"` // overrides the provider's configured model when set
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	// ResponseFormat can be set to "json_object" for JSON mode.
	ResponseFormat string `json:"response_format,omitempty"`
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the response from a chat completion.
type ChatResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	FinishReason     string `json:"finish_reason"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
}

// Truncated reports whether generation stopped because it hit the
// max-token budget.
func (r *ChatResponse) Truncated() bool {
	return r.FinishReason == "length"
}

// Config configures an LLM provider.
type Config struct {
	Provider string `json:"provider" yaml:"provider"` // openai, ollama, gemini, groq, openrouter, lmstudio, xai, custom
	Model    string `json:"model" yaml:"model"`
	BaseURL  string `json:"base_url" yaml:"base_url"`
	APIKey   string `json:"api_key" yaml:"api_key"`

	// Timeout bounds a single HTTP request. Zero means 120s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// RequestsPerSecond throttles outbound requests. Zero disables throttling.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`

	// MaxRetries for 429/5xx and network errors. Zero means 3, negative disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// NewProvider creates an LLM provider from configuration.
func NewProvider(cfg Config) (Provider, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm provider not specified")
	}
	v, ok := vendors[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = v.baseURL
	}
	if cfg.Model == "" {
		cfg.Model = v.model
	}

	c := newClient(cfg, v.pathPrefix)
	if v.nativeOllamaEmbed {
		return &ollamaProvider{client: c}, nil
	}
	return &compatProvider{name: cfg.Provider, client: c}, nil
}

package lawcite

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/birucan/lawcite/llm"
)

// Config holds all configuration for the lawcite service.
type Config struct {
	// LLM providers
	Chat      LLMConfig `json:"chat" yaml:"chat"`
	Embedding LLMConfig `json:"embedding" yaml:"embedding"`

	// Retrieval
	TopK         int `json:"top_k" yaml:"top_k"`
	ChunkSize    int `json:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap int `json:"chunk_overlap" yaml:"chunk_overlap"`

	// Embedding dimensions (must match model). Zero probes the embedder once
	// per index.
	EmbeddingDim int `json:"embedding_dim" yaml:"embedding_dim"`

	// Model-assisted sectioning. SectioningModel overrides Chat.Model.
	SectioningModel       string  `json:"sectioning_model" yaml:"sectioning_model"`
	SectioningMaxTokens   int     `json:"sectioning_max_tokens" yaml:"sectioning_max_tokens"`
	SectioningTemperature float64 `json:"sectioning_temperature" yaml:"sectioning_temperature"`

	// Answer generation
	AnswerMaxTokens   int     `json:"answer_max_tokens" yaml:"answer_max_tokens"`
	AnswerTemperature float64 `json:"answer_temperature" yaml:"answer_temperature"`

	// RequestTimeout bounds one CreateDocuments or Query call.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	Server ServerConfig `json:"server" yaml:"server"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// LLMConfig configures a single LLM provider endpoint.
type LLMConfig = llm.Config

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr        string   `json:"addr" yaml:"addr"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins"`
}

// DefaultConfig returns a Config with OpenAI backends and the retrieval
// defaults of two sections and 512-token chunks.
func DefaultConfig() Config {
	return Config{
		Chat: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4",
		},
		Embedding: LLMConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		TopK:                  2,
		ChunkSize:             512,
		ChunkOverlap:          20,
		SectioningModel:       "gpt-3.5-turbo",
		SectioningMaxTokens:   4000,
		SectioningTemperature: 0.1,
		AnswerTemperature:     0.1,
		RequestTimeout:        5 * time.Minute,
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
		LogLevel: "info",
	}
}

// LoadConfig reads a YAML (or JSON) file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parsing %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from LAWCITE_* environment variables. API keys
// fall back to the provider's conventional variable, e.g. OPENAI_API_KEY.
func (c *Config) ApplyEnv() {
	applyLLMEnv(&c.Chat, "LAWCITE_CHAT_")
	applyLLMEnv(&c.Embedding, "LAWCITE_EMBEDDING_")

	setInt(&c.TopK, "LAWCITE_TOP_K")
	setInt(&c.ChunkSize, "LAWCITE_CHUNK_SIZE")
	setInt(&c.ChunkOverlap, "LAWCITE_CHUNK_OVERLAP")
	setInt(&c.EmbeddingDim, "LAWCITE_EMBEDDING_DIM")
	setString(&c.SectioningModel, "LAWCITE_SECTIONING_MODEL")
	setString(&c.Server.Addr, "LAWCITE_ADDR")
	setString(&c.LogLevel, "LAWCITE_LOG_LEVEL")
	if v := os.Getenv("LAWCITE_CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("LAWCITE_ANSWER_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AnswerTemperature = f
		}
	}
	if v := os.Getenv("LAWCITE_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = d
		}
	}
}

// providerKeyEnv names the conventional API key variable per provider.
var providerKeyEnv = map[string]string{
	"openai":     "OPENAI_API_KEY",
	"groq":       "GROQ_API_KEY",
	"gemini":     "GEMINI_API_KEY",
	"openrouter": "OPENROUTER_API_KEY",
	"xai":        "XAI_API_KEY",
}

func applyLLMEnv(l *LLMConfig, prefix string) {
	setString(&l.Provider, prefix+"PROVIDER")
	setString(&l.Model, prefix+"MODEL")
	setString(&l.BaseURL, prefix+"BASE_URL")
	setString(&l.APIKey, prefix+"API_KEY")
	if l.APIKey == "" {
		if name, ok := providerKeyEnv[l.Provider]; ok {
			l.APIKey = os.Getenv(name)
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate reports the first invalid field, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.Chat.Provider == "":
		return fmt.Errorf("%w: chat.provider is required", ErrInvalidConfig)
	case c.Embedding.Provider == "":
		return fmt.Errorf("%w: embedding.provider is required", ErrInvalidConfig)
	case c.TopK < 1:
		return fmt.Errorf("%w: top_k must be at least 1, got %d", ErrInvalidConfig, c.TopK)
	case c.ChunkSize < 1:
		return fmt.Errorf("%w: chunk_size must be at least 1, got %d", ErrInvalidConfig, c.ChunkSize)
	case c.ChunkOverlap >= c.ChunkSize:
		return fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)",
			ErrInvalidConfig, c.ChunkOverlap, c.ChunkSize)
	case c.EmbeddingDim < 0:
		return fmt.Errorf("%w: embedding_dim must not be negative", ErrInvalidConfig)
	case c.AnswerTemperature < 0 || c.SectioningTemperature < 0:
		return fmt.Errorf("%w: temperatures must not be negative", ErrInvalidConfig)
	case c.RequestTimeout < 0:
		return fmt.Errorf("%w: request_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

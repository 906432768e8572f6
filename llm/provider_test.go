package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantType string
	}{
		{"openai", "*llm.compatProvider"},
		{"ollama", "*llm.ollamaProvider"},
		{"gemini", "*llm.compatProvider"},
		{"groq", "*llm.compatProvider"},
		{"openrouter", "*llm.compatProvider"},
		{"lmstudio", "*llm.compatProvider"},
		{"xai", "*llm.compatProvider"},
		{"custom", "*llm.compatProvider"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "test-model"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, typeName(p))
		})
	}
}

func typeName(p Provider) string {
	switch p.(type) {
	case *compatProvider:
		return "*llm.compatProvider"
	case *ollamaProvider:
		return "*llm.ollamaProvider"
	default:
		return "unknown"
	}
}

func TestNewProviderErrors(t *testing.T) {
	_, err := NewProvider(Config{Provider: "doesnotexist", Model: "m"})
	require.Error(t, err)
	assert.Equal(t, "unknown llm provider: doesnotexist", err.Error())

	_, err = NewProvider(Config{Model: "m"})
	require.Error(t, err)
	assert.Equal(t, "llm provider not specified", err.Error())
}

func clientOf(t *testing.T, p Provider) *client {
	t.Helper()
	switch v := p.(type) {
	case *compatProvider:
		return v.client
	case *ollamaProvider:
		return v.client
	}
	t.Fatalf("unexpected provider type %T", p)
	return nil
}

func TestDefaultBaseURLs(t *testing.T) {
	tests := []struct {
		provider string
		wantURL  string
		prefix   string
	}{
		{"openai", "https://api.openai.com", "/v1"},
		{"ollama", "http://localhost:11434", "/v1"},
		{"gemini", "https://generativelanguage.googleapis.com/v1beta/openai", ""},
		{"lmstudio", "http://localhost:1234", "/v1"},
		{"openrouter", "https://openrouter.ai/api", "/v1"},
		{"xai", "https://api.x.ai", "/v1"},
		{"custom", "", "/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			p, err := NewProvider(Config{Provider: tt.provider, Model: "m"})
			require.NoError(t, err)
			c := clientOf(t, p)
			assert.Equal(t, tt.wantURL, c.cfg.BaseURL)
			assert.Equal(t, tt.prefix, c.pathPrefix)
		})
	}
}

func TestExplicitSettingsPreserved(t *testing.T) {
	for _, provider := range []string{"openai", "ollama", "groq", "custom"} {
		t.Run(provider, func(t *testing.T) {
			p, err := NewProvider(Config{
				Provider: provider,
				Model:    "llama3:latest",
				BaseURL:  "http://my-server:9999",
				APIKey:   "sk-test-key-123",
			})
			require.NoError(t, err)
			c := clientOf(t, p)
			assert.Equal(t, "http://my-server:9999", c.cfg.BaseURL)
			assert.Equal(t, "llama3:latest", c.cfg.Model)
			assert.Equal(t, "sk-test-key-123", c.cfg.APIKey)
		})
	}
}

func TestClientDefaults(t *testing.T) {
	c := newClient(Config{}, "/v1")
	assert.Equal(t, defaultTimeout, c.http.Timeout)
	assert.Equal(t, defaultMaxRetries, c.maxRetries)
	assert.Nil(t, c.limiter)

	c = newClient(Config{MaxRetries: -1, RequestsPerSecond: 2, Timeout: 5e9}, "/v1")
	assert.Equal(t, 0, c.maxRetries)
	assert.NotNil(t, c.limiter)
	assert.Equal(t, int64(5e9), int64(c.http.Timeout))
}

func TestChatResponseTruncated(t *testing.T) {
	assert.True(t, (&ChatResponse{FinishReason: "length"}).Truncated())
	assert.False(t, (&ChatResponse{FinishReason: "stop"}).Truncated())
}

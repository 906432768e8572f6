package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// vendor holds the per-provider defaults applied by NewProvider.
type vendor struct {
	baseURL    string
	model      string
	pathPrefix string

	// Ollama's native /api/embed endpoint batches better than its
	// OpenAI-compatible one.
	nativeOllamaEmbed bool
}

var vendors = map[string]vendor{
	"openai":     {baseURL: "https://api.openai.com", pathPrefix: "/v1"},
	"ollama":     {baseURL: "http://localhost:11434", pathPrefix: "/v1", nativeOllamaEmbed: true},
	"gemini":     {baseURL: "https://generativelanguage.googleapis.com/v1beta/openai", pathPrefix: ""},
	"groq":       {baseURL: "https://api.groq.com/openai", model: "llama-3.3-70b-versatile", pathPrefix: "/v1"},
	"openrouter": {baseURL: "https://openrouter.ai/api", pathPrefix: "/v1"},
	"lmstudio":   {baseURL: "http://localhost:1234", pathPrefix: "/v1"},
	"xai":        {baseURL: "https://api.x.ai", pathPrefix: "/v1"},
	"custom":     {pathPrefix: "/v1"},
}

// compatProvider serves every vendor that speaks the OpenAI wire format.
type compatProvider struct {
	name   string
	client *client
}

func (p *compatProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.client.chat(ctx, req)
}

func (p *compatProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return p.client.embed(ctx, texts)
}

// ollamaProvider uses the OpenAI-compatible endpoint for chat and the
// native endpoint for embeddings.
type ollamaProvider struct {
	client *client
}

func (p *ollamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.client.chat(ctx, req)
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

func (p *ollamaProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	respBody, err := p.client.post(ctx, "/api/embed", ollamaEmbedRequest{
		Model: p.client.cfg.Model,
		Input: texts,
	})
	if err != nil {
		return nil, err
	}

	var resp ollamaEmbedResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("%w: decoding ollama embed response: %v", ErrBackendUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: ollama returned %d embeddings for %d texts",
			ErrBackendUnavailable, len(resp.Embeddings), len(texts))
	}

	result := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		result[i] = float64sToFloat32s(emb)
	}
	return result, nil
}

func float64sToFloat32s(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}

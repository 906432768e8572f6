package sectioner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/birucan/lawcite/llm"
)

// ModelConfig tunes the model-assisted strategy.
type ModelConfig struct {
	Model       string  `json:"model" yaml:"model"` // empty uses the generator's configured model
	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
}

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 4000
)

// ModelStrategy delegates segmentation to a generation backend.
type ModelStrategy struct {
	gen llm.Generator
	cfg ModelConfig
}

// NewModelStrategy returns a ModelStrategy. A zero Temperature or MaxTokens
// is replaced with 0.1 and 4000.
func NewModelStrategy(gen llm.Generator, cfg ModelConfig) *ModelStrategy {
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &ModelStrategy{gen: gen, cfg: cfg}
}

// Sections implements Strategy. Empty text returns no Sections without
// calling the backend.
func (m *ModelStrategy) Sections(ctx context.Context, text string) ([]Section, error) {
	if strings.TrimSpace(text) == "" {
		return []Section{}, nil
	}

	resp, err := m.gen.Chat(ctx, llm.ChatRequest{
		Model: m.cfg.Model,
		Messages: []llm.Message{
			{Role: "system", Content: sectioningSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(sectioningPrompt, text)},
		},
		Temperature: m.cfg.Temperature,
		MaxTokens:   m.cfg.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("sectioning chat: %w", err)
	}
	if resp.Truncated() {
		return nil, fmt.Errorf("%w: stopped after %d completion tokens", ErrTruncatedOutput, resp.CompletionTokens)
	}

	entries, err := parseEntries(resp.Content)
	if err != nil {
		return nil, err
	}

	sections := make([]Section, len(entries))
	for i, e := range entries {
		num := lawNumber(string(*e.SectionNumber))
		title := strings.TrimSpace(*e.Title)
		content := strings.TrimSpace(*e.Content)
		sections[i] = Section{
			ID:      i + 1,
			Label:   "Law " + num,
			Title:   title,
			Content: fmt.Sprintf("%s. %s: %s", num, title, content),
			Source:  SourceAIGenerated,
			Metadata: map[string]string{
				MetaSection:       "Law " + num,
				MetaTitle:         title,
				MetaSectionNumber: num,
				MetaAIGenerated:   "true",
			},
		}
	}
	return sections, nil
}

// entry is one element of the model's JSON array. Pointer fields detect
// missing keys.
type entry struct {
	SectionNumber *flexString `json:"section_number"`
	Title         *string     `json:"title"`
	Content       *string     `json:"content"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("section_number must be a string or number: %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// codeBlockRe strips markdown code fences from LLM output.
var codeBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

// parseEntries reads a bare JSON array or an object with a "sections" array.
// Every entry must carry all three fields and the list must not be empty.
func parseEntries(raw string) ([]entry, error) {
	if m := codeBlockRe.FindStringSubmatch(raw); len(m) > 1 {
		raw = m[1]
	}
	raw = strings.TrimSpace(raw)

	var entries []entry
	switch {
	case strings.HasPrefix(raw, "["):
		if err := json.Unmarshal([]byte(raw), &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
	case strings.HasPrefix(raw, "{"):
		var wrapped struct {
			Sections *[]entry `json:"sections"`
		}
		if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
		}
		if wrapped.Sections == nil {
			return nil, fmt.Errorf("%w: object without a sections array", ErrMalformedOutput)
		}
		entries = *wrapped.Sections
	default:
		return nil, fmt.Errorf("%w: no JSON array found in response", ErrMalformedOutput)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: empty section list", ErrMalformedOutput)
	}
	for i, e := range entries {
		if e.SectionNumber == nil || e.Title == nil || e.Content == nil {
			return nil, fmt.Errorf("%w: entry %d is missing section_number, title or content", ErrMalformedOutput, i)
		}
	}
	return entries, nil
}

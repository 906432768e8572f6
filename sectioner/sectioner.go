// Package sectioner splits cleaned legal text into labeled, self-contained
// sections. Two strategies share one output contract: a deterministic
// pattern strategy and a model-assisted strategy that falls back to the
// pattern strategy whenever the backend fails or returns unusable output.
package sectioner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/birucan/lawcite/llm"
)

// SourceKind records which strategy produced a Section.
type SourceKind string

const (
	SourceRegex       SourceKind = "regex"
	SourceAIGenerated SourceKind = "ai_generated"
)

// Metadata keys attached to every Section.
const (
	MetaSection          = "section"
	MetaTitle            = "title"
	MetaSectionNumber    = "section_number"
	MetaSubsectionNumber = "subsection_number"
	MetaAIGenerated      = "ai_generated"
)

var (
	// ErrExtractionDegraded wraps the cause of a model-assisted failure that
	// was recovered by falling back to the pattern strategy.
	ErrExtractionDegraded = errors.New("sectioner: extraction degraded")

	// ErrMalformedOutput is returned when the backend's output cannot be
	// read as a list of sections.
	ErrMalformedOutput = errors.New("sectioner: malformed model output")

	// ErrTruncatedOutput is returned when the backend stopped at its token
	// budget before finishing.
	ErrTruncatedOutput = errors.New("sectioner: model output truncated")
)

// Section is one labeled unit of document text. Content always repeats the
// section's number and title so it can be read on its own.
type Section struct {
	ID       int               `json:"id"`
	Label    string            `json:"label"`
	Title    string            `json:"title,omitempty"`
	Content  string            `json:"content"`
	Source   SourceKind        `json:"source"`
	Metadata map[string]string `json:"metadata"`
}

// Strategy produces ordered Sections from text.
type Strategy interface {
	Sections(ctx context.Context, text string) ([]Section, error)
}

// Result is the outcome of an extraction.
type Result struct {
	Sections []Section
	Strategy SourceKind
	// Degraded is non-nil when model assistance was requested but the
	// pattern strategy produced the Sections. It wraps ErrExtractionDegraded.
	Degraded error
}

// Extractor dispatches between the pattern and model-assisted strategies.
type Extractor struct {
	pattern *PatternStrategy
	model   Strategy // nil when no generation backend is configured
}

// NewExtractor returns an Extractor. gen may be nil, in which case
// model-assisted requests always use the pattern strategy.
func NewExtractor(gen llm.Generator, cfg ModelConfig) *Extractor {
	e := &Extractor{pattern: NewPatternStrategy()}
	if gen != nil {
		e.model = NewModelStrategy(gen, cfg)
	}
	return e
}

// Extract returns the Sections of text. It never fails: when model
// assistance fails for any reason the pattern strategy runs on the same
// input and the failure is reported in Result.Degraded.
func (e *Extractor) Extract(ctx context.Context, text string, useModelAssist bool) Result {
	start := time.Now()
	if !useModelAssist {
		return Result{Sections: e.patternSections(ctx, text), Strategy: SourceRegex}
	}

	var cause error
	if e.model == nil {
		cause = errors.New("no generation backend configured")
	} else {
		sections, err := e.model.Sections(ctx, text)
		if err == nil {
			slog.Info("sectioner: model-assisted sectioning complete",
				"sections", len(sections),
				"elapsed", time.Since(start).Round(time.Millisecond))
			return Result{Sections: sections, Strategy: SourceAIGenerated}
		}
		cause = err
	}

	slog.Warn("sectioner: model-assisted sectioning failed, falling back",
		"error", cause,
		"text_len", len(text))
	return Result{
		Sections: e.patternSections(ctx, text),
		Strategy: SourceRegex,
		Degraded: fmt.Errorf("%w: %w", ErrExtractionDegraded, cause),
	}
}

func (e *Extractor) patternSections(ctx context.Context, text string) []Section {
	// PatternStrategy never returns an error.
	sections, _ := e.pattern.Sections(ctx, text)
	return sections
}

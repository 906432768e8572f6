// Package loader turns a document location into the markdown-like text the
// sectioner expects. Bold runs in PDFs are kept as **...** so numbered law
// headers survive extraction.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when the document does not exist.
	ErrNotFound = errors.New("loader: document not found")

	// ErrUnsupportedFormat is returned for extensions no loader handles.
	ErrUnsupportedFormat = errors.New("loader: unsupported format")
)

// Loader extracts text from one family of formats.
type Loader interface {
	Load(ctx context.Context, path string) (string, error)
	SupportedFormats() []string
}

// Registry maps file extensions to loaders.
type Registry struct {
	loaders map[string]Loader
}

// NewRegistry returns a Registry with the built-in pdf, text and xlsx
// loaders.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	for _, l := range []Loader{&PDFLoader{}, &TextLoader{}, &XLSXLoader{}} {
		for _, f := range l.SupportedFormats() {
			r.loaders[f] = l
		}
	}
	return r
}

// Register adds or replaces the loader for format.
func (r *Registry) Register(format string, l Loader) {
	r.loaders[strings.ToLower(format)] = l
}

// Get returns the loader for format.
func (r *Registry) Get(format string) (Loader, error) {
	l, ok := r.loaders[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return l, nil
}

// Load reads the document at location with the loader for its extension.
// The returned text is not cleaned; see Clean.
func (r *Registry) Load(ctx context.Context, location string) (string, error) {
	format := strings.TrimPrefix(filepath.Ext(location), ".")
	l, err := r.Get(format)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, location)
		}
		return "", fmt.Errorf("loader: stat %s: %w", location, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrNotFound, location)
	}

	start := time.Now()
	text, err := l.Load(ctx, location)
	if err != nil {
		return "", fmt.Errorf("loader: %s: %w", filepath.Base(location), err)
	}
	slog.Debug("loader: document loaded",
		"path", location,
		"format", format,
		"chars", len(text),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return text, nil
}

// TextLoader handles plain text and markdown files.
type TextLoader struct{}

func (l *TextLoader) SupportedFormats() []string { return []string{"txt", "md", "markdown"} }

func (l *TextLoader) Load(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading text file: %w", err)
	}
	return string(data), nil
}

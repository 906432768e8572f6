package lawcite

import (
	"errors"

	"github.com/birucan/lawcite/citation"
	"github.com/birucan/lawcite/index"
	"github.com/birucan/lawcite/llm"
	"github.com/birucan/lawcite/loader"
	"github.com/birucan/lawcite/sectioner"
)

var (
	// ErrInvalidConfig is returned for invalid configuration values.
	ErrInvalidConfig = errors.New("lawcite: invalid configuration")

	// ErrEmptyQuery is returned when Query is called without query text.
	ErrEmptyQuery = errors.New("lawcite: empty query")

	// ErrExtractionDegraded marks a model-assisted sectioning failure that
	// was recovered with the pattern strategy. It is logged, never returned.
	ErrExtractionDegraded = sectioner.ErrExtractionDegraded

	// ErrIndexNotReady is returned when a query runs before its index was
	// loaded.
	ErrIndexNotReady = index.ErrNotReady

	// ErrBackendUnavailable is wrapped by every embedding or generation
	// backend failure.
	ErrBackendUnavailable = llm.ErrBackendUnavailable

	// ErrGenerationFailed is wrapped by a *DegradedError when retrieval
	// succeeded but no answer could be generated.
	ErrGenerationFailed = citation.ErrGenerationFailed

	// ErrDocumentNotFound is returned when the document location does not
	// exist.
	ErrDocumentNotFound = loader.ErrNotFound

	// ErrUnsupportedFormat is returned for unrecognized file formats.
	ErrUnsupportedFormat = loader.ErrUnsupportedFormat
)

// DegradedError carries the citations retrieved for a query whose answer
// could not be generated.
type DegradedError = citation.DegradedError

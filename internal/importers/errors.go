package importers

import (
	"errors"
	"fmt"
)

var (
	// ErrNoText is returned when content carries no usable text.
	ErrNoText = errors.New("no usable text")

	// ErrUnsupportedContent is returned when an extractor is handed content it cannot read.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// SourceError is a fetch-time failure. It aborts the pipeline run.
type SourceError struct {
	Source string
	Target string
	Err    error
}

func (e *SourceError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Source, e.Target, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// NewSourceError wraps err as a SourceError.
func NewSourceError(source, target string, err error) *SourceError {
	return &SourceError{Source: source, Target: target, Err: err}
}

// ExtractorError is a recoverable extraction failure. The pipeline moves on
// to the next extractor.
type ExtractorError struct {
	Extractor string
	Err       error
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("%s: %v", e.Extractor, e.Err)
}

func (e *ExtractorError) Unwrap() error { return e.Err }

// NewExtractorError wraps err as an ExtractorError.
func NewExtractorError(extractor string, err error) *ExtractorError {
	return &ExtractorError{Extractor: extractor, Err: err}
}

// ExtractorErrorf formats a new ExtractorError.
func ExtractorErrorf(extractor, format string, args ...any) *ExtractorError {
	return &ExtractorError{Extractor: extractor, Err: fmt.Errorf(format, args...)}
}

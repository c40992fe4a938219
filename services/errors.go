package services

import (
	"errors"
	"fmt"

	"study-assistant/models"
)

var (
	ErrUnsupportedType     = errors.New("unsupported document type")
	ErrEmptyInput          = errors.New("empty document")
	ErrParseFailed         = errors.New("document could not be parsed")
	ErrInvalidChunkOptions = errors.New("invalid chunk options")
	ErrEmbeddingIndex      = errors.New("embedding index unavailable")
	ErrDocumentNotFound    = errors.New("document not found")
)

// UnsupportedTypeError carries the declared type the parser refused.
type UnsupportedTypeError struct {
	MimeType string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported document type: %q", e.MimeType)
}

func (e *UnsupportedTypeError) Is(target error) bool {
	return target == ErrUnsupportedType
}

// EmbeddingIndexError is returned when the key-value store behind a vector
// index fails. Op names the failing index operation.
type EmbeddingIndexError struct {
	Op         string
	DocumentID string
	Err        error
}

func (e *EmbeddingIndexError) Error() string {
	return fmt.Sprintf("embedding index %s for document %s: %v", e.Op, e.DocumentID, e.Err)
}

func (e *EmbeddingIndexError) Unwrap() error { return e.Err }

func (e *EmbeddingIndexError) Is(target error) bool {
	return target == ErrEmbeddingIndex
}

// AnalysisError reports the step an analysis run stopped at, together with the
// step list as it stood when the run halted.
type AnalysisError struct {
	DocumentID string
	Step       models.StepID
	Steps      models.AnalysisSteps
	Err        error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis step %s failed: %v", e.Step, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

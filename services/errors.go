package services

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilter is returned by a VectorIndex when a metadata filter
	// cannot be evaluated.
	ErrInvalidFilter = errors.New("invalid metadata filter")

	// ErrDirectoryNotFound is returned when a document directory does not exist.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrEmptyQuery is returned when a query has no text.
	ErrEmptyQuery = errors.New("query text is empty")
)

// ConfigurationError reports a component that was constructed with missing
// or inconsistent dependencies.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Reason)
}

// DimensionMismatchError reports a chunk batch and vector batch of different
// lengths.
type DimensionMismatchError struct {
	Chunks  int
	Vectors int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("chunk count %d does not match vector count %d", e.Chunks, e.Vectors)
}

// IndexUnavailableError wraps a failure of the vector index collaborator.
type IndexUnavailableError struct {
	Op  string
	Err error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("vector index unavailable during %s: %v", e.Op, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error { return e.Err }

// EmbeddingError wraps a failure of the embedding model.
type EmbeddingError struct {
	Op  string
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failed during %s: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// GenerationError wraps a failure of the LLM call. The pipeline recovers from
// it by falling back to an extractive answer, so callers only see it in logs.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("answer generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

package pipeline

import "errors"

var (
	// ErrRetrieverRequired is returned when no retriever is supplied.
	ErrRetrieverRequired = errors.New("retriever required")

	// ErrGeneratorRequired is returned when no generator is supplied.
	ErrGeneratorRequired = errors.New("generator required")

	// ErrEmbedderRequired is returned when no embedder is supplied.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrUnexpected wraps panics recovered while answering a query.
	ErrUnexpected = errors.New("unexpected failure")
)

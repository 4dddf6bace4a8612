package generation

import "errors"

var (
	// ErrProviderRequired is returned when no AI provider is supplied.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrEmptyDraft is returned when a backend produced no usable text.
	ErrEmptyDraft = errors.New("empty or truncated answer")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid generation config")
)

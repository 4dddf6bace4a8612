package ai

import "errors"

var (
	// ErrBackendUnavailable indicates a model backend could not be reached
	// or timed out.
	ErrBackendUnavailable = errors.New("model backend unavailable")

	// ErrBackendResponse indicates a backend answered with an unusable payload.
	ErrBackendResponse = errors.New("unusable model backend response")
)

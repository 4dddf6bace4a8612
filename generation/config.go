package generation

import (
	"fmt"
	"time"
)

// Config holds the generator's tunables.
type Config struct {
	// MaxChunks bounds the passages handed to any backend.
	MaxChunks int
	// Drafts is the number of speculative drafts, each over every
	// Drafts-th chunk.
	Drafts int

	MinRelevance    float64 // Below this the generator refuses
	MinGroundedness float64 // Share of answer words found in the sources
	MinAnswerLength int     // Shorter answers count as hallucinations
	MinDraftLength  int     // Shorter drafts count as failures

	ExtractionChunks  int
	ExtractionPreview int // Characters quoted per extracted chunk
	SourcePreview     int // Characters of each Source.ContentPreview
	MaxExtraction     float64
	MaxConfidence     float64

	// CallTimeout bounds each backend call. DraftTimeout bounds the join
	// of all concurrent drafts.
	CallTimeout  time.Duration
	DraftTimeout time.Duration

	// RequestsPerSecond and Burst configure the limiter shared by every
	// backend call.
	RequestsPerSecond float64
	Burst             int
	Workers           int

	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
}

// DefaultConfig returns the standard generation settings.
func DefaultConfig() Config {
	return Config{
		MaxChunks:         8,
		Drafts:            3,
		MinRelevance:      0.15,
		MinGroundedness:   0.30,
		MinAnswerLength:   50,
		MinDraftLength:    20,
		ExtractionChunks:  5,
		ExtractionPreview: 500,
		SourcePreview:     200,
		MaxExtraction:     0.60,
		MaxConfidence:     0.98,
		CallTimeout:       60 * time.Second,
		DraftTimeout:      90 * time.Second,
		RequestsPerSecond: 8,
		Burst:             4,
		Workers:           6,
		Temperature:       0.2,
		TopP:              0.95,
		TopK:              40,
		MaxTokens:         3000,
	}
}

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.MaxChunks <= 0:
		return fmt.Errorf("%w: MaxChunks must be positive", ErrInvalidConfig)
	case c.Drafts <= 0:
		return fmt.Errorf("%w: Drafts must be positive", ErrInvalidConfig)
	case c.ExtractionChunks <= 0:
		return fmt.Errorf("%w: ExtractionChunks must be positive", ErrInvalidConfig)
	case c.CallTimeout <= 0 || c.DraftTimeout <= 0:
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	case c.RequestsPerSecond <= 0 || c.Burst <= 0:
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: Workers must be positive", ErrInvalidConfig)
	}
	return nil
}

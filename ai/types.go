package ai

// GenerateOptions tunes a single generation call. Zero values leave the
// backend default in place.
type GenerateOptions struct {
	// System is an optional system instruction sent ahead of the prompt.
	System string

	Temperature float64
	MaxTokens   int
	TopP        float64
	TopK        int

	// JSON requests a JSON object response. Implementations strip code
	// fences and repair common key quoting mistakes before returning.
	JSON bool
}

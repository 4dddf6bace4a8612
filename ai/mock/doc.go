// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Generator,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider()
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	gen := mock.NewMockGenerator("primary")
//	gen.GenerateFunc = func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
//	    return "", errors.New("backend down")
//	}
//
// # Default Behavior
//
//   - MockEmbedder: Returns hashed bag-of-words vectors, so texts sharing
//     words are similar
//   - MockGenerator: Returns DefaultResponse and records prompts
//   - MockProvider: Aggregates a mock embedder and two mock generators
//
// All mocks are safe for concurrent use as long as the Func fields are set
// before use.
package mock

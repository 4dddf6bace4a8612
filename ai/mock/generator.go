package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/poiesic/veritas/ai"
)

// DefaultResponse is returned by MockGenerator when no GenerateFunc is set.
const DefaultResponse = "According to the provided sources, the answer is documented in the excerpts [Source 1]."

// MockGenerator is a test double for ai.Generator.
type MockGenerator struct {
	// GenerateFunc is called by Generate if set.
	GenerateFunc func(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error)

	model     string
	callCount atomic.Int64

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator creates a mock generator reporting the given model name.
func NewMockGenerator(model string) *MockGenerator {
	return &MockGenerator{model: model}
}

// Generate records the prompt and delegates to GenerateFunc.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	m.callCount.Add(1)
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return DefaultResponse, nil
}

// Model returns the configured model name.
func (m *MockGenerator) Model() string {
	return m.model
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	return int(m.callCount.Load())
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Reset clears recorded calls and injected behavior.
func (m *MockGenerator) Reset() {
	m.callCount.Store(0)
	m.mu.Lock()
	m.prompts = nil
	m.mu.Unlock()
	m.GenerateFunc = nil
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mock

import "github.com/poiesic/veritas/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates a mock embedder and mock primary and secondary generators.
type MockProvider struct {
	embedder  *MockEmbedder
	primary   *MockGenerator
	secondary *MockGenerator
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockPrimary()/GetMockSecondary() to access
// concrete types for test assertions.
func NewMockProvider() ai.AIProvider {
	return NewMockProviderWithServices(NewMockEmbedder(), NewMockGenerator("mock-primary"), NewMockGenerator("mock-secondary"))
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// This allows full control over the behavior of each service.
func NewMockProviderWithServices(embedder *MockEmbedder, primary, secondary *MockGenerator) *MockProvider {
	return &MockProvider{
		embedder:  embedder,
		primary:   primary,
		secondary: secondary,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Primary returns the mock primary generator.
func (p *MockProvider) Primary() ai.Generator {
	return p.primary
}

// Secondary returns the mock secondary generator.
func (p *MockProvider) Secondary() ai.Generator {
	return p.secondary
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockPrimary returns the underlying primary generator for test assertions.
func (p *MockProvider) GetMockPrimary() *MockGenerator {
	return p.primary
}

// GetMockSecondary returns the underlying secondary generator for test assertions.
func (p *MockProvider) GetMockSecondary() *MockGenerator {
	return p.secondary
}

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

package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/veritas/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client  llms.Model
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
// Used by Provider to manage the primary and secondary instances.
func newGenerator(config *ai.Config, model string) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.GenerationHost),
		openai.WithToken(config.APIKey),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}

	return &Generator{
		client:  client,
		model:   model,
		timeout: config.RequestTimeout,
		logger:  slog.Default().With("component", "openai-generator", "model", model),
	}, nil
}

// NewGenerator creates a generator for the given model on the configured
// generation host.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config, model string) (ai.Generator, error) {
	return newGenerator(config, model)
}

// Model returns the backend model identifier.
func (g *Generator) Model() string {
	return g.model
}

// Generate completes prompt with a single chat round trip.
func (g *Generator) Generate(ctx context.Context, prompt string, opts ai.GenerateOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var content []llms.MessageContent
	if opts.System != "" {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(opts.System)},
		})
	}
	content = append(content, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	response, err := g.client.GenerateContent(ctx, content, callOptions(opts)...)
	if err != nil {
		g.logger.Warn("generation failed", "err", err)
		return "", fmt.Errorf("%w: %w", ai.ErrBackendUnavailable, err)
	}
	if len(response.Choices) < 1 {
		g.logger.Debug("no choices returned from model")
		return "", nil
	}

	text := response.Choices[0].Content
	if opts.JSON {
		text = repairJSON(stripCodeFences(text))
	}
	g.logger.Debug("generated completion", "prompt_length", len(prompt), "length", len(text))
	return text, nil
}

func callOptions(opts ai.GenerateOptions) []llms.CallOption {
	var out []llms.CallOption
	if opts.Temperature > 0 {
		out = append(out, llms.WithTemperature(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		out = append(out, llms.WithMaxTokens(opts.MaxTokens))
	}
	if opts.TopP > 0 {
		out = append(out, llms.WithTopP(opts.TopP))
	}
	if opts.TopK > 0 {
		out = append(out, llms.WithTopK(opts.TopK))
	}
	if opts.JSON {
		out = append(out, llms.WithJSONMode())
	}
	return out
}

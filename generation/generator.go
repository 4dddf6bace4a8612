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

package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/core"
	"golang.org/x/time/rate"
)

// Tier names the step of the chain that produced a Result.
type Tier string

const (
	TierPrimary    Tier = "primary"
	TierSecondary  Tier = "secondary"
	TierExtraction Tier = "extraction"
	TierRefusal    Tier = "refusal"
)

// Model names reported for answers no backend produced.
const (
	ModelNoDocuments           = "no-documents"
	ModelInsufficientRelevance = "insufficient-relevance"
	ModelExtraction            = "extraction"
)

// Refusal reasons.
const (
	ReasonNoDocuments           = "no_documents"
	ReasonInsufficientRelevance = "insufficient_relevance"
	ReasonHallucination         = "hallucination_detected"
)

// Result is the outcome of Generate. Refusals have Confidence 0.
type Result struct {
	Answer     string
	Confidence float64
	Sources    []core.Source
	Model      string
	Tier       Tier
	Reason     string // Set on refusals

	Relevance float64
	Drafts    int  // Successful speculative drafts
	Verified  bool // The verifier refined the winning draft
	Filtered  int  // Chunks dropped because they were outside the selection
}

// Generator answers queries from retrieved chunks. It is safe for
// concurrent use; Close releases its worker pool.
type Generator struct {
	primary   ai.Generator
	secondary ai.Generator
	cfg       Config
	limiter   *rate.Limiter
	pool      *ants.Pool
	logger    *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) error {
		if logger != nil {
			g.logger = logger
		}
		return nil
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(g *Generator) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		g.cfg = cfg
		return nil
	}
}

// NewGenerator creates a generator backed by the provider's primary and
// secondary models.
func NewGenerator(provider ai.AIProvider, opts ...Option) (*Generator, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}
	g := &Generator{
		primary:   provider.Primary(),
		secondary: provider.Secondary(),
		cfg:       DefaultConfig(),
		logger:    slog.Default().With("component", "generator"),
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}
	if g.primary == nil {
		return nil, ErrProviderRequired
	}
	if g.secondary == nil {
		g.secondary = g.primary
	}

	pool, err := ants.NewPool(g.cfg.Workers)
	if err != nil {
		return nil, err
	}
	g.pool = pool
	g.limiter = rate.NewLimiter(rate.Limit(g.cfg.RequestsPerSecond), g.cfg.Burst)
	return g, nil
}

// Close releases the draft worker pool.
func (g *Generator) Close() {
	g.pool.Release()
}

// ExpandQuery asks the primary backend for up to two paraphrases of query.
// Failures yield no paraphrases.
func (g *Generator) ExpandQuery(ctx context.Context, query string) []string {
	reply, err := g.call(ctx, g.primary, expansionPrompt(query), ai.GenerateOptions{
		Temperature: 0.3,
		MaxTokens:   100,
	})
	if err != nil {
		g.logger.Warn("query expansion failed", "err", err)
		return nil
	}

	var alternates []string
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if len(line) <= 10 || strings.EqualFold(line, query) {
			continue
		}
		alternates = append(alternates, line)
		if len(alternates) == 2 {
			break
		}
	}
	return alternates
}

// Generate answers qc.Query from chunks. It never fails; problems surface
// as refusals or as a lower tier answer.
func (g *Generator) Generate(ctx context.Context, qc *core.QueryContext, chunks []*core.Chunk) *Result {
	if len(chunks) == 0 {
		return g.noDocuments(qc.Query, 0)
	}

	allowed := make([]*core.Chunk, 0, len(chunks))
	for _, chunk := range chunks {
		if qc.Selection.Allows(chunk.DocumentId) {
			allowed = append(allowed, chunk)
		}
	}
	filtered := len(chunks) - len(allowed)
	if filtered > 0 {
		g.logger.Warn("dropped chunks outside the selection", "request", qc.RequestID, "dropped", filtered)
	}
	if len(allowed) == 0 {
		return g.noDocuments(qc.Query, filtered)
	}

	queries := append([]string{qc.Query}, qc.Alternates...)
	best := bestChunks(queries, allowed, g.cfg.MaxChunks)
	rel := relevance(qc.Query, best)
	g.logger.Debug("selected chunks", "request", qc.RequestID, "chunks", len(best), "relevance", rel)

	if rel < g.cfg.MinRelevance {
		res := g.insufficientRelevance(qc.Query, rel)
		res.Filtered = filtered
		return res
	}

	res := g.generatePrimary(ctx, qc, best)
	if res == nil {
		res = g.generateSecondary(ctx, qc, best, rel)
	}
	if res == nil {
		res = g.extract(qc.Query, best, rel)
	}
	res.Relevance = rel
	res.Filtered = filtered
	return res
}

// generatePrimary drafts, verifies and checks an answer on the primary
// backend. It returns nil when the tier failed.
func (g *Generator) generatePrimary(ctx context.Context, qc *core.QueryContext, chunks []*core.Chunk) *Result {
	draft, drafts := g.draft(ctx, qc.Query, chunks)
	if draft == "" {
		g.logger.Info("primary tier produced no draft", "request", qc.RequestID)
		return nil
	}

	answer, verified := g.verify(ctx, qc.Query, draft, chunks)
	if g.cfg.hallucinated(answer, chunks) {
		g.logger.Info("primary answer failed groundedness check", "request", qc.RequestID)
		return nil
	}
	return &Result{
		Answer:     answer,
		Confidence: g.cfg.confidence(answer, chunks),
		Sources:    g.sources(chunks),
		Model:      g.primary.Model(),
		Tier:       TierPrimary,
		Drafts:     drafts,
		Verified:   verified,
	}
}

type draftResult struct {
	index  int
	answer string
}

// draft issues one speculative draft per interleaved chunk subset on the
// worker pool and returns the longest success along with the number of
// successful drafts. Drafts still running when DraftTimeout elapses are
// cancelled and ignored.
func (g *Generator) draft(ctx context.Context, query string, chunks []*core.Chunk) (string, int) {
	n := min(g.cfg.Drafts, len(chunks))
	ctx, cancel := context.WithTimeout(ctx, g.cfg.DraftTimeout)
	defer cancel()

	results := make(chan draftResult, n)
	submitted := 0
	for i := 0; i < n; i++ {
		var subset []*core.Chunk
		var numbers []int
		for j := i; j < len(chunks); j += g.cfg.Drafts {
			subset = append(subset, chunks[j])
			numbers = append(numbers, j+1)
		}
		prompt := draftPrompt(query, subset, numbers)
		err := g.pool.Submit(func() {
			answer, err := g.call(ctx, g.primary, prompt, g.options())
			answer = strings.TrimSpace(answer)
			if err == nil && len(answer) < g.cfg.MinDraftLength {
				err = ErrEmptyDraft
			}
			if err != nil {
				g.logger.Debug("draft failed", "draft", i, "err", err)
				answer = ""
			}
			results <- draftResult{index: i, answer: answer}
		})
		if err != nil {
			g.logger.Warn("could not schedule draft", "draft", i, "err", err)
			continue
		}
		submitted++
	}

	best := draftResult{index: -1}
	succeeded := 0
	for received := 0; received < submitted; received++ {
		select {
		case r := <-results:
			if r.answer == "" {
				continue
			}
			succeeded++
			if len(r.answer) > len(best.answer) || (len(r.answer) == len(best.answer) && r.index < best.index) {
				best = r
			}
		case <-ctx.Done():
			g.logger.Warn("draft join timed out", "submitted", submitted, "received", received)
			return best.answer, succeeded
		}
	}
	return best.answer, succeeded
}

// verify asks the primary backend to refine draft. Any failure keeps the
// draft as it is.
func (g *Generator) verify(ctx context.Context, query, draft string, chunks []*core.Chunk) (string, bool) {
	opts := g.options()
	opts.Temperature = 0.1
	opts.JSON = true

	reply, err := g.call(ctx, g.primary, verifyPrompt(query, draft, chunks), opts)
	if err != nil {
		g.logger.Debug("verification failed", "err", err)
		return draft, false
	}
	var v verification
	if err := json.Unmarshal([]byte(reply), &v); err != nil {
		g.logger.Debug("unparseable verification", "err", err)
		return draft, false
	}
	refined := strings.TrimSpace(v.RefinedAnswer)
	if refined == "" {
		return draft, false
	}
	g.logger.Debug("draft verified", "confidence", v.Confidence)
	return refined, true
}

// generateSecondary asks the fallback backend. It returns nil when the
// backend failed and a refusal when its answer is not grounded.
func (g *Generator) generateSecondary(ctx context.Context, qc *core.QueryContext, chunks []*core.Chunk, rel float64) *Result {
	answer, err := g.call(ctx, g.secondary, secondaryPrompt(qc.Query, chunks), g.options())
	answer = strings.TrimSpace(answer)
	if err == nil && len(answer) < g.cfg.MinDraftLength {
		err = ErrEmptyDraft
	}
	if err != nil {
		g.logger.Info("secondary tier failed", "request", qc.RequestID, "err", err)
		return nil
	}
	if g.cfg.hallucinated(answer, chunks) {
		g.logger.Info("secondary answer failed groundedness check", "request", qc.RequestID)
		res := g.insufficientRelevance(qc.Query, rel)
		res.Reason = ReasonHallucination
		return res
	}
	return &Result{
		Answer:     answer,
		Confidence: g.cfg.confidence(answer, chunks),
		Sources:    g.sources(chunks),
		Model:      g.secondary.Model(),
		Tier:       TierSecondary,
	}
}

// extract quotes the top chunks verbatim.
func (g *Generator) extract(query string, chunks []*core.Chunk, rel float64) *Result {
	top := chunks[:min(g.cfg.ExtractionChunks, len(chunks))]

	var sb strings.Builder
	fmt.Fprintf(&sb, "Based on the available documents, here's what I found regarding '%s':\n", query)
	for i, chunk := range top {
		fmt.Fprintf(&sb, "\n%d. From document section %d:\n%s...", i+1, chunk.Id, preview(chunk.Content, g.cfg.ExtractionPreview))
	}
	fmt.Fprintf(&sb, "\n\nThis information is compiled from %d relevant document sections.", len(chunks))
	fmt.Fprintf(&sb, "\n\nNote: This is a direct extraction. Relevance score: %.2f", rel)

	return &Result{
		Answer:     sb.String(),
		Confidence: min(g.cfg.MaxExtraction, 2*rel),
		Sources:    g.sources(top),
		Model:      ModelExtraction,
		Tier:       TierExtraction,
	}
}

func (g *Generator) noDocuments(query string, filtered int) *Result {
	return &Result{
		Answer:   fmt.Sprintf("I don't have any relevant documents to answer your question: '%s'. Please upload documents first.", query),
		Sources:  []core.Source{},
		Model:    ModelNoDocuments,
		Tier:     TierRefusal,
		Reason:   ReasonNoDocuments,
		Filtered: filtered,
	}
}

func (g *Generator) insufficientRelevance(query string, rel float64) *Result {
	return &Result{
		Answer: fmt.Sprintf("I found some documents, but they don't contain relevant information to answer your question: '%s'. "+
			"The available documents don't seem to cover this topic. Please try a different question or upload more relevant documents.", query),
		Sources:   []core.Source{},
		Model:     ModelInsufficientRelevance,
		Tier:      TierRefusal,
		Reason:    ReasonInsufficientRelevance,
		Relevance: rel,
	}
}

func (g *Generator) sources(chunks []*core.Chunk) []core.Source {
	out := make([]core.Source, len(chunks))
	for i, chunk := range chunks {
		out[i] = core.Source{
			ChunkID:        chunk.Id,
			DocumentID:     chunk.DocumentId,
			ContentPreview: preview(chunk.Content, g.cfg.SourcePreview),
		}
	}
	return out
}

func (g *Generator) options() ai.GenerateOptions {
	return ai.GenerateOptions{
		Temperature: g.cfg.Temperature,
		TopP:        g.cfg.TopP,
		TopK:        g.cfg.TopK,
		MaxTokens:   g.cfg.MaxTokens,
	}
}

// call waits for the rate limiter and runs one bounded backend call.
func (g *Generator) call(ctx context.Context, backend ai.Generator, prompt string, opts ai.GenerateOptions) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", ai.ErrBackendUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	return backend.Generate(ctx, prompt, opts)
}

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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/corrective"
	"github.com/poiesic/veritas/generation"
	"github.com/poiesic/veritas/selection"
	"golang.org/x/sync/errgroup"
)

// Retriever produces the initial candidate list.
type Retriever interface {
	Retrieve(ctx context.Context, qc *core.QueryContext, limit int) ([]*core.Chunk, error)
}

// Expander adds related chunks to the candidates. It must not fail.
type Expander interface {
	Expand(ctx context.Context, qc *core.QueryContext, candidates []*core.Chunk) []*core.Chunk
}

// Generator turns the final candidates into an answer.
type Generator interface {
	ExpandQuery(ctx context.Context, query string) []string
	Generate(ctx context.Context, qc *core.QueryContext, chunks []*core.Chunk) *generation.Result
}

// Corrector checks an answered query against sources outside the corpus.
type Corrector interface {
	Correct(ctx context.Context, query, answer string, confidence float64) corrective.Correction
}

// Stage is a named re-ranking step.
type Stage struct {
	Name   string
	Scorer core.Scorer
}

// Stage names reported to monitors.
const (
	StageRetrieval = "retrieval"
	StageGraph     = "graph"
	StageSelection = "selection"
	StageTemporal  = "temporal"
	StagePhase     = "phase"
	StageMemory    = "memory"
	StageCompress  = "compression"
	StageSwarm     = "swarm"
)

const (
	defaultFanout     = 2
	defaultMaxResults = 15
)

// Config holds the pipeline tunables.
type Config struct {
	// MaxResults is the candidate budget; retrieval fetches Fanout times
	// as many to leave room for re-ranking.
	MaxResults  int
	Fanout      int
	Paraphrases bool // Ask the generator for paraphrases of each query
	Weights     Weights
}

// DefaultConfig returns the standard pipeline settings.
func DefaultConfig() Config {
	return Config{
		MaxResults:  defaultMaxResults,
		Fanout:      defaultFanout,
		Paraphrases: true,
		Weights:     DefaultWeights(),
	}
}

// Pipeline answers queries. It is safe for concurrent use as long as its
// stages are.
type Pipeline struct {
	retriever Retriever
	generator Generator
	embedder  ai.Embedder
	graph     Expander
	rerankers []Stage
	filter    *selection.Filter
	temporal  core.Scorer
	corrector Corrector
	cfg       Config
	logger    *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(p *Pipeline) error {
		if cfg.MaxResults <= 0 || cfg.Fanout <= 0 {
			return fmt.Errorf("pipeline config: MaxResults and Fanout must be positive")
		}
		p.cfg = cfg
		return nil
	}
}

// WithGraph enables relationship graph expansion after retrieval.
func WithGraph(graph Expander) Option {
	return func(p *Pipeline) error {
		p.graph = graph
		return nil
	}
}

// WithRerankers sets the stages run, in order, between graph expansion
// and the selection filter.
func WithRerankers(stages ...Stage) Option {
	return func(p *Pipeline) error {
		for _, s := range stages {
			if s.Scorer == nil {
				return fmt.Errorf("pipeline stage %q has no scorer", s.Name)
			}
		}
		p.rerankers = stages
		return nil
	}
}

// WithTemporal sets the stage run after the selection filter.
func WithTemporal(scorer core.Scorer) Option {
	return func(p *Pipeline) error {
		p.temporal = scorer
		return nil
	}
}

// WithCorrector verifies low-confidence answers on the web. Queries
// restricted to a document selection are never corrected.
func WithCorrector(corrector Corrector) Option {
	return func(p *Pipeline) error {
		p.corrector = corrector
		return nil
	}
}

// New creates a pipeline around a retriever, a generator and the embedder
// used for paraphrases.
func New(retriever Retriever, generator Generator, embedder ai.Embedder, opts ...Option) (*Pipeline, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	p := &Pipeline{
		retriever: retriever,
		generator: generator,
		embedder:  embedder,
		cfg:       DefaultConfig(),
		logger:    slog.Default().With("component", "pipeline"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.filter = selection.NewFilter(p.logger)
	return p, nil
}

// ProcessQuery answers query using only the documents in documentIDs, or
// every document when documentIDs is empty.
func (p *Pipeline) ProcessQuery(ctx context.Context, query string, documentIDs []core.ID) *core.Response {
	return p.ProcessQueryWithMonitor(ctx, query, documentIDs, nil)
}

// ProcessQueryWithMonitor answers query while reporting every stage to
// monitor.
func (p *Pipeline) ProcessQueryWithMonitor(ctx context.Context, query string, documentIDs []core.ID, monitor Monitor) (resp *core.Response) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	qc := &core.QueryContext{
		RequestID: uuid.NewString(),
		Query:     query,
		Selection: core.NewSelection(documentIDs...),
	}
	logger := p.logger.With("request", qc.RequestID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("query panicked", "panic", r, "stack", string(debug.Stack()))
			resp = errorResponse(qc, fmt.Errorf("%w: %v", ErrUnexpected, r))
			monitor.Finish(resp)
		}
	}()

	monitor.Start(qc)
	resp, err := p.process(ctx, qc, monitor, logger)
	if err != nil {
		logger.Error("query failed", "err", err)
		resp = errorResponse(qc, err)
	}
	monitor.Finish(resp)
	return resp
}

func (p *Pipeline) process(ctx context.Context, qc *core.QueryContext, monitor Monitor, logger *slog.Logger) (*core.Response, error) {
	if err := p.prepare(ctx, qc, logger); err != nil {
		return nil, err
	}
	monitor.AfterParaphrase(qc.Alternates)

	candidates, err := p.rank(ctx, qc, monitor)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		if qc.Selection.Active() {
			if outside, inside := p.elsewhere(ctx, qc, logger); outside > 0 && !inside {
				return notInSelectionResponse(qc, outside), nil
			}
		}
		logger.Info("no candidates retrieved")
		return noResultsResponse(qc), nil
	}
	ranked := len(candidates)

	candidates, removed := p.filter.Apply(candidates, qc.Selection)
	monitor.AfterStage(StageSelection, candidates)
	if len(candidates) == 0 {
		if qc.Selection.Active() {
			return notInSelectionResponse(qc, removed), nil
		}
		return noResultsResponse(qc), nil
	}

	if p.temporal != nil {
		candidates, err = p.temporal.Score(ctx, qc, candidates)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", StageTemporal, err)
		}
		monitor.AfterStage(StageTemporal, candidates)
	}

	result := p.generator.Generate(ctx, qc, candidates)
	monitor.AfterGeneration(result)

	meta := p.metadata(qc, result)
	meta["chunks_ranked"] = ranked
	meta["chunks_considered"] = len(candidates)
	meta["chunks_filtered_out"] = removed + result.Filtered

	if result.Confidence == 0 {
		if result.Reason == generation.ReasonInsufficientRelevance && qc.Selection.Active() {
			if outside, inside := p.elsewhere(ctx, qc, logger); outside > 0 && !inside {
				return notInSelectionResponse(qc, outside), nil
			}
		}
		meta["reason"] = result.Reason
		return &core.Response{
			Answer:     result.Answer,
			Sources:    nonNil(result.Sources),
			QueryType:  core.QueryTypeInsufficientInformation,
			Confidence: 0,
			Metadata:   meta,
		}, nil
	}

	combined := Fuse(p.cfg.Weights, qc, result.Confidence)
	answer := result.Answer
	if p.corrector != nil && !qc.Selection.Active() {
		correction := p.corrector.Correct(ctx, qc.Query, answer, combined)
		answer = correction.Answer
		meta["correction_source"] = string(correction.Source)
		meta["web_results"] = correction.WebResults
	}
	logger.Info("query answered", "tier", result.Tier, "confidence", combined)
	return &core.Response{
		Answer:     answer,
		Sources:    nonNil(result.Sources),
		QueryType:  Classify(qc.Query),
		Confidence: combined,
		Metadata:   meta,
	}, nil
}

// rank retrieves candidates, expands them over the relationship graph and
// runs every re-ranking stage.
func (p *Pipeline) rank(ctx context.Context, qc *core.QueryContext, monitor Monitor) ([]*core.Chunk, error) {
	candidates, err := p.retriever.Retrieve(ctx, qc, p.cfg.MaxResults*p.cfg.Fanout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", StageRetrieval, err)
	}
	monitor.AfterStage(StageRetrieval, candidates)
	if len(candidates) == 0 {
		return candidates, nil
	}

	if p.graph != nil {
		candidates = p.graph.Expand(ctx, qc, candidates)
		monitor.AfterStage(StageGraph, candidates)
	}

	for _, stage := range p.rerankers {
		candidates, err = stage.Scorer.Score(ctx, qc, candidates)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", stage.Name, err)
		}
		monitor.AfterStage(stage.Name, candidates)
	}
	return candidates, nil
}

// elsewhere looks at the corpus-wide top candidates for a query whose
// selection produced nothing usable. It reports how many of them lie
// outside the selection and whether any lies inside it. A failed lookup
// reports nothing so the caller keeps its own answer.
func (p *Pipeline) elsewhere(ctx context.Context, qc *core.QueryContext, logger *slog.Logger) (int, bool) {
	wide := *qc
	wide.Selection = nil
	wide.Signals = nil
	chunks, err := p.retriever.Retrieve(ctx, &wide, p.cfg.MaxResults)
	if err != nil {
		logger.Warn("corpus-wide lookup failed", "err", err)
		return 0, false
	}
	outside := 0
	for _, chunk := range chunks {
		if qc.Selection.Allows(chunk.DocumentId) {
			return outside, true
		}
		outside++
	}
	return outside, false
}

// prepare collects paraphrases and embeds them together with the query.
// Only the query embedding is required.
func (p *Pipeline) prepare(ctx context.Context, qc *core.QueryContext, logger *slog.Logger) error {
	if p.cfg.Paraphrases {
		qc.Alternates = p.generator.ExpandQuery(ctx, qc.Query)
	}

	alts := make([][]float32, len(qc.Alternates))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := p.embedder.EmbedText(gctx, qc.Query)
		if err != nil {
			return fmt.Errorf("embedding query: %w", err)
		}
		qc.Vector = vec
		return nil
	})
	for i, alt := range qc.Alternates {
		g.Go(func() error {
			vec, err := p.embedder.EmbedText(gctx, alt)
			if err != nil {
				logger.Warn("could not embed paraphrase", "err", err)
				return nil
			}
			alts[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	kept := qc.Alternates[:0]
	for i, alt := range qc.Alternates {
		if len(alts[i]) == 0 {
			continue
		}
		kept = append(kept, alt)
		qc.AltVectors = append(qc.AltVectors, alts[i])
	}
	qc.Alternates = kept
	return nil
}

func (p *Pipeline) metadata(qc *core.QueryContext, result *generation.Result) map[string]any {
	meta := map[string]any{
		"request_id":            qc.RequestID,
		"quantum_coherence":     signal(qc, core.SignalCoherence),
		"neuromorphic_strength": signal(qc, core.SignalStrength),
		"compression_ratio":     signal(qc, core.SignalCompression),
		"swarm_consensus":       signal(qc, core.SignalConsensus),
		"temporal_confidence":   signal(qc, core.SignalTemporal),
		"relevance_score":       result.Relevance,
		"generation_confidence": result.Confidence,
		"model":                 result.Model,
		"tier":                  string(result.Tier),
		"drafts":                result.Drafts,
		"verified":              result.Verified,
		"paraphrases":           len(qc.Alternates),
	}
	if qc.Selection.Active() {
		meta["selected_document_ids"] = qc.Selection.IDs()
	}
	return meta
}

func noResultsResponse(qc *core.QueryContext) *core.Response {
	return &core.Response{
		Answer:    "I don't have any relevant documents to answer your question. Please upload documents that cover this topic.",
		Sources:   []core.Source{},
		QueryType: core.QueryTypeNoResults,
		Metadata: map[string]any{
			"request_id": qc.RequestID,
			"reason":     "no_documents_found",
		},
	}
}

func notInSelectionResponse(qc *core.QueryContext, removed int) *core.Response {
	return &core.Response{
		Answer: fmt.Sprintf("The selected documents don't contain information to answer your question: '%s'. "+
			"The answer might exist in other documents, but you haven't selected them. "+
			"Please select the relevant documents or choose 'All Documents'.", qc.Query),
		Sources:   []core.Source{},
		QueryType: core.QueryTypeNotInSelectedDocuments,
		Metadata: map[string]any{
			"request_id":            qc.RequestID,
			"reason":                "answer_not_in_selected_documents",
			"selected_document_ids": qc.Selection.IDs(),
			"chunks_filtered_out":   removed,
		},
	}
}

func errorResponse(qc *core.QueryContext, err error) *core.Response {
	return &core.Response{
		Answer: fmt.Sprintf("I encountered an error processing your query. Error details: %s. "+
			"Please try rephrasing your question or check if documents are properly uploaded.", err),
		Sources:   []core.Source{},
		QueryType: core.QueryTypeError,
		Metadata: map[string]any{
			"request_id": qc.RequestID,
			"error":      err.Error(),
		},
	}
}

func nonNil(sources []core.Source) []core.Source {
	if sources == nil {
		return []core.Source{}
	}
	return sources
}

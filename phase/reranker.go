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

package phase

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"math/cmplx"
	"slices"
	"sync"

	"github.com/poiesic/veritas/core"
)

// Config holds the reranker's tunables.
type Config struct {
	MaxResults        int     // Candidates kept after measurement
	ProbabilityFloor  float64 // Candidates at or below this probability are dropped
	InterferenceAngle float64 // Phase applied to each paraphrase state
	BaseCoherence     float64
	CoherenceStep     float64 // Added per candidate seen
	MaxCoherence      float64
}

// DefaultConfig returns the standard reranker settings.
func DefaultConfig() Config {
	return Config{
		MaxResults:        15,
		ProbabilityFloor:  0.01,
		InterferenceAngle: math.Pi / 4,
		BaseCoherence:     0.85,
		CoherenceStep:     0.01,
		MaxCoherence:      0.95,
	}
}

// Reranker is the amplitude reranking stage. It is safe for concurrent use.
type Reranker struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	coherence float64
}

var _ core.Scorer = (*Reranker)(nil)

// Option configures a Reranker.
type Option func(*Reranker)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reranker) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(r *Reranker) {
		r.cfg = cfg
	}
}

// NewReranker creates a reranker with DefaultConfig.
func NewReranker(opts ...Option) *Reranker {
	r := &Reranker{
		cfg:    DefaultConfig(),
		logger: slog.Default().With("component", "phase-reranker"),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.coherence = r.cfg.BaseCoherence
	return r
}

// Coherence returns the running coherence diagnostic. It never decreases.
func (r *Reranker) Coherence() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.coherence
}

// Score measures the combined state of candidates and returns the most
// probable ones, each carrying its probability in Score.
func (r *Reranker) Score(_ context.Context, qc *core.QueryContext, candidates []*core.Chunk) ([]*core.Chunk, error) {
	if len(candidates) == 0 {
		return []*core.Chunk{}, nil
	}

	state := amplitudes(similarities(qc.Vector, candidates))
	for _, alt := range qc.AltVectors {
		if len(alt) == 0 {
			continue
		}
		state = r.interfere(state, amplitudes(similarities(alt, candidates)))
	}

	type measured struct {
		index int
		prob  float64
	}
	ranking := make([]measured, len(state))
	for i, a := range state {
		m := cmplx.Abs(a)
		ranking[i] = measured{index: i, prob: m * m}
	}
	slices.SortStableFunc(ranking, func(a, b measured) int {
		return cmp.Compare(b.prob, a.prob)
	})
	if len(ranking) > r.cfg.MaxResults {
		ranking = ranking[:r.cfg.MaxResults]
	}

	out := make([]*core.Chunk, 0, len(ranking))
	for _, m := range ranking {
		if m.prob <= r.cfg.ProbabilityFloor {
			continue
		}
		c := candidates[m.index].Clone()
		c.Score = m.prob
		out = append(out, c)
	}

	coherence := r.observe(len(candidates))
	qc.Record(core.SignalCoherence, coherence)
	r.logger.Debug("phase rerank", "candidates", len(candidates), "kept", len(out), "coherence", coherence)
	return out, nil
}

// observe folds a measurement of n candidates into the coherence value.
func (r *Reranker) observe(n int) float64 {
	next := min(r.cfg.BaseCoherence+float64(n)*r.cfg.CoherenceStep, r.cfg.MaxCoherence)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coherence = max(r.coherence, next)
	return r.coherence
}

// interfere combines two states as s1 + s2·e^{iθ}, renormalised.
func (r *Reranker) interfere(s1, s2 []complex128) []complex128 {
	if len(s1) != len(s2) {
		return s1
	}
	rot := cmplx.Rect(1, r.cfg.InterferenceAngle)
	out := make([]complex128, len(s1))
	for i := range s1 {
		out[i] = s1[i] + s2[i]*rot
	}
	return normalize(out)
}

// similarities returns the cosine of each candidate against vec. When vec
// or a candidate's vector is missing the retrieval similarity is used.
func similarities(vec []float32, candidates []*core.Chunk) []float64 {
	sims := make([]float64, len(candidates))
	for i, c := range candidates {
		if len(vec) == 0 || len(c.Vector) == 0 {
			sims[i] = c.Similarity
			continue
		}
		sims[i] = core.Cosine(vec, core.Fit(c.Vector, len(vec)))
	}
	return sims
}

// amplitudes encodes similarities as a unit-norm complex state.
func amplitudes(sims []float64) []complex128 {
	state := make([]complex128, len(sims))
	for i, s := range sims {
		state[i] = cmplx.Rect(math.Sqrt(math.Abs(s)), math.Pi*s)
	}
	return normalize(state)
}

func normalize(state []complex128) []complex128 {
	var sum float64
	for _, a := range state {
		m := cmplx.Abs(a)
		sum += m * m
	}
	if sum == 0 {
		return state
	}
	norm := complex(math.Sqrt(sum), 0)
	for i := range state {
		state[i] /= norm
	}
	return state
}

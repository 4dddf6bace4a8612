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

package swarm

import (
	"cmp"
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/go-crypt/x/blake2b"

	"github.com/poiesic/veritas/core"
)

// Config holds the swarm's tunables.
type Config struct {
	Agents     int
	Iterations int
	Inertia    float64 // w
	Cognitive  float64 // c1
	Social     float64 // c2
	Bound      float64 // Positions are clipped to [-Bound, Bound]

	// Adaptation runs at iterations that are multiples of AdaptEvery, and
	// explorers anneal only when that iteration's progress exceeds
	// AnnealAfter. With AdaptEvery >= Iterations, as in the defaults, only
	// iteration 0 adapts and annealing never happens.
	AdaptEvery      int
	AnnealAfter     float64
	AnnealChance    float64
	Evaporation     float64 // Pheromone retained per adaptation
	Depositors      int     // Agents reinforcing the pheromone map
	DepositFraction float64 // Share of best score deposited
	Voters          int     // Agents contributing to the consensus

	ExplorerJitter float64
	ScoutRestart   float64 // Probability of a velocity restart per step
	ScoutVelocity  float64

	DefaultConsensus float64
	MaxConsensus     float64

	Seed uint64
}

// DefaultConfig returns the standard swarm settings.
func DefaultConfig() Config {
	return Config{
		Agents:           50,
		Iterations:       20,
		Inertia:          0.7,
		Cognitive:        1.5,
		Social:           1.5,
		Bound:            5,
		AdaptEvery:       20,
		AnnealAfter:      0.7,
		AnnealChance:     0.3,
		Evaporation:      0.95,
		Depositors:       10,
		DepositFraction:  0.1,
		Voters:           20,
		ExplorerJitter:   0.1,
		ScoutRestart:     0.05,
		ScoutVelocity:    0.5,
		DefaultConsensus: 0.92,
		MaxConsensus:     0.95,
		Seed:             42,
	}
}

// Reranker is the swarm consensus stage. The agent population, global best
// and pheromone map are shared across queries and only one run proceeds at
// a time.
type Reranker struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	rng        *rand.Rand
	dims       int
	agents     []agent
	globalBest []float64
	bestScore  float64
	pheromones map[uint64]float64
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

// NewReranker creates a swarm with no agents; the population is built on
// the first run.
func NewReranker(opts ...Option) *Reranker {
	r := &Reranker{
		cfg:        DefaultConfig(),
		logger:     slog.Default().With("component", "swarm-reranker"),
		pheromones: make(map[uint64]float64),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.rng = rand.New(rand.NewPCG(r.cfg.Seed, r.cfg.Seed^0x9e3779b97f4a7c15))
	return r
}

// Score runs the swarm around the query and returns copies of candidates
// ordered by consensus, which is also stored in Score. Without a query
// vector the candidates are returned in their incoming order.
func (r *Reranker) Score(ctx context.Context, qc *core.QueryContext, candidates []*core.Chunk) ([]*core.Chunk, error) {
	if len(candidates) == 0 {
		return []*core.Chunk{}, nil
	}

	out := make([]*core.Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.Clone()
	}
	if len(qc.Vector) == 0 {
		qc.Record(core.SignalConsensus, r.Consensus())
		return out, nil
	}

	query := toFloat64(qc.Vector)
	embeddings := make([][]float64, len(candidates))
	for i, c := range candidates {
		embeddings[i] = toFloat64(core.Fit(c.Vector, len(query)))
	}

	r.mu.Lock()
	r.ensure(len(query))
	for it := 0; it < r.cfg.Iterations; it++ {
		if err := ctx.Err(); err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.step(query, embeddings)
		if r.cfg.AdaptEvery > 0 && it%r.cfg.AdaptEvery == 0 {
			r.adapt(float64(it) / float64(r.cfg.Iterations))
		}
	}
	scores := r.consensusScores(embeddings)
	consensus := r.consensus()
	r.mu.Unlock()

	for i := range out {
		out[i].Score = scores[i]
	}
	slices.SortStableFunc(out, func(a, b *core.Chunk) int {
		return cmp.Compare(b.Score, a.Score)
	})

	qc.Record(core.SignalConsensus, consensus)
	r.logger.Debug("swarm rerank", "candidates", len(candidates), "consensus", consensus)
	return out, nil
}

// Consensus returns min(mean positive personal best + 0.5, MaxConsensus),
// or DefaultConsensus when no agent has a positive best.
func (r *Reranker) Consensus() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consensus()
}

func (r *Reranker) consensus() float64 {
	var sum float64
	var n int
	for i := range r.agents {
		if s := r.agents[i].bestScore; s > 0 {
			sum += s
			n++
		}
	}
	if n == 0 {
		return r.cfg.DefaultConsensus
	}
	return min(sum/float64(n)+0.5, r.cfg.MaxConsensus)
}

// Dimensions returns the dimensionality of the current population.
func (r *Reranker) Dimensions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dims
}

// ensure rebuilds the population when the dimensionality changes.
func (r *Reranker) ensure(dims int) {
	if r.dims == dims && len(r.agents) == r.cfg.Agents {
		return
	}
	r.dims = dims
	r.globalBest = nil
	r.bestScore = 0
	clear(r.pheromones)
	r.agents = make([]agent, r.cfg.Agents)
	for i := range r.agents {
		r.agents[i] = agent{
			position:       randomVector(r.rng, dims, 1),
			velocity:       randomVector(r.rng, dims, 0.1),
			bestPosition:   randomVector(r.rng, dims, 1),
			specialization: specializationFor(i, r.cfg.Agents),
		}
	}
	r.logger.Debug("swarm initialised", "agents", len(r.agents), "dimensions", dims)
}

func (r *Reranker) step(query []float64, embeddings [][]float64) {
	for i := range r.agents {
		a := &r.agents[i]
		f := fitness(a.position, query, embeddings, a.specialization)
		if f > a.bestScore {
			a.bestScore = f
			a.bestPosition = slices.Clone(a.position)
			if f > r.bestScore {
				r.bestScore = f
				r.globalBest = slices.Clone(a.position)
			}
		}
		r.move(a)
	}
}

func (r *Reranker) move(a *agent) {
	for d := range a.velocity {
		v := r.cfg.Inertia*a.velocity[d] +
			r.cfg.Cognitive*r.rng.Float64()*(a.bestPosition[d]-a.position[d])
		if r.globalBest != nil {
			v += r.cfg.Social * r.rng.Float64() * (r.globalBest[d] - a.position[d])
		}
		a.velocity[d] = v
	}

	switch a.specialization {
	case Explorer:
		for d := range a.velocity {
			a.velocity[d] += r.cfg.ExplorerJitter * r.rng.NormFloat64()
		}
	case Scout:
		if r.rng.Float64() < r.cfg.ScoutRestart {
			a.velocity = randomVector(r.rng, len(a.velocity), r.cfg.ScoutVelocity)
		}
	}

	for d := range a.position {
		a.position[d] = math.Max(-r.cfg.Bound, math.Min(r.cfg.Bound, a.position[d]+a.velocity[d]))
	}
}

// adapt anneals explorers late in a run and refreshes the pheromone map.
func (r *Reranker) adapt(progress float64) {
	if progress > r.cfg.AnnealAfter {
		for i := range r.agents {
			if r.agents[i].specialization == Explorer && r.rng.Float64() < r.cfg.AnnealChance {
				r.agents[i].specialization = Exploiter
			}
		}
	}

	for k, v := range r.pheromones {
		v *= r.cfg.Evaporation
		if v < 1e-6 {
			delete(r.pheromones, k)
			continue
		}
		r.pheromones[k] = v
	}
	for _, i := range r.ranked(r.cfg.Depositors) {
		a := &r.agents[i]
		r.pheromones[positionKey(a.bestPosition)] += a.bestScore * r.cfg.DepositFraction
	}
}

// ranked returns the indexes of the n agents with the highest personal
// best, lower index first on ties.
func (r *Reranker) ranked(n int) []int {
	idx := make([]int, len(r.agents))
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(r.agents[b].bestScore, r.agents[a].bestScore)
	})
	return idx[:min(n, len(idx))]
}

func (r *Reranker) consensusScores(embeddings [][]float64) []float64 {
	voters := r.ranked(r.cfg.Voters)
	scores := make([]float64, len(embeddings))
	if len(voters) == 0 {
		return scores
	}
	for i, emb := range embeddings {
		var sum float64
		for _, v := range voters {
			a := &r.agents[v]
			sum += cosine(a.bestPosition, emb) * a.bestScore
		}
		scores[i] = sum / float64(len(voters))
	}
	return scores
}

// PheromoneTrails returns the number of live pheromone entries.
func (r *Reranker) PheromoneTrails() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pheromones)
}

func fitness(position, query []float64, embeddings [][]float64, s Specialization) float64 {
	base := cosine(position, query)
	sims := make([]float64, len(embeddings))
	for i, e := range embeddings {
		sims[i] = cosine(e, position)
	}

	switch s {
	case Explorer:
		return base - 0.3*mean(sims)
	case Exploiter:
		return base + 0.5*slices.Max(sims)
	default:
		return base + 0.2*stddev(sims)
	}
}

func cosine(a, b []float64) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		sum += (x - m) * (x - m)
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// positionKey hashes a position rounded to two decimals.
func positionKey(position []float64) uint64 {
	h, _ := blake2b.New(8, nil)
	buf := make([]byte, 8)
	for _, x := range position {
		binary.LittleEndian.PutUint64(buf, uint64(int64(math.Round(x*100))))
		h.Write(buf)
	}
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

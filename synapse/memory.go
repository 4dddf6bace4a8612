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

package synapse

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

// Config holds the memory's tunables.
type Config struct {
	InitialWeight        float64       // Weight of a chunk seen for the first time, before its increment
	Increment            float64       // Added on every touch
	AssociationIncrement float64       // Added to a pair co-accessed within Window
	Window               time.Duration // Co-access window
	DecayRate            float64       // Per hour since last access
	DecayEvery           int           // Adaptations between decay passes
	PruneBelow           float64
	DefaultStrength      float64 // Reported by Strength when nothing is remembered
	TouchTop             int     // Leading candidates strengthened per query
	HistoryLimit         int     // Access timestamps kept per chunk
}

// DefaultConfig returns the standard memory settings.
func DefaultConfig() Config {
	return Config{
		InitialWeight:        0.5,
		Increment:            0.1,
		AssociationIncrement: 0.05,
		Window:               30 * time.Minute,
		DecayRate:            0.1,
		DecayEvery:           10,
		PruneBelow:           0.01,
		DefaultStrength:      0.75,
		TouchTop:             5,
		HistoryLimit:         32,
	}
}

// Stats summarises what the memory holds.
type Stats struct {
	Weights      int
	Associations int
	Adaptations  int
}

type pair struct {
	lo, hi core.ID
}

func makePair(a, b core.ID) pair {
	if a > b {
		a, b = b, a
	}
	return pair{lo: a, hi: b}
}

// Memory is the usage-adaptive scoring stage. It is safe for concurrent use.
type Memory struct {
	cfg    Config
	repo   storage.SynapseRepository
	now    func() time.Time
	logger *slog.Logger

	mu           sync.Mutex
	weights      map[core.ID]float64
	counts       map[core.ID]int
	history      map[core.ID][]time.Time
	associations map[pair]float64
	adaptations  int
}

var _ core.Scorer = (*Memory)(nil)

// Option configures a Memory.
type Option func(*Memory)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(m *Memory) {
		m.cfg = cfg
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates an empty memory. repo may be nil, in which case
// nothing is persisted.
func NewMemory(repo storage.SynapseRepository, opts ...Option) *Memory {
	m := &Memory{
		cfg:          DefaultConfig(),
		repo:         repo,
		now:          time.Now,
		logger:       slog.Default().With("component", "synapse-memory"),
		weights:      make(map[core.ID]float64),
		counts:       make(map[core.ID]int),
		history:      make(map[core.ID][]time.Time),
		associations: make(map[pair]float64),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore warms the cache from persisted synapses. Entries already in
// memory are overwritten.
func (m *Memory) Restore(ctx context.Context) error {
	if m.repo == nil {
		return nil
	}
	synapses, err := m.repo.LoadSynapses(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range synapses {
		if s.Weight < m.cfg.PruneBelow {
			continue
		}
		m.weights[s.ChunkId] = min(s.Weight, 1.0)
		m.counts[s.ChunkId] = s.AccessCount
		if !s.LastAccess.IsZero() {
			m.history[s.ChunkId] = []time.Time{s.LastAccess}
		}
	}
	m.logger.Debug("restored synapses", "count", len(synapses))
	return nil
}

// Score strengthens the leading candidates, periodically decays every
// weight, and returns copies of candidates reordered by Score·(1+weight).
// On a cancelled context the weights are left untouched.
func (m *Memory) Score(ctx context.Context, qc *core.QueryContext, candidates []*core.Chunk) ([]*core.Chunk, error) {
	if len(candidates) == 0 {
		return []*core.Chunk{}, nil
	}

	if ctx.Err() == nil {
		touched := candidates[:min(len(candidates), m.cfg.TouchTop)]
		ids := make([]core.ID, len(touched))
		for i, c := range touched {
			ids[i] = c.Id
		}
		m.Touch(ctx, ids...)
	}

	m.mu.Lock()
	out := make([]*core.Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.Clone()
		out[i].Score = c.Score * (1 + m.weights[c.Id])
	}
	m.mu.Unlock()

	slices.SortStableFunc(out, func(a, b *core.Chunk) int {
		return cmp.Compare(b.Score, a.Score)
	})
	qc.Record(core.SignalStrength, m.Strength())
	return out, nil
}

// Touch records an access to each chunk, in order, and persists the
// resulting state best-effort.
func (m *Memory) Touch(ctx context.Context, ids ...core.ID) {
	if len(ids) == 0 {
		return
	}

	m.mu.Lock()
	now := m.now()
	for _, id := range ids {
		m.strengthen(id, now)
	}
	m.adaptations++
	var pruned []core.ID
	if m.cfg.DecayEvery > 0 && m.adaptations%m.cfg.DecayEvery == 0 {
		pruned = m.decay(now)
	}
	dirty := m.snapshot(ids)
	m.mu.Unlock()

	m.persist(ctx, dirty, pruned)
}

// strengthen must be called with mu held.
func (m *Memory) strengthen(id core.ID, now time.Time) {
	w, ok := m.weights[id]
	if !ok {
		w = m.cfg.InitialWeight
	}
	m.weights[id] = min(1.0, w+m.cfg.Increment)
	m.counts[id]++

	for other, stamps := range m.history {
		if other == id {
			continue
		}
		if m.recent(stamps, now) {
			p := makePair(id, other)
			m.associations[p] = min(1.0, m.associations[p]+m.cfg.AssociationIncrement)
		}
	}

	h := append(m.history[id], now)
	if m.cfg.HistoryLimit > 0 && len(h) > m.cfg.HistoryLimit {
		h = h[len(h)-m.cfg.HistoryLimit:]
	}
	m.history[id] = h
}

func (m *Memory) recent(stamps []time.Time, now time.Time) bool {
	for _, t := range stamps {
		d := now.Sub(t)
		if d < 0 {
			d = -d
		}
		if d < m.cfg.Window {
			return true
		}
	}
	return false
}

// decay must be called with mu held. It returns the pruned chunk ids.
func (m *Memory) decay(now time.Time) []core.ID {
	var pruned []core.ID
	for id, w := range m.weights {
		last := m.lastAccess(id, now)
		hours := now.Sub(last).Hours()
		w *= math.Exp(-m.cfg.DecayRate * hours)
		if w < m.cfg.PruneBelow {
			delete(m.weights, id)
			delete(m.counts, id)
			delete(m.history, id)
			pruned = append(pruned, id)
			continue
		}
		m.weights[id] = w
	}
	if len(pruned) > 0 {
		m.logger.Debug("pruned weak synapses", "count", len(pruned))
	}
	return pruned
}

func (m *Memory) lastAccess(id core.ID, fallback time.Time) time.Time {
	h := m.history[id]
	if len(h) == 0 {
		return fallback
	}
	return h[len(h)-1]
}

// snapshot must be called with mu held.
func (m *Memory) snapshot(ids []core.ID) []*core.Synapse {
	out := make([]*core.Synapse, 0, len(ids))
	seen := make(map[core.ID]bool, len(ids))
	for _, id := range ids {
		w, ok := m.weights[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, &core.Synapse{
			ChunkId:     id,
			Weight:      w,
			AccessCount: m.counts[id],
			LastAccess:  m.lastAccess(id, time.Time{}),
		})
	}
	return out
}

func (m *Memory) persist(ctx context.Context, dirty []*core.Synapse, pruned []core.ID) {
	if m.repo == nil || ctx.Err() != nil {
		return
	}
	if len(dirty) > 0 {
		if err := m.repo.SaveSynapses(ctx, dirty...); err != nil {
			m.logger.Warn("failed to persist synapses", "count", len(dirty), "err", err)
		}
	}
	if len(pruned) > 0 {
		if err := m.repo.DeleteSynapses(ctx, pruned...); err != nil {
			m.logger.Warn("failed to delete pruned synapses", "count", len(pruned), "err", err)
		}
	}
}

// Forget drops everything remembered about the given chunks. Persisted
// records are not touched.
func (m *Memory) Forget(ids ...core.ID) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[core.ID]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range drop {
		delete(m.weights, id)
		delete(m.counts, id)
		delete(m.history, id)
	}
	for p := range m.associations {
		if drop[p.lo] || drop[p.hi] {
			delete(m.associations, p)
		}
	}
}

// Weight returns a chunk's current weight, 0 when unknown.
func (m *Memory) Weight(id core.ID) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.weights[id]
}

// Association returns the association strength of two chunks.
func (m *Memory) Association(a, b core.ID) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.associations[makePair(a, b)]
}

// Strength returns the mean weight, or DefaultStrength when empty.
func (m *Memory) Strength() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.weights) == 0 {
		return m.cfg.DefaultStrength
	}
	var sum float64
	for _, w := range m.weights {
		sum += w
	}
	return sum / float64(len(m.weights))
}

// Associated returns the chunks associated with id more strongly than
// threshold, in ascending id order.
func (m *Memory) Associated(id core.ID, threshold float64) []core.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.ID
	for p, s := range m.associations {
		if s <= threshold {
			continue
		}
		switch id {
		case p.lo:
			out = append(out, p.hi)
		case p.hi:
			out = append(out, p.lo)
		}
	}
	slices.Sort(out)
	return out
}

// Stats returns counts of remembered weights and associations.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Weights:      len(m.weights),
		Associations: len(m.associations),
		Adaptations:  m.adaptations,
	}
}

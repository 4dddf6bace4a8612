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

package temporal

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/veritas/core"
)

var (
	yearPattern   = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	causalPattern = regexp.MustCompile(`caused by|results from|due to|because of|leads to|led to|results in|causes|triggers|followed by|preceded by|after|before|consequently|therefore|thus|hence`)
	intentPattern = regexp.MustCompile(`\b(?:when|timeline|over time|evolution|evolved|history|historical|before|after|since|until|year|decade|caused|cause|causes|led to|leads to|result of|why)\b|\b(?:19|20)\d{2}\b`)
)

// Config holds the engine's tunables.
type Config struct {
	Confidence      float64       // Reported for every analysis
	EventConfidence float64       // Assigned to each extracted event
	ScanTop         int           // Leading chunks scanned for events
	ChainWindow     time.Duration // Maximum gap between linked events
	ChainSimilarity float64       // Minimum description Jaccard similarity
	Boost           float64       // Score boost per event, up to MaxBoostEvents
	MaxBoostEvents  int
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		Confidence:      0.78,
		EventConfidence: 0.7,
		ScanTop:         5,
		ChainWindow:     365 * 24 * time.Hour,
		ChainSimilarity: 0.2,
		Boost:           0.1,
		MaxBoostEvents:  3,
	}
}

// Analysis summarises the causal structure of a candidate set.
type Analysis struct {
	Confidence  float64
	EventsFound int
	Chains      [][]core.CausalEvent
}

// Patterns labels each chain for display.
func (a Analysis) Patterns() []string {
	out := make([]string, len(a.Chains))
	for i := range a.Chains {
		out[i] = fmt.Sprintf("Chain %d", i+1)
	}
	return out
}

// Engine extracts causal events and acts as a scoring stage.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

var _ core.Scorer = (*Engine)(nil)

// NewEngine creates an engine. A nil logger uses slog.Default().
func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger.With("component", "temporal-engine")}
}

// Extract returns the causal events in a chunk, in sentence order.
func (e *Engine) Extract(chunk *core.Chunk) []core.CausalEvent {
	var events []core.CausalEvent
	for i, sentence := range strings.Split(chunk.Content, ".") {
		year := yearPattern.FindString(sentence)
		if year == "" || !causalPattern.MatchString(strings.ToLower(sentence)) {
			continue
		}
		y, _ := strconv.Atoi(year)
		events = append(events, core.CausalEvent{
			EventId:     fmt.Sprintf("%d_%d_%d", chunk.DocumentId, chunk.Id, i),
			Timestamp:   time.Date(y, time.January, 1, 0, 0, 0, 0, time.UTC),
			Description: strings.TrimSpace(sentence),
			Confidence:  e.cfg.EventConfidence,
			DocumentId:  chunk.DocumentId,
			ChunkId:     chunk.Id,
		})
	}
	return events
}

// Chains links time-ordered events into chains. Only chains of two or
// more events are returned.
func (e *Engine) Chains(events []core.CausalEvent) [][]core.CausalEvent {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b core.CausalEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	var chains [][]core.CausalEvent
	var current []core.CausalEvent
	for _, ev := range sorted {
		if len(current) == 0 {
			current = []core.CausalEvent{ev}
			continue
		}
		last := current[len(current)-1]
		if ev.Timestamp.Sub(last.Timestamp) <= e.cfg.ChainWindow && jaccard(last.Description, ev.Description) > e.cfg.ChainSimilarity {
			current = append(current, ev)
			continue
		}
		if len(current) > 1 {
			chains = append(chains, current)
		}
		current = []core.CausalEvent{ev}
	}
	if len(current) > 1 {
		chains = append(chains, current)
	}
	return chains
}

// Analyze extracts events from the leading chunks and links them.
func (e *Engine) Analyze(chunks []*core.Chunk) Analysis {
	a := Analysis{Confidence: e.cfg.Confidence}
	var events []core.CausalEvent
	for _, c := range chunks[:min(len(chunks), e.cfg.ScanTop)] {
		events = append(events, e.Extract(c)...)
	}
	a.EventsFound = len(events)
	if len(events) > 0 {
		a.Chains = e.Chains(events)
	}
	return a
}

// HasTemporalIntent reports whether a query asks about time or causes.
func HasTemporalIntent(query string) bool {
	return intentPattern.MatchString(strings.ToLower(query))
}

// Score records the analysis confidence and, when the query has temporal
// intent, promotes chunks carrying causal events. Otherwise the order is
// unchanged.
func (e *Engine) Score(_ context.Context, qc *core.QueryContext, candidates []*core.Chunk) ([]*core.Chunk, error) {
	analysis := e.Analyze(candidates)
	qc.Record(core.SignalTemporal, analysis.Confidence)

	out := make([]*core.Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.Clone()
	}
	if analysis.EventsFound == 0 || !HasTemporalIntent(qc.Query) {
		return out, nil
	}

	for _, c := range out {
		if n := len(e.Extract(c)); n > 0 {
			c.Score *= 1 + e.cfg.Boost*float64(min(n, e.cfg.MaxBoostEvents))
		}
	}
	slices.SortStableFunc(out, func(a, b *core.Chunk) int {
		return cmp.Compare(b.Score, a.Score)
	})
	e.logger.Debug("temporal boost", "events", analysis.EventsFound, "chains", len(analysis.Chains))
	return out, nil
}

func jaccard(a, b string) float64 {
	wa := strings.Fields(strings.ToLower(a))
	wb := strings.Fields(strings.ToLower(b))
	set := make(map[string]uint8, len(wa)+len(wb))
	for _, w := range wa {
		set[w] |= 1
	}
	for _, w := range wb {
		set[w] |= 2
	}
	if len(set) == 0 {
		return 0
	}
	var both int
	for _, m := range set {
		if m == 3 {
			both++
		}
	}
	return float64(both) / float64(len(set))
}

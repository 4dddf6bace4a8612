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

package core

import (
	"context"
	"slices"
)

// Selection is the set of document ids a caller is allowed to see.
// The zero value (and an empty set) means "every document".
type Selection map[ID]struct{}

// NewSelection builds a selection from ids. An empty or nil slice yields
// a nil Selection, which admits everything.
func NewSelection(ids ...ID) Selection {
	if len(ids) == 0 {
		return nil
	}
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Active reports whether the selection restricts anything.
func (s Selection) Active() bool {
	return len(s) > 0
}

// Allows reports whether a document may be surfaced.
func (s Selection) Allows(documentID ID) bool {
	if len(s) == 0 {
		return true
	}
	_, ok := s[documentID]
	return ok
}

// IDs returns the selected ids in ascending order.
func (s Selection) IDs() []ID {
	ids := make([]ID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// QueryContext carries everything a scoring stage may need about the
// current query.
type QueryContext struct {
	RequestID  string
	Query      string
	Vector     []float32
	Alternates []string    // Paraphrases of Query
	AltVectors [][]float32 // Embeddings of Alternates, same order
	Selection  Selection

	// Signals holds per-query diagnostics reported by the stages that
	// scored this query, keyed by the Signal* names.
	Signals map[string]float64
}

// Diagnostic signal names recorded by scoring stages.
const (
	SignalCoherence   = "coherence"
	SignalStrength    = "memory_strength"
	SignalCompression = "compression"
	SignalConsensus   = "consensus"
	SignalTemporal    = "temporal_confidence"
)

// Record stores a diagnostic signal for this query.
func (qc *QueryContext) Record(name string, value float64) {
	if qc.Signals == nil {
		qc.Signals = make(map[string]float64)
	}
	qc.Signals[name] = value
}

// Signal returns a recorded diagnostic and whether it was set.
func (qc *QueryContext) Signal(name string) (float64, bool) {
	v, ok := qc.Signals[name]
	return v, ok
}

// Scorer is a re-ranking stage. Implementations return a new ordering of
// (a subset of) candidates and never add chunks that were not passed in.
type Scorer interface {
	Score(ctx context.Context, qc *QueryContext, candidates []*Chunk) ([]*Chunk, error)
}

// QueryType classifies a response.
type QueryType string

const (
	QueryTypeSimple                  QueryType = "simple"
	QueryTypeComplex                 QueryType = "complex"
	QueryTypeNoResults               QueryType = "no-results"
	QueryTypeNotInSelectedDocuments  QueryType = "not-in-selected-documents"
	QueryTypeInsufficientInformation QueryType = "insufficient-information"
	QueryTypeError                   QueryType = "error"
)

// Source references a passage that supported an answer.
type Source struct {
	ChunkID        ID     `json:"chunk_id"`
	DocumentID     ID     `json:"document_id"`
	ContentPreview string `json:"content_preview"`
}

// Response is the final result of a query.
type Response struct {
	Answer     string         `json:"answer"`
	Sources    []Source       `json:"sources"`
	QueryType  QueryType      `json:"query_type"`
	Confidence float64        `json:"confidence"`
	Metadata   map[string]any `json:"metadata"`
}

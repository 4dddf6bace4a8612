package hologram

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"math/cmplx"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/poiesic/veritas/core"
)

const (
	// DefaultDimensions matches common sentence embedding sizes.
	DefaultDimensions = 384

	ratioPerDocument = 10.0
	maxRatio         = 80.0
)

// Match is a document ranked by Search.
type Match struct {
	DocumentID core.ID
	Similarity float64
}

// Store is the interference matrix and its document references. It is
// safe for concurrent use.
type Store struct {
	dims   int
	logger *slog.Logger

	mu         sync.RWMutex
	matrix     []complex128 // dims×dims, row major
	references map[core.ID][]complex128
	objects    map[core.ID][]float64
}

var _ core.Scorer = (*Store)(nil)

// NewStore creates an empty store. Non-positive dims use DefaultDimensions.
func NewStore(dims int, logger *slog.Logger) *Store {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dims:       dims,
		logger:     logger.With("component", "hologram"),
		matrix:     make([]complex128, dims*dims),
		references: make(map[core.ID][]complex128),
		objects:    make(map[core.ID][]float64),
	}
}

// reference returns the unit-amplitude wave for a document. The same id
// always yields the same wave.
func (s *Store) reference(id core.ID) []complex128 {
	rng := rand.New(rand.NewPCG(uint64(id), 0))
	wave := make([]complex128, s.dims)
	for i := range wave {
		wave[i] = cmplx.Rect(1, rng.Float64()*2*math.Pi)
	}
	return wave
}

// Encode adds a document to the matrix, replacing any previous encoding
// of the same id. Vectors are zero padded or truncated to the store size.
func (s *Store) Encode(id core.ID, vector []float32) {
	object := make([]float64, s.dims)
	for i, x := range core.Fit(vector, s.dims) {
		object[i] = float64(x)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.objects[id]; ok {
		s.superimpose(old, s.references[id], -1)
	}
	ref := s.reference(id)
	s.superimpose(object, ref, 1)
	s.references[id] = ref
	s.objects[id] = object
}

// Remove subtracts a document's encoding. Unknown ids are ignored.
func (s *Store) Remove(id core.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	object, ok := s.objects[id]
	if !ok {
		return
	}
	s.superimpose(object, s.references[id], -1)
	delete(s.objects, id)
	delete(s.references, id)
}

// superimpose adds sign·outer(object, conj(ref)). Must be called with mu held.
func (s *Store) superimpose(object []float64, ref []complex128, sign float64) {
	for i, o := range object {
		if o == 0 {
			continue
		}
		row := s.matrix[i*s.dims : (i+1)*s.dims]
		scale := complex(sign*o, 0)
		for j, r := range ref {
			row[j] += scale * cmplx.Conj(r)
		}
	}
}

// Reconstruct returns the real part of matrix·reference for a document,
// or nil when the document is unknown.
func (s *Store) Reconstruct(id core.ID) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.references[id]
	if !ok {
		return nil
	}
	out := make([]float64, s.dims)
	for i := range out {
		var sum complex128
		row := s.matrix[i*s.dims : (i+1)*s.dims]
		for j, r := range ref {
			sum += row[j] * r
		}
		out[i] = real(sum)
	}
	return out
}

// Search ranks documents by the magnitude of their correlation with the
// query and returns the k best, lower id first on ties.
func (s *Store) Search(query []float32, k int) []Match {
	q := core.Fit(query, s.dims)

	s.mu.RLock()
	defer s.mu.RUnlock()

	correlation := make([]complex128, s.dims)
	for j := range correlation {
		// (qᵀ·M)_j
		var sum complex128
		for i, x := range q {
			if x != 0 {
				sum += complex(float64(x), 0) * s.matrix[i*s.dims+j]
			}
		}
		correlation[j] = sum
	}

	matches := make([]Match, 0, len(s.references))
	for id, ref := range s.references {
		var sum complex128
		for j, c := range correlation {
			sum += c * ref[j]
		}
		matches = append(matches, Match{DocumentID: id, Similarity: cmplx.Abs(sum)})
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.DocumentID, b.DocumentID)
	})
	if k >= 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Documents returns the number of encoded documents.
func (s *Store) Documents() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.references)
}

// CompressionRatio is 10 per encoded document, capped at 80, and 80 for
// an empty store.
func (s *Store) CompressionRatio() float64 {
	n := s.Documents()
	if n == 0 {
		return maxRatio
	}
	return min(float64(n)*ratioPerDocument, maxRatio)
}

// Normalized returns CompressionRatio scaled into [0, 1].
func (s *Store) Normalized() float64 {
	return s.CompressionRatio() / maxRatio
}

// Score leaves candidates untouched and records the normalised
// compression ratio.
func (s *Store) Score(_ context.Context, qc *core.QueryContext, candidates []*core.Chunk) ([]*core.Chunk, error) {
	qc.Record(core.SignalCompression, s.Normalized())
	return candidates, nil
}

package phase

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/veritas/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunksWithSimilarity(sims ...float64) []*core.Chunk {
	out := make([]*core.Chunk, len(sims))
	for i, s := range sims {
		out[i] = &core.Chunk{Id: core.ID(i + 1), Similarity: s}
	}
	return out
}

func TestScore_ProbabilityOrdering(t *testing.T) {
	r := NewReranker()
	qc := &core.QueryContext{Query: "q"}

	out, err := r.Score(context.Background(), qc, chunksWithSimilarity(0.1, 0.9, 0.5))
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, core.ID(2), out[0].Id)
	assert.Equal(t, core.ID(3), out[1].Id)
	assert.Equal(t, core.ID(1), out[2].Id)

	// Probabilities are |s| / Σ|s|
	assert.InDelta(t, 0.6, out[0].Score, 1e-9)
	assert.InDelta(t, 0.5/1.5, out[1].Score, 1e-9)
	assert.InDelta(t, 0.1/1.5, out[2].Score, 1e-9)

	var total float64
	for _, c := range out {
		total += c.Score
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestScore_DropsBelowFloor(t *testing.T) {
	r := NewReranker()
	out, err := r.Score(context.Background(), &core.QueryContext{}, chunksWithSimilarity(1.0, 0.005))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, core.ID(1), out[0].Id)
}

func TestScore_CapsAtMaxResults(t *testing.T) {
	r := NewReranker()
	sims := make([]float64, 20)
	for i := range sims {
		sims[i] = 0.5
	}
	out, err := r.Score(context.Background(), &core.QueryContext{}, chunksWithSimilarity(sims...))
	require.NoError(t, err)
	require.Len(t, out, 15)

	// Equal probabilities keep input order
	for i, c := range out {
		assert.Equal(t, core.ID(i+1), c.Id)
	}
}

func TestScore_Empty(t *testing.T) {
	r := NewReranker()
	out, err := r.Score(context.Background(), &core.QueryContext{}, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, 0.85, r.Coherence())
}

func TestScore_UsesVectorsWhenPresent(t *testing.T) {
	candidates := []*core.Chunk{
		{Id: 1, Vector: []float32{0.6, 0.8}, Similarity: 0.99},
		{Id: 2, Vector: []float32{1, 0}, Similarity: 0.01},
	}
	qc := &core.QueryContext{Vector: []float32{1, 0}}
	out, err := NewReranker().Score(context.Background(), qc, candidates)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, core.ID(2), out[0].Id)
	assert.InDelta(t, 1/1.6, out[0].Score, 1e-6)
}

func TestScore_IdenticalParaphraseKeepsDistribution(t *testing.T) {
	candidates := []*core.Chunk{
		{Id: 1, Vector: []float32{1, 0}},
		{Id: 2, Vector: []float32{0.6, 0.8}},
	}
	q := []float32{1, 0}

	plain, err := NewReranker().Score(context.Background(), &core.QueryContext{Vector: q}, candidates)
	require.NoError(t, err)
	mixed, err := NewReranker().Score(context.Background(), &core.QueryContext{Vector: q, AltVectors: [][]float32{q}}, candidates)
	require.NoError(t, err)

	require.Len(t, mixed, len(plain))
	for i := range plain {
		assert.Equal(t, plain[i].Id, mixed[i].Id)
		assert.InDelta(t, plain[i].Score, mixed[i].Score, 1e-6)
	}
}

func TestScore_ParaphraseShiftsRanking(t *testing.T) {
	candidates := []*core.Chunk{
		{Id: 1, Vector: []float32{1, 0}},
		{Id: 2, Vector: []float32{0, 1}},
	}
	qc := &core.QueryContext{
		Vector:     []float32{0.8, 0.6},
		AltVectors: [][]float32{{0, 1}, {0.1, 1}},
	}
	out, err := NewReranker().Score(context.Background(), qc, candidates)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.Equal(t, core.ID(2), out[0].Id)
}

func TestCoherence_MonotoneAndCapped(t *testing.T) {
	r := NewReranker()
	qc := &core.QueryContext{}
	assert.Equal(t, 0.85, r.Coherence())

	_, err := r.Score(context.Background(), qc, chunksWithSimilarity(0.5, 0.5, 0.5, 0.5, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.90, r.Coherence(), 1e-9)
	got, ok := qc.Signal(core.SignalCoherence)
	require.True(t, ok)
	assert.InDelta(t, 0.90, got, 1e-9)

	_, err = r.Score(context.Background(), qc, chunksWithSimilarity(0.5, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.90, r.Coherence(), 1e-9, "smaller batches never lower coherence")

	sims := make([]float64, 40)
	for i := range sims {
		sims[i] = 0.5
	}
	_, err = r.Score(context.Background(), qc, chunksWithSimilarity(sims...))
	require.NoError(t, err)
	assert.InDelta(t, 0.95, r.Coherence(), 1e-9)
}

func TestScore_Concurrent(t *testing.T) {
	r := NewReranker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sims := make([]float64, n+1)
			for j := range sims {
				sims[j] = 0.3
			}
			_, err := r.Score(context.Background(), &core.QueryContext{}, chunksWithSimilarity(sims...))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	assert.InDelta(t, 0.93, r.Coherence(), 1e-9)
}

package hologram

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/veritas/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func basis(dims, i int) []float32 {
	v := make([]float32, dims)
	v[i] = 1
	return v
}

func TestCompressionRatio(t *testing.T) {
	s := NewStore(16, nil)
	assert.Equal(t, 80.0, s.CompressionRatio())
	assert.Equal(t, 1.0, s.Normalized())

	for i := 1; i <= 3; i++ {
		s.Encode(core.ID(i), basis(16, i))
	}
	assert.Equal(t, 30.0, s.CompressionRatio())
	assert.InDelta(t, 0.375, s.Normalized(), 1e-9)

	for i := 4; i <= 12; i++ {
		s.Encode(core.ID(i), basis(16, i))
	}
	assert.Equal(t, 80.0, s.CompressionRatio())
}

func TestSearch_RanksEncodedDocument(t *testing.T) {
	const dims = 256
	s := NewStore(dims, nil)
	s.Encode(1, basis(dims, 0))
	s.Encode(2, basis(dims, 1))
	s.Encode(3, basis(dims, 2))

	matches := s.Search(basis(dims, 1), 2)
	require.Len(t, matches, 2)
	assert.Equal(t, core.ID(2), matches[0].DocumentID)
	assert.InDelta(t, float64(dims), matches[0].Similarity, 1e-6)
	assert.Greater(t, matches[0].Similarity, matches[1].Similarity)
}

func TestReconstruct(t *testing.T) {
	const dims = 32
	s := NewStore(dims, nil)
	vec := []float32{0.5, -0.25, 1}
	s.Encode(7, vec)

	out := s.Reconstruct(7)
	require.Len(t, out, dims)
	assert.InDelta(t, 0.5*dims, out[0], 1e-6)
	assert.InDelta(t, -0.25*dims, out[1], 1e-6)
	assert.InDelta(t, 1.0*dims, out[2], 1e-6)
	assert.InDelta(t, 0, out[3], 1e-6)

	assert.Nil(t, s.Reconstruct(8))
}

func TestReferenceIsDeterministic(t *testing.T) {
	a := NewStore(8, nil)
	b := NewStore(8, nil)
	assert.Equal(t, a.reference(42), b.reference(42))
	assert.NotEqual(t, a.reference(42), a.reference(43))
}

func TestEncodeReplacesAndRemove(t *testing.T) {
	const dims = 32
	s := NewStore(dims, nil)
	s.Encode(1, basis(dims, 0))
	s.Encode(1, basis(dims, 5))
	assert.Equal(t, 1, s.Documents())

	out := s.Reconstruct(1)
	assert.InDelta(t, 0, out[0], 1e-6, "previous encoding is subtracted")
	assert.InDelta(t, float64(dims), out[5], 1e-6)

	s.Remove(1)
	s.Remove(99)
	assert.Zero(t, s.Documents())
	assert.Empty(t, s.Search(basis(dims, 5), 10))
	for _, x := range s.matrix {
		assert.InDelta(t, 0, real(x), 1e-9)
		assert.InDelta(t, 0, imag(x), 1e-9)
	}
}

func TestFitsVectors(t *testing.T) {
	s := NewStore(4, nil)
	s.Encode(1, []float32{1, 2, 3, 4, 5, 6})
	s.Encode(2, []float32{1})
	assert.Equal(t, 2, s.Documents())
	assert.Len(t, s.Search([]float32{1, 0, 0, 0, 0, 0, 0}, -1), 2)
}

func TestScore_RecordsCompression(t *testing.T) {
	s := NewStore(8, nil)
	s.Encode(1, basis(8, 0))

	candidates := []*core.Chunk{{Id: 1}, {Id: 2}}
	qc := &core.QueryContext{}
	out, err := s.Score(context.Background(), qc, candidates)
	require.NoError(t, err)
	assert.Equal(t, candidates, out)

	v, ok := qc.Signal(core.SignalCompression)
	require.True(t, ok)
	assert.InDelta(t, 0.125, v, 1e-9)
}

func TestConcurrentEncodeAndSearch(t *testing.T) {
	s := NewStore(16, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(id int) {
			defer wg.Done()
			s.Encode(core.ID(id), basis(16, id))
		}(i + 1)
		go func() {
			defer wg.Done()
			s.Search(basis(16, 0), 3)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, s.Documents())
}

package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/veritas/ai/mock"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var corpus = []struct {
	doc     core.ID
	content string
}{
	{1, "Solar panel efficiency improved steadily as silicon cells matured."},
	{1, "Panel mounting hardware is sold separately."},
	{2, "Wind turbine output depends on blade length and wind speed."},
	{2, "Offshore wind farms reduce visual impact."},
	{3, "Battery storage smooths solar and wind generation peaks."},
}

func seedCorpus(t *testing.T, repos *badger.MemoryRepositories) []*core.Chunk {
	t.Helper()
	chunks := make([]*core.Chunk, len(corpus))
	for i, c := range corpus {
		chunks[i] = &core.Chunk{
			DocumentId: c.doc,
			ChunkIndex: i,
			Content:    c.content,
			Vector:     mock.WordVector(c.content, mock.DefaultDimensions),
		}
	}
	added, err := repos.Chunks.AddChunks(context.Background(), chunks...)
	require.NoError(t, err)
	return added
}

func TestNewHybrid(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		h, err := NewHybrid(repos.Chunks, embedder)
		require.NoError(t, err)
		assert.NotNil(t, h)
		assert.Equal(t, DefaultFetchMultiplier, h.fetchMultiplier)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		h, err := NewHybrid(repos.Chunks, embedder, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, h.logger)
	})

	t.Run("custom weights", func(t *testing.T) {
		h, err := NewHybrid(repos.Chunks, embedder, WithWeights(1, 0), WithBM25(1.2, 0.5), WithFetchMultiplier(5))
		require.NoError(t, err)
		assert.Equal(t, 1.0, h.lexical.VectorWeight)
		assert.Equal(t, 1.2, h.lexical.K1)
		assert.Equal(t, 5, h.fetchMultiplier)
	})

	t.Run("invalid weights", func(t *testing.T) {
		_, err := NewHybrid(repos.Chunks, embedder, WithWeights(0, 0))
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("nil chunk repository", func(t *testing.T) {
		_, err := NewHybrid(nil, embedder)
		assert.Equal(t, ErrChunkRepositoryRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewHybrid(repos.Chunks, nil)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	h, err := NewHybrid(repos.Chunks, mock.NewMockEmbedder(), WithLogger(slog.Default()))
	require.NoError(t, err)

	results, err := h.Retrieve(context.Background(), &core.QueryContext{Query: "solar"}, 5)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRetrieve_RanksRelevantFirst(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	seedCorpus(t, repos)

	h, err := NewHybrid(repos.Chunks, mock.NewMockEmbedder())
	require.NoError(t, err)

	qc := &core.QueryContext{Query: "solar panel efficiency"}
	results, err := h.Retrieve(context.Background(), qc, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, corpus[0].content, results[0].Content)
	assert.NotEmpty(t, qc.Vector, "query vector is kept for later stages")
	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestRetrieve_FewerThanLimit(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	seedCorpus(t, repos)

	h, err := NewHybrid(repos.Chunks, mock.NewMockEmbedder())
	require.NoError(t, err)

	results, err := h.Retrieve(context.Background(), &core.QueryContext{Query: "wind"}, 50)
	require.NoError(t, err)
	assert.Len(t, results, len(corpus))
}

func TestRetrieve_RespectsSelection(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()
	seedCorpus(t, repos)

	h, err := NewHybrid(repos.Chunks, mock.NewMockEmbedder())
	require.NoError(t, err)

	qc := &core.QueryContext{Query: "solar panel", Selection: core.NewSelection(2)}
	results, err := h.Retrieve(context.Background(), qc, 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, core.ID(2), r.DocumentId)
	}
}

func TestRetrieve_EmbeddingError(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("backend down")
	}
	h, err := NewHybrid(repos.Chunks, embedder)
	require.NoError(t, err)

	_, err = h.Retrieve(context.Background(), &core.QueryContext{Query: "solar"}, 5)
	assert.Error(t, err)
}

func TestRetrieve_ZeroLimit(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	embedder := mock.NewMockEmbedder()
	h, err := NewHybrid(repos.Chunks, embedder)
	require.NoError(t, err)

	results, err := h.Retrieve(context.Background(), &core.QueryContext{Query: "solar"}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, embedder.CallCount())
}

func TestLexical_StableOnTies(t *testing.T) {
	candidates := []*core.Chunk{
		{Id: 1, Content: "alpha", Similarity: 0.5},
		{Id: 2, Content: "beta", Similarity: 0.5},
		{Id: 3, Content: "gamma", Similarity: 0.5},
	}
	out, err := NewLexical().Score(context.Background(), &core.QueryContext{Query: "delta"}, candidates)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, core.ID(1), out[0].Id)
	assert.Equal(t, core.ID(2), out[1].Id)
	assert.Equal(t, core.ID(3), out[2].Id)

	// Inputs are not modified
	assert.Zero(t, candidates[0].Score)
}

func TestLexical_LexicalMatchBreaksVectorTie(t *testing.T) {
	candidates := []*core.Chunk{
		{Id: 1, Content: "nothing relevant here", Similarity: 0.5},
		{Id: 2, Content: "the reactor coolant loop", Similarity: 0.5},
	}
	out, err := NewLexical().Score(context.Background(), &core.QueryContext{Query: "reactor coolant"}, candidates)
	require.NoError(t, err)
	assert.Equal(t, core.ID(2), out[0].Id)
	assert.InDelta(t, 0.4, out[0].Score, 1e-6)
}

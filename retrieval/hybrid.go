package retrieval

import (
	"context"
	"log/slog"

	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

// DefaultFetchMultiplier is how many vector candidates are fetched per
// requested result before lexical reranking.
const DefaultFetchMultiplier = 3

// Hybrid retrieves chunks by vector similarity and reranks them lexically.
type Hybrid struct {
	chunks          storage.ChunkRepository
	embedder        ai.Embedder
	lexical         *Lexical
	fetchMultiplier int
	logger          *slog.Logger
}

// Option configures a Hybrid retriever.
type Option func(*Hybrid) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hybrid) error {
		if logger == nil {
			logger = slog.Default()
		}
		h.logger = logger
		return nil
	}
}

// WithWeights sets the vector and lexical blend weights.
func WithWeights(vector, lexical float64) Option {
	return func(h *Hybrid) error {
		if vector < 0 || lexical < 0 || vector+lexical == 0 {
			return ErrInvalidWeights
		}
		h.lexical.VectorWeight = vector
		h.lexical.LexicalWeight = lexical
		return nil
	}
}

// WithBM25 sets the BM25 term saturation and length normalisation parameters.
func WithBM25(k1, b float64) Option {
	return func(h *Hybrid) error {
		h.lexical.K1 = k1
		h.lexical.B = b
		return nil
	}
}

// WithFetchMultiplier sets how many vector candidates are fetched per result.
// Values below 1 are ignored.
func WithFetchMultiplier(n int) Option {
	return func(h *Hybrid) error {
		if n >= 1 {
			h.fetchMultiplier = n
		}
		return nil
	}
}

// NewHybrid creates a hybrid retriever.
func NewHybrid(chunks storage.ChunkRepository, embedder ai.Embedder, opts ...Option) (*Hybrid, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	h := &Hybrid{
		chunks:          chunks,
		embedder:        embedder,
		lexical:         NewLexical(),
		fetchMultiplier: DefaultFetchMultiplier,
		logger:          slog.Default().With("component", "hybrid-retriever"),
	}

	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	return h, nil
}

// Retrieve returns up to limit chunks for the query, restricted to the
// selection carried by qc. The query is embedded when qc has no vector yet
// and the vector is stored back on qc for later stages. An empty corpus
// yields an empty slice.
func (h *Hybrid) Retrieve(ctx context.Context, qc *core.QueryContext, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return []*core.Chunk{}, nil
	}

	if len(qc.Vector) == 0 {
		vec, err := h.embedder.EmbedText(ctx, qc.Query)
		if err != nil {
			h.logger.Error("error generating embedding for query", "err", err)
			return nil, err
		}
		qc.Vector = vec
	}

	candidates, err := h.chunks.FindSimilar(ctx, qc.Vector, limit*h.fetchMultiplier, qc.Selection)
	if err != nil {
		h.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	if len(candidates) == 0 {
		return []*core.Chunk{}, nil
	}

	ranked, err := h.lexical.Score(ctx, qc, candidates)
	if err != nil {
		return nil, err
	}
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	h.logger.Debug("hybrid retrieval", "candidates", len(candidates), "returned", len(ranked))
	return ranked, nil
}

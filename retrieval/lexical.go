package retrieval

import (
	"context"
	"slices"

	"github.com/poiesic/veritas/core"
)

// Lexical reranks candidates by blending their vector similarity with a
// BM25 score computed over the candidate set itself.
type Lexical struct {
	VectorWeight  float64
	LexicalWeight float64
	K1            float64
	B             float64
}

var _ core.Scorer = (*Lexical)(nil)

// NewLexical returns a lexical scorer with a 60/40 vector/lexical blend.
func NewLexical() *Lexical {
	return &Lexical{
		VectorWeight:  0.6,
		LexicalWeight: 0.4,
		K1:            DefaultK1,
		B:             DefaultB,
	}
}

// Score returns copies of candidates ordered by the blended score, which is
// also stored in Score. Both components are min-max normalised over the
// candidate set; equal scores keep their incoming order.
func (l *Lexical) Score(_ context.Context, qc *core.QueryContext, candidates []*core.Chunk) ([]*core.Chunk, error) {
	if len(candidates) == 0 {
		return []*core.Chunk{}, nil
	}

	docs := make([][]string, len(candidates))
	sims := make([]float64, len(candidates))
	for i, c := range candidates {
		docs[i] = Tokenize(c.Content)
		sims[i] = c.Similarity
	}
	lexical := minMax(bm25(Tokenize(qc.Query), docs, l.K1, l.B))
	vector := minMax(sims)

	out := make([]*core.Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.Clone()
		out[i].Score = l.VectorWeight*vector[i] + l.LexicalWeight*lexical[i]
	}
	slices.SortStableFunc(out, func(a, b *core.Chunk) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out, nil
}

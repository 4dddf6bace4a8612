package retrieval

import (
	"context"
	"log/slog"

	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

// DefaultGraphLimit caps the number of chunks recovered by expansion.
const DefaultGraphLimit = 20

// GraphExpander adds chunks of documents related to the candidates'
// documents. It never fails: a missing or broken relation store leaves the
// candidates untouched.
type GraphExpander struct {
	relations storage.RelationStore
	chunks    storage.ChunkRepository
	kinds     []string
	limit     int
	logger    *slog.Logger
}

// NewGraphExpander creates an expander. relations may be nil, in which
// case Expand is a passthrough.
func NewGraphExpander(relations storage.RelationStore, chunks storage.ChunkRepository, logger *slog.Logger) *GraphExpander {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphExpander{
		relations: relations,
		chunks:    chunks,
		kinds:     []string{core.RelationCites, core.RelationAuthoredBy, core.RelationSimilarTo},
		limit:     DefaultGraphLimit,
		logger:    logger.With("component", "graph-expander"),
	}
}

// Expand returns candidates followed by related chunks not already present.
// Related chunks get their cosine similarity to the query vector as both
// Similarity and Score, and are restricted to the selection in qc.
func (g *GraphExpander) Expand(ctx context.Context, qc *core.QueryContext, candidates []*core.Chunk) []*core.Chunk {
	if g == nil || g.relations == nil || g.chunks == nil || len(candidates) == 0 {
		return candidates
	}

	seen := make(map[core.ID]bool, len(candidates))
	seeds := make([]core.ID, 0, len(candidates))
	for _, c := range candidates {
		if !seen[c.Id] {
			seen[c.Id] = true
			seeds = append(seeds, c.Id)
		}
	}

	ids, err := g.relations.RelatedChunks(ctx, seeds, g.kinds, g.limit, qc.Selection)
	if err != nil {
		g.logger.Warn("graph expansion failed, continuing without it", "err", err)
		return candidates
	}
	if len(ids) == 0 {
		return candidates
	}

	related, err := g.chunks.GetChunks(ctx, ids...)
	if err != nil {
		g.logger.Warn("error loading related chunks", "count", len(ids), "err", err)
		return candidates
	}

	out := make([]*core.Chunk, len(candidates), len(candidates)+len(related))
	copy(out, candidates)
	added := 0
	for _, c := range related {
		if seen[c.Id] || !qc.Selection.Allows(c.DocumentId) {
			continue
		}
		seen[c.Id] = true
		c.Similarity = core.Cosine(qc.Vector, c.Vector)
		c.Score = c.Similarity
		out = append(out, c)
		added++
	}
	g.logger.Debug("graph expansion", "seeds", len(seeds), "added", added)
	return out
}

package reembed

import (
	"context"

	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

const (
	// DefaultBatchSize is the default number of chunks fetched per batch
	DefaultBatchSize = 100
)

// ChunkIterator pages through every chunk in ID order.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks to fetch in each batch (must be > 0)
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of chunks with an ID above after.
// Iteration stops on the first error from fn or when ctx ends.
func (it *ChunkIterator) ForEach(ctx context.Context, after core.ID, fn func([]*core.Chunk) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := it.repo.ChunksAfter(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		after = batch[len(batch)-1].Id
		if len(batch) < it.batchSize {
			return nil
		}
	}
}

package badger

import (
	"cmp"
	"context"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	idSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}

	return &ChunkRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *ChunkRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddChunks stores chunks, assigning IDs from the sequence.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			id, err := nextID(r.idSeq)
			if err != nil {
				return err
			}
			chunk.Id = id

			if err := tx.Set(makeChunkKey(chunk.Id), storage.MarshalChunk(chunk)); err != nil {
				return err
			}
			if err := tx.Set(makeChunkDocKey(chunk.DocumentId, chunk.Id), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// UpdateChunks replaces stored chunks. The owning document cannot change.
func (r *ChunkRepository) UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Id)
			old, err := readChunk(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return storage.ErrNotFound
			}
			chunk.DocumentId = old.DocumentId
			if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetChunks retrieves chunks by ID in the requested order.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListByDocument returns a document's chunks ordered by ChunkIndex.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.documentChunks(ctx, tx, documentID)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(result, func(a, b *core.Chunk) int {
		return cmp.Compare(a.ChunkIndex, b.ChunkIndex)
	})
	return result, nil
}

// ChunksAfter returns up to limit chunks with an ID greater than afterID.
func (r *ChunkRepository) ChunksAfter(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 || afterID == ^core.ID(0) {
		return nil, nil
	}

	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkKey(afterID + 1)); iter.Valid() && len(result) < limit; iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				chunk, err := storage.UnmarshalChunk(val)
				if err != nil {
					return err
				}
				result = append(result, chunk)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return result, err
}

// DeleteByDocument removes every chunk of a document.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID core.ID) ([]core.ID, error) {
	var removed []core.ID
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var indexKeys [][]byte
		err := scan(ctx, tx, makePartialChunkDocKey(documentID), func(key, _ []byte) error {
			indexKeys = append(indexKeys, key)
			return nil
		})
		if err != nil {
			return err
		}

		for _, key := range indexKeys {
			id := idFromKey(key)
			if err := tx.Delete(makeChunkKey(id)); err != nil {
				return err
			}
			if err := tx.Delete(key); err != nil {
				return err
			}
			removed = append(removed, id)
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// FindSimilar returns the limit chunks closest to vector by cosine
// similarity. With an active selection only the selected documents' chunks
// are read.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, limit int, sel core.Selection) ([]*core.Chunk, error) {
	if limit <= 0 || len(vector) == 0 {
		return nil, nil
	}

	var results []*core.Chunk
	consider := func(chunk *core.Chunk) {
		// Skip chunks without embeddings
		if len(chunk.Vector) == 0 || !sel.Allows(chunk.DocumentId) {
			return
		}
		chunk.Similarity = core.Cosine(vector, chunk.Vector)
		chunk.Score = chunk.Similarity
		results = append(results, chunk)
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if sel.Active() {
			for _, docID := range sel.IDs() {
				chunks, err := r.documentChunks(ctx, tx, docID)
				if err != nil {
					return err
				}
				for _, chunk := range chunks {
					consider(chunk)
				}
			}
			return nil
		}

		return scan(ctx, tx, []byte(chunkPrefix), func(_, val []byte) error {
			chunk, err := storage.UnmarshalChunk(val)
			if err != nil {
				return err
			}
			consider(chunk)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending, lower ID first on ties
	slices.SortFunc(results, func(a, b *core.Chunk) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (r *ChunkRepository) documentChunks(ctx context.Context, tx *badger.Txn, documentID core.ID) ([]*core.Chunk, error) {
	var ids []core.ID
	err := scan(ctx, tx, makePartialChunkDocKey(documentID), func(key, _ []byte) error {
		ids = append(ids, idFromKey(key))
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]*core.Chunk, 0, len(ids))
	for _, id := range ids {
		chunk, err := readChunk(tx, makeChunkKey(id))
		if err != nil {
			return nil, err
		}
		if chunk != nil {
			chunks = append(chunks, chunk)
		}
	}
	return chunks, nil
}

// readChunk returns nil, nil when the key is absent.
func readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var err error
		chunk, err = storage.UnmarshalChunk(val)
		return err
	})
	return chunk, err
}

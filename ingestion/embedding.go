package ingestion

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/veritas/ai"
)

// DefaultBatchSize is the number of texts sent per embedding request.
const DefaultBatchSize = 32

// batchEmbedder generates embeddings for many texts by submitting
// fixed-size batches to a worker pool.
type batchEmbedder struct {
	embedder  ai.Embedder
	pool      *ants.Pool
	batchSize int
}

// embed returns one vector per text, in order. The first failing batch
// cancels the others.
func (b *batchEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	if len(texts) == 0 {
		return vectors, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			embeddings, err := b.embedder.EmbedTexts(ctx, texts[start:end])
			if err != nil {
				fail(err)
				return
			}
			if len(embeddings) != end-start {
				fail(fmt.Errorf("embedding result mismatch. expected %d, received %d", end-start, len(embeddings)))
				return
			}
			copy(vectors[start:end], embeddings)
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return vectors, nil
}

package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

// BatchProcessor regenerates embeddings for batches of chunks and
// documents.
type BatchProcessor struct {
	chunks         storage.ChunkRepository
	documents      storage.DocumentRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(chunks storage.ChunkRepository, documents storage.DocumentRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		chunks:         chunks,
		documents:      documents,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// ProcessChunks re-embeds chunks and stores the normalised vectors.
func (bp *BatchProcessor) ProcessChunks(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := bp.embed(ctx, texts)
	if err != nil {
		return err
	}
	for i := range chunks {
		chunks[i].Vector = vectors[i]
	}
	if err := bp.chunks.UpdateChunks(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to update chunks: %w", err)
	}
	return nil
}

// ProcessDocuments re-embeds whole documents.
func (bp *BatchProcessor) ProcessDocuments(ctx context.Context, docs []*core.Document) error {
	if len(docs) == 0 {
		return nil
	}
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}
	vectors, err := bp.embed(ctx, texts)
	if err != nil {
		return err
	}
	for i := range docs {
		docs[i].Vector = vectors[i]
	}
	if err := bp.documents.UpdateDocuments(ctx, docs...); err != nil {
		return fmt.Errorf("failed to update documents: %w", err)
	}
	return nil
}

func (bp *BatchProcessor) embed(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(embeddings))
	}
	for i := range embeddings {
		embeddings[i] = core.Normalize(embeddings[i])
	}
	return embeddings, nil
}

// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package reembed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

// CheckpointType names the checkpoint written by a reembedding run.
const CheckpointType = "reembed"

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks to process in each batch
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of retry attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Option configures a Reembedder.
type Option func(*Reembedder) error

// WithCheckpoints makes runs resumable by persisting progress after
// every batch.
func WithCheckpoints(checkpoints storage.CheckpointRepository) Option {
	return func(r *Reembedder) error {
		r.checkpoints = checkpoints
		return nil
	}
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reembedder) error {
		if logger != nil {
			r.logger = logger
		}
		return nil
	}
}

// Reembedder orchestrates the reembedding of every chunk and document.
type Reembedder struct {
	chunks      storage.ChunkRepository
	documents   storage.DocumentRepository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	iterator    *ChunkIterator
	logger      *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(chunks storage.ChunkRepository, documents storage.DocumentRepository, embedder ai.Embedder, config *Config, progress io.Writer, opts ...Option) (*Reembedder, error) {
	switch {
	case chunks == nil:
		return nil, ErrChunkRepositoryRequired
	case documents == nil:
		return nil, ErrDocumentRepositoryRequired
	case embedder == nil:
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	r := &Reembedder{
		chunks:    chunks,
		documents: documents,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(chunks, documents, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewChunkIterator(chunks, config.BatchSize),
		logger:    slog.Default().With("component", "reembedder"),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Run re-embeds every chunk, then every document. With checkpoints
// configured, an interrupted run continues after the last completed batch
// and the checkpoint is removed once the run succeeds.
func (r *Reembedder) Run(ctx context.Context) error {
	total, err := r.chunks.CountChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in database (0 chunks)\n")
		return nil
	}

	checkpoint, err := r.loadCheckpoint(ctx)
	if err != nil {
		return err
	}
	if checkpoint.Processed > 0 {
		fmt.Fprintf(r.progress, "Resuming reembedding after %d of %d chunks\n", checkpoint.Processed, total)
	} else {
		fmt.Fprintf(r.progress, "Starting reembedding of %d chunks (batch size: %d)\n", total, r.config.BatchSize)
	}

	tracker := NewProgressTracker(r.progress, "chunks", total, r.config.ReportInterval)
	tracker.Start(checkpoint.Processed)

	err = r.iterator.ForEach(ctx, checkpoint.LastID, func(batch []*core.Chunk) error {
		if err := r.processor.ProcessChunks(ctx, batch); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		checkpoint.LastID = batch[len(batch)-1].Id
		checkpoint.Processed += len(batch)
		tracker.Update(checkpoint.Processed)
		return r.saveCheckpoint(ctx, checkpoint)
	})
	if err != nil {
		return err
	}
	tracker.Finish()

	documents, err := r.reembedDocuments(ctx)
	if err != nil {
		return err
	}
	if r.checkpoints != nil {
		if err := r.checkpoints.DeleteCheckpoint(ctx, CheckpointType); err != nil {
			return fmt.Errorf("failed to clear checkpoint: %w", err)
		}
	}

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %d chunks and %d documents in %v (%.1f chunks/sec)\n",
		total, documents, elapsed.Round(time.Second), float64(total)/elapsed.Seconds())
	r.logger.Info("reembedding complete", "chunks", total, "documents", documents, "elapsed", elapsed)
	return nil
}

func (r *Reembedder) reembedDocuments(ctx context.Context) (int, error) {
	docs, err := r.documents.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	size := max(r.config.BatchSize, 1)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		if err := r.processor.ProcessDocuments(ctx, docs[start:end]); err != nil {
			return 0, fmt.Errorf("failed to process documents: %w", err)
		}
	}
	return len(docs), nil
}

func (r *Reembedder) loadCheckpoint(ctx context.Context) (*core.Checkpoint, error) {
	fresh := &core.Checkpoint{ProcessorType: CheckpointType}
	if r.checkpoints == nil {
		return fresh, nil
	}
	checkpoint, err := r.checkpoints.LoadCheckpoint(ctx, CheckpointType)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if checkpoint == nil {
		return fresh, nil
	}
	r.logger.Info("resuming from checkpoint", "lastID", checkpoint.LastID, "processed", checkpoint.Processed)
	return checkpoint, nil
}

func (r *Reembedder) saveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if r.checkpoints == nil {
		return nil
	}
	if err := r.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

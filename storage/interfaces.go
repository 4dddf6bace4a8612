package storage

import (
	"context"

	"github.com/poiesic/veritas/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository.
	Close() error
}

// DocumentRepository provides operations for managing uploaded documents.
type DocumentRepository interface {
	Repository
	// AddDocument stores a new document, assigning Id, ContentHash and
	// InsertedAt. Returns ErrDuplicateKey if a document with identical
	// content already exists.
	AddDocument(ctx context.Context, doc *core.Document) (*core.Document, error)

	// UpdateDocuments replaces stored documents.
	// Returns ErrNotFound if any document doesn't exist.
	UpdateDocuments(ctx context.Context, docs ...*core.Document) error

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocuments retrieves multiple documents by their IDs.
	// Returns only the documents that exist.
	GetDocuments(ctx context.Context, ids ...core.ID) ([]*core.Document, error)

	// ListDocuments returns every document ordered by ID.
	ListDocuments(ctx context.Context) ([]*core.Document, error)

	// DeleteDocument removes a document and its content hash index.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, id core.ID) error
}

// ChunkRepository provides operations for managing document chunks and
// vector search over them.
type ChunkRepository interface {
	Repository
	// AddChunks stores chunks, assigning IDs from a sequence.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks replaces stored chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) error

	// GetChunks retrieves chunks by ID, preserving the requested order.
	// Missing IDs are skipped.
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// ListByDocument returns a document's chunks ordered by ChunkIndex.
	ListByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// ChunksAfter returns up to limit chunks with an ID greater than
	// afterID, ordered by ID. Used for resumable batch processing.
	ChunksAfter(ctx context.Context, afterID core.ID, limit int) ([]*core.Chunk, error)

	// DeleteByDocument removes every chunk of a document and returns
	// the removed chunk IDs.
	DeleteByDocument(ctx context.Context, documentID core.ID) ([]core.ID, error)

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)

	// FindSimilar returns up to limit chunks ordered by cosine similarity
	// to vector, highest first, with Similarity and Score set. Only chunks
	// of documents allowed by sel are considered. Ties are broken by
	// ascending chunk ID.
	FindSimilar(ctx context.Context, vector []float32, limit int, sel core.Selection) ([]*core.Chunk, error)
}

// SynapseRepository persists usage-adaptive chunk weights.
type SynapseRepository interface {
	Repository
	// SaveSynapses upserts synapse records.
	SaveSynapses(ctx context.Context, synapses ...*core.Synapse) error

	// LoadSynapses returns every persisted synapse.
	LoadSynapses(ctx context.Context) ([]*core.Synapse, error)

	// DeleteSynapses removes synapse records. Missing IDs are ignored.
	DeleteSynapses(ctx context.Context, chunkIDs ...core.ID) error
}

// CheckpointRepository persists batch processor progress.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}

// RelationStore is the document relationship graph used for expansion.
type RelationStore interface {
	// AddDocument registers a document node and its chunk membership.
	AddDocument(ctx context.Context, doc *core.Document, chunks []*core.Chunk) error

	// AddRelations stores edges between documents. Duplicates are ignored.
	AddRelations(ctx context.Context, relations ...core.Relation) error

	// RelatedChunks follows one hop of the given relation kinds, in either
	// direction, from the documents owning chunkIDs and returns chunk IDs
	// of the related documents. Chunks already in chunkIDs are excluded,
	// only documents allowed by sel are returned and at most limit IDs are
	// produced, ordered by document and chunk index.
	RelatedChunks(ctx context.Context, chunkIDs []core.ID, kinds []string, limit int, sel core.Selection) ([]core.ID, error)

	// Relations returns every edge touching a document.
	Relations(ctx context.Context, documentID core.ID) ([]core.Relation, error)

	// DeleteDocument removes a document node with its chunks and edges.
	DeleteDocument(ctx context.Context, documentID core.ID) error

	// Close releases the underlying connection.
	Close() error
}

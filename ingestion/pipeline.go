package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/hologram"
	"github.com/poiesic/veritas/storage"
	"github.com/poiesic/veritas/synapse"
)

// DefaultSimilarThreshold is the document cosine at which two documents
// are linked as similar.
const DefaultSimilarThreshold = 0.8

// Pipeline orchestrates the ingestion and removal of documents.
type Pipeline struct {
	documentRepository storage.DocumentRepository
	chunkRepository    storage.ChunkRepository
	synapseRepository  storage.SynapseRepository
	relations          storage.RelationStore
	hologram           *hologram.Store
	memory             *synapse.Memory
	embeddingPool      *ants.Pool
	embedder           *batchEmbedder
	chunker            Chunker
	similarThreshold   float64
	logger             *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.embeddingPool != nil {
			p.embeddingPool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.embeddingPool = pool
		return nil
	}
}

// WithBatchSize sets how many texts are embedded per request.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return fmt.Errorf("batch size must be positive, got %d", size)
		}
		p.embedder.batchSize = size
		return nil
	}
}

// WithChunkBounds sets the minimum and maximum chunk length.
func WithChunkBounds(minLen, maxLen int) Option {
	return func(p *Pipeline) error {
		if minLen < 1 || maxLen < minLen {
			return fmt.Errorf("invalid chunk bounds %d..%d", minLen, maxLen)
		}
		p.chunker = Chunker{Min: minLen, Max: maxLen}
		return nil
	}
}

// WithSimilarThreshold sets the cosine above which documents are linked.
func WithSimilarThreshold(threshold float64) Option {
	return func(p *Pipeline) error {
		p.similarThreshold = threshold
		return nil
	}
}

// WithRelationStore registers documents in the relationship graph.
func WithRelationStore(relations storage.RelationStore) Option {
	return func(p *Pipeline) error {
		p.relations = relations
		return nil
	}
}

// WithHologram encodes document vectors into store.
func WithHologram(store *hologram.Store) Option {
	return func(p *Pipeline) error {
		p.hologram = store
		return nil
	}
}

// WithSynapses removes usage state of deleted chunks from the repository
// and, when memory is not nil, from the live cache.
func WithSynapses(repo storage.SynapseRepository, memory *synapse.Memory) Option {
	return func(p *Pipeline) error {
		p.synapseRepository = repo
		p.memory = memory
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	documentRepository storage.DocumentRepository,
	chunkRepository storage.ChunkRepository,
	provider ai.AIProvider,
	opts ...Option,
) (*Pipeline, error) {
	if documentRepository == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	embeddingPool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		documentRepository: documentRepository,
		chunkRepository:    chunkRepository,
		embeddingPool:      embeddingPool,
		embedder:           &batchEmbedder{embedder: provider.Embedder(), batchSize: DefaultBatchSize},
		chunker:            Chunker{Min: DefaultMinChunk, Max: DefaultMaxChunk},
		similarThreshold:   DefaultSimilarThreshold,
		logger:             slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.embedder.pool = p.embeddingPool
	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// Ingest stores a document with its chunks and embeddings and registers
// it with the graph and hologram. Identical content is rejected with
// ErrDuplicateDocument.
func (p *Pipeline) Ingest(ctx context.Context, filename, content string) (*core.Document, error) {
	text := Normalize(content)
	if text == "" {
		return nil, ErrEmptyDocument
	}
	filename = filepath.Base(filename)
	passages := p.chunker.Split(text)

	// The document vector goes first, followed by every chunk.
	texts := append([]string{text}, passages...)
	vectors, err := p.embedder.embed(ctx, texts)
	if err != nil {
		p.logger.Error("error generating embeddings", "document", filename, "err", err)
		return nil, err
	}

	doc, err := p.documentRepository.AddDocument(ctx, &core.Document{
		Filename: filename,
		Content:  text,
		Vector:   vectors[0],
		Metadata: ExtractMetadata(content, filename),
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateDocument, filename)
		}
		return nil, err
	}

	chunks := make([]*core.Chunk, len(passages))
	for i, passage := range passages {
		chunks[i] = &core.Chunk{
			DocumentId: doc.Id,
			ChunkIndex: i,
			Content:    passage,
			Metadata:   map[string]string{"chunk_type": "semantic"},
			Vector:     vectors[i+1],
		}
	}
	added, err := p.chunkRepository.AddChunks(ctx, chunks...)
	if err != nil {
		// Leave no document without chunks behind.
		if delErr := p.documentRepository.DeleteDocument(ctx, doc.Id); delErr != nil {
			p.logger.Error("error removing partially ingested document", "document", doc.Id, "err", delErr)
		}
		return nil, err
	}

	p.link(ctx, doc, added)
	if p.hologram != nil {
		p.hologram.Encode(doc.Id, doc.Vector)
	}
	p.logger.Info("ingested document", "document", doc.Id, "filename", filename, "chunks", len(added))
	return doc, nil
}

// link registers doc in the relationship graph and relates it to every
// existing document. Failures are logged.
func (p *Pipeline) link(ctx context.Context, doc *core.Document, chunks []*core.Chunk) {
	if p.relations == nil {
		return
	}
	if err := p.relations.AddDocument(ctx, doc, chunks); err != nil {
		p.logger.Warn("error registering document in graph", "document", doc.Id, "err", err)
		return
	}

	others, err := p.documentRepository.ListDocuments(ctx)
	if err != nil {
		p.logger.Warn("error listing documents for graph", "err", err)
		return
	}
	var edges []core.Relation
	for _, other := range others {
		if other.Id != doc.Id {
			edges = append(edges, p.relate(doc, other)...)
		}
	}
	if len(edges) == 0 {
		return
	}
	if err := p.relations.AddRelations(ctx, edges...); err != nil {
		p.logger.Warn("error storing document relations", "document", doc.Id, "err", err)
		return
	}
	p.logger.Debug("linked document", "document", doc.Id, "relations", len(edges))
}

// relate returns the edges between a new document and an existing one.
func (p *Pipeline) relate(doc, other *core.Document) []core.Relation {
	var edges []core.Relation
	if sharesAuthor(doc.Metadata, other.Metadata) {
		edges = append(edges, core.Relation{From: doc.Id, To: other.Id, Kind: core.RelationAuthoredBy})
	}
	if len(doc.Vector) > 0 && len(doc.Vector) == len(other.Vector) &&
		core.Cosine(doc.Vector, other.Vector) >= p.similarThreshold {
		edges = append(edges, core.Relation{From: doc.Id, To: other.Id, Kind: core.RelationSimilarTo})
	}
	if mentions(doc.Content, other.Filename) {
		edges = append(edges, core.Relation{From: doc.Id, To: other.Id, Kind: core.RelationCites})
	}
	if mentions(other.Content, doc.Filename) {
		edges = append(edges, core.Relation{From: other.Id, To: doc.Id, Kind: core.RelationCites})
	}
	return edges
}

func sharesAuthor(a, b map[string]string) bool {
	theirs := Authors(b)
	for _, author := range Authors(a) {
		for _, other := range theirs {
			if strings.EqualFold(author, other) {
				return true
			}
		}
	}
	return false
}

// mentions reports whether content names filename, with or without its
// extension. Stems shorter than four characters are ignored.
func mentions(content, filename string) bool {
	if filename == "" {
		return false
	}
	lower := strings.ToLower(content)
	name := strings.ToLower(filename)
	if strings.Contains(lower, name) {
		return true
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	return len(stem) >= 4 && stem != name && strings.Contains(lower, stem)
}

// Delete removes a document together with its chunks, their usage state,
// its graph node and its hologram entry. Returns storage.ErrNotFound for
// unknown documents.
func (p *Pipeline) Delete(ctx context.Context, id core.ID) error {
	if _, err := p.documentRepository.GetDocument(ctx, id); err != nil {
		return err
	}

	removed, err := p.chunkRepository.DeleteByDocument(ctx, id)
	if err != nil {
		return err
	}
	if p.memory != nil {
		p.memory.Forget(removed...)
	}
	if p.synapseRepository != nil && len(removed) > 0 {
		if err := p.synapseRepository.DeleteSynapses(ctx, removed...); err != nil {
			return err
		}
	}
	if p.relations != nil {
		if err := p.relations.DeleteDocument(ctx, id); err != nil {
			return err
		}
	}
	if p.hologram != nil {
		p.hologram.Remove(id)
	}
	if err := p.documentRepository.DeleteDocument(ctx, id); err != nil {
		return err
	}
	p.logger.Info("deleted document", "document", id, "chunks", len(removed))
	return nil
}

// Release releases resources including worker pools.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.embeddingPool != nil {
		p.embeddingPool.Release()
	}
}

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

package veritas

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/poiesic/veritas/ai"
	"github.com/poiesic/veritas/ai/openai"
	"github.com/poiesic/veritas/config"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/corrective"
	"github.com/poiesic/veritas/generation"
	"github.com/poiesic/veritas/hologram"
	"github.com/poiesic/veritas/ingestion"
	"github.com/poiesic/veritas/phase"
	"github.com/poiesic/veritas/pipeline"
	"github.com/poiesic/veritas/reembed"
	"github.com/poiesic/veritas/retrieval"
	"github.com/poiesic/veritas/storage"
	"github.com/poiesic/veritas/storage/badger"
	"github.com/poiesic/veritas/storage/sqlite"
	"github.com/poiesic/veritas/swarm"
	"github.com/poiesic/veritas/synapse"
	"github.com/poiesic/veritas/temporal"
)

// Database owns the stores, the AI provider and the process-wide scoring
// state shared by every query.
type Database struct {
	cfg            *config.Config
	backend        *badger.Backend
	documentRepo   storage.DocumentRepository
	chunkRepo      storage.ChunkRepository
	synapseRepo    storage.SynapseRepository
	checkpointRepo storage.CheckpointRepository
	relations      *sqlite.RelationStore
	provider       ai.AIProvider

	memory    *synapse.Memory
	hologram  *hologram.Store
	phase     *phase.Reranker
	swarm     *swarm.Reranker
	temporal  *temporal.Engine
	generator *generation.Generator

	logger *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	cfg      *config.Config
	provider ai.AIProvider
	inMemory bool
	logger   *slog.Logger
}

// WithConfig replaces the built-in settings.
func WithConfig(cfg *config.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.cfg = cfg
	}
}

// WithProvider uses provider instead of connecting to the configured
// OpenAI-compatible services. The Database closes it.
func WithProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// InMemory keeps every store in memory. Nothing survives Close.
func InMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens the database at filePath, or at the configured storage
// path when filePath is empty, and restores the synapse weights and the
// hologram from what is stored.
func NewDatabase(ctx context.Context, filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		cfg:    config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	cfg := options.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if filePath == "" {
		filePath = cfg.StoragePath()
	}
	relationsPath := cfg.RelationsPath()
	if options.inMemory {
		filePath = ""
		relationsPath = sqlite.MemoryPath
	}

	db := &Database{cfg: cfg, provider: options.provider, logger: options.logger}
	if err := db.open(filePath, relationsPath, options.inMemory); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.restore(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (db *Database) open(filePath, relationsPath string, inMemory bool) error {
	backend, err := badger.OpenBackend(filePath, inMemory)
	if err != nil {
		return err
	}
	db.backend = backend

	documents, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return err
	}
	db.documentRepo = documents

	chunks, err := badger.NewChunkRepository(backend)
	if err != nil {
		return err
	}
	db.chunkRepo = chunks
	db.synapseRepo = badger.NewSynapseRepository(backend)
	db.checkpointRepo = badger.NewCheckpointRepository(backend)

	if db.relations, err = sqlite.Open(relationsPath); err != nil {
		return err
	}

	if db.provider == nil {
		if db.provider, err = openai.NewProvider(db.cfg.AIConfig()); err != nil {
			return err
		}
	}

	db.generator, err = generation.NewGenerator(db.provider,
		generation.WithConfig(db.cfg.GenerationConfig()),
		generation.WithLogger(db.logger.With("component", "generator")))
	if err != nil {
		return err
	}

	db.memory = synapse.NewMemory(db.synapseRepo, synapse.WithLogger(db.logger.With("component", "synapse-memory")))
	db.hologram = hologram.NewStore(db.cfg.Retrieval.Dimensions, db.logger)
	db.phase = phase.NewReranker(phase.WithLogger(db.logger.With("component", "phase-reranker")))
	db.swarm = swarm.NewReranker(swarm.WithConfig(db.cfg.SwarmConfig()), swarm.WithLogger(db.logger.With("component", "swarm")))
	db.temporal = temporal.NewEngine(temporal.DefaultConfig(), db.logger)
	return nil
}

// restore reloads the synapse weights and re-encodes every document
// vector into the hologram.
func (db *Database) restore(ctx context.Context) error {
	if err := db.memory.Restore(ctx); err != nil {
		return fmt.Errorf("restoring synapses: %w", err)
	}
	docs, err := db.documentRepo.ListDocuments(ctx)
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	for _, doc := range docs {
		db.hologram.Encode(doc.Id, doc.Vector)
	}
	db.logger.Debug("database restored", "documents", len(docs), "synapses", db.memory.Stats().Weights)
	return nil
}

// Close releases everything NewDatabase opened. Every component is closed
// even when an earlier one fails; the errors are joined.
func (db *Database) Close() error {
	var errs []error
	if db.generator != nil {
		db.generator.Close()
	}
	if db.provider != nil {
		if err := db.provider.Close(); err != nil {
			db.logger.Error("error closing AI provider", "err", err)
		}
	}
	if db.relations != nil {
		if err := db.relations.Close(); err != nil {
			db.logger.Error("error closing relation store", "err", err)
			errs = append(errs, err)
		}
	}

	repos := []storage.Repository{db.synapseRepo, db.chunkRepo, db.documentRepo}
	for _, repo := range repos {
		if repo == nil {
			continue
		}
		if err := repo.Close(); err != nil {
			db.logger.Error("error closing repository", "err", err)
			errs = append(errs, err)
		}
	}

	if db.backend != nil {
		if err := db.backend.Close(); err != nil {
			db.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the settings the database was opened with.
func (db *Database) Config() *config.Config {
	return db.cfg
}

func (db *Database) DocumentRepository() storage.DocumentRepository {
	return db.documentRepo
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.chunkRepo
}

func (db *Database) CheckpointRepository() storage.CheckpointRepository {
	return db.checkpointRepo
}

func (db *Database) RelationStore() storage.RelationStore {
	return db.relations
}

// NewPipeline assembles a query pipeline over the shared stages: hybrid
// retrieval, graph expansion, the phase, memory, compression and swarm
// rerankers, then temporal analysis and generation. Answers are checked on
// the web when a SearXNG instance is configured.
func (db *Database) NewPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	retriever, err := retrieval.NewHybrid(db.chunkRepo, db.provider.Embedder(),
		retrieval.WithWeights(db.cfg.Retrieval.VectorWeight, db.cfg.Retrieval.LexicalWeight),
		retrieval.WithLogger(db.logger.With("component", "hybrid-retriever")))
	if err != nil {
		return nil, err
	}

	base := []pipeline.Option{
		pipeline.WithConfig(db.cfg.PipelineConfig()),
		pipeline.WithLogger(db.logger.With("component", "pipeline")),
		pipeline.WithGraph(retrieval.NewGraphExpander(db.relations, db.chunkRepo, db.logger)),
		pipeline.WithRerankers(
			pipeline.Stage{Name: pipeline.StagePhase, Scorer: db.phase},
			pipeline.Stage{Name: pipeline.StageMemory, Scorer: db.memory},
			pipeline.Stage{Name: pipeline.StageCompress, Scorer: db.hologram},
			pipeline.Stage{Name: pipeline.StageSwarm, Scorer: db.swarm},
		),
		pipeline.WithTemporal(db.temporal),
	}
	if db.cfg.WebEnabled() {
		client, err := corrective.NewClient(db.cfg.SearchConfig(), db.logger)
		if err != nil {
			return nil, err
		}
		corrector, err := corrective.NewCorrector(client,
			corrective.WithConfig(db.cfg.CorrectiveConfig()),
			corrective.WithLogger(db.logger.With("component", "corrector")))
		if err != nil {
			return nil, err
		}
		base = append(base, pipeline.WithCorrector(corrector))
	}
	return pipeline.New(retriever, db.generator, db.provider.Embedder(), append(base, opts...)...)
}

// NewIngestionPipeline returns a pipeline that stores documents and keeps
// the graph, hologram and synapse memory in step. Callers must Release it.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	base := append(db.cfg.IngestionOptions(),
		ingestion.WithRelationStore(db.relations),
		ingestion.WithHologram(db.hologram),
		ingestion.WithSynapses(db.synapseRepo, db.memory),
		ingestion.WithLogger(db.logger),
	)
	return ingestion.NewPipeline(db.documentRepo, db.chunkRepo, db.provider, append(base, opts...)...)
}

// NewReembedder returns a resumable re-embedding run writing progress to
// progress. The hologram is rebuilt by the next NewDatabase.
func (db *Database) NewReembedder(progress io.Writer) (*reembed.Reembedder, error) {
	return reembed.NewReembedder(db.chunkRepo, db.documentRepo, db.provider.Embedder(),
		db.cfg.ReembedConfig(), progress,
		reembed.WithCheckpoints(db.checkpointRepo),
		reembed.WithLogger(db.logger.With("component", "reembedder")))
}

// Documents lists every stored document ordered by ID.
func (db *Database) Documents(ctx context.Context) ([]*core.Document, error) {
	return db.documentRepo.ListDocuments(ctx)
}

// SimilarDocument is a document ranked by its correlation with a query in
// the hologram.
type SimilarDocument struct {
	Document   *core.Document
	Similarity float64
}

// Similar embeds query and returns the k documents whose hologram traces
// correlate with it most strongly. Documents deleted since encoding are
// skipped.
func (db *Database) Similar(ctx context.Context, query string, k int) ([]SimilarDocument, error) {
	if err := core.ValidateQuery(query); err != nil {
		return nil, err
	}
	vector, err := db.provider.Embedder().EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	matches := db.hologram.Search(vector, k)
	out := make([]SimilarDocument, 0, len(matches))
	for _, m := range matches {
		doc, err := db.documentRepo.GetDocument(ctx, m.DocumentID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, SimilarDocument{Document: doc, Similarity: m.Similarity})
	}
	return out, nil
}

// Association is a chunk co-accessed with another one, and how strongly.
type Association struct {
	ChunkID  core.ID
	Strength float64
}

// Associations lists the chunks associated with id, strongest first.
func (db *Database) Associations(id core.ID) []Association {
	ids := db.memory.Associated(id, 0)
	out := make([]Association, 0, len(ids))
	for _, other := range ids {
		out = append(out, Association{ChunkID: other, Strength: db.memory.Association(id, other)})
	}
	slices.SortStableFunc(out, func(a, b Association) int {
		return cmp.Compare(b.Strength, a.Strength)
	})
	return out
}

// Stats is a read-only summary of what the database holds.
type Stats struct {
	Documents        int
	Chunks           int
	Synapses         synapse.Stats
	Strength         float64 // Mean synapse weight
	Encoded          int     // Documents in the hologram
	CompressionRatio float64 // Hologram compression ratio
	Fidelity         float64 // Mean cosine of reconstructed against stored document vectors
	Consensus        float64 // Last swarm consensus
}

// Stats summarises the stores and the in-memory scoring state.
func (db *Database) Stats(ctx context.Context) (*Stats, error) {
	docs, err := db.documentRepo.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := db.chunkRepo.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Documents:        len(docs),
		Chunks:           chunks,
		Synapses:         db.memory.Stats(),
		Strength:         db.memory.Strength(),
		Encoded:          db.hologram.Documents(),
		CompressionRatio: db.hologram.CompressionRatio(),
		Fidelity:         db.fidelity(docs),
		Consensus:        db.swarm.Consensus(),
	}, nil
}

// fidelity averages how well the hologram reconstructs each document's
// vector. Documents without a vector or trace are left out.
func (db *Database) fidelity(docs []*core.Document) float64 {
	sum, n := 0.0, 0
	for _, doc := range docs {
		rec := db.hologram.Reconstruct(doc.Id)
		if rec == nil || len(doc.Vector) == 0 {
			continue
		}
		approx := make([]float32, len(rec))
		for i, x := range rec {
			approx[i] = float32(x)
		}
		sum += core.Cosine(approx, core.Fit(doc.Vector, len(approx)))
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

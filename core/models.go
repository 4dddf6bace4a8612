package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Document is an uploaded source text. Its chunks, synapse records, graph
// nodes and hologram entry are removed together with it.
type Document struct {
	Id          ID
	Filename    string
	Content     string
	ContentHash ID                // IDFromContent(Content), used to reject duplicate uploads
	Vector      []float32         // Whole-document embedding
	Metadata    map[string]string // "authors", "year", "institutions"
	InsertedAt  time.Time
}

// Chunk is a contiguous passage of a document, the unit of retrieval.
// Everything except Similarity and Score is immutable after ingestion.
type Chunk struct {
	Id         ID
	DocumentId ID
	ChunkIndex int
	Content    string
	Metadata   map[string]string
	Vector     []float32

	// Similarity is the raw cosine between the query and Vector, set by
	// vector retrieval and never modified by later stages.
	Similarity float64
	// Score is the relevance estimate of the most recent stage.
	Score float64
}

// Clone returns a shallow copy carrying its own transient scores. Vector
// and Metadata are shared since they are never mutated after ingestion.
func (c *Chunk) Clone() *Chunk {
	cp := *c
	return &cp
}

// Synapse is the persisted usage state of a single chunk.
type Synapse struct {
	ChunkId     ID
	Weight      float64
	AccessCount int
	LastAccess  time.Time
}

// CausalEvent is a dated, cause-or-effect bearing sentence found in a chunk.
type CausalEvent struct {
	EventId     string
	Timestamp   time.Time
	Description string
	Confidence  float64
	DocumentId  ID
	ChunkId     ID
}

// Relation kinds between documents in the relationship graph.
const (
	RelationCites      = "cites"
	RelationAuthoredBy = "authored_by"
	RelationSimilarTo  = "similar_to"
)

// Relation is a directed edge between two documents.
type Relation struct {
	From ID
	To   ID
	Kind string
}

// Checkpoint records how far a batch processor has advanced so an
// interrupted run can resume.
type Checkpoint struct {
	ProcessorType string
	LastID        ID
	Processed     int
	UpdatedAt     time.Time
}

package storage

import (
	"testing"
	"time"

	"github.com/poiesic/veritas/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)}, // max uint64
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalID(tt.id)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalID(data)
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalDocument(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	doc := &core.Document{
		Id:          7,
		Filename:    "climate.txt",
		Content:     "Author: Jane Doe\nRising sea levels in 2019.",
		ContentHash: core.IDFromContent("x"),
		Vector:      []float32{0.25, -0.5, 1},
		Metadata:    map[string]string{"authors": "Jane Doe", "year": "2019"},
		InsertedAt:  now,
	}

	decoded, err := UnmarshalDocument(MarshalDocument(doc))
	require.NoError(t, err)
	assert.Equal(t, doc, decoded)
}

func TestMarshalUnmarshalChunk(t *testing.T) {
	tests := []struct {
		name  string
		chunk *core.Chunk
	}{
		{
			name:  "minimal chunk",
			chunk: &core.Chunk{Id: 1, DocumentId: 2, Content: "passage"},
		},
		{
			name: "chunk with vector and metadata",
			chunk: &core.Chunk{
				Id:         3,
				DocumentId: 2,
				ChunkIndex: 4,
				Content:    "Another passage",
				Metadata:   map[string]string{"year": "2021"},
				Vector:     []float32{0.1, 0.2, 0.3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalChunk(MarshalChunk(tt.chunk))
			require.NoError(t, err)
			assert.Equal(t, tt.chunk, decoded)
		})
	}
}

func TestMarshalChunk_DropsTransientScores(t *testing.T) {
	chunk := &core.Chunk{Id: 1, DocumentId: 2, Content: "passage", Similarity: 0.8, Score: 0.9}

	decoded, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Zero(t, decoded.Similarity)
	assert.Zero(t, decoded.Score)
}

func TestMarshalChunk_DeterministicMetadata(t *testing.T) {
	chunk := &core.Chunk{
		Id:         1,
		DocumentId: 2,
		Content:    "passage",
		Metadata:   map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"},
	}
	first := MarshalChunk(chunk)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, MarshalChunk(chunk))
	}
}

func TestMarshalUnmarshalSynapse(t *testing.T) {
	s := &core.Synapse{
		ChunkId:     9,
		Weight:      0.65,
		AccessCount: 3,
		LastAccess:  time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalSynapse(MarshalSynapse(s))
	require.NoError(t, err)
	assert.Equal(t, s, decoded)
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	cp := &core.Checkpoint{
		ProcessorType: "reembed",
		LastID:        1234,
		Processed:     50,
		UpdatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}

	decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(cp))
	require.NoError(t, err)
	assert.Equal(t, cp, decoded)
}

func TestUnmarshal_Truncated(t *testing.T) {
	data := MarshalChunk(&core.Chunk{Id: 1, DocumentId: 2, Content: "some content", Vector: []float32{1, 2}})

	for _, cut := range []int{1, len(data) / 2, len(data) - 1} {
		_, err := UnmarshalChunk(data[:cut])
		assert.Error(t, err, "cut at %d", cut)
	}
}

func TestUnmarshal_TrailingBytes(t *testing.T) {
	data := append(MarshalSynapse(&core.Synapse{ChunkId: 1, Weight: 0.5}), 0x01)

	_, err := UnmarshalSynapse(data)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

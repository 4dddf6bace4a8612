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


package storage

import (
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/veritas/core"
)

// encoder appends MUS encoded fields to a growing buffer.
type encoder struct {
	bs []byte
}

func (e *encoder) reserve(n int) []byte {
	l := len(e.bs)
	e.bs = slices.Grow(e.bs, n)[:l+n]
	return e.bs[l:]
}

func (e *encoder) uint64(v uint64) {
	varint.Uint64.Marshal(v, e.reserve(varint.Uint64.Size(v)))
}

func (e *encoder) int64(v int64) {
	varint.Int64.Marshal(v, e.reserve(varint.Int64.Size(v)))
}

func (e *encoder) int(v int) {
	varint.Int.Marshal(v, e.reserve(varint.Int.Size(v)))
}

func (e *encoder) string(v string) {
	ord.String.Marshal(v, e.reserve(ord.String.Size(v)))
}

func (e *encoder) float64(v float64) {
	raw.Float64.Marshal(v, e.reserve(raw.Float64.Size(v)))
}

func (e *encoder) time(v time.Time) {
	if v.IsZero() {
		e.int64(0)
		return
	}
	e.int64(v.UnixMicro())
}

func (e *encoder) vector(v []float32) {
	e.int(len(v))
	for _, x := range v {
		raw.Float32.Marshal(x, e.reserve(raw.Float32.Size(x)))
	}
}

// stringMap writes keys in sorted order so equal maps encode identically.
func (e *encoder) stringMap(m map[string]string) {
	e.int(len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		e.string(k)
		e.string(m[k])
	}
}

// decoder reads fields written by encoder. The first failure sticks and
// every later read returns a zero value.
type decoder struct {
	bs  []byte
	err error
}

func (d *decoder) advance(n int, err error) bool {
	if err != nil {
		d.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
		return false
	}
	d.bs = d.bs[n:]
	return true
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs)
	if !d.advance(n, err) {
		return 0
	}
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs)
	if !d.advance(n, err) {
		return 0
	}
	return v
}

func (d *decoder) int() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs)
	if !d.advance(n, err) {
		return 0
	}
	return v
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs)
	if !d.advance(n, err) {
		return ""
	}
	return v
}

func (d *decoder) float64() float64 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float64.Unmarshal(d.bs)
	if !d.advance(n, err) {
		return 0
	}
	return v
}

func (d *decoder) time() time.Time {
	us := d.int64()
	if us == 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

// length reads a collection size and rejects values the remaining bytes
// cannot possibly hold.
func (d *decoder) length() int {
	n := d.int()
	if d.err == nil && (n < 0 || n > len(d.bs)) {
		d.err = fmt.Errorf("%w: length %d exceeds %d remaining bytes", ErrTruncatedData, n, len(d.bs))
		return 0
	}
	return n
}

func (d *decoder) vector() []float32 {
	n := d.length()
	if n == 0 || d.err != nil {
		return nil
	}
	v := make([]float32, n)
	for i := range v {
		x, read, err := raw.Float32.Unmarshal(d.bs)
		if !d.advance(read, err) {
			return nil
		}
		v[i] = x
	}
	return v
}

func (d *decoder) stringMap() map[string]string {
	n := d.length()
	if n == 0 || d.err != nil {
		return nil
	}
	m := make(map[string]string, n)
	for i := 0; i < n; i++ {
		k := d.string()
		m[k] = d.string()
	}
	if d.err != nil {
		return nil
	}
	return m
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if len(d.bs) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrSerializationFailed, len(d.bs))
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	var e encoder
	e.uint64(uint64(id))
	return e.bs
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := decoder{bs: data}
	id := core.ID(d.uint64())
	return id, d.finish()
}

// MarshalDocument serializes a Document to bytes.
func MarshalDocument(doc *core.Document) []byte {
	var e encoder
	e.uint64(uint64(doc.Id))
	e.string(doc.Filename)
	e.string(doc.Content)
	e.uint64(uint64(doc.ContentHash))
	e.vector(doc.Vector)
	e.stringMap(doc.Metadata)
	e.time(doc.InsertedAt)
	return e.bs
}

// UnmarshalDocument deserializes a Document from bytes.
func UnmarshalDocument(data []byte) (*core.Document, error) {
	d := decoder{bs: data}
	doc := &core.Document{
		Id:          core.ID(d.uint64()),
		Filename:    d.string(),
		Content:     d.string(),
		ContentHash: core.ID(d.uint64()),
		Vector:      d.vector(),
		Metadata:    d.stringMap(),
		InsertedAt:  d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return doc, nil
}

// MarshalChunk serializes the persistent fields of a Chunk. Similarity and
// Score are query scoped and never stored.
func MarshalChunk(chunk *core.Chunk) []byte {
	var e encoder
	e.uint64(uint64(chunk.Id))
	e.uint64(uint64(chunk.DocumentId))
	e.int(chunk.ChunkIndex)
	e.string(chunk.Content)
	e.stringMap(chunk.Metadata)
	e.vector(chunk.Vector)
	return e.bs
}

// UnmarshalChunk deserializes a Chunk from bytes.
func UnmarshalChunk(data []byte) (*core.Chunk, error) {
	d := decoder{bs: data}
	chunk := &core.Chunk{
		Id:         core.ID(d.uint64()),
		DocumentId: core.ID(d.uint64()),
		ChunkIndex: d.int(),
		Content:    d.string(),
		Metadata:   d.stringMap(),
		Vector:     d.vector(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return chunk, nil
}

// MarshalSynapse serializes a Synapse to bytes.
func MarshalSynapse(s *core.Synapse) []byte {
	var e encoder
	e.uint64(uint64(s.ChunkId))
	e.float64(s.Weight)
	e.int(s.AccessCount)
	e.time(s.LastAccess)
	return e.bs
}

// UnmarshalSynapse deserializes a Synapse from bytes.
func UnmarshalSynapse(data []byte) (*core.Synapse, error) {
	d := decoder{bs: data}
	s := &core.Synapse{
		ChunkId:     core.ID(d.uint64()),
		Weight:      d.float64(),
		AccessCount: d.int(),
		LastAccess:  d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalCheckpoint serializes a Checkpoint to bytes.
func MarshalCheckpoint(checkpoint *core.Checkpoint) []byte {
	var e encoder
	e.string(checkpoint.ProcessorType)
	e.uint64(uint64(checkpoint.LastID))
	e.int(checkpoint.Processed)
	e.time(checkpoint.UpdatedAt)
	return e.bs
}

// UnmarshalCheckpoint deserializes a Checkpoint from bytes.
func UnmarshalCheckpoint(data []byte) (*core.Checkpoint, error) {
	d := decoder{bs: data}
	checkpoint := &core.Checkpoint{
		ProcessorType: d.string(),
		LastID:        core.ID(d.uint64()),
		Processed:     d.int(),
		UpdatedAt:     d.time(),
	}
	if err := d.finish(); err != nil {
		return nil, err
	}
	return checkpoint, nil
}

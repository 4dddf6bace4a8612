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


// Package storage provides the storage abstraction layer for veritas.
//
// This package defines repository interfaces that decouple storage implementation
// from retrieval and ingestion logic. Documents, chunks, synapse weights and
// processor checkpoints live in a key-value backend (see storage/badger); the
// document relationship graph lives in a relational store (see storage/sqlite).
//
// # Constructor Return Type Pattern
//
// Public constructors in implementation packages return interfaces to keep
// callers decoupled from a specific backend:
//
//	docs, err := badger.NewDocumentRepository(backend)  // returns storage.DocumentRepository
//
// Internal constructors may return concrete types since they're only used
// within the implementation package.
//
// # Architecture
//
//   - DocumentRepository: uploaded documents, deduplicated by content hash
//   - ChunkRepository: passages and cosine similarity search restricted by a selection
//   - SynapseRepository: usage-adaptive weights, persisted best-effort
//   - CheckpointRepository: resumable batch processing state
//   - RelationStore: cites / authored_by / similar_to edges between documents
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage

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


package badger

import "github.com/poiesic/veritas/storage"

// MemoryRepositories bundles in-memory repositories sharing one backend.
type MemoryRepositories struct {
	Documents   storage.DocumentRepository
	Chunks      storage.ChunkRepository
	Synapses    storage.SynapseRepository
	Checkpoints storage.CheckpointRepository
	Backend     *Backend
}

// Close releases the repositories and then the backend.
func (m *MemoryRepositories) Close() error {
	m.Synapses.Close()
	m.Chunks.Close()
	m.Documents.Close()
	return m.Backend.Close()
}

// NewMemoryRepositories creates in-memory repositories for testing.
// Caller must Close the result when done.
func NewMemoryRepositories() (*MemoryRepositories, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}

	docRepo, err := NewDocumentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	chunkRepo, err := NewChunkRepository(backend)
	if err != nil {
		docRepo.Close()
		backend.Close()
		return nil, err
	}

	return &MemoryRepositories{
		Documents:   docRepo,
		Chunks:      chunkRepo,
		Synapses:    NewSynapseRepository(backend),
		Checkpoints: NewCheckpointRepository(backend),
		Backend:     backend,
	}, nil
}

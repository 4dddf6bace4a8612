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

import (
	"context"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/veritas/core"
	"github.com/poiesic/veritas/storage"
)

// SynapseRepository implements storage.SynapseRepository for BadgerDB.
type SynapseRepository struct {
	backend *Backend
}

var _ storage.SynapseRepository = (*SynapseRepository)(nil)

// NewSynapseRepository creates a new SynapseRepository.
func NewSynapseRepository(backend *Backend) *SynapseRepository {
	return &SynapseRepository{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (r *SynapseRepository) Close() error {
	return nil
}

// WithTransaction delegates to the backend.
func (r *SynapseRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// SaveSynapses upserts synapse records.
func (r *SynapseRepository) SaveSynapses(ctx context.Context, synapses ...*core.Synapse) error {
	if len(synapses) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, s := range synapses {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := tx.Set(makeSynapseKey(s.ChunkId), storage.MarshalSynapse(s)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// LoadSynapses returns every persisted synapse ordered by chunk ID.
func (r *SynapseRepository) LoadSynapses(ctx context.Context) ([]*core.Synapse, error) {
	var result []*core.Synapse
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scan(ctx, tx, []byte(synapsePrefix), func(_, val []byte) error {
			s, err := storage.UnmarshalSynapse(val)
			if err != nil {
				return err
			}
			result = append(result, s)
			return nil
		})
	}, false)
	return result, err
}

// DeleteSynapses removes synapse records.
func (r *SynapseRepository) DeleteSynapses(ctx context.Context, chunkIDs ...core.ID) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range chunkIDs {
			if err := tx.Delete(makeSynapseKey(id)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

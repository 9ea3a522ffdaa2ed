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


// Package storage provides the storage abstraction layer for textidx.
//
// This package defines the repository interfaces for the persisted inverted
// index. Index records are unique per (owner, entity type, field) tuple and
// are reachable through a term index that supports scoped lookups.
//
// # Constructor Return Type Pattern
//
// Backend constructors return concrete types that satisfy both interfaces;
// callers hold them as the narrowest interface they need:
//
//	repo, err := badger.NewIndexRepository(backend) // *badger.IndexRepository
//	var idx storage.IndexRepository = repo
//
// # Architecture
//
//   - IndexRepository: upsert, scoped removal and term lookup of index records
//   - MaintenanceRepository: record listing and consistency repair
//
// # Usage
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryRepository()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	defer repo.Close()
//
// # Consistency
//
// Every write runs in one serializable transaction. Two writers touching the
// same (owner, type, field) tuple cannot both commit; the loser receives
// ErrConflict and may retry. Implementations never retry on their own.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation.
package storage

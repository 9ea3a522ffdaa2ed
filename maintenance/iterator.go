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


package maintenance

import (
	"context"

	"github.com/poiesic/textidx/core"
	"github.com/poiesic/textidx/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 100
)

// RecordIterator iterates over all index records in ID order, in batches.
type RecordIterator struct {
	repo      storage.MaintenanceRepository
	batchSize int
}

// NewRecordIterator creates a new record iterator.
// batchSize: number of records to fetch in each batch (must be > 0)
func NewRecordIterator(repo storage.MaintenanceRepository, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &RecordIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn for each batch of records.
// Iteration stops on first error from fn or when all records are processed.
// Each batch is read in its own transaction, so records written during
// iteration may or may not be seen. Context cancellation is checked between
// batches.
func (it *RecordIterator) ForEach(ctx context.Context, fn func([]*core.IndexRecord) error) error {
	var after core.ID
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		batch, err := it.repo.ListRecords(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		after = batch[len(batch)-1].Id
		if len(batch) < it.batchSize {
			return nil
		}
	}
}

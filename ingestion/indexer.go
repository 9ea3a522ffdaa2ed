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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/textidx/analysis"
	"github.com/poiesic/textidx/core"
	"github.com/poiesic/textidx/maintenance"
	"github.com/poiesic/textidx/storage"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 10 * time.Millisecond
)

// Stats counts requests handled by the async path.
type Stats struct {
	Processed int64 // Requests applied successfully
	Failed    int64 // Requests that returned an error
}

// Indexer applies index add and remove requests.
type Indexer struct {
	repository  storage.IndexRepository
	analyzer    *analysis.Analyzer
	pool        *ants.Pool
	poolSize    int
	maxAttempts int
	baseDelay   time.Duration
	pending     sync.WaitGroup
	mu          sync.RWMutex // Guards released against pending.Add
	released    bool
	processed   atomic.Int64
	failed      atomic.Int64
	logger      *slog.Logger
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithPoolSize sets the worker pool size for async requests.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(ix *Indexer) error {
		if size < 1 {
			size = 1
		}
		ix.poolSize = size
		return nil
	}
}

// WithRetry sets how often a write losing a conflict is attempted and the
// base delay of the exponential backoff between attempts.
// Default is 3 attempts starting at 10ms.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(ix *Indexer) error {
		if maxAttempts < 1 {
			return maintenance.ErrInvalidMaxAttempts
		}
		ix.maxAttempts = maxAttempts
		ix.baseDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// NewIndexer creates a new indexer.
func NewIndexer(repository storage.IndexRepository, analyzer *analysis.Analyzer, opts ...Option) (*Indexer, error) {
	if repository == nil {
		return nil, ErrRepositoryRequired
	}
	if analyzer == nil {
		return nil, ErrAnalyzerRequired
	}

	ix := &Indexer{
		repository:  repository,
		analyzer:    analyzer,
		poolSize:    max(runtime.NumCPU()/2, 1),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "indexer")

	pool, err := ants.NewPool(ix.poolSize)
	if err != nil {
		return nil, err
	}
	ix.pool = pool

	return ix, nil
}

// AddToIndex analyzes the request's content and stores the terms under its
// key, replacing any previous terms. Content without indexable terms removes
// the key's record instead.
func (ix *Indexer) AddToIndex(ctx context.Context, req AddToIndexRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	result := ix.analyzer.Analyze(req.Content, req.Field)

	return ix.retry(ctx, func() error {
		return ix.store(ctx, req, result.Terms)
	}, "add to index failed", req.key())
}

// Reindex removes the request's key and indexes its content again in a single
// transaction, so searches see either the old or the new terms.
func (ix *Indexer) Reindex(ctx context.Context, req AddToIndexRequest) error {
	if err := req.validate(); err != nil {
		return err
	}
	result := ix.analyzer.Analyze(req.Content, req.Field)

	return ix.retry(ctx, func() error {
		return ix.repository.WithTransaction(ctx, func(ctx context.Context) error {
			if _, err := ix.repository.RemoveByOwnerAndTypeAndField(ctx, req.OwnerID, req.EntityType, req.Field); err != nil {
				return err
			}
			return ix.store(ctx, req, result.Terms)
		})
	}, "reindex failed", req.key())
}

// RemoveFromIndex removes the records selected by the request and returns
// how many were removed. Removing what is not indexed is not an error.
func (ix *Indexer) RemoveFromIndex(ctx context.Context, req RemoveFromIndexRequest) (int, error) {
	if err := req.validate(); err != nil {
		return 0, err
	}

	var removed int
	err := ix.retry(ctx, func() error {
		var err error
		switch {
		case req.Field != "":
			removed, err = ix.repository.RemoveByOwnerAndTypeAndField(ctx, req.OwnerID, req.EntityType, req.Field)
		case req.EntityType != "":
			removed, err = ix.repository.RemoveByOwnerAndType(ctx, req.OwnerID, req.EntityType)
		default:
			removed, err = ix.repository.RemoveByOwner(ctx, req.OwnerID)
		}
		return err
	}, "remove from index failed", req.OwnerID)
	if err != nil {
		return 0, err
	}
	ix.logger.Debug("removed from index", "owner", req.OwnerID, "type", req.EntityType, "field", req.Field, "removed", removed)
	return removed, nil
}

// IndexDocument indexes every field of doc. Fields are updated one by one;
// the first failure stops the update and is returned.
func (ix *Indexer) IndexDocument(ctx context.Context, doc Document) error {
	requests, err := addRequests(doc)
	if err != nil {
		return err
	}
	for _, req := range requests {
		if err := ix.AddToIndex(ctx, req); err != nil {
			return fmt.Errorf("indexing %s %s: %w", req.EntityType, req.OwnerID, err)
		}
	}
	return nil
}

// RemoveDocument removes every record of doc.
func (ix *Indexer) RemoveDocument(ctx context.Context, doc Document) (int, error) {
	if doc == nil {
		return 0, fmt.Errorf("%w: nil document", ErrInvalidRequest)
	}
	return ix.RemoveFromIndex(ctx, RemoveFromIndexRequest{OwnerID: doc.OwnerID(), EntityType: doc.EntityType()})
}

// Submit queues req for async processing and returns once it is queued.
// Invalid requests are rejected here; errors while applying are logged and
// counted in Stats. Submit is safe to call concurrently with Release and
// returns ErrReleased once Release has started.
func (ix *Indexer) Submit(req Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := req.validate(); err != nil {
		return err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.released {
		return ErrReleased
	}

	ix.pending.Add(1)
	err := ix.pool.Submit(func() {
		defer ix.pending.Done()
		if err := ix.apply(context.Background(), req); err != nil {
			ix.failed.Add(1)
			ix.logger.Error("error processing index request", "request", fmt.Sprintf("%+v", req), "err", err)
			return
		}
		ix.processed.Add(1)
	})
	if err != nil {
		ix.pending.Done()
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrReleased
		}
		return err
	}
	return nil
}

// Wait blocks until every submitted request has been applied or has failed.
func (ix *Indexer) Wait() {
	ix.pending.Wait()
}

// Stats returns the async path counters.
func (ix *Indexer) Stats() Stats {
	return Stats{Processed: ix.processed.Load(), Failed: ix.failed.Load()}
}

// Release waits for submitted requests and releases the worker pool.
// Later calls to Submit return ErrReleased; calling Release again is a no-op.
func (ix *Indexer) Release() {
	ix.mu.Lock()
	if ix.released {
		ix.mu.Unlock()
		return
	}
	ix.released = true
	ix.mu.Unlock()

	ix.Wait()
	if ix.pool != nil {
		ix.pool.Release()
	}
}

func (ix *Indexer) apply(ctx context.Context, req Request) error {
	switch r := req.(type) {
	case AddToIndexRequest:
		return ix.AddToIndex(ctx, r)
	case RemoveFromIndexRequest:
		_, err := ix.RemoveFromIndex(ctx, r)
		return err
	default:
		return fmt.Errorf("%w: unsupported request %T", ErrInvalidRequest, req)
	}
}

// store writes terms under the request's key. An empty field is never
// stored: its record, if any, is removed.
func (ix *Indexer) store(ctx context.Context, req AddToIndexRequest, terms []string) error {
	if len(terms) == 0 {
		removed, err := ix.repository.RemoveByOwnerAndTypeAndField(ctx, req.OwnerID, req.EntityType, req.Field)
		if err == nil {
			ix.logger.Debug("no indexable terms", "key", req.key(), "removed", removed)
		}
		return err
	}
	record, err := ix.repository.Upsert(ctx, req.OwnerID, req.UltimateOwnerID, req.EntityType, req.Field, terms)
	if err != nil {
		return err
	}
	ix.logger.Debug("indexed", "key", record.Key(), "id", record.Id, "terms", len(record.Terms))
	return nil
}

// retry runs op, retrying when it loses a write conflict.
func (ix *Indexer) retry(ctx context.Context, op func() error, msg, key string) error {
	err := maintenance.RetryConflicts(ctx, op, ix.maxAttempts, ix.baseDelay)
	if errors.Is(err, storage.ErrInvariantViolation) {
		ix.logger.Error(msg, "key", key, "err", err)
	}
	return err
}

func (r AddToIndexRequest) key() string {
	return core.CompoundKey(r.OwnerID, r.EntityType, r.Field)
}

package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/textidx/storage"
)

const (
	defaultSequenceBandwidth = 100
)

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist. A nil logger means slog.Default().
func OpenBackend(filePath string, inMemory bool, logger *slog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "badger")

	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		// Ensure directory exists
		info, err := os.Stat(filePath)
		if err != nil {
			if os.IsNotExist(err) {
				if err := os.MkdirAll(filePath, 0755); err != nil {
					return nil, err
				}
				info, err = os.Stat(filePath)
				if err != nil {
					return nil, err
				}
			} else {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return translateError(fn(tx))
}

// GetSequence returns a BadgerDB sequence for generating sequential IDs.
func (b *Backend) GetSequence(name string) (*badger.Sequence, error) {
	return b.db.GetSequence([]byte(name), defaultSequenceBandwidth)
}

type txnKey struct{}

// contextWithTxn attaches an open read-write transaction to ctx.
func contextWithTxn(ctx context.Context, tx *badger.Txn) context.Context {
	return context.WithValue(ctx, txnKey{}, tx)
}

// txnFromContext returns the transaction attached by WithTransaction, if any.
func txnFromContext(ctx context.Context) *badger.Txn {
	tx, _ := ctx.Value(txnKey{}).(*badger.Txn)
	return tx
}

// WithTransaction executes fn within a single read-write transaction.
// Repository calls made with the context passed to fn join that transaction
// instead of opening their own; nested calls reuse the outer transaction.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if txnFromContext(ctx) != nil {
		return fn(ctx)
	}
	return b.WithTx(func(tx *badger.Txn) error {
		// Execute the callback function
		if err := fn(contextWithTxn(ctx, tx)); err != nil {
			return err
		}
		// Commit the transaction
		return tx.Commit()
	}, true)
}

// update runs fn in the caller's transaction when ctx carries one,
// otherwise in a new read-write transaction that is committed on success.
func (b *Backend) update(ctx context.Context, fn func(tx *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx := txnFromContext(ctx); tx != nil {
		return fn(tx)
	}
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(tx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// view runs fn against the caller's transaction when ctx carries one,
// otherwise against a read-only snapshot.
func (b *Backend) view(ctx context.Context, fn func(tx *badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx := txnFromContext(ctx); tx != nil {
		return fn(tx)
	}
	return b.WithTx(fn, false)
}

// translateError maps badger errors onto storage sentinels.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrConflict), errors.Is(err, storage.ErrStorageClosed):
		return err
	case errors.Is(err, badger.ErrConflict):
		return fmt.Errorf("%w: %w", storage.ErrConflict, err)
	case errors.Is(err, badger.ErrDBClosed), errors.Is(err, badger.ErrBlockedWrites):
		return fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	return err
}

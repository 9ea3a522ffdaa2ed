package storage

import (
	"context"

	"github.com/poiesic/textidx/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close releases resources held by the repository. It does not close
	// the backend the repository was created on; its owner closes that.
	Close() error
}

// IndexRepository stores index records and the term index over them.
type IndexRepository interface {
	Repository

	// Upsert creates or replaces the record for (owner, entityType, field).
	// Terms are normalized to set form before storing. An existing record keeps
	// its Id and InsertedAt; its terms and ultimate owner are replaced.
	// Returns ErrConflict when a concurrent write to the same key won.
	Upsert(ctx context.Context, owner, ultimateOwner string, entityType core.EntityType, field core.Field, terms []string) (*core.IndexRecord, error)

	// RemoveByOwner removes every record of the owner.
	// Returns the number of records removed; an unknown owner is not an error.
	RemoveByOwner(ctx context.Context, owner string) (int, error)

	// RemoveByOwnerAndType removes every record of the owner with the given type.
	RemoveByOwnerAndType(ctx context.Context, owner string, entityType core.EntityType) (int, error)

	// RemoveByOwnerAndTypeAndField removes the single record for the key, if any.
	RemoveByOwnerAndTypeAndField(ctx context.Context, owner string, entityType core.EntityType, field core.Field) (int, error)

	// FindByScope returns records containing term that fall inside scope,
	// ordered by Id. Unreadable records are skipped.
	FindByScope(ctx context.Context, term string, scope core.Scope) ([]*core.IndexRecord, error)

	// FindByKey returns the record for (owner, entityType, field).
	// Returns ErrNotFound if no such record exists.
	FindByKey(ctx context.Context, owner string, entityType core.EntityType, field core.Field) (*core.IndexRecord, error)

	// GetIndexRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetIndexRecord(ctx context.Context, id core.ID) (*core.IndexRecord, error)
}

// MaintenanceRepository exposes the raw structure of the index for
// consistency checks and repairs.
type MaintenanceRepository interface {
	IndexRepository

	// ListRecords returns up to limit records with Id > after, ordered by Id.
	ListRecords(ctx context.Context, after core.ID, limit int) ([]*core.IndexRecord, error)

	// CountRecords returns the number of stored records.
	CountRecords(ctx context.Context) (int, error)

	// MissingPostings returns the record's terms that have no term index entry.
	// Returns ErrInvariantViolation if the record's key does not resolve to it.
	MissingPostings(ctx context.Context, record *core.IndexRecord) ([]string, error)

	// DeleteRecord removes a record and its postings without touching the key
	// index unless the key points at this record.
	DeleteRecord(ctx context.Context, id core.ID) error

	// DanglingPostings counts term index entries whose record is gone or no
	// longer contains the term. When prune is true they are deleted.
	DanglingPostings(ctx context.Context, prune bool) (int, error)
}

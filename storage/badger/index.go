package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/textidx/core"
	"github.com/poiesic/textidx/storage"
)

// pruneBatchSize bounds the number of postings deleted per transaction.
const pruneBatchSize = 500

// IndexRepository implements storage.IndexRepository and
// storage.MaintenanceRepository for BadgerDB.
type IndexRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
	logger  *slog.Logger
}

var _ storage.MaintenanceRepository = (*IndexRepository)(nil)

// NewIndexRepository creates a new IndexRepository.
func NewIndexRepository(backend *Backend) (*IndexRepository, error) {
	idSeq, err := backend.GetSequence(indexRecordIDSeq)
	if err != nil {
		return nil, err
	}

	return &IndexRepository{
		backend: backend,
		idSeq:   idSeq,
		logger:  backend.logger.With("component", "index_repository"),
	}, nil
}

// Close releases the ID sequence.
func (r *IndexRepository) Close() error {
	return r.idSeq.Release()
}

// WithTransaction delegates to the backend.
func (r *IndexRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// Upsert creates or replaces the record for (owner, entityType, field).
func (r *IndexRepository) Upsert(ctx context.Context, owner, ultimateOwner string, entityType core.EntityType, field core.Field, terms []string) (*core.IndexRecord, error) {
	candidate := &core.IndexRecord{
		Owner:         owner,
		UltimateOwner: ultimateOwner,
		Type:          entityType,
		Field:         field,
		Terms:         r.indexableTerms(core.NormalizeTerms(terms)),
	}
	if err := core.ValidateIndexRecord(candidate); err != nil {
		return nil, err
	}

	var result *core.IndexRecord
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		// The compound key read is tracked even when absent, so two
		// transactions upserting the same tuple cannot both commit.
		id, existing, err := r.resolveKey(tx, owner, entityType, field)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		record := *candidate
		record.UpdatedAt = now
		switch {
		case existing != nil:
			if err := r.deletePostings(tx, existing); err != nil {
				return err
			}
			record.Id = existing.Id
			record.InsertedAt = existing.InsertedAt
		case id != 0:
			// Key points at a missing or unreadable record: reuse its ID.
			record.Id = id
			record.InsertedAt = now
		default:
			nextID, err := r.nextID()
			if err != nil {
				return err
			}
			record.Id = nextID
			record.InsertedAt = now
		}

		if err := tx.Set(makeIndexRecordKey(record.Id), storage.MarshalIndexRecord(&record)); err != nil {
			return err
		}
		if existing == nil {
			if err := tx.Set(makeIndexKey(owner, entityType, field), storage.MarshalID(record.Id)); err != nil {
				return err
			}
		}
		if err := r.writePostings(tx, &record); err != nil {
			return err
		}
		result = &record
		return nil
	})
	if err != nil {
		return nil, r.logInvariant(err, "upsert failed", "key", candidate.Key())
	}
	return result, nil
}

// RemoveByOwner removes every record of the owner.
func (r *IndexRepository) RemoveByOwner(ctx context.Context, owner string) (int, error) {
	return r.removeByPrefix(ctx, makeOwnerKeyPrefix(owner), func(record *core.IndexRecord) bool {
		return record.Owner == owner
	})
}

// RemoveByOwnerAndType removes every record of the owner with the given type.
func (r *IndexRepository) RemoveByOwnerAndType(ctx context.Context, owner string, entityType core.EntityType) (int, error) {
	return r.removeByPrefix(ctx, makeOwnerTypeKeyPrefix(owner, entityType), func(record *core.IndexRecord) bool {
		return record.Owner == owner && record.Type == entityType
	})
}

// RemoveByOwnerAndTypeAndField removes the single record for the key, if any.
func (r *IndexRepository) RemoveByOwnerAndTypeAndField(ctx context.Context, owner string, entityType core.EntityType, field core.Field) (int, error) {
	removed := 0
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		id, existing, err := r.resolveKey(tx, owner, entityType, field)
		if err != nil {
			return err
		}
		if id == 0 {
			return nil
		}
		if err := r.deleteRecord(tx, makeIndexKey(owner, entityType, field), id, existing); err != nil {
			return err
		}
		removed = 1
		return nil
	})
	if err != nil {
		return 0, r.logInvariant(err, "remove failed", "key", core.CompoundKey(owner, entityType, field))
	}
	return removed, nil
}

// FindByScope returns records containing term that fall inside scope, ordered by ID.
func (r *IndexRepository) FindByScope(ctx context.Context, term string, scope core.Scope) ([]*core.IndexRecord, error) {
	if err := core.ValidateScope(scope); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if term == "" || len(term) > maxTermLength {
		return nil, nil
	}

	var prefix []byte
	switch {
	case scope.Type != "" && scope.Field != "":
		prefix = makeTermTypeFieldPrefix(term, scope.Type, scope.Field)
	case scope.Type != "":
		prefix = makeTermTypePrefix(term, scope.Type)
	default:
		prefix = makeTermPrefix(term)
	}
	fieldOnly := scope.Type == "" && scope.Field != ""
	fieldHash := hashComponent(string(scope.Field))

	var results []*core.IndexRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var ids []core.ID
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			tk, ok := parseTermKey(iter.Item().Key())
			if !ok || tk.term != term {
				continue
			}
			if fieldOnly && tk.fieldHash != fieldHash {
				continue
			}
			ids = append(ids, tk.id)
		}
		iter.Close()

		slices.Sort(ids)
		ids = slices.Compact(ids)
		for _, id := range ids {
			record, err := r.readIndexRecord(tx, id)
			if err != nil {
				r.logger.Debug("skipping unreadable record", "id", id, "err", err)
				continue
			}
			if record == nil {
				r.logger.Debug("skipping posting without record", "id", id, "term", term)
				continue
			}
			if !record.HasTerm(term) || !scope.Matches(record) {
				r.logger.Debug("skipping stale posting", "id", id, "term", term, "key", record.Key())
				continue
			}
			results = append(results, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindByKey returns the record for (owner, entityType, field).
func (r *IndexRepository) FindByKey(ctx context.Context, owner string, entityType core.EntityType, field core.Field) (*core.IndexRecord, error) {
	var result *core.IndexRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		_, existing, err := r.resolveKey(tx, owner, entityType, field)
		if err != nil {
			return err
		}
		if existing == nil {
			return storage.ErrNotFound
		}
		result = existing
		return nil
	})
	if err != nil {
		return nil, r.logInvariant(err, "lookup failed", "key", core.CompoundKey(owner, entityType, field))
	}
	return result, nil
}

// GetIndexRecord retrieves a single record by ID.
func (r *IndexRepository) GetIndexRecord(ctx context.Context, id core.ID) (*core.IndexRecord, error) {
	var result *core.IndexRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = r.readIndexRecord(tx, id)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// ListRecords returns up to limit records with Id > after, ordered by ID.
// Unreadable records are skipped.
func (r *IndexRepository) ListRecords(ctx context.Context, after core.ID, limit int) ([]*core.IndexRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	if after == core.ID(^uint64(0)) {
		return nil, nil
	}

	var results []*core.IndexRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(indexRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeIndexRecordKey(after + 1)); iter.Valid() && len(results) < limit; iter.Next() {
			item := iter.Item()
			id, ok := parseIndexRecordKey(item.Key())
			if !ok {
				continue
			}
			var record *core.IndexRecord
			err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalIndexRecord(val)
				return err
			})
			if err != nil {
				r.logger.Warn("skipping unreadable record", "id", id, "err", err)
				continue
			}
			results = append(results, record)
		}
		return nil
	})
	return results, err
}

// CountRecords returns the number of stored records.
func (r *IndexRepository) CountRecords(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(indexRecordPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if _, ok := parseIndexRecordKey(iter.Item().Key()); ok {
				count++
			}
		}
		return nil
	})
	return count, err
}

// MissingPostings returns the record's terms that have no term index entry.
func (r *IndexRepository) MissingPostings(ctx context.Context, record *core.IndexRecord) ([]string, error) {
	var missing []string
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		id, _, err := r.resolveKey(tx, record.Owner, record.Type, record.Field)
		if err != nil {
			return err
		}
		if id != record.Id {
			return fmt.Errorf("%w: record %d is not referenced by key %s (key points at %d)",
				storage.ErrInvariantViolation, record.Id, record.Key(), id)
		}
		for _, term := range record.Terms {
			_, err := tx.Get(makeTermKey(term, record.Type, record.Field, record.Id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				missing = append(missing, term)
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, r.logInvariant(err, "posting check failed", "id", record.Id)
	}
	return missing, nil
}

// DeleteRecord removes a record and its postings. The compound key is
// removed only when it points at this record.
func (r *IndexRepository) DeleteRecord(ctx context.Context, id core.ID) error {
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		key := makeIndexRecordKey(id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		record, err := r.readIndexRecord(tx, id)
		if err != nil {
			// Unreadable: drop the primary entry, postings are left for pruning.
			r.logger.Warn("deleting unreadable record", "id", id, "err", err)
			return tx.Delete(key)
		}
		if err := r.deletePostings(tx, record); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		indexKey := makeIndexKey(record.Owner, record.Type, record.Field)
		keyID, err := r.readKeyID(tx, indexKey)
		if err != nil {
			return err
		}
		if keyID == id {
			return tx.Delete(indexKey)
		}
		return nil
	})
}

// DanglingPostings counts term index entries whose record is gone or no
// longer holds the term. When prune is true they are deleted.
func (r *IndexRepository) DanglingPostings(ctx context.Context, prune bool) (int, error) {
	var dangling [][]byte
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		records := make(map[core.ID]*core.IndexRecord)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(indexTermPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := iter.Item().KeyCopy(nil)
			if r.isDangling(tx, key, records) {
				dangling = append(dangling, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if !prune || len(dangling) == 0 {
		return len(dangling), nil
	}

	pruned := 0
	for batch := range slices.Chunk(dangling, pruneBatchSize) {
		n := 0
		err := r.backend.update(ctx, func(tx *badger.Txn) error {
			n = 0
			records := make(map[core.ID]*core.IndexRecord)
			for _, key := range batch {
				// Re-check inside the write transaction so a concurrent
				// upsert that re-added the posting conflicts instead of losing it.
				if !r.isDangling(tx, key, records) {
					continue
				}
				if err := tx.Delete(key); err != nil {
					return err
				}
				n++
			}
			return nil
		})
		if err != nil {
			return pruned, err
		}
		pruned += n
	}
	r.logger.Info("pruned dangling postings", "count", pruned)
	return pruned, nil
}

// Helper methods

// isDangling reports whether a term index key has no matching record.
// records caches lookups across calls within one transaction.
func (r *IndexRepository) isDangling(tx *badger.Txn, key []byte, records map[core.ID]*core.IndexRecord) bool {
	tk, ok := parseTermKey(key)
	if !ok {
		return true
	}
	record, cached := records[tk.id]
	if !cached {
		var err error
		record, err = r.readIndexRecord(tx, tk.id)
		if err != nil {
			record = nil
		}
		records[tk.id] = record
	}
	return record == nil || !tk.matches(record)
}

// nextID returns the next record ID, skipping the zero value.
func (r *IndexRepository) nextID() (core.ID, error) {
	nextID, err := r.idSeq.Next()
	if err != nil {
		return 0, err
	}
	// BadgerDB sequences can return 0 on first call, so we skip it
	if nextID == 0 {
		nextID, err = r.idSeq.Next()
		if err != nil {
			return 0, err
		}
	}
	return core.ID(nextID), nil
}

// indexableTerms drops terms too long for the term index key layout.
func (r *IndexRepository) indexableTerms(terms []string) []string {
	return slices.DeleteFunc(terms, func(term string) bool {
		if len(term) > maxTermLength {
			r.logger.Warn("dropping oversized term", "length", len(term))
			return true
		}
		return false
	})
}

// readKeyID reads the record ID stored under a compound key.
// Returns 0 if the key is absent.
func (r *IndexRepository) readKeyID(tx *badger.Txn, key []byte) (core.ID, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	var id core.ID
	err = item.Value(func(val []byte) error {
		var err error
		id, err = storage.UnmarshalID(val)
		return err
	})
	return id, err
}

// resolveKey looks up the record stored for (owner, entityType, field).
// It returns the ID the compound key points at (0 when absent) and the
// record, which is nil when the record is missing or unreadable.
// A readable record with a different tuple is an invariant violation.
func (r *IndexRepository) resolveKey(tx *badger.Txn, owner string, entityType core.EntityType, field core.Field) (core.ID, *core.IndexRecord, error) {
	id, err := r.readKeyID(tx, makeIndexKey(owner, entityType, field))
	if err != nil {
		return 0, nil, err
	}
	if id == 0 {
		return 0, nil, nil
	}
	record, err := r.readIndexRecord(tx, id)
	if err != nil {
		r.logger.Warn("compound key points at unreadable record", "id", id, "err", err)
		return id, nil, nil
	}
	if record == nil {
		r.logger.Warn("compound key points at missing record", "id", id, "key", core.CompoundKey(owner, entityType, field))
		return id, nil, nil
	}
	if record.Owner != owner || record.Type != entityType || record.Field != field {
		return 0, nil, fmt.Errorf("%w: key %s resolves to record %d with key %s",
			storage.ErrInvariantViolation, core.CompoundKey(owner, entityType, field), id, record.Key())
	}
	return id, record, nil
}

// readIndexRecord reads a record by ID. Returns nil, nil when absent.
func (r *IndexRepository) readIndexRecord(tx *badger.Txn, id core.ID) (*core.IndexRecord, error) {
	item, err := tx.Get(makeIndexRecordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var record *core.IndexRecord
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		record, unmarshalErr = storage.UnmarshalIndexRecord(val)
		return unmarshalErr
	})
	return record, err
}

// writePostings adds term index entries for a record.
func (r *IndexRepository) writePostings(tx *badger.Txn, record *core.IndexRecord) error {
	value := storage.MarshalID(record.Id)
	for _, term := range record.Terms {
		if err := tx.Set(makeTermKey(term, record.Type, record.Field, record.Id), value); err != nil {
			return err
		}
	}
	return nil
}

// deletePostings removes term index entries for a record.
func (r *IndexRepository) deletePostings(tx *badger.Txn, record *core.IndexRecord) error {
	for _, term := range record.Terms {
		if len(term) > maxTermLength {
			continue
		}
		if err := tx.Delete(makeTermKey(term, record.Type, record.Field, record.Id)); err != nil {
			return err
		}
	}
	return nil
}

// deleteRecord removes a record, its postings and its compound key.
// record may be nil when the stored value is missing or unreadable.
func (r *IndexRepository) deleteRecord(tx *badger.Txn, indexKey []byte, id core.ID, record *core.IndexRecord) error {
	if record != nil {
		if err := r.deletePostings(tx, record); err != nil {
			return err
		}
	}
	if err := tx.Delete(makeIndexRecordKey(id)); err != nil {
		return err
	}
	return tx.Delete(indexKey)
}

// removeByPrefix removes every record whose compound key starts with prefix
// and that satisfies match. The hash prefix alone may admit other owners.
func (r *IndexRepository) removeByPrefix(ctx context.Context, prefix []byte, match func(*core.IndexRecord) bool) (int, error) {
	removed := 0
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		removed = 0
		type entry struct {
			key []byte
			id  core.ID
		}
		var entries []entry

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			var id core.ID
			err := item.Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			})
			if err != nil {
				iter.Close()
				return err
			}
			entries = append(entries, entry{key: item.KeyCopy(nil), id: id})
		}
		iter.Close()

		for _, e := range entries {
			record, err := r.readIndexRecord(tx, e.id)
			if err != nil {
				r.logger.Warn("removing unreadable record", "id", e.id, "err", err)
				record = nil
			} else if record != nil && !match(record) {
				continue
			}
			if err := r.deleteRecord(tx, e.key, e.id, record); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// logInvariant logs invariant violations at error level and returns err.
func (r *IndexRepository) logInvariant(err error, msg string, args ...any) error {
	if errors.Is(err, storage.ErrInvariantViolation) {
		r.logger.Error(msg, append(args, "err", err)...)
	}
	return err
}

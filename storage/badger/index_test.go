package badger

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/textidx/core"
	"github.com/poiesic/textidx/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*IndexRepository, *Backend) {
	t.Helper()
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo, backend
}

func owners(records []*core.IndexRecord) []string {
	result := make([]string, 0, len(records))
	for _, r := range records {
		result = append(result, r.Owner)
	}
	return result
}

func TestUpsert_CreatesRecord(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	record, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"world", "hello", "world"})
	require.NoError(t, err)
	require.NotNil(t, record)

	assert.NotZero(t, record.Id)
	assert.Equal(t, "t1", record.Owner)
	assert.Equal(t, "s1", record.UltimateOwner)
	assert.Equal(t, []string{"hello", "world"}, record.Terms)
	assert.False(t, record.InsertedAt.IsZero())
	assert.Equal(t, record.InsertedAt, record.UpdatedAt)

	stored, err := repo.GetIndexRecord(ctx, record.Id)
	require.NoError(t, err)
	assert.Equal(t, record, stored)
}

func TestUpsert_ReplacesExistingRecord(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello", "world"})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, "t1", "s2", core.EntityTab, core.FieldTitle, []string{"goodbye"})
	require.NoError(t, err)

	assert.Equal(t, first.Id, second.Id)
	assert.Equal(t, first.InsertedAt, second.InsertedAt)
	assert.Equal(t, "s2", second.UltimateOwner)
	assert.Equal(t, []string{"goodbye"}, second.Terms)

	count, err := repo.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Old terms no longer resolve to the record.
	hits, err := repo.FindByScope(ctx, "hello", core.Scope{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = repo.FindByScope(ctx, "goodbye", core.Scope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, owners(hits))

	dangling, err := repo.DanglingPostings(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, dangling)
}

func TestUpsert_Validation(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, "", "s1", core.EntityTab, core.FieldTitle, []string{"x"})
	assert.ErrorIs(t, err, core.ErrEmptyOwner)

	_, err = repo.Upsert(ctx, "t1", "s1", "window", core.FieldTitle, []string{"x"})
	assert.ErrorIs(t, err, core.ErrInvalidEntityType)

	_, err = repo.Upsert(ctx, "t1", "s1", core.EntityTab, "body", []string{"x"})
	assert.ErrorIs(t, err, core.ErrInvalidField)
}

func TestUpsert_Uniqueness(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Conflicts are expected; losers simply give up here.
			_, _ = repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{fmt.Sprintf("term%d", i)})
		}()
	}
	wg.Wait()

	count, err := repo.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	record, err := repo.FindByKey(ctx, "t1", core.EntityTab, core.FieldTitle)
	require.NoError(t, err)
	require.Len(t, record.Terms, 1)
}

func TestUpsert_ConcurrentSameKeyConflicts(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := repo.Upsert(txCtx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"first"}); err != nil {
			return err
		}
		// A second writer commits the same key while the first is still open.
		_, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"second"})
		require.NoError(t, err)
		return nil
	})
	require.ErrorIs(t, err, storage.ErrConflict)
	assert.ErrorIs(t, err, badger.ErrConflict)

	record, err := repo.FindByKey(ctx, "t1", core.EntityTab, core.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, record.Terms)
}

func TestUpsert_ConcurrentDifferentKeysIndependent(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(txCtx context.Context) error {
		if _, err := repo.Upsert(txCtx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"first"}); err != nil {
			return err
		}
		_, err := repo.Upsert(ctx, "t2", "s1", core.EntityTab, core.FieldTitle, []string{"second"})
		require.NoError(t, err)
		return nil
	})
	require.NoError(t, err)

	count, err := repo.CountRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRemove_Granularity(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, repo *IndexRepository) {
		t.Helper()
		for _, k := range []struct {
			owner string
			typ   core.EntityType
			field core.Field
		}{
			{"x", core.EntityTab, core.FieldTitle},
			{"x", core.EntityTab, core.FieldURL},
			{"x", core.EntityNote, core.FieldContent},
			{"y", core.EntityTab, core.FieldTitle},
		} {
			_, err := repo.Upsert(ctx, k.owner, "s1", k.typ, k.field, []string{"shared"})
			require.NoError(t, err)
		}
	}

	t.Run("by owner", func(t *testing.T) {
		repo, _ := newTestRepository(t)
		seed(t, repo)

		n, err := repo.RemoveByOwner(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		hits, err := repo.FindByScope(ctx, "shared", core.Scope{})
		require.NoError(t, err)
		assert.Equal(t, []string{"y"}, owners(hits))
	})

	t.Run("by owner and type", func(t *testing.T) {
		repo, _ := newTestRepository(t)
		seed(t, repo)

		n, err := repo.RemoveByOwnerAndType(ctx, "x", core.EntityTab)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		_, err = repo.FindByKey(ctx, "x", core.EntityNote, core.FieldContent)
		assert.NoError(t, err)
		_, err = repo.FindByKey(ctx, "x", core.EntityTab, core.FieldURL)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("by owner type and field", func(t *testing.T) {
		repo, _ := newTestRepository(t)
		seed(t, repo)

		n, err := repo.RemoveByOwnerAndTypeAndField(ctx, "x", core.EntityTab, core.FieldURL)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		count, err := repo.CountRecords(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("removal is idempotent", func(t *testing.T) {
		repo, _ := newTestRepository(t)
		seed(t, repo)

		_, err := repo.RemoveByOwner(ctx, "x")
		require.NoError(t, err)
		n, err := repo.RemoveByOwner(ctx, "x")
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = repo.RemoveByOwnerAndTypeAndField(ctx, "nobody", core.EntityTab, core.FieldTitle)
		require.NoError(t, err)
		assert.Zero(t, n)

		n, err = repo.RemoveByOwnerAndType(ctx, "nobody", core.EntityNote)
		require.NoError(t, err)
		assert.Zero(t, n)

		dangling, err := repo.DanglingPostings(ctx, false)
		require.NoError(t, err)
		assert.Zero(t, dangling)
	})
}

func TestFindByScope(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello", "world"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldURL, []string{"hello", "example"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "n1", "n1", core.EntityNote, core.FieldContent, []string{"hello"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "b1", "b1", core.EntityBookmark, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		term  string
		scope core.Scope
		want  []string
	}{
		{"any scope", "hello", core.Scope{}, []string{"t1", "t1", "n1", "b1"}},
		{"type scope", "hello", core.Scope{Type: core.EntityTab}, []string{"t1", "t1"}},
		{"type and field scope", "hello", core.Scope{Type: core.EntityTab, Field: core.FieldURL}, []string{"t1"}},
		{"field scope", "hello", core.Scope{Field: core.FieldTitle}, []string{"t1", "b1"}},
		{"unknown term", "missing", core.Scope{}, []string{}},
		{"empty term", "", core.Scope{}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := repo.FindByScope(ctx, tt.term, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, owners(hits))
			for i := 1; i < len(hits); i++ {
				assert.Less(t, hits[i-1].Id, hits[i].Id)
			}
		})
	}

	t.Run("invalid scope", func(t *testing.T) {
		_, err := repo.FindByScope(ctx, "hello", core.Scope{Type: "window"})
		assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	})
}

func TestFindByScope_SkipsGarbledRecords(t *testing.T) {
	repo, backend := newTestRepository(t)
	ctx := context.Background()

	record, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "t2", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)

	err = backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeIndexRecordKey(record.Id), []byte{0xff, 0xff}); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	hits, err := repo.FindByScope(ctx, "hello", core.Scope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, owners(hits))

	_, err = repo.GetIndexRecord(ctx, record.Id)
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)

	// Upserting the key again repairs the record in place.
	repaired, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)
	assert.Equal(t, record.Id, repaired.Id)

	hits, err = repo.FindByScope(ctx, "hello", core.Scope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, owners(hits))
}

func TestFindByScope_SkipsRecordWithHugeTermCount(t *testing.T) {
	repo, backend := newTestRepository(t)
	ctx := context.Background()

	record, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "t2", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)

	buf := make([]byte, 64)
	n := core.IDMUS.Marshal(record.Id, buf)
	for i := 0; i < 4; i++ {
		n += ord.String.Marshal("", buf[n:])
	}
	n += varint.PositiveInt.Marshal(1<<50, buf[n:])

	err = backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeIndexRecordKey(record.Id), buf[:n]); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	var hits []*core.IndexRecord
	require.NotPanics(t, func() {
		hits, err = repo.FindByScope(ctx, "hello", core.Scope{})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, owners(hits))

	_, err = repo.GetIndexRecord(ctx, record.Id)
	assert.ErrorIs(t, err, storage.ErrSerializationFailed)
}

func TestFindByKey_InvariantViolation(t *testing.T) {
	repo, backend := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)
	other, err := repo.Upsert(ctx, "t2", "s1", core.EntityTab, core.FieldTitle, []string{"world"})
	require.NoError(t, err)

	// Point t1's compound key at t2's record.
	err = backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeIndexKey("t1", core.EntityTab, core.FieldTitle), storage.MarshalID(other.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	_, err = repo.FindByKey(ctx, "t1", core.EntityTab, core.FieldTitle)
	assert.ErrorIs(t, err, storage.ErrInvariantViolation)

	_, err = repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"again"})
	assert.ErrorIs(t, err, storage.ErrInvariantViolation)
}

func TestFindByKey_NotFound(t *testing.T) {
	repo, _ := newTestRepository(t)

	_, err := repo.FindByKey(context.Background(), "nobody", core.EntityTab, core.FieldTitle)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = repo.GetIndexRecord(context.Background(), core.ID(999))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListRecords(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	var ids []core.ID
	for i := range 5 {
		record, err := repo.Upsert(ctx, fmt.Sprintf("n%d", i), "", core.EntityNote, core.FieldContent, []string{"x"})
		require.NoError(t, err)
		ids = append(ids, record.Id)
	}

	page, err := repo.ListRecords(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, ids[0], page[0].Id)

	page, err = repo.ListRecords(ctx, page[2].Id, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[1].Id)

	_, err = repo.ListRecords(ctx, 0, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestMissingPostingsAndDanglingPostings(t *testing.T) {
	repo, backend := newTestRepository(t)
	ctx := context.Background()

	record, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello", "world"})
	require.NoError(t, err)

	missing, err := repo.MissingPostings(ctx, record)
	require.NoError(t, err)
	assert.Empty(t, missing)

	// Drop one posting and add a stray one.
	err = backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeTermKey("world", core.EntityTab, core.FieldTitle, record.Id)); err != nil {
			return err
		}
		if err := tx.Set(makeTermKey("stale", core.EntityTab, core.FieldTitle, record.Id), storage.MarshalID(record.Id)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	require.NoError(t, err)

	missing, err = repo.MissingPostings(ctx, record)
	require.NoError(t, err)
	assert.Equal(t, []string{"world"}, missing)

	n, err := repo.DanglingPostings(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.DanglingPostings(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.DanglingPostings(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteRecord(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	record, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteRecord(ctx, record.Id))

	_, err = repo.FindByKey(ctx, "t1", core.EntityTab, core.FieldTitle)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	hits, err := repo.FindByScope(ctx, "hello", core.Scope{})
	require.NoError(t, err)
	assert.Empty(t, hits)

	assert.ErrorIs(t, repo.DeleteRecord(ctx, record.Id), storage.ErrNotFound)
}

func TestRepository_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false, nil)
	require.NoError(t, err)
	repo, err := NewIndexRepository(backend)
	require.NoError(t, err)
	first, err := repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false, nil)
	require.NoError(t, err)
	defer backend.Close()
	repo, err = NewIndexRepository(backend)
	require.NoError(t, err)
	defer repo.Close()

	hits, err := repo.FindByScope(ctx, "hello", core.Scope{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, owners(hits))

	second, err := repo.Upsert(ctx, "t2", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)
	assert.Greater(t, second.Id, first.Id)
}

func TestRepository_Closed(t *testing.T) {
	repo, backend, err := NewMemoryRepository()
	require.NoError(t, err)
	repo.Close()
	backend.Close()

	_, err = repo.FindByScope(context.Background(), "hello", core.Scope{})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestIndexRepository_CloseLeavesBackendOpen(t *testing.T) {
	backend, err := OpenBackend("", true, nil)
	require.NoError(t, err)
	defer backend.Close()
	ctx := context.Background()

	repo, err := NewIndexRepository(backend)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, "t1", "s1", core.EntityTab, core.FieldTitle, []string{"hello"})
	require.NoError(t, err)
	require.NoError(t, repo.Close())
	assert.False(t, backend.IsClosed())

	reopened, err := NewIndexRepository(backend)
	require.NoError(t, err)
	defer reopened.Close()

	record, err := reopened.FindByKey(ctx, "t1", core.EntityTab, core.FieldTitle)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, record.Terms)
}

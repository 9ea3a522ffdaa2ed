package maintenance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/textidx/core"
	"github.com/poiesic/textidx/storage"
)

// BatchChecker verifies and optionally repairs batches of index records.
type BatchChecker struct {
	repo           storage.MaintenanceRepository
	repair         bool
	maxRetries     int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// NewBatchChecker creates a new batch checker.
// maxRetries: maximum number of attempts for each repair
// retryBaseDelay: base delay for exponential backoff
func NewBatchChecker(repo storage.MaintenanceRepository, repair bool, maxRetries int, retryBaseDelay time.Duration, logger *slog.Logger) *BatchChecker {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchChecker{
		repo:           repo,
		repair:         repair,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
		logger:         logger,
	}
}

// Process checks every record of the batch and adds its findings to report.
func (bc *BatchChecker) Process(ctx context.Context, records []*core.IndexRecord, report *Report) error {
	for _, record := range records {
		if err := bc.checkRecord(ctx, record, report); err != nil {
			return err
		}
		report.Records++
	}
	return nil
}

func (bc *BatchChecker) checkRecord(ctx context.Context, record *core.IndexRecord, report *Report) error {
	missing, err := bc.repo.MissingPostings(ctx, record)
	switch {
	case errors.Is(err, storage.ErrInvariantViolation):
		report.StrayRecords++
		bc.logger.Error("stray index record", "id", record.Id, "key", record.Key(), "err", err)
		if !bc.repair {
			return nil
		}
		err = RetryWithBackoff(ctx, func() error {
			err := bc.repo.DeleteRecord(ctx, record.Id)
			if errors.Is(err, storage.ErrNotFound) {
				return nil
			}
			return err
		}, bc.maxRetries, bc.retryBaseDelay)
		if err != nil {
			return fmt.Errorf("failed to delete stray record %d after %d attempts: %w", record.Id, bc.maxRetries, err)
		}
		report.Repaired++
		return nil
	case err != nil:
		return fmt.Errorf("failed to check record %d: %w", record.Id, err)
	}

	if len(missing) == 0 {
		return nil
	}
	report.RecordsMissingPostings++
	report.MissingPostings += len(missing)
	bc.logger.Warn("record has terms without postings", "id", record.Id, "key", record.Key(), "missing", len(missing))
	if !bc.repair {
		return nil
	}

	err = RetryWithBackoff(ctx, func() error {
		return bc.rewrite(ctx, record)
	}, bc.maxRetries, bc.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to rewrite record %d after %d attempts: %w", record.Id, bc.maxRetries, err)
	}
	report.Repaired++
	return nil
}

// rewrite re-upserts the current terms of the record's key, restoring its
// postings. The read and the write share a transaction so a concurrent
// update is never overwritten with stale terms.
func (bc *BatchChecker) rewrite(ctx context.Context, record *core.IndexRecord) error {
	return bc.repo.WithTransaction(ctx, func(ctx context.Context) error {
		current, err := bc.repo.FindByKey(ctx, record.Owner, record.Type, record.Field)
		if errors.Is(err, storage.ErrNotFound) {
			// Removed since it was listed.
			return nil
		}
		if err != nil {
			return err
		}
		_, err = bc.repo.Upsert(ctx, current.Owner, current.UltimateOwner, current.Type, current.Field, current.Terms)
		return err
	})
}

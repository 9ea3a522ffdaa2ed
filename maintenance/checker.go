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
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/textidx/core"
	"github.com/poiesic/textidx/storage"
)

// Report summarizes a consistency check.
type Report struct {
	Records                int  // Records examined
	StrayRecords           int  // Records their compound key does not point at
	RecordsMissingPostings int  // Records with at least one term lacking a posting
	MissingPostings        int  // Terms lacking a posting, over all records
	DanglingPostings       int  // Postings without a record holding the term
	Repaired               int  // Records deleted or rewritten
	Pruned                 bool // Whether dangling postings were deleted
}

// Clean reports whether the check found no problems.
func (r *Report) Clean() bool {
	return r.StrayRecords == 0 && r.MissingPostings == 0 && r.DanglingPostings == 0
}

func (r *Report) String() string {
	return fmt.Sprintf("records=%d stray=%d missing_postings=%d (in %d records) dangling_postings=%d repaired=%d pruned=%t",
		r.Records, r.StrayRecords, r.MissingPostings, r.RecordsMissingPostings, r.DanglingPostings, r.Repaired, r.Pruned)
}

// Checker verifies the structure of an index and optionally repairs it.
type Checker struct {
	repo      storage.MaintenanceRepository
	config    *Config
	progress  io.Writer
	logger    *slog.Logger
	processor *BatchChecker
	iterator  *RecordIterator
}

// NewChecker creates a new checker.
// progress: where to write progress output (typically os.Stderr)
// logger: may be nil, in which case slog.Default() is used
func NewChecker(repo storage.MaintenanceRepository, config *Config, progress io.Writer, logger *slog.Logger) (*Checker, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "checker")

	return &Checker{
		repo:      repo,
		config:    config,
		progress:  progress,
		logger:    logger,
		processor: NewBatchChecker(repo, config.Repair, config.MaxRetries, config.RetryDelay, logger),
		iterator:  NewRecordIterator(repo, config.BatchSize),
	}, nil
}

// Run checks every record, then the term index.
// Progress is reported to the configured writer.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	total, err := c.repo.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}

	fmt.Fprintf(c.progress, "Checking %d records (batch size: %d, repair: %t)\n",
		total, c.config.BatchSize, c.config.Repair)

	tracker := NewProgressTracker(c.progress, total, c.config.ReportInterval)
	tracker.Start()

	report := &Report{}
	err = c.iterator.ForEach(ctx, func(records []*core.IndexRecord) error {
		if err := c.processor.Process(ctx, records, report); err != nil {
			return fmt.Errorf("failed to check batch: %w", err)
		}
		tracker.Increment(len(records))
		return nil
	})
	if err != nil {
		return report, err
	}
	tracker.Finish()

	err = RetryWithBackoff(ctx, func() error {
		n, err := c.repo.DanglingPostings(ctx, c.config.Repair)
		if err != nil {
			return err
		}
		report.DanglingPostings = n
		return nil
	}, c.config.MaxRetries, c.config.RetryDelay)
	if err != nil {
		return report, fmt.Errorf("failed to check postings: %w", err)
	}
	report.Pruned = c.config.Repair && report.DanglingPostings > 0

	elapsed := tracker.Elapsed()
	fmt.Fprintf(c.progress, "Check complete in %v: %s\n", elapsed.Round(time.Millisecond), report)
	c.logger.Info("index check finished", "records", report.Records, "clean", report.Clean(), "repaired", report.Repaired)

	return report, nil
}

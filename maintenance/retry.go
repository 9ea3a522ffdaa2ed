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
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/textidx/storage"
)

// RetryWithBackoff retries an operation with exponential backoff.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: base delay between retries (doubles on each retry)
// Returns the error from the last attempt if all attempts fail.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	return retry(ctx, operation, func(error) bool { return true }, maxAttempts, baseDelay)
}

// RetryConflicts is RetryWithBackoff restricted to storage.ErrConflict.
// Any other error is returned immediately.
func RetryConflicts(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	return retry(ctx, operation, func(err error) bool {
		return errors.Is(err, storage.ErrConflict)
	}, maxAttempts, baseDelay)
}

// maxRetryDelay caps the doubling of the retry delay. A base delay above it is
// used as is.
const maxRetryDelay = 30 * time.Second

// backoffDelay returns baseDelay * 2^(attempt-1), capped.
func backoffDelay(baseDelay time.Duration, attempt int) time.Duration {
	limit := max(baseDelay, maxRetryDelay)
	delay := baseDelay
	for i := 1; i < attempt && delay > 0 && delay < limit; i++ {
		delay *= 2
	}
	return min(delay, limit)
}

func retry(ctx context.Context, operation func() error, retryable func(error) bool, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if !retryable(lastErr) {
			return lastErr
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "err", lastErr)

		// Don't sleep after the last attempt
		if attempt == maxAttempts {
			break
		}

		timer := time.NewTimer(backoffDelay(baseDelay, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

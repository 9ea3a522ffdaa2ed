package maintenance

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/textidx/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 3, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	operation := func() error {
		attempts++
		return expectedErr
	}

	err := RetryWithBackoff(context.Background(), operation, 3, time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	}

	err := RetryWithBackoff(ctx, operation, 10, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts, "should stop when context is canceled")
}

func TestRetryWithBackoff_InvalidMaxAttempts(t *testing.T) {
	for _, maxAttempts := range []int{0, -1} {
		t.Run(fmt.Sprintf("maxAttempts=%d", maxAttempts), func(t *testing.T) {
			attempts := 0
			err := RetryWithBackoff(context.Background(), func() error {
				attempts++
				return nil
			}, maxAttempts, time.Millisecond)
			assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
			assert.Zero(t, attempts)
		})
	}
}

func TestRetryConflicts(t *testing.T) {
	t.Run("retries conflicts", func(t *testing.T) {
		attempts := 0
		err := RetryConflicts(context.Background(), func() error {
			attempts++
			if attempts < 3 {
				return fmt.Errorf("upsert: %w", storage.ErrConflict)
			}
			return nil
		}, 3, time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		attempts := 0
		err := RetryConflicts(context.Background(), func() error {
			attempts++
			return storage.ErrConflict
		}, 2, time.Millisecond)
		assert.ErrorIs(t, err, storage.ErrConflict)
		assert.Equal(t, 2, attempts)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		attempts := 0
		err := RetryConflicts(context.Background(), func() error {
			attempts++
			return storage.ErrStorageClosed
		}, 5, time.Millisecond)
		assert.Equal(t, storage.ErrStorageClosed, err)
		assert.Equal(t, 1, attempts)
	})
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name     string
		base     time.Duration
		attempt  int
		expected time.Duration
	}{
		{"first attempt", 10 * time.Millisecond, 1, 10 * time.Millisecond},
		{"doubles", 10 * time.Millisecond, 3, 40 * time.Millisecond},
		{"capped", 10 * time.Millisecond, 1000, maxRetryDelay},
		{"huge attempt count", time.Millisecond, 1 << 40, maxRetryDelay},
		{"base above cap", time.Minute, 5, time.Minute},
		{"zero base", 0, 1 << 40, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, backoffDelay(tt.base, tt.attempt))
		})
	}
}

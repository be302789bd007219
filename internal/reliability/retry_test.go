package reliability

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	t.Run("creates with correct defaults", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, 5*time.Second, 2.0, 3)

		assert.Equal(t, 100*time.Millisecond, eb.InitialInterval)
		assert.Equal(t, 5*time.Second, eb.MaxInterval)
		assert.Equal(t, 2.0, eb.Multiplier)
		assert.Equal(t, 3, eb.MaxRetries())
		assert.True(t, eb.Jitter)
	})

	t.Run("ShouldRetry respects max retries", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, time.Second, 2.0, 3)

		for i := 0; i < 3; i++ {
			retry, delay := eb.ShouldRetry(i, errors.New("test"))
			assert.True(t, retry)
			assert.Greater(t, delay, time.Duration(0))
		}

		retry, delay := eb.ShouldRetry(3, errors.New("test"))
		assert.False(t, retry)
		assert.Zero(t, delay)
	})

	t.Run("negative max retries never gives up", func(t *testing.T) {
		eb := NewExponentialBackoff(time.Millisecond, time.Second, 2.0, -1)
		retry, _ := eb.ShouldRetry(1000, errors.New("test"))
		assert.True(t, retry)
	})

	t.Run("NextDelay doubles up to the cap", func(t *testing.T) {
		eb := NewExponentialBackoff(100*time.Millisecond, 10*time.Second, 2.0, 5)
		eb.Jitter = false

		tests := []struct {
			attempt  int
			expected time.Duration
		}{
			{0, 100 * time.Millisecond},
			{1, 200 * time.Millisecond},
			{2, 400 * time.Millisecond},
			{4, 1600 * time.Millisecond},
			{10, 10 * time.Second},
		}
		for _, tt := range tests {
			t.Run(fmt.Sprintf("attempt %d", tt.attempt), func(t *testing.T) {
				assert.Equal(t, tt.expected, eb.NextDelay(tt.attempt))
			})
		}
	})

	t.Run("jitter stays within 15 percent", func(t *testing.T) {
		eb := NewExponentialBackoff(time.Second, 10*time.Second, 2.0, 5)
		for i := 0; i < 50; i++ {
			delay := eb.NextDelay(0)
			assert.GreaterOrEqual(t, delay, 850*time.Millisecond)
			assert.LessOrEqual(t, delay, 1150*time.Millisecond)
		}
	})

	t.Run("does not retry permanent errors", func(t *testing.T) {
		eb := NewExponentialBackoff(time.Millisecond, time.Second, 2.0, 5)
		retry, _ := eb.ShouldRetry(0, Permanent(errors.New("bad url")))
		assert.False(t, retry)
	})
}

func TestFixedDelay(t *testing.T) {
	t.Run("returns the same delay until exhausted", func(t *testing.T) {
		fd := NewFixedDelay(50*time.Millisecond, 2)

		for i := 0; i < 2; i++ {
			retry, delay := fd.ShouldRetry(i, errors.New("test"))
			assert.True(t, retry)
			assert.Equal(t, 50*time.Millisecond, delay)
		}
		retry, _ := fd.ShouldRetry(2, errors.New("test"))
		assert.False(t, retry)
		assert.Equal(t, 50*time.Millisecond, fd.NextDelay(7))
	})
}

func TestRetry(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 5), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("wraps the last error when retries run out", func(t *testing.T) {
		last := errors.New("still down")
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 2), func() error {
			calls++
			return last
		})
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.ErrorIs(t, err, last)
		assert.Equal(t, 3, calls)
	})

	t.Run("returns permanent errors immediately", func(t *testing.T) {
		cause := errors.New("invalid configuration")
		calls := 0
		err := Retry(context.Background(), NewFixedDelay(time.Millisecond, 5), func() error {
			calls++
			return Permanent(cause)
		})
		assert.ErrorIs(t, err, cause)
		assert.NotErrorIs(t, err, ErrMaxRetriesExceeded)
		assert.Equal(t, 1, calls)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		err := Retry(ctx, NewFixedDelay(time.Hour, -1), func() error {
			calls++
			cancel()
			return errors.New("down")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestIsRetryable(t *testing.T) {
	t.Run("nil is not retryable", func(t *testing.T) {
		assert.False(t, IsRetryable(nil))
	})

	t.Run("plain errors are retryable", func(t *testing.T) {
		assert.True(t, IsRetryable(errors.New("test")))
	})

	t.Run("classification survives wrapping", func(t *testing.T) {
		err := fmt.Errorf("connect: %w", Permanent(errors.New("bad url")))
		assert.False(t, IsRetryable(err))

		err = fmt.Errorf("connect: %w", RetryableError{Err: errors.New("timeout"), Retryable: true})
		assert.True(t, IsRetryable(err))
	})
}

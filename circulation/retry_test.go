package circulation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_RetryOnConflict_Success_NoRetries(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return nil // Success on the first attempt
	}

	err := RetryOnConflict(ctx, fn)

	assert.NoError(t, err)
	assert.Equal(t, 1, callCount)
}

func Test_RetryOnConflict_RetriesOnConcurrencyConflict(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		if callCount < 3 {
			return ErrConcurrencyConflict // Fail twice
		}
		return nil // Success on the third attempt
	}

	err := RetryOnConflict(ctx, fn, WithBaseDelay(time.Millisecond))

	assert.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func Test_RetryOnConflict_FailsFast_OnPermanentError(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return ErrBookNotAvailable
	}

	err := RetryOnConflict(ctx, fn)

	assert.ErrorIs(t, err, ErrBookNotAvailable)
	assert.Equal(t, 1, callCount)
}

func Test_RetryOnConflict_GivesUp_AfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	callCount := 0

	fn := func(_ context.Context) error {
		callCount++
		return ErrConcurrencyConflict
	}

	err := RetryOnConflict(ctx, fn, WithMaxAttempts(3), WithBaseDelay(time.Millisecond))

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.Equal(t, 3, callCount)
}

func Test_RetryOnConflict_StopsWhenContextIsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	fn := func(_ context.Context) error {
		cancel() // Cancel while the first attempt is in flight
		return ErrConcurrencyConflict
	}

	err := RetryOnConflict(ctx, fn, WithBaseDelay(50*time.Millisecond))

	assert.ErrorIs(t, err, context.Canceled)
}

func Test_RetryOnConflict_RejectsInvalidOptions(t *testing.T) {
	ctx := context.Background()
	fn := func(_ context.Context) error { return nil }

	assert.ErrorIs(t, RetryOnConflict(ctx, fn, WithMaxAttempts(0)), ErrInvalidMaxAttempts)
	assert.ErrorIs(t, RetryOnConflict(ctx, fn, WithBaseDelay(-time.Second)), ErrNegativeBaseDelay)
	assert.ErrorIs(t, RetryOnConflict(ctx, fn, WithJitterFactor(1.5)), ErrInvalidJitterFactor)
	assert.ErrorIs(t, RetryOnConflict(ctx, fn, WithRetryMetrics(nil, "checkout")), ErrNilMetricsCollector)

	var collector noopCollector
	assert.ErrorIs(t, RetryOnConflict(ctx, fn, WithRetryMetrics(collector, "")), ErrEmptyOperationName)
}

type noopCollector struct{}

func (noopCollector) RecordDuration(string, time.Duration, map[string]string) {}
func (noopCollector) IncrementCounter(string, map[string]string)              {}
func (noopCollector) RecordValue(string, float64, map[string]string)          {}

func Test_RetryErrorType_Classification(t *testing.T) {
	assert.Equal(t, "none", retryErrorType(nil))
	assert.Equal(t, "concurrency_conflict", retryErrorType(ErrConcurrencyConflict))
	assert.Equal(t, "context_canceled", retryErrorType(context.Canceled))
	assert.Equal(t, "context_deadline_exceeded", retryErrorType(context.DeadlineExceeded))
	assert.Equal(t, "other", retryErrorType(errors.New("boom")))
}

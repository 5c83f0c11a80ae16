package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type hintErr struct {
	after time.Duration
}

func (e *hintErr) Error() string { return "slow down" }

func recordingRetrier(opts ...Option) (*Retrier, *[]time.Duration) {
	r := New(opts...)
	slept := []time.Duration{}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return r, &slept
}

func TestDo_SucceedsAfterRetryableErrors(t *testing.T) {
	r, slept := recordingRetrier(WithMaxAttempts(4), WithJitter(0))

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errors.New("flaky"))
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *slept)
}

func TestDo_StopsAtCeilingAndReturnsUnwrappedError(t *testing.T) {
	r, slept := recordingRetrier(WithMaxAttempts(3), WithJitter(0))
	base := errors.New("still throttled")

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(base)
	})

	assert.Same(t, base, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *slept, 2)
}

func TestDo_PermanentErrorIsNotRetried(t *testing.T) {
	r, _ := recordingRetrier(WithMaxAttempts(5))
	base := errors.New("bad key")

	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(base)
	})

	assert.Same(t, base, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryAfterIsLowerBound(t *testing.T) {
	r, slept := recordingRetrier(
		WithMaxAttempts(3),
		WithJitter(0),
		WithRetryIf(func(err error) bool { return true }),
		WithRetryAfter(func(err error) (time.Duration, bool) {
			var h *hintErr
			if errors.As(err, &h) {
				return h.after, true
			}
			return 0, false
		}),
	)

	calls := 0
	_ = r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return &hintErr{after: 7 * time.Second}
		}
		return &hintErr{after: 10 * time.Millisecond}
	})

	// The first hint exceeds the backoff; the second is below it.
	assert.Equal(t, []time.Duration{7 * time.Second, 200 * time.Millisecond}, *slept)
}

func TestDo_ContextCancelledReturnsLastError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(WithMaxAttempts(5), WithInitialDelay(time.Hour))
	base := errors.New("flaky")

	err := r.Do(ctx, func(ctx context.Context) error {
		cancel()
		return Retryable(base)
	})

	assert.Same(t, base, err)
}

func TestBackoff_CappedAtMaxDelay(t *testing.T) {
	r := New(WithInitialDelay(time.Second), WithMaxDelay(3*time.Second), WithJitter(0))

	assert.Equal(t, time.Second, r.backoff(1))
	assert.Equal(t, 2*time.Second, r.backoff(2))
	assert.Equal(t, 3*time.Second, r.backoff(5))
}

func TestDoWithData(t *testing.T) {
	r, _ := recordingRetrier(WithMaxAttempts(2))

	calls := 0
	got, err := DoWithData(context.Background(), r, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errors.New("once"))
		}
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, got)
}

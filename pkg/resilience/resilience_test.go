package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = resilience.Backoff{Attempts: 4, Initial: time.Millisecond, Max: 2 * time.Millisecond}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Retry(context.Background(), "flaky", fast, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("gone")
	calls := 0
	err := resilience.Retry(context.Background(), "perm", fast, func(context.Context) error {
		calls++
		return resilience.Permanent(sentinel)
	})
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, sentinel)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	calls := 0
	err := resilience.Retry(context.Background(), "always", fast, func(context.Context) error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestRetry_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := resilience.Backoff{Attempts: 3, Initial: time.Hour, Max: time.Hour}
	err := resilience.Retry(ctx, "cancel", slow, func(context.Context) error {
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackoff_DelayCapped(t *testing.T) {
	t.Parallel()

	b := resilience.Backoff{Initial: time.Second, Max: 3 * time.Second, Multiplier: 10}
	assert.Equal(t, 3*time.Second, b.Delay(5))
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker("cache", resilience.BreakerConfig{Threshold: 2, Cooldown: time.Hour})
	fail := func() error { return errors.New("down") }

	require.Error(t, b.Do(fail))
	assert.Equal(t, resilience.Closed, b.State())
	require.Error(t, b.Do(fail))
	assert.Equal(t, resilience.Open, b.State())

	called := false
	err := b.Do(func() error { called = true; return nil })
	assert.ErrorIs(t, err, resilience.ErrOpen)
	assert.False(t, called)
}

func TestBreaker_ProbeClosesAfterCooldown(t *testing.T) {
	t.Parallel()

	b := resilience.NewBreaker("cache", resilience.BreakerConfig{Threshold: 1, Cooldown: 5 * time.Millisecond})
	require.Error(t, b.Do(func() error { return errors.New("down") }))
	require.Equal(t, resilience.Open, b.State())

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, resilience.Closed, b.State())
}

func TestWithDeadline(t *testing.T) {
	t.Parallel()

	v, err := resilience.WithDeadline(context.Background(), time.Second, "quick", func(context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = resilience.WithDeadline(context.Background(), 5*time.Millisecond, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	assert.True(t, apperrors.Is(err, apperrors.ErrTimeout))
}

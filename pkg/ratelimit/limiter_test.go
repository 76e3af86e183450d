package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/beaconincome/pkg/ratelimit"
)

func TestLimiterBackoffBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it grows the delay monotonically up to the ceiling", func(t *testing.T) {
		t.Parallel()

		// Arrange
		limiter := ratelimit.New(tuning(100*time.Millisecond, 2*time.Second))

		// Act
		delays := make([]time.Duration, 0, 10)
		for range 10 {
			limiter.Report(false, 0)
			delays = append(delays, limiter.Delay())
		}

		// Assert
		assert.Equal(t, 100*time.Millisecond, delays[0], "First failure should start at initial delay")
		for i := 1; i < len(delays); i++ {
			assert.GreaterOrEqual(t, delays[i], delays[i-1], "Delay %d should not decrease", i)
			assert.LessOrEqual(t, delays[i], 2*time.Second, "Delay %d should be capped", i)
		}
		assert.Equal(t, 2*time.Second, delays[len(delays)-1], "Delay should settle at the ceiling")
		assert.Equal(t, 10, limiter.Failures())
	})

	t.Run("it honours a retry hint longer than the computed delay", func(t *testing.T) {
		t.Parallel()

		// Arrange
		limiter := ratelimit.New(tuning(100*time.Millisecond, time.Minute))

		// Act
		limiter.Report(false, 30*time.Second)

		// Assert
		assert.Equal(t, 30*time.Second, limiter.Delay())
		assert.False(t, limiter.Exhausted())
	})

	t.Run("it reports exhaustion after repeated hints beyond the ceiling", func(t *testing.T) {
		t.Parallel()

		// Arrange
		cfg := tuning(100*time.Millisecond, time.Second)
		cfg.CapThreshold = 2
		limiter := ratelimit.New(cfg)

		// Act
		limiter.Report(false, time.Hour)
		afterFirst := limiter.Exhausted()
		limiter.Report(false, time.Hour)

		// Assert
		assert.False(t, afterFirst)
		assert.True(t, limiter.Exhausted())
		assert.Equal(t, time.Second, limiter.Delay(), "Delay must never exceed the ceiling")

		limiter.ResetExhaustion()
		assert.False(t, limiter.Exhausted())
	})

	t.Run("it decays the delay toward the floor on success", func(t *testing.T) {
		t.Parallel()

		// Arrange
		cfg := tuning(time.Second, 8*time.Second)
		cfg.Floor = 500 * time.Millisecond
		limiter := ratelimit.New(cfg)
		for range 4 {
			limiter.Report(false, 0)
		}
		require.Equal(t, 8*time.Second, limiter.Delay())

		// Act
		limiter.Report(true, 0)
		afterOne := limiter.Delay()
		for range 10 {
			limiter.Report(true, 0)
		}

		// Assert
		assert.Equal(t, 4*time.Second, afterOne)
		assert.Equal(t, 500*time.Millisecond, limiter.Delay())
		assert.Zero(t, limiter.Failures())
	})
}

func TestLimiterWaitBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it returns immediately without pacing or backoff", func(t *testing.T) {
		t.Parallel()

		// Arrange
		limiter := ratelimit.New(tuning(time.Millisecond, time.Second))

		// Act
		err := limiter.Wait(t.Context())

		// Assert
		assert.NoError(t, err)
	})

	t.Run("it sleeps the backoff delay on the injected clock", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := newFakeClock()
		limiter := ratelimit.New(tuning(time.Second, time.Minute), ratelimit.WithClock(clk))
		limiter.Report(false, 0)

		// Act
		done := make(chan error, 1)
		go func() { done <- limiter.Wait(t.Context()) }()

		// Assert
		requested := <-clk.requested
		assert.Equal(t, time.Second, requested, "Wait should sleep for the backoff delay")
		clk.tick <- time.Now()
		assert.NoError(t, <-done)
	})

	t.Run("it stops waiting when the context is cancelled", func(t *testing.T) {
		t.Parallel()

		// Arrange
		clk := newFakeClock()
		limiter := ratelimit.New(tuning(time.Second, time.Minute), ratelimit.WithClock(clk))
		limiter.Report(false, 0)
		ctx, cancel := context.WithCancel(t.Context())

		// Act
		done := make(chan error, 1)
		go func() { done <- limiter.Wait(ctx) }()
		<-clk.requested
		cancel()

		// Assert
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("it paces consecutive requests by the minimum interval", func(t *testing.T) {
		t.Parallel()

		// Arrange
		cfg := tuning(time.Millisecond, time.Second)
		cfg.MinInterval = 50 * time.Millisecond
		limiter := ratelimit.New(cfg)

		// Act
		start := time.Now()
		require.NoError(t, limiter.Wait(t.Context()))
		require.NoError(t, limiter.Wait(t.Context()))
		elapsed := time.Since(start)

		// Assert
		assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond, "Second request should wait for the pacing slot")
	})
}

// tuning returns a config without pacing so tests only observe backoff
func tuning(initial, ceiling time.Duration) ratelimit.Config {
	return ratelimit.Config{
		Initial:      initial,
		Ceiling:      ceiling,
		CapThreshold: 3,
	}
}

// fakeClock hands out a controllable channel and records requested durations
type fakeClock struct {
	tick      chan time.Time
	requested chan time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{
		tick:      make(chan time.Time, 1),
		requested: make(chan time.Duration, 10),
	}
}

func (f *fakeClock) After(d time.Duration) <-chan time.Time {
	f.requested <- d
	return f.tick
}

func (f *fakeClock) Now() time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
}

// Package ratelimit paces requests against a shared remote rate limit and
// backs off exponentially when the remote side throttles or fails.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/screwyprof/beaconincome/pkg/clock"
)

// Default tuning values. 6s between requests keeps us at 10 requests per minute.
const (
	DefaultMinInterval  = 6 * time.Second
	DefaultInitial      = 500 * time.Millisecond
	DefaultCeiling      = 60 * time.Second
	DefaultCapThreshold = 3
)

// Config tunes a Limiter
type Config struct {
	MinInterval  time.Duration // minimum gap between two requests, zero disables pacing
	Initial      time.Duration // first backoff delay after a failure
	Ceiling      time.Duration // backoff delay never exceeds this
	Floor        time.Duration // successes decay the delay toward this
	CapThreshold int           // cap hits before the limiter reports exhaustion
}

// DefaultConfig returns the production tuning
func DefaultConfig() Config {
	return Config{
		MinInterval:  DefaultMinInterval,
		Initial:      DefaultInitial,
		Ceiling:      DefaultCeiling,
		CapThreshold: DefaultCapThreshold,
	}
}

// Limiter gates requests. It is owned by a single worker and is not safe for
// concurrent use.
type Limiter struct {
	cfg   Config
	pacer *rate.Limiter
	clock clock.Clock

	delay    time.Duration
	failures int
	capHits  int
}

// Option configures the Limiter
type Option func(*Limiter)

// WithClock injects a custom clock used for backoff sleeps
func WithClock(c clock.Clock) Option {
	return func(l *Limiter) { l.clock = c }
}

// New creates a Limiter, normalising the config the same way the backoff
// timers elsewhere do: non-positive initial falls back to a sane base and the
// ceiling is never below it.
func New(cfg Config, opts ...Option) *Limiter {
	if cfg.Initial <= 0 {
		cfg.Initial = DefaultInitial
	}
	if cfg.Ceiling < cfg.Initial {
		cfg.Ceiling = cfg.Initial
	}
	if cfg.Floor < 0 {
		cfg.Floor = 0
	}
	if cfg.Floor > cfg.Ceiling {
		cfg.Floor = cfg.Ceiling
	}
	if cfg.CapThreshold <= 0 {
		cfg.CapThreshold = DefaultCapThreshold
	}

	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	l := &Limiter{
		cfg:   cfg,
		pacer: rate.NewLimiter(limit, 1),
		clock: clock.SystemClock{},
		delay: cfg.Floor,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until the next request may be issued: first the pacing slot,
// then the current backoff delay. It returns ctx.Err() when cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.pacer.Wait(ctx); err != nil {
		// rate.Limiter reports a would-exceed-deadline condition with its own error
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	if l.delay <= 0 {
		return ctx.Err()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-l.clock.After(l.delay):
		return nil
	}
}

// Report records the outcome of the last request.
//
// A failure doubles the delay (starting at Initial), raises it to retryAfter
// when the server asked for longer, and clamps it to Ceiling. A retryAfter
// beyond the ceiling counts as a cap hit. A success resets the failure
// counters and halves the delay toward Floor.
func (l *Limiter) Report(success bool, retryAfter time.Duration) {
	if success {
		l.failures = 0
		l.capHits = 0
		l.delay /= 2
		if l.delay < l.cfg.Floor {
			l.delay = l.cfg.Floor
		}
		return
	}

	l.failures++

	next := l.delay * 2
	if next < l.cfg.Initial {
		next = l.cfg.Initial
	}
	if retryAfter > next {
		next = retryAfter
	}
	if retryAfter > l.cfg.Ceiling {
		l.capHits++
	}
	if next > l.cfg.Ceiling {
		next = l.cfg.Ceiling
	}
	l.delay = next
}

// Exhausted reports whether the server kept asking for waits beyond the
// ceiling often enough that the current unit should be abandoned.
func (l *Limiter) Exhausted() bool {
	return l.capHits >= l.cfg.CapThreshold
}

// ResetExhaustion clears the cap-hit counter once the caller has given up on a unit
func (l *Limiter) ResetExhaustion() {
	l.capHits = 0
}

// Delay is the backoff applied before the next request on top of pacing
func (l *Limiter) Delay() time.Duration { return l.delay }

// Failures is the number of consecutive failed outcomes
func (l *Limiter) Failures() int { return l.failures }

package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/screwyprof/beaconincome/income"
	"github.com/screwyprof/beaconincome/pkg/clock"
	"github.com/screwyprof/beaconincome/pkg/ratelimit"
)

// Config describes a single collection run
type Config struct {
	Duration        income.Duration
	Mode            Mode
	PerPage         int
	Population      int64 // known validator count, skips the population query when positive
	MaxRetries      int   // retries per unit after the first attempt
	CheckpointEvery int   // save progress every N processed units, zero disables
	KeepSamples     bool  // retain folded (index, income) pairs for the raw dump
}

// DefaultConfig returns a full 365-day sweep with the default tuning
func DefaultConfig() Config {
	return Config{
		Duration:        income.DefaultDuration,
		Mode:            Full(),
		PerPage:         DefaultPerPage,
		MaxRetries:      DefaultMaxRetries,
		CheckpointEvery: DefaultCheckpointEvery,
	}
}

// Option configures the Engine
// ----------------------------
type Option func(*Engine)

// WithStore persists checkpoints to the given store
func WithStore(s Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithPacer replaces the default rate limiter
func WithPacer(p Pacer) Option {
	return func(e *Engine) { e.pacer = p }
}

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// Engine drives the fetch loop: one unit at a time, paced by the Pacer,
// folding successful records into a single Aggregator.
// ---------------------------------------------------------------------
type Engine struct {
	cfg        Config
	fetcher    Fetcher
	population PopulationSource
	store      Store
	pacer      Pacer
	clock      clock.Clock
}

// NewEngine constructs an Engine.
// By default, it uses a real clock, the default rate limiter and keeps no checkpoints.
func NewEngine(cfg Config, fetcher Fetcher, population PopulationSource, opts ...Option) *Engine {
	if cfg.PerPage <= 0 {
		cfg.PerPage = DefaultPerPage
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Duration == "" {
		cfg.Duration = income.DefaultDuration
	}

	e := &Engine{
		cfg:        cfg,
		fetcher:    fetcher,
		population: population,
		store:      nopStore{},
		clock:      clock.SystemClock{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.pacer == nil {
		e.pacer = ratelimit.New(ratelimit.DefaultConfig(), ratelimit.WithClock(e.clock))
	}
	return e
}

// Start launches the run and returns the events channel and the result channel.
//
// Shutdown pattern:
//  1. Cancel context to request an interruption: cancel()
//  2. Engine finishes the in-flight request, saves progress and closes events
//  3. Receive the terminal result: <-result
//
// Events must be drained until the channel closes.
func (e *Engine) Start(ctx context.Context) (<-chan Event, <-chan Result) {
	events := make(chan Event, 10)
	result := make(chan Result, 1)
	go func() {
		defer close(result)
		defer close(events)
		r := e.run(ctx, events)
		events <- RunFinished{Result: r}
		result <- r
	}()
	return events, result
}

// Run executes the collection and blocks until it reaches a terminal state
func (e *Engine) Run(ctx context.Context) Result {
	events, result := e.Start(ctx)
	for range events {
	}
	return <-result
}

// pending is a queued unit with the attempts spent on it so far
type pending struct {
	unit    FetchUnit
	attempt int
}

// session owns the queue and the aggregator for the whole run
type session struct {
	*Engine
	events    chan<- Event
	agg       *income.Aggregator
	queue     []pending
	cursor    *FetchUnit
	result    Result
	sinceSave int
	persisted int // samples already handed to the store
}

func (e *Engine) run(ctx context.Context, events chan<- Event) Result {
	r := &session{
		Engine: e,
		events: events,
		agg:    income.NewAggregator(),
		result: Result{
			Duration:  e.cfg.Duration,
			Mode:      e.cfg.Mode,
			Effective: e.cfg.Mode,
		},
	}
	start := e.clock.Now()

	population, err := r.prepare(ctx)
	if err != nil {
		// A stop requested during start-up is still an interruption
		if ctx.Err() != nil {
			return r.finish(start, Interrupted, nil)
		}
		return r.finish(start, Failed, err)
	}

	events <- RunStarted{
		StartedAt:  start,
		Mode:       r.result.Mode,
		Effective:  r.result.Effective,
		Population: population,
		Units:      len(r.queue),
		Resumed:    r.result.Resumed,
	}

	reason, err := r.loop(ctx)
	switch reason {
	case Completed:
		if err := e.store.Clear(context.WithoutCancel(ctx)); err != nil {
			events <- CheckpointError{Err: fmt.Errorf("%w: %w", ErrCheckpointSave, err)}
		}
	default:
		r.save(ctx)
	}
	return r.finish(start, reason, err)
}

// prepare resumes a matching checkpoint or plans a fresh queue
func (r *session) prepare(ctx context.Context) (int64, error) {
	if err := r.cfg.Mode.Validate(); err != nil {
		return 0, err
	}

	cp, err := r.store.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCheckpointLoad, err)
	}
	if cp != nil && r.resumable(*cp) {
		r.restore(*cp)
		return r.cfg.Population, nil
	}

	population := r.cfg.Population
	if population <= 0 && r.cfg.Mode.NeedsPopulation() {
		population, err = r.queryPopulation(ctx)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrPopulationQuery, err)
		}
	}

	units, effective, err := Plan(population, r.cfg.Mode, r.cfg.PerPage)
	if err != nil {
		return population, err
	}
	r.result.Effective = effective
	r.queue = make([]pending, len(units))
	for i, u := range units {
		r.queue[i] = pending{unit: u}
	}
	return population, nil
}

// resumable reports whether the checkpoint belongs to this run and, when the
// run keeps raw samples, holds a sample for everything already folded.
func (r *session) resumable(cp Checkpoint) bool {
	if !cp.Matches(r.cfg.Duration, r.cfg.Mode, r.cfg.PerPage) {
		return false
	}
	return !r.cfg.KeepSamples || int64(len(cp.Samples)) >= cp.Count
}

func (r *session) queryPopulation(ctx context.Context) (int64, error) {
	if r.population == nil {
		return 0, ErrUnknownPopulation
	}
	if err := r.pacer.Wait(ctx); err != nil {
		return 0, err
	}
	epoch, err := r.population.LatestEpoch(ctx)
	if err != nil {
		return 0, err
	}
	if epoch.ValidatorsCount <= 0 {
		return 0, ErrUnknownPopulation
	}
	return epoch.ValidatorsCount, nil
}

func (r *session) restore(cp Checkpoint) {
	r.agg.Restore(cp.Sum, cp.Count)
	r.cursor = cp.Cursor
	r.queue = make([]pending, len(cp.Remaining))
	for i, u := range cp.Remaining {
		r.queue[i] = pending{unit: u}
	}
	r.result.Effective = cp.Effective
	r.result.Processed = cp.Processed
	r.result.Skipped = cp.Skipped
	r.result.Exhausted = cp.Exhausted
	r.result.Resumed = true
	if r.cfg.KeepSamples {
		r.result.Samples = cp.Samples
		r.persisted = len(cp.Samples)
	}
}

// loop processes the queue until it drains, the context is cancelled,
// or the API turns out to be unusable before any progress was made.
func (r *session) loop(ctx context.Context) (Reason, error) {
	for len(r.queue) > 0 {
		if ctx.Err() != nil {
			return Interrupted, nil
		}
		if err := r.pacer.Wait(ctx); err != nil {
			return Interrupted, nil
		}

		next := r.queue[0]
		// The in-flight request is allowed to finish so its records are not lost
		outcome := r.fetcher.Fetch(context.WithoutCancel(ctx), next.unit)

		switch outcome.Kind {
		case Success:
			r.pacer.Report(true, 0)
			r.queue = r.queue[1:]
			r.complete(ctx, next.unit, outcome.Records)

		case Retryable:
			r.pacer.Report(false, outcome.RetryAfter)
			r.queue = r.queue[1:]
			r.retry(next, outcome.Err)

		default:
			if r.unusable(outcome.Err) {
				return Failed, outcome.Err
			}
			r.queue = r.queue[1:]
			r.result.Skipped++
			r.events <- UnitSkipped{Unit: next.unit, Err: outcome.Err}
		}
	}
	return Completed, nil
}

func (r *session) complete(ctx context.Context, unit FetchUnit, records []income.Record) {
	folded := 0
	for _, rec := range records {
		v := rec.Income(r.cfg.Duration)
		if !r.agg.Fold(v) {
			continue
		}
		folded++
		if r.cfg.KeepSamples {
			r.result.Samples = append(r.result.Samples, income.Sample{Index: rec.Index, Income: v.Decimal})
		}
	}

	r.cursor = &unit
	r.result.Processed++
	r.events <- UnitCompleted{
		Unit:      unit,
		Records:   len(records),
		Folded:    folded,
		Processed: r.result.Processed,
		Remaining: len(r.queue),
	}

	// Leaderboard pages past the last validator come back empty
	if unit.IsPage() && len(records) == 0 && len(r.queue) > 0 {
		r.events <- SweepEnded{Page: unit.Page, Dropped: len(r.queue)}
		r.queue = nil
	}

	r.sinceSave++
	if r.cfg.CheckpointEvery > 0 && r.sinceSave >= r.cfg.CheckpointEvery && len(r.queue) > 0 {
		r.save(ctx)
	}
}

func (r *session) retry(p pending, cause error) {
	p.attempt++
	if p.attempt > r.cfg.MaxRetries || r.pacer.Exhausted() {
		r.pacer.ResetExhaustion()
		r.result.Exhausted++
		r.events <- UnitSkipped{
			Unit:      p.unit,
			Exhausted: true,
			Err:       fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, p.attempt, cause),
		}
		return
	}

	r.events <- UnitRetrying{Unit: p.unit, Attempt: p.attempt, Delay: r.pacer.Delay(), Err: cause}
	r.queue = append([]pending{p}, r.queue...)
}

// unusable reports whether a fatal outcome means the whole run cannot proceed
func (r *session) unusable(err error) bool {
	if r.result.Processed > 0 || r.agg.Count() > 0 {
		return false
	}
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrUnreachable)
}

func (r *session) save(ctx context.Context) {
	r.sinceSave = 0

	remaining := make([]FetchUnit, len(r.queue))
	for i, p := range r.queue {
		remaining[i] = p.unit
	}
	cp := Checkpoint{
		Version:     CheckpointVersion,
		Duration:    r.cfg.Duration,
		Mode:        r.cfg.Mode,
		Effective:   r.result.Effective,
		PerPage:     r.cfg.PerPage,
		Sum:         r.agg.Sum(),
		Count:       r.agg.Count(),
		Cursor:      r.cursor,
		Remaining:   remaining,
		Processed:   r.result.Processed,
		Skipped:     r.result.Skipped,
		Exhausted:   r.result.Exhausted,
		Samples:     r.result.Samples[r.persisted:], // folded since the previous save
		SampleCount: len(r.result.Samples),
		SavedAt:     r.clock.Now(),
	}

	if err := r.store.Save(context.WithoutCancel(ctx), cp); err != nil {
		r.events <- CheckpointError{Err: fmt.Errorf("%w: %w", ErrCheckpointSave, err)}
		return
	}
	r.persisted = cp.SampleCount
	r.events <- CheckpointSaved{Processed: cp.Processed, Remaining: len(remaining)}
}

func (r *session) finish(start time.Time, reason Reason, err error) Result {
	res := r.result
	res.Reason = reason
	res.Summary = r.agg.Summary()
	res.Remaining = len(r.queue)
	res.Elapsed = r.clock.Now().Sub(start)
	if reason == Failed {
		res.Err = err
	}
	return res
}

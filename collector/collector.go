package collector

import (
	"context"
	"errors"
	"time"

	"github.com/screwyprof/beaconincome/income"
	"github.com/screwyprof/beaconincome/pkg/beaconchain"
)

// Sentinel errors for run-level failures
var (
	ErrPopulationQuery  = errors.New("population size query failed")
	ErrRetriesExhausted = errors.New("retries exhausted")
	ErrCheckpointLoad   = errors.New("checkpoint load failed")
	ErrCheckpointSave   = errors.New("checkpoint save failed")
)

// Default configuration values
const (
	DefaultMaxRetries      = 3
	DefaultCheckpointEvery = 50
)

// Fetcher performs a single request for a unit of work
// ----------------------------------------------------
type Fetcher interface {
	Fetch(ctx context.Context, unit FetchUnit) Outcome
}

// PopulationSource reports the current validator count
type PopulationSource interface {
	LatestEpoch(ctx context.Context) (beaconchain.Epoch, error)
}

// Pacer gates and backs off requests
type Pacer interface {
	Wait(ctx context.Context) error
	Report(success bool, retryAfter time.Duration)
	Exhausted() bool
	ResetExhaustion()
	Delay() time.Duration
}

// Store persists run progress between invocations
type Store interface {
	// Load returns the saved checkpoint, or nil when there is none
	Load(ctx context.Context) (*Checkpoint, error)
	Save(ctx context.Context, cp Checkpoint) error
	Clear(ctx context.Context) error
}

// Reason is the terminal state of a run
type Reason int

const (
	Completed Reason = iota
	Interrupted
	Failed
)

func (r Reason) String() string {
	switch r {
	case Completed:
		return "completed"
	case Interrupted:
		return "interrupted"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Result is what a run hands back on any terminal state.
// Summary always carries whatever was aggregated, Failed runs included.
type Result struct {
	Reason    Reason
	Duration  income.Duration
	Mode      Mode // as requested
	Effective Mode // as planned, differs when a sample degraded to a full sweep
	Summary   income.Summary
	Processed int // units fetched successfully
	Remaining int // units left in the queue
	Skipped   int // units dropped on a fatal outcome
	Exhausted int // units dropped after running out of retries
	Samples   []income.Sample
	Resumed   bool
	Elapsed   time.Duration
	Err       error // set for Failed only
}

// Partial reports whether the summary covers less than the planned work
func (r Result) Partial() bool {
	return r.Reason != Completed
}

// Event represents an engine lifecycle event
// ------------------------------------------
type Event any

type RunStarted struct {
	StartedAt  time.Time
	Mode       Mode
	Effective  Mode
	Population int64
	Units      int
	Resumed    bool
}

type UnitCompleted struct {
	Unit      FetchUnit
	Records   int
	Folded    int
	Processed int
	Remaining int
}

type UnitRetrying struct {
	Unit    FetchUnit
	Attempt int
	Delay   time.Duration
	Err     error
}

type UnitSkipped struct {
	Unit      FetchUnit
	Exhausted bool
	Err       error
}

type SweepEnded struct {
	Page    uint64
	Dropped int
}

type CheckpointSaved struct {
	Processed int
	Remaining int
}

type CheckpointError struct {
	Err error
}

type RunFinished struct {
	Result Result
}

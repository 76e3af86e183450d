package collector

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/beaconincome/income"
)

// CheckpointVersion is bumped whenever the checkpoint layout changes
const CheckpointVersion = 1

// Checkpoint is the persisted state of an unfinished run.
//
// Raw samples are incremental: on Save, Samples holds only the pairs folded
// since the previous save and SampleCount the total so far, so a store can
// append instead of rewriting. On Load, Samples holds all SampleCount pairs.
type Checkpoint struct {
	Version     int             `json:"version"`
	Duration    income.Duration `json:"duration"`
	Mode        Mode            `json:"mode"`
	Effective   Mode            `json:"effective"`
	PerPage     int             `json:"per_page"`
	Sum         decimal.Decimal `json:"sum"`
	Count       int64           `json:"count"`
	Cursor      *FetchUnit      `json:"cursor,omitempty"`
	Remaining   []FetchUnit     `json:"remaining"`
	Processed   int             `json:"processed"`
	Skipped     int             `json:"skipped"`
	Exhausted   int             `json:"exhausted"`
	Samples     []income.Sample `json:"-"`
	SampleCount int             `json:"sample_count"`
	SavedAt     time.Time       `json:"saved_at"`
}

// SamplesFrom is the position of the first of Samples within the whole run
func (c Checkpoint) SamplesFrom() int {
	return max(c.SampleCount-len(c.Samples), 0)
}

// Matches reports whether the checkpoint belongs to a run with these settings
func (c Checkpoint) Matches(d income.Duration, mode Mode, perPage int) bool {
	return c.Version == CheckpointVersion &&
		c.Duration == d &&
		c.Mode == mode &&
		c.PerPage == perPage
}

// nopStore keeps nothing
type nopStore struct{}

func (nopStore) Load(context.Context) (*Checkpoint, error) { return nil, nil }
func (nopStore) Save(context.Context, Checkpoint) error     { return nil }
func (nopStore) Clear(context.Context) error                { return nil }

package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/screwyprof/beaconincome/income"
	"github.com/screwyprof/beaconincome/pkg/beaconchain"
	"github.com/screwyprof/beaconincome/pkg/httpkit"
)

// Fetch classification errors
var (
	ErrUnauthorized = errors.New("API key rejected")
	ErrUnreachable  = errors.New("API unreachable")
	ErrFetchFailed  = errors.New("fetch failed")
)

// API is the subset of the Beaconcha.in client the fetcher needs
type API interface {
	GetLeaderboard(ctx context.Context, req beaconchain.LeaderboardRequest) ([]beaconchain.ValidatorPerformance, error)
	GetPerformance(ctx context.Context, indices []int64) ([]beaconchain.ValidatorPerformance, error)
}

// OutcomeKind classifies a single fetch
type OutcomeKind int

const (
	Success OutcomeKind = iota
	Retryable
	Fatal
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	}
	return "unknown"
}

// Outcome is the result of one fetch: records on success, a suggested delay
// when the request may be retried, or the reason it cannot be.
type Outcome struct {
	Kind       OutcomeKind
	Records    []income.Record
	RetryAfter time.Duration
	Err        error
}

// PageFetcher issues exactly one API call per unit and classifies the result.
// Retries are the caller's business.
type PageFetcher struct {
	api      API
	duration income.Duration
	perPage  int
}

// NewPageFetcher creates a fetcher sorting leaderboard pages by the given window
func NewPageFetcher(api API, duration income.Duration, perPage int) *PageFetcher {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return &PageFetcher{api: api, duration: duration, perPage: perPage}
}

// Fetch requests one unit
func (f *PageFetcher) Fetch(ctx context.Context, unit FetchUnit) Outcome {
	if unit.IsPage() {
		return f.fetchPage(ctx, unit.Page)
	}
	return f.fetchIndices(ctx, unit.Indices)
}

func (f *PageFetcher) fetchPage(ctx context.Context, page uint64) Outcome {
	if page == 0 {
		return Outcome{Kind: Fatal, Err: fmt.Errorf("%w: pages are 1-based", ErrFetchFailed)}
	}

	limit := uint64(f.perPage)
	validators, err := f.api.GetLeaderboard(ctx, beaconchain.LeaderboardRequest{
		Limit:    limit,
		Offset:   (page - 1) * limit,
		Sort:     f.duration.PerformanceField(),
		Order:    "desc",
		Currency: "ETH",
	})
	if err != nil {
		return classify(err)
	}

	if len(validators) > f.perPage {
		validators = validators[:f.perPage]
	}
	return Outcome{Kind: Success, Records: convertPerformances(validators)}
}

func (f *PageFetcher) fetchIndices(ctx context.Context, indices []int64) Outcome {
	validators, err := f.api.GetPerformance(ctx, indices)
	if err != nil {
		return classify(err)
	}

	// Only fold what was asked for, once each
	requested := make(map[int64]bool, len(indices))
	for _, idx := range indices {
		requested[idx] = true
	}
	kept := validators[:0:0]
	for _, v := range validators {
		if requested[v.ValidatorIndex] {
			requested[v.ValidatorIndex] = false
			kept = append(kept, v)
		}
	}
	return Outcome{Kind: Success, Records: convertPerformances(kept)}
}

// classify maps a client error onto the outcome taxonomy
func classify(err error) Outcome {
	var statusErr *httpkit.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Throttled():
			return Outcome{Kind: Retryable, RetryAfter: statusErr.RetryAfter, Err: err}
		case statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden:
			return Outcome{Kind: Fatal, Err: fmt.Errorf("%w: %w", ErrUnauthorized, err)}
		}
		return Outcome{Kind: Fatal, Err: fmt.Errorf("%w: %w", ErrFetchFailed, err)}
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Outcome{Kind: Retryable, Err: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return Outcome{Kind: Retryable, Err: err}
		}
		return Outcome{Kind: Fatal, Err: fmt.Errorf("%w: %w", ErrUnreachable, err)}
	}

	// Malformed bodies, non-OK status fields and request validation
	return Outcome{Kind: Fatal, Err: fmt.Errorf("%w: %w", ErrFetchFailed, err)}
}

// convertPerformances converts API validators (gwei) to domain records (ETH)
func convertPerformances(validators []beaconchain.ValidatorPerformance) []income.Record {
	records := make([]income.Record, len(validators))

	for i, v := range validators {
		records[i] = income.Record{
			Index:      v.ValidatorIndex,
			Income1d:   income.FromGwei(v.Performance1d),
			Income7d:   income.FromGwei(v.Performance7d),
			Income31d:  income.FromGwei(v.Performance31d),
			Income365d: income.FromGwei(v.Performance365d),
		}
	}

	return records
}

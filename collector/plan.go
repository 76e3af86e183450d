package collector

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

// DefaultPerPage is the number of validators the API returns per request
const DefaultPerPage = 100

// Planning errors
var (
	ErrUnknownPopulation = errors.New("population size is required for this mode")
	ErrInvalidMode       = errors.New("invalid collection mode")
)

// ModeKind selects how the work plan is built
type ModeKind string

const (
	ModeFull      ModeKind = "full"
	ModePageLimit ModeKind = "pages"
	ModeSample    ModeKind = "sample"
)

// Mode is a full sweep, the first N pages, or a random sample of K validators
type Mode struct {
	Kind ModeKind `json:"kind"`
	N    int64    `json:"n,omitempty"`
}

// Full sweeps every page of the population
func Full() Mode { return Mode{Kind: ModeFull} }

// PageLimit sweeps pages 1..n
func PageLimit(n int64) Mode { return Mode{Kind: ModePageLimit, N: n} }

// Sample draws k distinct validators uniformly at random
func Sample(k int64) Mode { return Mode{Kind: ModeSample, N: k} }

func (m Mode) String() string {
	switch m.Kind {
	case ModePageLimit, ModeSample:
		return string(m.Kind) + "(" + strconv.FormatInt(m.N, 10) + ")"
	}
	return string(m.Kind)
}

// Validate checks the mode is well formed
func (m Mode) Validate() error {
	switch m.Kind {
	case ModeFull:
		return nil
	case ModePageLimit, ModeSample:
		if m.N <= 0 {
			return fmt.Errorf("%w: %s needs a positive size", ErrInvalidMode, m.Kind)
		}
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidMode, m.Kind)
}

// NeedsPopulation reports whether planning requires the validator count
func (m Mode) NeedsPopulation() bool {
	return m.Kind != ModePageLimit
}

// FetchUnit is a single request's worth of work: a 1-based leaderboard page
// or an explicit batch of validator indices.
type FetchUnit struct {
	Page    uint64  `json:"page,omitempty"`
	Indices []int64 `json:"indices,omitempty"`
}

// IsPage reports whether the unit addresses a leaderboard page
func (u FetchUnit) IsPage() bool { return len(u.Indices) == 0 }

func (u FetchUnit) String() string {
	if u.IsPage() {
		return "page " + strconv.FormatUint(u.Page, 10)
	}
	if len(u.Indices) <= 3 {
		ids := make([]string, len(u.Indices))
		for i, idx := range u.Indices {
			ids[i] = strconv.FormatInt(idx, 10)
		}
		return "validators " + strings.Join(ids, ",")
	}
	return fmt.Sprintf("validators %d..%d (%d)", u.Indices[0], u.Indices[len(u.Indices)-1], len(u.Indices))
}

// Plan builds the work queue for a run and returns the mode actually used.
//
// Full and PageLimit produce sequential pages. Sample draws k distinct indices
// from [0, population) and batches them perPage at a time; when k covers the
// whole population it degrades to Full. Sampling is not deterministic.
func Plan(population int64, mode Mode, perPage int) ([]FetchUnit, Mode, error) {
	if err := mode.Validate(); err != nil {
		return nil, mode, err
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if population <= 0 && mode.NeedsPopulation() {
		return nil, mode, ErrUnknownPopulation
	}

	switch mode.Kind {
	case ModePageLimit:
		n := mode.N
		if population > 0 {
			n = min(n, pageCount(population, perPage))
		}
		return pages(n), mode, nil

	case ModeSample:
		if mode.N >= population {
			return pages(pageCount(population, perPage)), Full(), nil
		}
		return batches(drawDistinct(population, mode.N), perPage), mode, nil
	}

	return pages(pageCount(population, perPage)), mode, nil
}

func pageCount(population int64, perPage int) int64 {
	return (population + int64(perPage) - 1) / int64(perPage)
}

func pages(n int64) []FetchUnit {
	units := make([]FetchUnit, 0, n)
	for p := int64(1); p <= n; p++ {
		units = append(units, FetchUnit{Page: uint64(p)})
	}
	return units
}

// drawDistinct picks k distinct values from [0, n) with Floyd's algorithm,
// so memory stays proportional to k rather than n. The result is sorted.
func drawDistinct(n, k int64) []int64 {
	chosen := make(map[int64]struct{}, k)
	for j := n - k; j < n; j++ {
		t := rand.Int64N(j + 1)
		if _, dup := chosen[t]; dup {
			chosen[j] = struct{}{}
			continue
		}
		chosen[t] = struct{}{}
	}

	out := make([]int64, 0, k)
	for idx := range chosen {
		out = append(out, idx)
	}
	slices.Sort(out)
	return out
}

func batches(indices []int64, size int) []FetchUnit {
	units := make([]FetchUnit, 0, (len(indices)+size-1)/size)
	for chunk := range slices.Chunk(indices, size) {
		units = append(units, FetchUnit{Indices: chunk})
	}
	return units
}

package income

import (
	"errors"
	"fmt"
	"strings"
)

// Duration is one of the fixed reporting windows income is aggregated over
type Duration string

const (
	Day1    Duration = "1day"
	Days7   Duration = "7days"
	Days31  Duration = "31days"
	Days365 Duration = "365days"

	DefaultDuration = Days365
)

// ErrUnknownDuration is returned for windows outside the four supported ones
var ErrUnknownDuration = errors.New("unknown duration")

// Durations lists the supported windows, shortest first
func Durations() []Duration {
	return []Duration{Day1, Days7, Days31, Days365}
}

// ParseDuration creates a Duration from its textual form. Empty input yields the default.
func ParseDuration(s string) (Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultDuration, nil
	}

	for _, d := range Durations() {
		if string(d) == s {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q (want one of 1day, 7days, 31days, 365days)", ErrUnknownDuration, s)
}

// Suffix is the short form the API uses in field names, e.g. "7d"
func (d Duration) Suffix() string {
	switch d {
	case Day1:
		return "1d"
	case Days7:
		return "7d"
	case Days31:
		return "31d"
	case Days365:
		return "365d"
	}
	return ""
}

// PerformanceField is the API field (and sort key) holding income for this window
func (d Duration) PerformanceField() string {
	return "performance" + d.Suffix()
}

func (d Duration) String() string { return string(d) }

// Valid reports whether d is one of the supported windows
func (d Duration) Valid() bool { return d.Suffix() != "" }

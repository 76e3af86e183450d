// Package report renders a collection result for people and for tools
package report

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/screwyprof/beaconincome/collector"
	"github.com/screwyprof/beaconincome/income"
)

// meanPlaces matches the precision the income line has always been printed with
const meanPlaces = 6

// ErrUnknownFormat is returned for an unsupported output format
var ErrUnknownFormat = errors.New("unknown report format")

// Format selects how the summary is rendered
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat parses a format name, defaulting to text
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Summary is the machine-readable view of a result.
// Mean is nil when nothing was folded.
type Summary struct {
	Duration   string  `json:"duration" yaml:"duration"`
	Mean       *string `json:"mean" yaml:"mean"`
	Validators int64   `json:"validators" yaml:"validators"`
	Reason     string  `json:"reason" yaml:"reason"`
	Partial    bool    `json:"partial" yaml:"partial"`
	Mode       string  `json:"mode" yaml:"mode"`
	Processed  int     `json:"processed_units" yaml:"processed_units"`
	Remaining  int     `json:"remaining_units" yaml:"remaining_units"`
	Skipped    int     `json:"skipped_units" yaml:"skipped_units"`
	Exhausted  int     `json:"exhausted_units" yaml:"exhausted_units"`
	Resumed    bool    `json:"resumed,omitempty" yaml:"resumed,omitempty"`
	Elapsed    string  `json:"elapsed" yaml:"elapsed"`
	Error      string  `json:"error,omitempty" yaml:"error,omitempty"`
}

// FromResult builds the summary view of a result
func FromResult(res collector.Result) Summary {
	s := Summary{
		Duration:   res.Duration.String(),
		Validators: res.Summary.Count,
		Reason:     res.Reason.String(),
		Partial:    res.Partial(),
		Mode:       res.Effective.String(),
		Processed:  res.Processed,
		Remaining:  res.Remaining,
		Skipped:    res.Skipped,
		Exhausted:  res.Exhausted,
		Resumed:    res.Resumed,
		Elapsed:    res.Elapsed.Round(time.Millisecond).String(),
	}
	if res.Summary.HasData {
		mean := res.Summary.Mean.StringFixed(meanPlaces)
		s.Mean = &mean
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	return s
}

// Line is the one-line human summary
func Line(res collector.Result) string {
	if !res.Summary.HasData {
		if res.Partial() {
			return "No validators processed yet."
		}
		return fmt.Sprintf("No %s income data.", res.Duration)
	}

	mean := res.Summary.Mean.StringFixed(meanPlaces)
	if res.Partial() {
		return fmt.Sprintf("Partial average %s income: %s ETH (based on %s validators)",
			res.Duration, mean, humanize.Comma(res.Summary.Count))
	}
	return fmt.Sprintf("Average %s income: %s ETH", res.Duration, mean)
}

// Write renders the result in the requested format
func Write(w io.Writer, format Format, res collector.Result) error {
	switch format {
	case FormatText, "":
		_, err := fmt.Fprintln(w, Line(res))
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(FromResult(res))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(FromResult(res)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// WriteSamples dumps the folded (index, income) pairs as CSV in fold order
func WriteSamples(w io.Writer, samples []income.Sample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"validator_index", "income_eth"}); err != nil {
		return err
	}
	for _, s := range samples {
		if err := cw.Write([]string{strconv.FormatInt(s.Index, 10), s.Income.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

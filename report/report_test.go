package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/screwyprof/beaconincome/collector"
	"github.com/screwyprof/beaconincome/income"
	"github.com/screwyprof/beaconincome/report"
)

func TestLine(t *testing.T) {
	t.Parallel()

	t.Run("it prints the average for a completed run", func(t *testing.T) {
		t.Parallel()

		res := resultWith(collector.Completed, "141.59", 10000)

		assert.Equal(t, "Average 7days income: 0.014159 ETH", report.Line(res))
	})

	t.Run("it flags a partial average with the validator count", func(t *testing.T) {
		t.Parallel()

		res := resultWith(collector.Interrupted, "12.5", 1900)

		assert.Equal(t, "Partial average 7days income: 0.006579 ETH (based on 1,900 validators)", report.Line(res))
	})

	t.Run("it signals no data instead of a zero mean", func(t *testing.T) {
		t.Parallel()

		interrupted := resultWith(collector.Interrupted, "0", 0)
		completed := resultWith(collector.Completed, "0", 0)

		assert.Equal(t, "No validators processed yet.", report.Line(interrupted))
		assert.Equal(t, "No 7days income data.", report.Line(completed))
	})
}

func TestWrite(t *testing.T) {
	t.Parallel()

	t.Run("it renders JSON with a null mean when there is no data", func(t *testing.T) {
		t.Parallel()

		// Arrange
		res := resultWith(collector.Failed, "0", 0)
		res.Err = errors.New("API key rejected")
		var buf bytes.Buffer

		// Act
		err := report.Write(&buf, report.FormatJSON, res)

		// Assert
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Nil(t, got["mean"])
		assert.Equal(t, "failed", got["reason"])
		assert.Equal(t, true, got["partial"])
		assert.Equal(t, "API key rejected", got["error"])
	})

	t.Run("it renders YAML", func(t *testing.T) {
		t.Parallel()

		// Arrange
		res := resultWith(collector.Completed, "141.59", 10000)
		var buf bytes.Buffer

		// Act
		err := report.Write(&buf, report.FormatYAML, res)

		// Assert
		require.NoError(t, err)
		var got report.Summary
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.NotNil(t, got.Mean)
		assert.Equal(t, "0.014159", *got.Mean)
		assert.Equal(t, int64(10000), got.Validators)
		assert.Equal(t, "sample(10000)", got.Mode)
		assert.Equal(t, "1.5s", got.Elapsed)
	})

	t.Run("it rejects unknown formats", func(t *testing.T) {
		t.Parallel()

		_, err := report.ParseFormat("xml")
		assert.ErrorIs(t, err, report.ErrUnknownFormat)

		err = report.Write(&bytes.Buffer{}, report.Format("xml"), collector.Result{})
		assert.ErrorIs(t, err, report.ErrUnknownFormat)
	})

	t.Run("it defaults to text", func(t *testing.T) {
		t.Parallel()

		f, err := report.ParseFormat(" ")
		require.NoError(t, err)
		assert.Equal(t, report.FormatText, f)
	})
}

func TestSamples(t *testing.T) {
	t.Parallel()

	t.Run("it dumps samples as CSV in fold order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		samples := []income.Sample{
			{Index: 9, Income: decimal.RequireFromString("0.5")},
			{Index: 2, Income: decimal.RequireFromString("-0.01")},
		}
		var buf bytes.Buffer

		// Act
		err := report.WriteSamples(&buf, samples)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "validator_index,income_eth\n9,0.5\n2,-0.01\n", buf.String())
	})

	t.Run("it saves the summary and dump to files", func(t *testing.T) {
		t.Parallel()

		// Arrange
		dir := t.TempDir()
		res := resultWith(collector.Completed, "141.59", 10000)
		res.Samples = []income.Sample{{Index: 1, Income: decimal.RequireFromString("0.014159")}}

		// Act
		require.NoError(t, report.SaveFile(filepath.Join(dir, "out.txt"), report.FormatText, res))
		require.NoError(t, report.SaveSamples(filepath.Join(dir, "dump.csv"), res.Samples))

		// Assert
		out, err := os.ReadFile(filepath.Join(dir, "out.txt"))
		require.NoError(t, err)
		assert.Equal(t, "Average 7days income: 0.014159 ETH\n", string(out))

		dump, err := os.ReadFile(filepath.Join(dir, "dump.csv"))
		require.NoError(t, err)
		assert.Contains(t, string(dump), "1,0.014159")
	})
}

// Domain-specific test builders

func resultWith(reason collector.Reason, sum string, count int64) collector.Result {
	agg := income.NewAggregator()
	agg.Restore(decimal.RequireFromString(sum), count)
	return collector.Result{
		Reason:    reason,
		Duration:  income.Days7,
		Mode:      collector.Sample(10000),
		Effective: collector.Sample(10000),
		Summary:   agg.Summary(),
		Processed: 100,
		Elapsed:   1500 * time.Millisecond,
	}
}

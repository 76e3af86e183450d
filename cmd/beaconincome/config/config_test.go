package config_test

import (
	"flag"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/beaconincome/cmd/beaconincome/config"
	"github.com/screwyprof/beaconincome/collector"
	"github.com/screwyprof/beaconincome/income"
	"github.com/screwyprof/beaconincome/report"
)

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("it applies the defaults", func(t *testing.T) {
		t.Parallel()

		// Act
		cfg, err := config.LoadFrom([]string{"--api-key", "k"}, map[string]string{})

		// Assert
		require.NoError(t, err)
		assert.Equal(t, income.Days365, cfg.IncomeDuration())
		assert.Equal(t, collector.Full(), cfg.Mode())
		assert.Equal(t, 100, cfg.PerPage)
		assert.Equal(t, 6*time.Second, cfg.LimiterConfig().MinInterval)
		assert.Equal(t, report.FormatText, cfg.ReportFormat())
		assert.Equal(t, "https://beaconcha.in", cfg.APIURL)
		assert.False(t, cfg.EngineConfig().KeepSamples)
	})

	t.Run("it lets flags override the environment", func(t *testing.T) {
		t.Parallel()

		// Arrange
		environ := map[string]string{
			"BEACONCHAIN_API_KEY": "from-env",
			"INCOME_DURATION":     "1day",
			"INCOME_SAMPLE_SIZE":  "50",
		}

		// Act
		cfg, err := config.LoadFrom([]string{"--duration", "7days", "--dump", "raw.csv"}, environ)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.APIKey)
		assert.Equal(t, income.Days7, cfg.IncomeDuration())
		assert.Equal(t, collector.Sample(50), cfg.Mode())
		assert.True(t, cfg.EngineConfig().KeepSamples)
	})

	t.Run("it maps pages to a page limit", func(t *testing.T) {
		t.Parallel()

		cfg, err := config.LoadFrom([]string{"--api-key", "k", "--pages", "3"}, map[string]string{})

		require.NoError(t, err)
		assert.Equal(t, collector.PageLimit(3), cfg.EngineConfig().Mode)
	})

	t.Run("it passes help through to the caller", func(t *testing.T) {
		t.Parallel()

		_, err := config.LoadFrom([]string{"-h"}, map[string]string{})

		assert.ErrorIs(t, err, flag.ErrHelp)
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"it requires an API key", []string{}, config.ErrMissingAPIKey},
		{"it rejects both pages and a sample", []string{"--api-key", "k", "--pages", "2", "--sample-size", "10"}, config.ErrConflictingModes},
		{"it rejects an unknown duration", []string{"--api-key", "k", "--duration", "2weeks"}, income.ErrUnknownDuration},
		{"it rejects an unknown format", []string{"--api-key", "k", "--format", "xml"}, report.ErrUnknownFormat},
		{"it rejects oversized pages", []string{"--api-key", "k", "--per-page", "101"}, config.ErrInvalidValue},
		{"it rejects negative sizes", []string{"--api-key", "k", "--sample-size", "-1"}, config.ErrInvalidValue},
		{"it rejects stray arguments", []string{"--api-key", "k", "extra"}, config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFrom(tt.args, map[string]string{})

			assert.ErrorIs(t, err, tt.want)
		})
	}
}

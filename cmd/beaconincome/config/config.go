package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/screwyprof/beaconincome/collector"
	"github.com/screwyprof/beaconincome/income"
	"github.com/screwyprof/beaconincome/pkg/beaconchain"
	"github.com/screwyprof/beaconincome/pkg/ratelimit"
	"github.com/screwyprof/beaconincome/report"
)

// Validation errors
var (
	ErrMissingAPIKey    = errors.New("API key is required")
	ErrConflictingModes = errors.New("--pages and --sample-size are mutually exclusive")
	ErrInvalidValue     = errors.New("invalid configuration value")
)

// Config holds all configuration loaded from environment variables and flags
type Config struct {
	APIKey            string        `env:"BEACONCHAIN_API_KEY"`
	APIURL            string        `env:"BEACONCHAIN_API_URL" envDefault:"https://beaconcha.in"`
	HttpClientTimeout time.Duration `env:"BEACONCHAIN_HTTP_CLIENT_TIMEOUT" envDefault:"30s"`

	Duration        string `env:"INCOME_DURATION" envDefault:"365days"`
	Pages           int64  `env:"INCOME_PAGES"`
	PerPage         int    `env:"INCOME_PER_PAGE" envDefault:"100"`
	SampleSize      int64  `env:"INCOME_SAMPLE_SIZE"`
	Population      int64  `env:"INCOME_POPULATION"`
	MaxRetries      int    `env:"INCOME_MAX_RETRIES" envDefault:"3"`
	CheckpointEvery int    `env:"INCOME_CHECKPOINT_EVERY" envDefault:"50"`

	MinInterval    time.Duration `env:"RATE_MIN_INTERVAL" envDefault:"6s"`
	BackoffInitial time.Duration `env:"RATE_BACKOFF_INITIAL" envDefault:"500ms"`
	BackoffCeiling time.Duration `env:"RATE_BACKOFF_CEILING" envDefault:"60s"`
	CapThreshold   int           `env:"RATE_CAP_THRESHOLD" envDefault:"3"`

	Output     string `env:"INCOME_OUTPUT"`
	Dump       string `env:"INCOME_DUMP"`
	Checkpoint string `env:"INCOME_CHECKPOINT"`
	Format     string `env:"INCOME_FORMAT" envDefault:"text"`

	LogLevel         string `env:"LOG_LEVEL" envDefault:"info"`
	LogHumanFriendly bool   `env:"LOG_HUMAN_FRIENDLY" envDefault:"true"`
}

// Load reads the environment, applies command-line overrides and validates the result
func Load(args []string) (Config, error) {
	return LoadFrom(args, nil)
}

// LoadFrom is Load with an explicit environment. A nil environ reads the process environment.
func LoadFrom(args []string, environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("beaconincome", flag.ContinueOnError)
	fs.StringVar(&cfg.APIKey, "api-key", cfg.APIKey, "Beaconcha.in API key")
	fs.Int64Var(&cfg.Pages, "pages", cfg.Pages, "Number of leaderboard pages to fetch (default: all)")
	fs.IntVar(&cfg.PerPage, "per-page", cfg.PerPage, "Validators per request")
	fs.Int64Var(&cfg.SampleSize, "sample-size", cfg.SampleSize, "Number of validators to sample randomly")
	fs.Int64Var(&cfg.Population, "population", cfg.Population, "Known validator count, skips the population query")
	fs.StringVar(&cfg.Duration, "duration", cfg.Duration, "Income window: 1day, 7days, 31days or 365days")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "Retries per request before it is skipped")
	fs.StringVar(&cfg.Output, "output", cfg.Output, "File to save the result to instead of stdout")
	fs.StringVar(&cfg.Dump, "dump", cfg.Dump, "CSV file for the raw (validator, income) pairs")
	fs.StringVar(&cfg.Checkpoint, "checkpoint", cfg.Checkpoint, "Checkpoint file used to resume interrupted runs")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Result format: text, json or yaml")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warning or error")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("%w: unexpected argument %q", ErrInvalidValue, fs.Arg(0))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	if _, err := income.ParseDuration(c.Duration); err != nil {
		return err
	}
	if _, err := report.ParseFormat(c.Format); err != nil {
		return err
	}
	if c.Pages > 0 && c.SampleSize > 0 {
		return ErrConflictingModes
	}
	if c.Pages < 0 || c.SampleSize < 0 || c.Population < 0 {
		return fmt.Errorf("%w: sizes must not be negative", ErrInvalidValue)
	}
	if c.PerPage < 1 || c.PerPage > beaconchain.MaxIndicesPerRequest {
		return fmt.Errorf("%w: --per-page must be between 1 and %d", ErrInvalidValue, beaconchain.MaxIndicesPerRequest)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: --max-retries must not be negative", ErrInvalidValue)
	}
	return nil
}

// Mode derives the collection mode from the page and sample settings
func (c Config) Mode() collector.Mode {
	switch {
	case c.SampleSize > 0:
		return collector.Sample(c.SampleSize)
	case c.Pages > 0:
		return collector.PageLimit(c.Pages)
	}
	return collector.Full()
}

// IncomeDuration is the validated income window
func (c Config) IncomeDuration() income.Duration {
	d, _ := income.ParseDuration(c.Duration)
	return d
}

// ReportFormat is the validated result format
func (c Config) ReportFormat() report.Format {
	f, _ := report.ParseFormat(c.Format)
	return f
}

// EngineConfig maps the settings onto a collection run
func (c Config) EngineConfig() collector.Config {
	return collector.Config{
		Duration:        c.IncomeDuration(),
		Mode:            c.Mode(),
		PerPage:         c.PerPage,
		Population:      c.Population,
		MaxRetries:      c.MaxRetries,
		CheckpointEvery: c.CheckpointEvery,
		KeepSamples:     c.Dump != "",
	}
}

// LimiterConfig maps the settings onto the request pacer
func (c Config) LimiterConfig() ratelimit.Config {
	return ratelimit.Config{
		MinInterval:  c.MinInterval,
		Initial:      c.BackoffInitial,
		Ceiling:      c.BackoffCeiling,
		CapThreshold: c.CapThreshold,
	}
}

package testcfg

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds test-specific configuration for beaconchain client acceptance tests
type Config struct {
	Limit       uint64        `env:"BEACONCHAIN_TEST_LIMIT" envDefault:"5"`
	Offset      uint64        `env:"BEACONCHAIN_TEST_OFFSET" envDefault:"1000"`
	HTTPTimeout time.Duration `env:"BEACONCHAIN_TEST_HTTP_TIMEOUT" envDefault:"30s"`
	BaseURL     string        `env:"BEACONCHAIN_TEST_BASE_URL" envDefault:"https://beaconcha.in"`
	APIKey      string        `env:"BEACONCHAIN_TEST_API_KEY"`
}

// parseConfig wraps env.Parse to return (Config, error) for use with env.Must
func parseConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// New loads test configuration from environment variables
func New() Config {
	return env.Must(parseConfig())
}

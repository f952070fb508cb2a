package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// DataDir is the directory holding cached payloads, the population
	// snapshot, R(t) archives, and forecast files. Supplied explicitly;
	// the service never walks the filesystem looking for a project root.
	DataDir string `envconfig:"DATA_DIR" default:"data"`

	// APIBaseURL is the base of the upstream dataset API. The two dataset
	// paths (timeseries.min.json, data.min.json) are appended to it.
	APIBaseURL   string        `envconfig:"API_BASE_URL" default:"https://data.covid19india.org/v4/min/"`
	FetchTimeout time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`

	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	// CacheRetentionDays prunes dated payload files older than N days at
	// startup. 0 keeps everything. The population snapshot is never pruned.
	CacheRetentionDays int `envconfig:"CACHE_RETENTION_DAYS" default:"0"`

	// R(t) estimation parameters.
	RtSmoothingWindow int    `envconfig:"RT_SMOOTHING_WINDOW" default:"14"`
	RtWindow          int    `envconfig:"RT_WINDOW" default:"7"`
	RtSamples         int    `envconfig:"RT_SAMPLES" default:"10"`
	RtCutoff          string `envconfig:"RT_CUTOFF" default:"2020-04-01"`
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.APIBaseURL == "" {
		return nil, errors.New("API_BASE_URL is required")
	}
	if cfg.FetchTimeout <= 0 {
		return nil, errors.New("FETCH_TIMEOUT must be positive")
	}
	if cfg.CacheRetentionDays < 0 {
		return nil, errors.New("CACHE_RETENTION_DAYS must not be negative")
	}
	if cfg.RtSmoothingWindow <= 0 || cfg.RtWindow <= 0 || cfg.RtSamples <= 0 {
		return nil, errors.New("RT_SMOOTHING_WINDOW, RT_WINDOW and RT_SAMPLES must be positive")
	}
	if _, err := cfg.RtCutoffDate(); err != nil {
		return nil, fmt.Errorf("invalid RT_CUTOFF: %w", err)
	}

	return &cfg, nil
}

// RtCutoffDate parses RtCutoff as a calendar date.
func (c *Config) RtCutoffDate() (time.Time, error) {
	return time.Parse("2006-01-02", c.RtCutoff)
}

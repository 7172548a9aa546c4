// Package cliconfig resolves the carharvest CLI configuration from
// defaults, an optional TOML file, CARHARVEST_* environment variables, and
// command-line flags, in that order of increasing precedence.
package cliconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/draftpark/carharvest/pkg/scraper"
)

// Config holds CLI configuration for carharvest.
type Config struct {
	Run       string
	OutputDir string

	StartURL string
	SpecsURL string

	PageWorkers   int
	DetailWorkers int
	BatchSize     int
	FlushInterval time.Duration

	UserAgent   string
	Origin      string
	Referer     string
	HTTPTimeout time.Duration
	MaxRetries  int

	RedisAddr string
	CacheTTL  time.Duration

	MetricsAddr string

	LogLevel string
	Pretty   bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		OutputDir:     "runs",
		StartURL:      scraper.DefaultStartURL,
		SpecsURL:      scraper.DefaultSpecsURL,
		PageWorkers:   scraper.DefaultPageWorkers,
		DetailWorkers: scraper.DefaultDetailWorkers,
		BatchSize:     scraper.DefaultBatchSize,
		FlushInterval: scraper.DefaultFlushInterval,
		HTTPTimeout:   30 * time.Second,
		MaxRetries:    3,
		CacheTTL:      6 * time.Hour,
		LogLevel:      "info",
		Pretty:        true,
		RedisAddr:     os.Getenv("CARHARVEST_REDIS_ADDR"),
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Run == "" {
		return fmt.Errorf("run name is required")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir is required")
	}
	if c.StartURL == "" {
		return fmt.Errorf("start URL is required")
	}
	if c.SpecsURL == "" {
		return fmt.Errorf("specs URL is required")
	}
	if c.PageWorkers <= 0 {
		return fmt.Errorf("page workers must be positive")
	}
	if c.DetailWorkers <= 0 {
		return fmt.Errorf("detail workers must be positive")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.FlushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive")
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't been
// explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration for %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

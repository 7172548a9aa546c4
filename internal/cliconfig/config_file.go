package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML
// friendly.
type FileConfig struct {
	Run           string `toml:"run"`
	OutputDir     string `toml:"output_dir"`
	StartURL      string `toml:"start_url"`
	SpecsURL      string `toml:"specs_url"`
	PageWorkers   int    `toml:"page_workers"`
	DetailWorkers int    `toml:"detail_workers"`
	BatchSize     int    `toml:"batch_size"`
	FlushInterval string `toml:"flush_interval"`
	UserAgent     string `toml:"user_agent"`
	Origin        string `toml:"origin"`
	Referer       string `toml:"referer"`
	HTTPTimeout   string `toml:"http_timeout"`
	MaxRetries    int    `toml:"max_retries"`
	RedisAddr     string `toml:"redis_addr"`
	CacheTTL      string `toml:"cache_ttl"`
	MetricsAddr   string `toml:"metrics_addr"`
	LogLevel      string `toml:"log_level"`
	Pretty        *bool  `toml:"pretty"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path,
// ~/.carharvest/config.toml, if the home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".carharvest", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("run", fc.Run, &cfg.Run)
	s.setString("output-dir", fc.OutputDir, &cfg.OutputDir)
	s.setString("start-url", fc.StartURL, &cfg.StartURL)
	s.setString("specs-url", fc.SpecsURL, &cfg.SpecsURL)
	s.setString("user-agent", fc.UserAgent, &cfg.UserAgent)
	s.setString("origin", fc.Origin, &cfg.Origin)
	s.setString("referer", fc.Referer, &cfg.Referer)
	s.setString("redis-addr", fc.RedisAddr, &cfg.RedisAddr)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	s.setInt("page-workers", fc.PageWorkers, &cfg.PageWorkers)
	s.setInt("detail-workers", fc.DetailWorkers, &cfg.DetailWorkers)
	s.setInt("batch-size", fc.BatchSize, &cfg.BatchSize)
	s.setInt("max-retries", fc.MaxRetries, &cfg.MaxRetries)

	if err := s.setDuration("flush-interval", fc.FlushInterval, &cfg.FlushInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", fc.HTTPTimeout, &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("cache-ttl", fc.CacheTTL, &cfg.CacheTTL); err != nil {
		return err
	}

	s.setBool("pretty", fc.Pretty, &cfg.Pretty)

	return nil
}

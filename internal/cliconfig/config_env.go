package cliconfig

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnvConfig applies CARHARVEST_* environment variables to the Config.
// Env values override file config but are overridden by explicitly set
// flags (checked via the changed map).
func ApplyEnvConfig(cfg *Config, changed map[string]bool) {
	s := newConfigSetter(changed)

	s.setString("run", os.Getenv("CARHARVEST_RUN"), &cfg.Run)
	s.setString("output-dir", os.Getenv("CARHARVEST_OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("start-url", os.Getenv("CARHARVEST_START_URL"), &cfg.StartURL)
	s.setString("specs-url", os.Getenv("CARHARVEST_SPECS_URL"), &cfg.SpecsURL)
	s.setString("user-agent", os.Getenv("CARHARVEST_USER_AGENT"), &cfg.UserAgent)
	s.setString("redis-addr", os.Getenv("CARHARVEST_REDIS_ADDR"), &cfg.RedisAddr)
	s.setString("metrics-addr", os.Getenv("CARHARVEST_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("log-level", os.Getenv("CARHARVEST_LOG_LEVEL"), &cfg.LogLevel)

	setEnvInt(s, "page-workers", "CARHARVEST_PAGE_WORKERS", &cfg.PageWorkers)
	setEnvInt(s, "detail-workers", "CARHARVEST_DETAIL_WORKERS", &cfg.DetailWorkers)
	setEnvInt(s, "batch-size", "CARHARVEST_BATCH_SIZE", &cfg.BatchSize)
	setEnvInt(s, "max-retries", "CARHARVEST_MAX_RETRIES", &cfg.MaxRetries)

	setEnvDuration(s, "flush-interval", "CARHARVEST_FLUSH_INTERVAL", &cfg.FlushInterval)
	setEnvDuration(s, "timeout", "CARHARVEST_HTTP_TIMEOUT", &cfg.HTTPTimeout)
	setEnvDuration(s, "cache-ttl", "CARHARVEST_CACHE_TTL", &cfg.CacheTTL)
}

func setEnvInt(s *configSetter, flag, env string, dst *int) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if n, err := strconv.Atoi(v); err == nil {
		s.setInt(flag, n, dst)
	}
}

func setEnvDuration(s *configSetter, flag, env string, dst *time.Duration) {
	v := os.Getenv(env)
	if v == "" {
		return
	}
	if _, err := time.ParseDuration(v); err == nil {
		_ = s.setDuration(flag, v, dst)
	}
}

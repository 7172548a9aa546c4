package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/draftpark/carharvest/internal/cliconfig"
	"github.com/draftpark/carharvest/pkg/cache"
	"github.com/draftpark/carharvest/pkg/client"
	"github.com/draftpark/carharvest/pkg/flatten"
	"github.com/draftpark/carharvest/pkg/logging"
	"github.com/draftpark/carharvest/pkg/scraper"
	"github.com/draftpark/carharvest/pkg/store"
)

const longHelp = `carharvest walks the cars.co.za listing API page by page, fetches the full
spec sheet for every discovered listing, and persists the merged records to
a single JSON store per run.

Highlights:
  - Self-feeding pagination: the run ends when the API stops handing out
    next-page links, however long the chain turns out to be.
  - Batched, atomic persistence: readers of the store never see a
    half-written file, even mid-run.
  - Optional Redis response cache so re-runs don't hammer the spec
    endpoint for listings already seen.`

var exampleUsage = strings.TrimSpace(`
  carharvest --run january-snapshot
  carharvest --run weekly --detail-workers 50 --batch-size 5000
  carharvest export --run january-snapshot
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "carharvest",
		Short:   "Harvest vehicle listings and spec sheets into a per-run JSON store",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}
			return runHarvest(cfg)
		},
	}

	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default: ~/.carharvest/config.toml)")
	root.PersistentFlags().StringVar(&cfg.Run, "run", "", "run name; becomes the store filename (min 5 chars)")
	root.PersistentFlags().StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "directory for store, log, and export files")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&cfg.Pretty, "pretty", cfg.Pretty, "human-readable console log output")

	root.Flags().StringVar(&cfg.StartURL, "start-url", cfg.StartURL, "first page of the pagination chain")
	root.Flags().StringVar(&cfg.SpecsURL, "specs-url", cfg.SpecsURL, "base URL of the per-item spec endpoint")
	root.Flags().IntVar(&cfg.PageWorkers, "page-workers", cfg.PageWorkers, "concurrent page enumerator workers")
	root.Flags().IntVar(&cfg.DetailWorkers, "detail-workers", cfg.DetailWorkers, "concurrent detail fetch workers")
	root.Flags().IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "records per flush")
	root.Flags().DurationVar(&cfg.FlushInterval, "flush-interval", cfg.FlushInterval, "idle wait and maximum time between flushes")
	root.Flags().StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent header (default: browser identity)")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "per-request HTTP timeout")
	root.Flags().IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "attempts per request before dropping the unit of work")
	root.Flags().StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis address for the response cache (empty: no cache)")
	root.Flags().DurationVar(&cfg.CacheTTL, "cache-ttl", cfg.CacheTTL, "response cache entry lifetime")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "listen address for /metrics (empty: disabled)")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Flatten a run's store into a CSV file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := resolveConfig(cmd, &cfg, cfgPath); err != nil {
				return err
			}
			return runExport(cfg)
		},
	}
	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		logger := logging.NewLogger("carharvest")
		logger.Error().Err(err).Msg("carharvest")
		os.Exit(1)
	}
}

// resolveConfig layers file config and environment under explicitly set
// flags, then validates.
func resolveConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) error {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })
	cmd.Root().PersistentFlags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return err
		}
	}

	cliconfig.ApplyEnvConfig(cfg, changed)

	return cfg.Validate()
}

func runHarvest(cfg cliconfig.Config) error {
	runStore, err := store.New(cfg.OutputDir, cfg.Run)
	if err != nil {
		return err
	}

	logPath := strings.TrimSuffix(runStore.Path(), ".json") + ".log"
	log := logging.Setup(logging.Config{
		Level:      logging.LogLevel(cfg.LogLevel),
		Pretty:     cfg.Pretty,
		Output:     os.Stderr,
		RunLogPath: logPath,
	})

	log.Info().Str("run", cfg.Run).Str("store", runStore.Path()).Msg("Starting harvest")

	clientCfg := client.DefaultConfig()
	if cfg.UserAgent != "" {
		clientCfg.UserAgent = cfg.UserAgent
	}
	if cfg.Origin != "" {
		clientCfg.Origin = cfg.Origin
	}
	if cfg.Referer != "" {
		clientCfg.Referer = cfg.Referer
	}
	clientCfg.Timeout = cfg.HTTPTimeout
	clientCfg.Retry.MaxAttempts = cfg.MaxRetries

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, running without response cache")
		} else {
			clientCfg.Cache = cache.NewManager(rdb, cfg.CacheTTL)
			log.Info().Str("addr", cfg.RedisAddr).Dur("ttl", cfg.CacheTTL).Msg("Response cache enabled")
		}
	}

	httpClient, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if cfg.MetricsAddr != "" {
		go serveMetrics(log, cfg.MetricsAddr)
	}

	s, err := scraper.New(scraper.Config{
		StartURL:      cfg.StartURL,
		SpecsURL:      cfg.SpecsURL,
		PageWorkers:   cfg.PageWorkers,
		DetailWorkers: cfg.DetailWorkers,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
	}, httpClient, runStore)
	if err != nil {
		return fmt.Errorf("create scraper: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	return nil
}

func runExport(cfg cliconfig.Config) error {
	log := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.Pretty,
		Output: os.Stderr,
	})

	runStore, err := store.New(cfg.OutputDir, cfg.Run)
	if err != nil {
		return err
	}

	records, err := runStore.Load()
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	log.Info().Int("records", len(records)).Msg("Store loaded")

	csvPath := strings.TrimSuffix(runStore.Path(), ".json") + ".csv"
	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	if err := flatten.WriteCSV(f, records); err != nil {
		return fmt.Errorf("export csv: %w", err)
	}

	log.Info().Str("csv", filepath.Base(csvPath)).Int("records", len(records)).Msg("Export complete")
	return nil
}

func serveMetrics(log zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Info().Str("addr", addr).Msg("Serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}

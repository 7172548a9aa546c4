// Package scraper implements the concurrent harvest pipeline: a
// self-feeding page enumerator, a pool of detail fetchers, and a single
// batch persister, joined by three pending-counted work queues.
package scraper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/draftpark/carharvest/pkg/logging"
)

// Defaults match the workload the pipeline was built for: one page worker
// is enough to keep the chain moving, detail fetches dominate request
// volume.
const (
	DefaultStartURL = "https://api.cars.co.za/fw/public/v3/vehicle?" +
		"page[offset]=0&page[limit]=20&include_featured=true&sort[date]=desc"
	DefaultSpecsURL = "https://api.cars.co.za/fw/public/v2/specs"

	DefaultPageWorkers   = 1
	DefaultDetailWorkers = 25
	DefaultBatchSize     = 10000
	DefaultFlushInterval = 30 * time.Second
)

// Config holds the pipeline configuration.
type Config struct {
	// StartURL is the first page of the pagination chain.
	StartURL string

	// SpecsURL is the base URL of the per-item detail endpoint; detail
	// URLs are SpecsURL/<code>/<year>.
	SpecsURL string

	// PageWorkers is the number of concurrent page enumerator workers.
	// With more than one, page ordering is not preserved.
	PageWorkers int

	// DetailWorkers is the number of concurrent detail fetch workers.
	DetailWorkers int

	// BatchSize is the record count that triggers a flush.
	BatchSize int

	// FlushInterval bounds both the persister's idle wait and the elapsed
	// time between flushes.
	FlushInterval time.Duration
}

// DefaultConfig returns the pipeline defaults.
func DefaultConfig() Config {
	return Config{
		StartURL:      DefaultStartURL,
		SpecsURL:      DefaultSpecsURL,
		PageWorkers:   DefaultPageWorkers,
		DetailWorkers: DefaultDetailWorkers,
		BatchSize:     DefaultBatchSize,
		FlushInterval: DefaultFlushInterval,
	}
}

// Scraper wires the worker pools to a shared pipeline and runs a harvest
// to completion.
type Scraper struct {
	config   Config
	fetcher  Fetcher
	sink     Sink
	pipeline *Pipeline
	logger   zerolog.Logger
}

// New creates a scraper. Fetcher and sink are required.
func New(cfg Config, fetcher Fetcher, sink Sink) (*Scraper, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.StartURL == "" {
		return nil, fmt.Errorf("start URL is required")
	}
	if cfg.SpecsURL == "" {
		return nil, fmt.Errorf("specs URL is required")
	}
	if cfg.PageWorkers <= 0 {
		cfg.PageWorkers = DefaultPageWorkers
	}
	if cfg.DetailWorkers <= 0 {
		cfg.DetailWorkers = DefaultDetailWorkers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}

	return &Scraper{
		config:   cfg,
		fetcher:  fetcher,
		sink:     sink,
		pipeline: NewPipeline(),
		logger:   logging.NewLogger("scraper"),
	}, nil
}

// Pipeline exposes the queue state, mainly for inspection after a run.
func (s *Scraper) Pipeline() *Pipeline {
	return s.pipeline
}

// Run seeds the start URL, drives the pipeline until all generated work has
// drained, then stops the workers and waits for the final flush. It blocks
// until completion or context cancellation.
func (s *Scraper) Run(ctx context.Context) error {
	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enumerator := NewPageEnumerator(s.fetcher, s.pipeline, s.config.SpecsURL)
	fetcher := NewDetailFetcher(s.fetcher, s.pipeline)
	persister := NewBatchPersister(s.sink, s.pipeline, s.config.BatchSize, s.config.FlushInterval)

	var wg sync.WaitGroup
	for i := 0; i < s.config.PageWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			enumerator.run(workerCtx, id)
		}(i + 1)
	}
	for i := 0; i < s.config.DetailWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			fetcher.run(workerCtx, id)
		}(i + 1)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		persister.run(workerCtx)
	}()

	s.logger.Info().
		Int("page_workers", s.config.PageWorkers).
		Int("detail_workers", s.config.DetailWorkers).
		Str("start_url", s.config.StartURL).
		Msg("Harvest started")

	s.pipeline.Pages.Put(s.config.StartURL)

	drainErr := s.pipeline.Drain(ctx)

	// Stop the worker loops. The persister flushes its remaining batch on
	// the way out, so waiting here guarantees the tail of the run is on
	// disk before Run returns.
	cancel()
	wg.Wait()

	if drainErr != nil {
		s.logger.Warn().Err(drainErr).Msg("Harvest aborted")
		return drainErr
	}

	s.logger.Info().Msg("Harvest complete")
	return nil
}

package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/draftpark/carharvest/pkg/logging"
)

// Fetcher performs one outbound JSON GET. Implemented by pkg/client; tests
// substitute stubs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string) ([]byte, error)
}

// detailEnvelope is the wire shape of the detail endpoint: the payload of
// interest is the first element of data.
type detailEnvelope struct {
	Data []any `json:"data"`
}

// DetailFetcher resolves DetailRequests into Records. Detail fetches
// dominate total request volume, so this stage typically runs with many
// workers; result ordering is unconstrained.
type DetailFetcher struct {
	fetcher  Fetcher
	pipeline *Pipeline
	logger   zerolog.Logger
}

// NewDetailFetcher creates a detail fetcher feeding the given pipeline.
func NewDetailFetcher(fetcher Fetcher, pipeline *Pipeline) *DetailFetcher {
	return &DetailFetcher{
		fetcher:  fetcher,
		pipeline: pipeline,
		logger:   logging.NewLogger("detail-fetcher"),
	}
}

// run consumes detail requests until the context is cancelled.
func (f *DetailFetcher) run(ctx context.Context, workerID int) {
	logger := f.logger.With().Int("worker_id", workerID).Logger()
	logger.Debug().Msg("Worker started")

	for {
		req, err := f.pipeline.Details.Get(ctx)
		if err != nil {
			logger.Debug().Msg("Worker stopping (context cancelled)")
			return
		}

		if rec, err := f.resolve(ctx, req); err != nil {
			if !errors.Is(err, context.Canceled) {
				detailErrorsTotal.Inc()
				logger.Error().Err(err).Str("url", req.URL).Msg("Detail fetch failed, dropping item")
			}
		} else {
			f.pipeline.Results.Put(rec)
			detailsFetchedTotal.Inc()
			logger.Debug().Str("url", req.URL).Msg("Detail fetched")
		}

		// One completion per consumed request, success or failure, so a
		// dropped item never blocks drain.
		f.pipeline.Details.TaskDone()
		f.pipeline.observe()
	}
}

// resolve fetches the detail resource and merges it with the seed
// attributes carried from discovery. Seed attributes pass through
// unchanged; the fetched payload sits alongside them.
func (f *DetailFetcher) resolve(ctx context.Context, req DetailRequest) (Record, error) {
	data, err := f.fetcher.GetJSON(ctx, req.URL)
	if err != nil {
		return Record{}, err
	}

	var env detailEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Record{}, fmt.Errorf("parse detail: %w", err)
	}
	if len(env.Data) == 0 {
		return Record{}, fmt.Errorf("parse detail: empty data array")
	}

	return Record{
		Attrs: req.Attrs,
		Specs: env.Data[0],
	}, nil
}

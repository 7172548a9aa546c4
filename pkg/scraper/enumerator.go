package scraper

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/draftpark/carharvest/pkg/logging"
)

// PageEnumerator walks the pagination chain. Each consumed PageLink yields
// one DetailRequest per discovered item plus, unless the terminal sentinel
// is reached, the next PageLink re-submitted to its own queue.
type PageEnumerator struct {
	fetcher  Fetcher
	pipeline *Pipeline
	specsURL string
	logger   zerolog.Logger
}

// NewPageEnumerator creates a page enumerator feeding the given pipeline.
func NewPageEnumerator(fetcher Fetcher, pipeline *Pipeline, specsURL string) *PageEnumerator {
	return &PageEnumerator{
		fetcher:  fetcher,
		pipeline: pipeline,
		specsURL: specsURL,
		logger:   logging.NewLogger("page-enumerator"),
	}
}

// run consumes page links until the context is cancelled. Safe to run with
// multiple workers on the same queue; page ordering is then unconstrained.
func (e *PageEnumerator) run(ctx context.Context, workerID int) {
	logger := e.logger.With().Int("worker_id", workerID).Logger()
	logger.Debug().Msg("Worker started")

	for {
		link, err := e.pipeline.Pages.Get(ctx)
		if err != nil {
			logger.Debug().Msg("Worker stopping (context cancelled)")
			return
		}

		e.process(ctx, logger, link)

		// One completion per consumed link, success or failure.
		e.pipeline.Pages.TaskDone()
		e.pipeline.observe()
	}
}

// process fetches and parses one page. Any failure drops the link: no next
// link is emitted and the chain for this lineage ends here.
func (e *PageEnumerator) process(ctx context.Context, logger zerolog.Logger, link string) {
	data, err := e.fetcher.GetJSON(ctx, link)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		pageErrorsTotal.Inc()
		logger.Error().Err(err).Str("url", link).Msg("Page fetch failed, dropping chain link")
		return
	}

	page, err := ParsePage(data)
	if err != nil {
		pageErrorsTotal.Inc()
		logger.Error().Err(err).Str("url", link).Msg("Page parse failed, dropping chain link")
		return
	}

	for _, req := range page.DetailRequests(e.specsURL) {
		e.pipeline.Details.Put(req)
	}

	if page.Links.HasNext() {
		e.pipeline.Pages.Put(page.Links.Next)
	} else {
		logger.Info().
			Int("current_page", page.CurrentPage).
			Int("total_pages", page.TotalPages).
			Msg("Pagination chain exhausted")
	}

	pagesFetchedTotal.Inc()
	logger.Debug().
		Int("current_page", page.CurrentPage).
		Int("total_pages", page.TotalPages).
		Int("items", len(page.Items)).
		Msg("Page processed")
}

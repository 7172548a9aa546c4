package scraper

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/draftpark/carharvest/pkg/logging"
)

// Pipeline owns the three work queues of the harvest and their pending-work
// state. It is shared by reference between the worker pools; there is no
// package-level queue state.
type Pipeline struct {
	Pages   *Queue[string]
	Details *Queue[DetailRequest]
	Results *Queue[Record]

	logger zerolog.Logger
}

// NewPipeline creates a pipeline with three empty queues.
func NewPipeline() *Pipeline {
	return &Pipeline{
		Pages:   NewQueue[string](),
		Details: NewQueue[DetailRequest](),
		Results: NewQueue[Record](),
		logger:  logging.NewLogger("pipeline"),
	}
}

// Drain blocks until all generated work has been consumed: first the page
// queue, then the detail queue, then the result queue reach zero pending
// work, in that order.
//
// The page queue is self-feeding, so its pending count only reaches zero
// once the pagination chain hits the terminal sentinel or is broken by an
// unrecoverable fetch failure. Total work is not known in advance.
func (p *Pipeline) Drain(ctx context.Context) error {
	if err := p.Pages.Join(ctx); err != nil {
		return err
	}
	p.logger.Info().Msg("page queue drained, waiting for detail fetches")

	if err := p.Details.Join(ctx); err != nil {
		return err
	}
	p.logger.Info().Msg("detail queue drained, waiting for results to flush")

	return p.Results.Join(ctx)
}

// observe refreshes the pending-work gauges.
func (p *Pipeline) observe() {
	queuePending.WithLabelValues("pages").Set(float64(p.Pages.Pending()))
	queuePending.WithLabelValues("details").Set(float64(p.Details.Pending()))
	queuePending.WithLabelValues("results").Set(float64(p.Results.Pending()))
}

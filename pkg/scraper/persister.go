package scraper

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/draftpark/carharvest/pkg/logging"
)

// Sink durably appends a batch of records. Implemented by pkg/store.
type Sink interface {
	Append(ctx context.Context, batch []Record) error
}

// BatchPersister accumulates records from the result queue and flushes them
// to the sink when the batch reaches the size threshold, when the flush
// interval has elapsed, or after an idle wait with a non-empty batch. On a
// failed flush the batch is retained and retried at the next trigger.
//
// Exactly one persister services the result queue, so the sink never sees
// concurrent writers.
type BatchPersister struct {
	sink      Sink
	pipeline  *Pipeline
	threshold int
	interval  time.Duration

	batch     []Record
	lastFlush time.Time
	logger    zerolog.Logger
}

// NewBatchPersister creates a persister draining the pipeline's result
// queue into the sink.
func NewBatchPersister(sink Sink, pipeline *Pipeline, threshold int, interval time.Duration) *BatchPersister {
	return &BatchPersister{
		sink:      sink,
		pipeline:  pipeline,
		threshold: threshold,
		interval:  interval,
		logger:    logging.NewLogger("persister"),
	}
}

// run accumulates and flushes until the context is cancelled, then makes a
// final flush attempt for whatever is still in the batch.
func (p *BatchPersister) run(ctx context.Context) {
	p.lastFlush = time.Now()
	p.logger.Debug().Int("threshold", p.threshold).Dur("interval", p.interval).Msg("Persister started")

	for {
		rec, ok, err := p.pipeline.Results.GetWait(ctx, p.interval)
		if err != nil {
			// Context cancelled: the queue is already drained (or the run is
			// being aborted); don't leave accumulated records behind.
			if len(p.batch) > 0 {
				p.flush(context.WithoutCancel(ctx))
			}
			p.logger.Debug().Msg("Persister stopping (context cancelled)")
			return
		}

		if !ok {
			// Idle wait expired: flush whatever accumulated so production-to
			// -durability latency stays bounded even under low throughput.
			if len(p.batch) > 0 {
				p.flush(ctx)
			}
			p.lastFlush = time.Now()
			continue
		}

		p.batch = append(p.batch, rec)
		batchSize.Set(float64(len(p.batch)))

		if len(p.batch) >= p.threshold || time.Since(p.lastFlush) >= p.interval {
			p.flush(ctx)
			p.lastFlush = time.Now()
		}

		// The record is now either flushed or retained in the batch, so its
		// unit of work is complete.
		p.pipeline.Results.TaskDone()
		p.pipeline.observe()
	}
}

// flush attempts to persist the batch. On success the batch is cleared; on
// failure it is retained unflushed so the next trigger retries it. Elapsed
// time tracking advances either way (the caller resets lastFlush).
func (p *BatchPersister) flush(ctx context.Context) {
	start := time.Now()
	if err := p.sink.Append(ctx, p.batch); err != nil {
		flushErrorsTotal.Inc()
		p.logger.Error().Err(err).Int("records", len(p.batch)).Msg("Flush failed, batch retained")
		return
	}

	flushDurationSeconds.Observe(time.Since(start).Seconds())
	recordsFlushedTotal.Add(float64(len(p.batch)))
	p.logger.Info().
		Int("records", len(p.batch)).
		Dur("duration", time.Since(start)).
		Msg("Batch flushed")

	p.batch = p.batch[:0]
	batchSize.Set(0)
}

package scraper

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the harvest pipeline.
var (
	pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_pages_fetched_total",
		Help: "Total search pages fetched and parsed successfully",
	})

	pageErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_page_errors_total",
		Help: "Total search page fetches dropped after an unrecoverable error",
	})

	detailsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_details_fetched_total",
		Help: "Total detail resources fetched and merged successfully",
	})

	detailErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_detail_errors_total",
		Help: "Total detail fetches dropped after an unrecoverable error",
	})

	recordsFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_records_flushed_total",
		Help: "Total records durably flushed to the store",
	})

	flushErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvest_flush_errors_total",
		Help: "Total failed flush attempts (batch retained for retry)",
	})

	flushDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_flush_duration_seconds",
		Help:    "Flush duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	})

	batchSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "harvest_batch_size",
		Help: "Current number of records accumulated in the in-memory batch",
	})

	queuePending = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "harvest_queue_pending",
		Help: "Pending work per pipeline queue",
	}, []string{"queue"})
)

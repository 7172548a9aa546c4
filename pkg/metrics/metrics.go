// Package metrics provides the Prometheus registry reference for the
// harvester. Metrics are defined in the packages that own them (client,
// cache, scraper) to maintain modularity and avoid circular dependencies.
//
// This package documents the available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the harvester.
// All metrics are automatically registered via promauto in their packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Pipeline Metrics (pkg/scraper):
//   - harvest_pages_fetched_total (Counter): Search pages fetched and parsed
//   - harvest_page_errors_total (Counter): Page fetches dropped on error
//   - harvest_details_fetched_total (Counter): Detail resources merged into records
//   - harvest_detail_errors_total (Counter): Detail fetches dropped on error
//   - harvest_records_flushed_total (Counter): Records durably flushed
//   - harvest_flush_errors_total (Counter): Failed flush attempts
//   - harvest_flush_duration_seconds (Histogram): Flush duration
//   - harvest_batch_size (Gauge): Records currently accumulated in memory
//   - harvest_queue_pending{queue} (Gauge): Pending work per queue
//
// Request Metrics (pkg/client):
//   - harvest_http_requests_total{status} (Counter): Outbound requests by status
//   - harvest_http_request_duration_seconds (Histogram): Request duration
//   - harvest_http_errors_total{class} (Counter): Errors by class
//   - harvest_http_retries_total{error_class} (Counter): Retry attempts
//   - harvest_http_retry_backoff_seconds{error_class} (Histogram): Backoff durations
//   - harvest_http_retry_exhausted_total{error_class} (Counter): Exhausted retries
//
// Cache Metrics (pkg/cache):
//   - harvest_cache_hits_total (Counter): Response cache hits
//   - harvest_cache_misses_total (Counter): Response cache misses
//   - harvest_cache_size_bytes (Gauge): Bytes written into the cache
//   - harvest_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Detail fetch error rate
//   rate(harvest_detail_errors_total[5m]) /
//   (rate(harvest_details_fetched_total[5m]) + rate(harvest_detail_errors_total[5m]))
//
//   # Records awaiting durability
//   harvest_batch_size + harvest_queue_pending{queue="results"}
//
//   # P95 outbound latency
//   histogram_quantile(0.95, rate(harvest_http_request_duration_seconds_bucket[5m]))

// Package client provides the outbound HTTP client used by the harvest
// pipeline: browser-like identity headers, error classification, bounded
// retry with backoff, and an optional Redis-backed response cache.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/draftpark/carharvest/pkg/cache"
	"github.com/draftpark/carharvest/pkg/logging"
)

// Prometheus metrics for outbound requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_http_requests_total",
		Help: "Total outbound requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvest_http_request_duration_seconds",
		Help:    "Outbound request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_http_errors_total",
		Help: "Total outbound request errors by class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// UserAgent sent on every request (required).
	UserAgent string

	// Origin and Referer headers, matching the site the API serves.
	Origin  string
	Referer string

	// Timeout is the per-request timeout.
	Timeout time.Duration

	// Retry controls bounded retry with backoff for transient failures.
	Retry RetryConfig

	// Cache, when set, serves repeated GETs from Redis. Detail payloads
	// are stable per code/year, so caching them spares the remote API on
	// re-runs.
	Cache *cache.Manager
}

// DefaultConfig returns a configuration with the identity the harvested
// API expects from a browser session.
func DefaultConfig() Config {
	return Config{
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/130.0.0.0 Safari/537.36 OPR/115.0.0.0",
		Origin:  "https://www.cars.co.za",
		Referer: "https://www.cars.co.za/",
		Timeout: 30 * time.Second,
		Retry:   DefaultRetryConfig(),
	}
}

// Client performs outbound JSON GETs. Safe for concurrent use by many
// workers; the underlying http.Client pools connections across them.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		config: cfg,
		logger: logging.NewLogger("http-client"),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// GetJSON fetches a URL and returns the response body. Transient failures
// (network, 5xx, 429) are retried with backoff up to the configured limit;
// 4xx responses fail immediately. On success the body is cached when a
// cache is configured.
func (c *Client) GetJSON(ctx context.Context, url string) ([]byte, error) {
	if c.config.Cache != nil {
		if data, err := c.config.Cache.Get(ctx, url); err == nil {
			c.logger.Debug().Str("url", url).Msg("Cache hit")
			return data, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("url", url).Msg("Cache get error")
		}
	}

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	var body []byte
	var lastClass ErrorClass

	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			lastClass = ErrorClassClient
			return &FetchError{URL: url, Class: ErrorClassClient, Err: err}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)
		req.Header.Set("Accept", "application/json")
		if c.config.Origin != "" {
			req.Header.Set("Origin", c.config.Origin)
		}
		if c.config.Referer != "" {
			req.Header.Set("Referer", c.config.Referer)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastClass = ErrorClassNetwork
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues("network_error").Inc()
			return &FetchError{URL: url, Class: ErrorClassNetwork, Err: err}
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastClass = classify(resp.StatusCode)
			errorsTotal.WithLabelValues(string(lastClass)).Inc()
			c.logger.Warn().
				Str("url", url).
				Int("status", resp.StatusCode).
				Str("error_class", string(lastClass)).
				Msg("Request error")
			return &FetchError{URL: url, StatusCode: resp.StatusCode, Class: lastClass}
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			lastClass = ErrorClassNetwork
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &FetchError{URL: url, Class: ErrorClassNetwork, Err: err}
		}
		return nil
	}

	err := retryWithBackoff(ctx, c.config.Retry, attempt, func() ErrorClass {
		return lastClass
	})
	if err != nil {
		return nil, err
	}

	if c.config.Cache != nil {
		if err := c.config.Cache.Set(ctx, url, body); err != nil {
			c.logger.Warn().Err(err).Str("url", url).Msg("Cache set error")
		}
	}

	return body, nil
}

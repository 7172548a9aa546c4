// Package cache provides a Redis-backed response cache for the harvest
// client. Entries are keyed by URL and expire after a fixed TTL; the
// harvested API serves no cache-control headers worth honoring, so the TTL
// is a local policy choice.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss indicates the requested URL was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// DefaultTTL is the default entry lifetime. Detail payloads are stable per
// code/year, so a long TTL is safe.
const DefaultTTL = 6 * time.Hour

// Manager handles caching operations with a Redis backend.
type Manager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewManager creates a cache manager. A non-positive TTL falls back to
// DefaultTTL.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Key generates the Redis key for a URL.
func Key(url string) string {
	return "harvest:resp:" + url
}

// Get retrieves a cached response body by URL.
// Returns ErrCacheMiss if the URL is not cached.
func (m *Manager) Get(ctx context.Context, url string) ([]byte, error) {
	data, err := m.redis.Get(ctx, Key(url)).Bytes()
	if err != nil {
		if err == redis.Nil {
			cacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	cacheHits.Inc()
	return data, nil
}

// Set stores a response body for a URL with the configured TTL.
func (m *Manager) Set(ctx context.Context, url string, data []byte) error {
	if err := m.redis.Set(ctx, Key(url), data, m.ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	cacheSize.Add(float64(len(data)))
	return nil
}

// Delete removes a cached response.
func (m *Manager) Delete(ctx context.Context, url string) error {
	if err := m.redis.Del(ctx, Key(url)).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

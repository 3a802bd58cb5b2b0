package middleware

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements fixed-window rate limiting backed by
// Redis, so limits hold across multiple API instances. When Redis is
// unreachable the store fails open: the request is allowed and the
// fail-open counter is incremented.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{client: client}
}

// WithMetrics attaches middleware metrics for fail-open tracking.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow checks and consumes one request for key within the fixed window.
// Returns whether the request is allowed, the remaining budget in the
// current window, and the seconds until the window resets when blocked.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (allowed bool, remaining int, retryAfter int) {
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		s.failOpen(err)
		return true, config.RequestsPerWindow, 0
	}

	// First hit in a window owns setting the expiry.
	if count == 1 {
		if err := s.client.Expire(ctx, key, config.WindowDuration).Err(); err != nil {
			s.failOpen(err)
			return true, config.RequestsPerWindow - 1, 0
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, config.RequestsPerWindow - int(count), 0
	}

	ttl, err := s.client.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		retryAfter = int(config.WindowDuration.Seconds())
	} else {
		retryAfter = int(ttl.Seconds())
	}
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

func (s *RedisRateLimitStore) failOpen(err error) {
	slog.Warn("rate limit redis unavailable, failing open", "error", err)
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
}

// Store adapts the Redis store to the RateLimitStore interface used by
// the RateLimiter middleware.
func (s *RedisRateLimitStore) Store() RateLimitStore {
	return redisStoreAdapter{s}
}

type redisStoreAdapter struct {
	s *RedisRateLimitStore
}

func (a redisStoreAdapter) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	allowed, _, retryAfter := a.s.Allow(ctx, key, config)
	return allowed, retryAfter
}

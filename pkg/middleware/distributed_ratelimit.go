package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DistributedRateLimiter implements rate limiting using Redis
// This allows rate limits to be shared across multiple instances
type DistributedRateLimiter struct {
	redis  *redis.Client
	prefix string
	now    func() time.Time
}

// NewDistributedRateLimiter creates a new Redis-backed rate limiter
func NewDistributedRateLimiter(redisClient *redis.Client, prefix string) *DistributedRateLimiter {
	if prefix == "" {
		prefix = "ratelimit"
	}

	return &DistributedRateLimiter{
		redis:  redisClient,
		prefix: prefix,
		now:    time.Now,
	}
}

func (rl *DistributedRateLimiter) redisKey(key string) string {
	return fmt.Sprintf("%s:%s", rl.prefix, key)
}

// Allow counts the request in a fixed window that starts at the first
// request for key. The window expiry is set only once so that steady traffic
// cannot keep extending it.
func (rl *DistributedRateLimiter) Allow(ctx context.Context, key string, cfg RateLimitConfig) (Decision, error) {
	redisKey := rl.redisKey(key)
	limit := cfg.Capacity()

	pipe := rl.redis.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{Allowed: true, Limit: limit}, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	window := ttl.Val()
	if window < 0 {
		if err := rl.redis.Expire(ctx, redisKey, cfg.WindowDuration).Err(); err != nil {
			return Decision{Allowed: true, Limit: limit}, fmt.Errorf("redis rate limit expire failed: %w", err)
		}
		window = cfg.WindowDuration
	}

	count := int(incr.Val())
	d := Decision{
		Allowed: count <= limit,
		Limit:   limit,
		Reset:   rl.now().Add(window),
	}
	if d.Allowed {
		d.Remaining = limit - count
	} else {
		d.RetryAfter = window
	}
	return d, nil
}

// Reset clears the rate limit for a key (for testing or admin purposes)
func (rl *DistributedRateLimiter) Reset(ctx context.Context, key string) error {
	return rl.redis.Del(ctx, rl.redisKey(key)).Err()
}

// HealthCheck verifies Redis connectivity for rate limiting
func (rl *DistributedRateLimiter) HealthCheck(ctx context.Context) error {
	return rl.redis.Ping(ctx).Err()
}

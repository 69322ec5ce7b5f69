package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type RateLimit struct {
	Window  time.Duration // e.g., 1 minute, 1 hour
	MaxHits int           // max hits per window
}

type LimiterConfig struct {
	Name      string
	RateLimit RateLimit
}

// SlidingWindowLimiter counts hits per identifier in a rolling window backed
// by a redis sorted set. Shared by the request-spam gate on the API and by
// task scheduling.
type SlidingWindowLimiter struct {
	redis  *redis.Client
	config LimiterConfig
}

func NewSlidingWindowLimiter(redis *redis.Client, config LimiterConfig) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:  redis,
		config: config,
	}
}

func (l *SlidingWindowLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	key := fmt.Sprintf("rate_limit:%s:%s", l.config.Name, identifier)

	pipe := l.redis.Pipeline()
	now := time.Now().Unix()
	windowStart := now - int64(l.config.RateLimit.Window.Seconds())

	// Remove old entries
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart, 10))

	// Count current window
	pipe.ZCard(ctx, key)

	// Add new entry
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})

	// Set expiration
	pipe.Expire(ctx, key, l.config.RateLimit.Window*2)

	results, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("redis pipeline error: %w", err)
	}

	count := results[1].(*redis.IntCmd).Val()
	return count <= int64(l.config.RateLimit.MaxHits), nil
}

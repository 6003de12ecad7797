package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Varun5711/talentlens/internal/logger"
	"github.com/Varun5711/talentlens/internal/metrics"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type Limiter interface {
	Middleware(next http.Handler) http.Handler
}

// RateLimiter is a sliding-window limiter backed by a Redis sorted set per client.
type RateLimiter struct {
	redis     *redis.Client
	scope     string
	limit     int
	window    time.Duration
	keyPrefix string
	metrics   *metrics.Metrics
	log       *logger.Logger
	// warn limits outage logging to one line per interval.
	warn *rate.Sometimes
}

func NewRateLimiter(redisClient *redis.Client, scope string, limit int, window time.Duration, m *metrics.Metrics) *RateLimiter {
	return &RateLimiter{
		redis:     redisClient,
		scope:     scope,
		limit:     limit,
		window:    window,
		keyPrefix: "ratelimit:" + scope + ":",
		metrics:   m,
		log:       logger.New("rate-limiter"),
		warn:      &rate.Sometimes{First: 1, Interval: 30 * time.Second},
	}
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := rl.keyPrefix + ClientIP(r)

		allowed, remaining, resetTime := rl.allowRequest(r.Context(), key)
		if !allowed {
			rl.metrics.RateLimited(rl.scope)
		}
		writeLimitResponse(w, rl.limit, allowed, remaining, resetTime, func() { next.ServeHTTP(w, r) })
	})
}

func (rl *RateLimiter) allowRequest(ctx context.Context, key string) (bool, int, time.Time) {
	now := time.Now()
	windowStart := now.Add(-rl.window)

	pipe := rl.redis.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	zcard := pipe.ZCard(ctx, key)
	pipe.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
	})
	pipe.Expire(ctx, key, rl.window)

	if _, err := pipe.Exec(ctx); err != nil {
		// fail open: a Redis outage must not lock everyone out
		rl.warn.Do(func() { rl.log.Warn("Rate limit check failed for %s: %v", key, err) })
		return true, rl.limit, now.Add(rl.window)
	}

	count := int(zcard.Val())

	if count >= rl.limit {
		resetTime := now.Add(rl.window)
		oldest, err := rl.redis.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			resetTime = time.Unix(0, int64(oldest[0].Score)).Add(rl.window)
		}
		return false, 0, resetTime
	}

	remaining := rl.limit - count - 1
	if remaining < 0 {
		remaining = 0
	}

	return true, remaining, now.Add(rl.window)
}

func writeLimitResponse(w http.ResponseWriter, limit int, allowed bool, remaining int, resetTime time.Time, next func()) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))

	if !allowed {
		retryAfter := int(time.Until(resetTime).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeError(w, http.StatusTooManyRequests, "rate_limited", "Too many requests, please try again later")
		return
	}

	next()
}

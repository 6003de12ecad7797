package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Varun5711/talentlens/internal/metrics"
)

// visitor holds the admitted request times that are still inside the window,
// oldest first.
type visitor struct {
	hits []time.Time
}

// LocalRateLimiter is an in-process sliding-window limiter per client IP,
// used when Redis is not available. Limits are per instance.
type LocalRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	scope    string
	limit    int
	window   time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewLocalRateLimiter(scope string, limit int, window time.Duration, m *metrics.Metrics) *LocalRateLimiter {
	if limit < 1 {
		limit = 1
	}
	return &LocalRateLimiter{
		visitors: make(map[string]*visitor),
		scope:    scope,
		limit:    limit,
		window:   window,
		metrics:  m,
		now:      time.Now,
	}
}

func (l *LocalRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, resetTime := l.allow(ClientIP(r))
		if !allowed {
			l.metrics.RateLimited(l.scope)
		}
		writeLimitResponse(w, l.limit, allowed, remaining, resetTime, func() { next.ServeHTTP(w, r) })
	})
}

func (l *LocalRateLimiter) allow(ip string) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, exists := l.visitors[ip]
	if !exists {
		v = &visitor{}
		l.visitors[ip] = v
	}
	v.prune(now.Add(-l.window))

	if len(v.hits) >= l.limit {
		return false, 0, v.hits[0].Add(l.window)
	}

	v.hits = append(v.hits, now)
	return true, l.limit - len(v.hits), v.hits[0].Add(l.window)
}

// prune drops hits at or before cutoff.
func (v *visitor) prune(cutoff time.Time) {
	i := 0
	for i < len(v.hits) && !v.hits[i].After(cutoff) {
		i++
	}
	v.hits = v.hits[i:]
}

// Cleanup drops visitors with no hits inside the window until ctx is done.
func (l *LocalRateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evictIdle()
		}
	}
}

func (l *LocalRateLimiter) evictIdle() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for ip, v := range l.visitors {
		v.prune(cutoff)
		if len(v.hits) == 0 {
			delete(l.visitors, ip)
		}
	}
}

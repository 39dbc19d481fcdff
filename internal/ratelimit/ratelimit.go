// Package ratelimit layers an in-process token-bucket burst guard on top
// of the persistence layer's daily-counter RateLimiter. The daily counter
// (internal/persistence's connector_usage table) is durable and
// cross-process but only checked once per call; a misbehaving planner
// loop issuing many calls to the same adapter within the same second
// could still hammer it before the daily cap ever trips, so a
// golang.org/x/time/rate limiter per source absorbs that burst first.
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/edinburghfinds/lensfeed/internal/orchestrator"
)

// BurstPerSecond bounds how many calls a single adapter may make to the
// in-process limiter within one second, independent of its daily budget.
const BurstPerSecond = 2

// Limiter wraps a daily-counter orchestrator.RateLimiter with a per-source
// token bucket. It implements orchestrator.RateLimiter itself, so it can
// be dropped in wherever the underlying daily limiter was used directly.
type Limiter struct {
	daily   orchestrator.RateLimiter
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func New(daily orchestrator.RateLimiter) *Limiter {
	return &Limiter{daily: daily, buckets: map[string]*rate.Limiter{}}
}

// Allow first consumes a token from source's in-process bucket; if the
// bucket is exhausted the call is rejected without ever reaching the
// daily counter. Otherwise it delegates to the daily limiter.
func (l *Limiter) Allow(ctx context.Context, source string, limitPerDay int) (bool, error) {
	if !l.bucketFor(source).Allow() {
		return false, nil
	}
	return l.daily.Allow(ctx, source, limitPerDay)
}

func (l *Limiter) bucketFor(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	bucket, ok := l.buckets[source]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(BurstPerSecond), BurstPerSecond)
		l.buckets[source] = bucket
	}
	return bucket
}

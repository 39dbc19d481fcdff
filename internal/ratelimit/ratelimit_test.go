package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDailyLimiter struct {
	calls   int
	allowed bool
}

func (s *stubDailyLimiter) Allow(ctx context.Context, source string, limitPerDay int) (bool, error) {
	s.calls++
	return s.allowed, nil
}

func TestLimiter_DelegatesToDailyLimiterWhenBucketHasTokens(t *testing.T) {
	daily := &stubDailyLimiter{allowed: true}
	limiter := New(daily)

	allowed, err := limiter.Allow(context.Background(), "serper", 100)
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Equal(t, 1, daily.calls)
}

func TestLimiter_RejectsOnceBucketExhaustedWithoutReachingDailyLimiter(t *testing.T) {
	daily := &stubDailyLimiter{allowed: true}
	limiter := New(daily)
	ctx := context.Background()

	for i := 0; i < BurstPerSecond; i++ {
		allowed, err := limiter.Allow(ctx, "serper", 100)
		require.NoError(t, err)
		require.True(t, allowed)
	}

	allowed, err := limiter.Allow(ctx, "serper", 100)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, BurstPerSecond, daily.calls, "daily limiter should not be consulted once the bucket rejects")
}

func TestLimiter_TracksBucketsIndependentlyPerSource(t *testing.T) {
	daily := &stubDailyLimiter{allowed: true}
	limiter := New(daily)
	ctx := context.Background()

	for i := 0; i < BurstPerSecond; i++ {
		_, err := limiter.Allow(ctx, "serper", 100)
		require.NoError(t, err)
	}

	allowed, err := limiter.Allow(ctx, "google_places", 100)
	require.NoError(t, err)
	assert.True(t, allowed, "a different source should have its own untouched bucket")
}

func TestLimiter_PropagatesDailyLimiterRejection(t *testing.T) {
	daily := &stubDailyLimiter{allowed: false}
	limiter := New(daily)

	allowed, err := limiter.Allow(context.Background(), "serper", 100)
	require.NoError(t, err)
	assert.False(t, allowed)
}

package ratelimit

import (
	"context"
	"testing"
	"time"

	"ai-docreview-be/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAcquireDebits(t *testing.T) {
	bucket := NewTokenBucket(60, 10)

	err := bucket.Acquire(context.Background(), 4, 0)
	require.NoError(t, err)

	assert.InDelta(t, 6.0, bucket.Available(), 0.5)
}

func TestTokenBucketFailFast(t *testing.T) {
	bucket := NewTokenBucket(60, 2)

	require.NoError(t, bucket.Acquire(context.Background(), 2, 0))

	err := bucket.Acquire(context.Background(), 1, 0)
	require.Error(t, err)

	assert.True(t, apperrors.IsRateLimit(err))
	assert.Greater(t, apperrors.RetryAfter(err), 0)
}

func TestTokenBucketRefill(t *testing.T) {
	// 60000/min refills at 1000 tokens per second, so even a short sleep
	// restores measurable capacity.
	bucket := NewTokenBucket(60000, 1000)

	require.NoError(t, bucket.Acquire(context.Background(), 1000, 0))

	time.Sleep(30 * time.Millisecond)
	assert.Greater(t, bucket.Available(), 5.0)
}

func TestTokenBucketRefundCappedAtMax(t *testing.T) {
	bucket := NewTokenBucket(60, 5)

	bucket.Refund(100)
	assert.InDelta(t, 5.0, bucket.Available(), 0.01)
}

func TestTokenBucketBlockingAcquire(t *testing.T) {
	// 6000/min refills at 100/s, so waiting for one token takes around
	// 10ms plus jitter.
	bucket := NewTokenBucket(6000, 1)

	require.NoError(t, bucket.Acquire(context.Background(), 1, 0))

	start := time.Now()
	err := bucket.Acquire(context.Background(), 1, 2*time.Second)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestTokenBucketWaitsForContext(t *testing.T) {
	// 1/min means the wait for a fresh token is far beyond the context
	// deadline; timeout < 0 defers entirely to context cancellation.
	bucket := NewTokenBucket(1, 1)

	require.NoError(t, bucket.Acquire(context.Background(), 1, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := bucket.Acquire(ctx, 1, -1)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, apperrors.IsRateLimit(err))
}

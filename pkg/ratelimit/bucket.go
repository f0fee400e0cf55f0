package ratelimit

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"ai-docreview-be/internal/pkg/apperrors"
)

// TokenBucket bounds outbound request rate with burst allowance.
// Capacity refills continuously at tokensPerMinute/60 per second, capped
// at maxTokens. All capacity mutation happens under one mutex so
// concurrent acquirers never double-spend.
type TokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	perSecond  float64
	lastUpdate time.Time
}

// NewTokenBucket creates a full bucket. maxTokens <= 0 defaults the burst
// capacity to tokensPerMinute.
func NewTokenBucket(tokensPerMinute int, maxTokens int) *TokenBucket {
	if maxTokens <= 0 {
		maxTokens = tokensPerMinute
	}
	return &TokenBucket{
		tokens:     float64(maxTokens),
		maxTokens:  float64(maxTokens),
		perSecond:  float64(tokensPerMinute) / 60.0,
		lastUpdate: time.Now(),
	}
}

// refill credits elapsed time. Caller must hold the mutex.
func (b *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastUpdate).Seconds()
	b.tokens = math.Min(b.maxTokens, b.tokens+elapsed*b.perSecond)
	b.lastUpdate = now
}

// Acquire debits n tokens, blocking until they are available or timeout
// elapses. timeout == 0 fails fast with a typed rate-limit error carrying
// a retry-after estimate; timeout < 0 waits until ctx is cancelled.
// Waiters recompute the wait each pass, since other acquirers may also be
// draining capacity, and sleep in bounded increments with jitter.
func (b *TokenBucket) Acquire(ctx context.Context, n int, timeout time.Duration) error {
	start := time.Now()
	need := float64(n)

	for {
		b.mu.Lock()
		b.refill()
		if b.tokens >= need {
			b.tokens -= need
			b.mu.Unlock()
			return nil
		}
		wait := (need - b.tokens) / b.perSecond
		b.mu.Unlock()

		if timeout >= 0 && time.Since(start) >= timeout {
			return apperrors.NewRateLimitError(int(wait) + 1)
		}

		// Cap the sleep at one second so the estimate stays fresh, and
		// jitter up to 100ms to avoid thundering-herd wakeups.
		sleep := time.Duration(math.Min(wait, 1.0)*float64(time.Second)) +
			time.Duration(rand.Int63n(int64(100*time.Millisecond)))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Refund credits tokens back, capped at the burst maximum. Used by scoped
// acquisitions that failed before the provider call consumed quota.
func (b *TokenBucket) Refund(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	b.tokens = math.Min(b.maxTokens, b.tokens+float64(n))
}

// Available returns the current capacity after a lazy refill.
func (b *TokenBucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens
}

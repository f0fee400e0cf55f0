package ratelimit

import (
	"context"
	"time"

	"ai-docreview-be/internal/pkg/apperrors"
	"ai-docreview-be/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
)

// Limiter wraps outbound calls with bucket admission and exponential
// backoff on rate-limit signals. One Limiter guards one call class; the
// bulk analysis model and the interactive chat model each get their own
// so chat stays responsive while an analysis job is throttled.
type Limiter struct {
	bucket     *TokenBucket
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	log        logger.ILogger
}

func NewLimiter(requestsPerMinute, maxRetries int, baseDelay, maxDelay time.Duration, log logger.ILogger) *Limiter {
	return &Limiter{
		bucket:     NewTokenBucket(requestsPerMinute, 0),
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		log:        log,
	}
}

// Bucket exposes the underlying bucket for capacity inspection in tests
// and health reporting.
func (l *Limiter) Bucket() *TokenBucket {
	return l.bucket
}

func (l *Limiter) newBackOff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = l.baseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.25
	bo.MaxInterval = l.maxDelay
	return bo
}

// Execute runs fn behind a fail-fast token acquisition. Recognized
// rate-limit signals (bucket exhaustion or a provider-reported
// 429-equivalent) are retried up to maxRetries with exponential backoff;
// any other error propagates immediately. Exhausting retries returns a
// typed rate-limit error carrying a retry-after estimate.
func (l *Limiter) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	bo := l.newBackOff()

	for attempt := 0; ; attempt++ {
		err := l.bucket.Acquire(ctx, 1, 0)
		if err == nil {
			err = fn(ctx)
			if err == nil {
				return nil
			}
		}

		if !apperrors.IsRateLimit(err) {
			return err
		}

		if attempt+1 >= l.maxRetries {
			l.log.Warn("RateLimit", "Max retries exceeded", map[string]interface{}{
				"attempts": attempt + 1,
			})
			retryAfter := apperrors.RetryAfter(err)
			if retryAfter <= 0 {
				retryAfter = int(l.maxDelay.Seconds())
			}
			return apperrors.NewRateLimitError(retryAfter)
		}

		delay := bo.NextBackOff()
		l.log.Info("RateLimit", "Rate limited, retrying with backoff", map[string]interface{}{
			"attempt":       attempt + 1,
			"delay_seconds": delay.Seconds(),
		})

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// AcquireScope admits one call and returns a release func for call sites
// that must hold the token across an externally-streamed response. Bucket
// exhaustion during admission is retried with the same backoff policy as
// Execute. Release must be called on every exit path; a rate-limited call
// refunds the token since no provider quota was consumed.
func (l *Limiter) AcquireScope(ctx context.Context) (func(callErr error), error) {
	bo := l.newBackOff()

	for attempt := 0; ; attempt++ {
		err := l.bucket.Acquire(ctx, 1, 0)
		if err == nil {
			release := func(callErr error) {
				if apperrors.IsRateLimit(callErr) {
					l.bucket.Refund(1)
				}
			}
			return release, nil
		}

		if !apperrors.IsRateLimit(err) {
			return nil, err
		}

		if attempt+1 >= l.maxRetries {
			return nil, apperrors.NewRateLimitError(apperrors.RetryAfter(err))
		}

		timer := time.NewTimer(bo.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

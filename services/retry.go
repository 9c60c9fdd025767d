package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"training-management-api/config"
)

// RetryPolicy implements bounded exponential backoff with jitter. The same
// policy drives outbound page fetches and the scheduling of webhook
// re-dispatch attempts.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryPolicy builds a policy from the integration config.
func NewRetryPolicy(cfg *config.IntegrationConfig) *RetryPolicy {
	if cfg == nil {
		cfg = config.LoadIntegrationConfig()
	}
	return &RetryPolicy{
		MaxAttempts: cfg.SyncMaxAttempts,
		BaseDelay:   cfg.SyncBaseBackoff,
		MaxDelay:    cfg.SyncMaxBackoff,
		sleep:       sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delay computes the backoff before the given retry attempt (0-based), with
// up to 25% positive jitter, capped at MaxDelay.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	if d > 0 {
		d += time.Duration(rand.Int63n(int64(d)/4 + 1))
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs op with bounded retries. Non-retryable errors surface immediately.
// A rate-limited response waits at least the server-supplied reset hint when
// one is present, otherwise the computed backoff.
func (p *RetryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}

		wait := p.Delay(attempt)
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && apiErr.RetryAfter != nil && *apiErr.RetryAfter > wait {
			wait = *apiErr.RetryAfter
		}
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

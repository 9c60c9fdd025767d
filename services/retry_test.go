package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testPolicy(maxAttempts int, sleeps *[]time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    400 * time.Millisecond,
		sleep: func(_ context.Context, d time.Duration) error {
			*sleeps = append(*sleeps, d)
			return nil
		},
	}
}

func TestDelayGrowsAndCaps(t *testing.T) {
	policy := testPolicy(5, &[]time.Duration{})

	d0 := policy.Delay(0)
	if d0 < 100*time.Millisecond || d0 > 125*time.Millisecond {
		t.Fatalf("attempt 0: expected base delay plus up to 25%% jitter, got %v", d0)
	}

	d1 := policy.Delay(1)
	if d1 < 200*time.Millisecond || d1 > 250*time.Millisecond {
		t.Fatalf("attempt 1: expected doubled delay, got %v", d1)
	}

	// From attempt 2 on the cap applies, jitter included.
	for attempt := 2; attempt < 6; attempt++ {
		if d := policy.Delay(attempt); d != 400*time.Millisecond {
			t.Fatalf("attempt %d: expected capped delay, got %v", attempt, d)
		}
	}
}

func TestDoRetriesTransientErrorsUntilSuccess(t *testing.T) {
	var sleeps []time.Duration
	policy := testPolicy(5, &sleeps)

	attempts := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return &APIError{Kind: ErrKindServer, StatusCode: 502}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(sleeps))
	}
}

func TestDoStopsImmediatelyOnNonRetryable(t *testing.T) {
	var sleeps []time.Duration
	policy := testPolicy(5, &sleeps)

	attempts := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		attempts++
		return &APIError{Kind: ErrKindValidation, StatusCode: 422}
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != ErrKindValidation {
		t.Fatalf("expected the validation error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	if len(sleeps) != 0 {
		t.Fatalf("expected no sleeps, got %v", sleeps)
	}
}

func TestDoHonorsRetryAfterHint(t *testing.T) {
	var sleeps []time.Duration
	policy := testPolicy(2, &sleeps)

	hint := 2 * time.Second
	attempts := 0
	_ = policy.Do(context.Background(), func(context.Context) error {
		attempts++
		return &APIError{Kind: ErrKindRateLimited, StatusCode: 429, RetryAfter: &hint}
	})

	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if len(sleeps) != 1 || sleeps[0] < hint {
		t.Fatalf("expected wait of at least the server hint %v, got %v", hint, sleeps)
	}
}

func TestDoReturnsLastErrorWhenExhausted(t *testing.T) {
	var sleeps []time.Duration
	policy := testPolicy(3, &sleeps)

	attempts := 0
	err := policy.Do(context.Background(), func(context.Context) error {
		attempts++
		return &APIError{Kind: ErrKindServer, StatusCode: 503}
	})

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 503 {
		t.Fatalf("expected the final server error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected MaxAttempts attempts, got %d", attempts)
	}
	if len(sleeps) != 2 {
		t.Fatalf("expected sleeps between attempts only, got %d", len(sleeps))
	}
}

func TestDoStopsWhenContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   10 * time.Millisecond,
		MaxDelay:    50 * time.Millisecond,
		sleep:       sleepContext,
	}

	attempts := 0
	err := policy.Do(ctx, func(context.Context) error {
		attempts++
		cancel()
		return &APIError{Kind: ErrKindNetwork}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected cancellation after the first attempt, got %d", attempts)
	}
}

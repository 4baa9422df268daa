// Copyright 2026 Peter Edge
//
// All rights reserved.

// Package backoff provides exponential backoff with jitter for retrying operations.
package backoff

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Policy controls the retry behavior.
type Policy struct {
	// MaxAttempts is the maximum number of calls to f.
	MaxAttempts int
	// InitialDelay is the delay after the first failed attempt.
	InitialDelay time.Duration
	// MaxDelay caps the exponentially growing delay.
	MaxDelay time.Duration
}

// DefaultPolicy is a reasonable policy for polling HTTP APIs.
var DefaultPolicy = Policy{
	MaxAttempts:  4,
	InitialDelay: 500 * time.Millisecond,
	MaxDelay:     8 * time.Second,
}

// Retry calls f repeatedly until it succeeds, returns a non-retryable error,
// or the policy's maximum number of attempts is reached. Between attempts, it
// waits with exponential backoff and jitter.
//
// f returns the result, whether the error is retryable, and any error.
// If retryable is true and err is non-nil, Retry will wait and try again.
// If retryable is false, Retry returns immediately with the error.
func Retry[T any](
	ctx context.Context,
	policy Policy,
	f func(ctx context.Context, attempt int) (T, bool, error),
) (T, error) {
	var zero T
	delay := policy.InitialDelay
	for attempt := range policy.MaxAttempts {
		result, retryable, err := f(ctx, attempt)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return zero, err
		}
		// Don't wait after the last attempt.
		if attempt == policy.MaxAttempts-1 {
			return zero, fmt.Errorf("failed after %d attempts: %w", policy.MaxAttempts, err)
		}
		// Wait with jitter: random duration between delay/2 and delay.
		jitteredDelay := delay/2 + time.Duration(rand.Int64N(int64(delay/2+1)))
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(jitteredDelay):
		}
		// Exponential backoff, capped at MaxDelay.
		delay *= 2
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	return zero, fmt.Errorf("failed after %d attempts", policy.MaxAttempts)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry runs operations under an exponential-backoff policy.
// Every external call in the pipeline goes through Do; call sites differ
// only in the classifier that separates transient from permanent failures.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = time.Second

	// uncappedMaxDelay bounds a single wait when the policy sets no cap.
	uncappedMaxDelay = time.Hour
)

// ErrExhausted is matched by errors.Is for every ExhaustedError.
var ErrExhausted = errors.New("retry exhausted")

// ExhaustedError is returned when every attempt failed with a transient
// error. Last holds the final underlying failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Last)
}

// Is makes errors.Is(err, ErrExhausted) true.
func (e *ExhaustedError) Is(target error) bool { return target == ErrExhausted }

// Unwrap exposes the last underlying failure.
func (e *ExhaustedError) Unwrap() error { return e.Last }

// Classifier reports whether err is transient and worth retrying.
type Classifier func(err error) bool

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	// Zero or negative uses 3.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. Attempt n+1 waits
	// BaseDelay * 2^(n-1). Zero uses one second.
	BaseDelay time.Duration

	// MaxDelay caps a single wait. Zero caps it at one hour.
	MaxDelay time.Duration

	// Jitter subtracts a random amount of up to half of each wait.
	Jitter bool

	// IsTransient classifies failures. Nil uses DefaultClassifier.
	IsTransient Classifier

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Delay returns the backoff before attempt+1, where attempt counts from 1.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	limit := p.MaxDelay
	if limit <= 0 {
		limit = uncappedMaxDelay
	}
	d := min(base, limit)
	for i := 1; i < attempt && d < limit; i++ {
		if d > limit/2 {
			d = limit
			break
		}
		d *= 2
	}
	if p.Jitter && d > 1 {
		d -= time.Duration(rand.Int64N(int64(d / 2)))
	}
	return d
}

func (p Policy) attempts() int {
	if p.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return p.MaxAttempts
}

// Do calls op until it succeeds, fails permanently, or the policy's
// attempts are used up. A permanent failure is returned unchanged after a
// single call. Running out of attempts returns an *ExhaustedError. If ctx
// is cancelled during a backoff wait Do returns ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	classify := p.IsTransient
	if classify == nil {
		classify = DefaultClassifier
	}
	maxAttempts := p.attempts()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !classify(err) {
			return zero, err
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, &ExhaustedError{Attempts: maxAttempts, Last: lastErr}
}

// Run is Do for operations that return only an error.
func Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Package retry implements the shared retry policy used by the downloader
// and the provisioner.
//
// # Backoff
//
// The delay before attempt n+1 is
//
//	min(InitialDelay * Factor^(n-1), MaxDelay)
//
// plus symmetric random jitter of up to Jitter times that value, floored
// at zero.
//
// # Classification
//
// Every error is retried unless it is marked with [Permanent] or it comes
// from context cancellation. Cancellation never consumes an attempt: the
// context error is returned as soon as it is observed.
//
// # Hooks
//
// [Policy.BeforeRetry] is a gate consulted before each retry. Returning
// false stops immediately and the last error propagates unchanged; this is
// how a human confirms or cancels retries. [Policy.OnRetry] is a
// non-blocking observer for logging.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Default policy values.
const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = time.Second
	DefaultMaxDelay     = 30 * time.Second
	DefaultFactor       = 2.0
	DefaultJitter       = 0.2
)

// PermanentError wraps an error to indicate it must not be retried.
// Wrap data and security failures (bad input, validation errors) with this
// type so that [Do] returns them immediately.
type PermanentError struct{ Err error }

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError. Permanent(nil) returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err is wrapped with PermanentError.
func IsPermanent(err error) bool {
	return errors.As(err, new(*PermanentError))
}

// Policy configures [Do].
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int

	// InitialDelay is the delay before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the exponential delay (before jitter).
	// Zero means no cap.
	MaxDelay time.Duration

	// Factor is the exponential growth factor. Values below 1 are treated as 1.
	Factor float64

	// Jitter is the symmetric random fraction applied to each delay, 0-1.
	Jitter float64

	// BeforeRetry is consulted before each retry with the error that just
	// occurred and the number of the attempt about to be made. Returning
	// false (or an error) stops retrying; the last operation error is
	// returned unmodified.
	BeforeRetry func(ctx context.Context, err error, nextAttempt int) (bool, error)

	// OnRetry observes each scheduled retry. It must not block.
	OnRetry func(err error, nextAttempt int, delay time.Duration)

	// rand returns a value in [0, 1). Tests override it.
	rand func() float64
	// sleep waits for d or until ctx is done. Tests override it.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the policy used when none is configured:
// 3 attempts, 1s initial delay doubling up to 30s, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  DefaultMaxAttempts,
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Factor:       DefaultFactor,
		Jitter:       DefaultJitter,
	}
}

// Delay returns the un-jittered backoff before attempt+1, where attempt is
// the 1-based number of the attempt that just failed.
func (p Policy) Delay(attempt int) time.Duration {
	attempt = max(attempt, 1)
	factor := p.Factor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if d > math.MaxInt64 {
		d = math.MaxInt64
	}
	return time.Duration(d)
}

// jittered applies symmetric jitter to d, floored at zero.
func (p Policy) jittered(d time.Duration) time.Duration {
	jitter := min(max(p.Jitter, 0), 1)
	if jitter == 0 || d <= 0 {
		return d
	}
	r := rand.Float64
	if p.rand != nil {
		r = p.rand
	}
	offset := float64(d) * jitter * (r()*2 - 1)
	return max(time.Duration(float64(d)+offset), 0)
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// policy is exhausted, or ctx is cancelled. The attempt number passed to fn
// is 1-based. Returns the last error if all attempts fail, or ctx.Err() if
// cancelled while waiting.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := max(p.MaxAttempts, 1)
	sleep := sleepContext
	if p.sleep != nil {
		sleep = p.sleep
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(ctx, err) {
			return unwrapPermanent(err)
		}
		if attempt == attempts {
			return err
		}

		next := attempt + 1
		if p.BeforeRetry != nil {
			ok, gateErr := p.BeforeRetry(ctx, err, next)
			if gateErr != nil || !ok {
				return err
			}
		}

		delay := p.jittered(p.Delay(attempt))
		if p.OnRetry != nil {
			p.OnRetry(err, next, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

func unwrapPermanent(err error) error {
	if pe, ok := err.(*PermanentError); ok {
		return pe.Err
	}
	return err
}

func shouldRetry(ctx context.Context, err error) bool {
	if IsPermanent(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return ctx.Err() == nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

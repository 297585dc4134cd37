// Package retry runs an operation with bounded exponential backoff. The
// caller decides which errors are worth another attempt; everything else
// returns immediately.
package retry

import (
	"context"
	"time"
)

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int           // total tries including the first; <= 0 means 1
	BaseDelay   time.Duration // delay before the second try
	MaxDelay    time.Duration // cap for the grown delay
	Multiplier  float64       // growth factor, 2.0 if unset
}

// Backoff returns the delay to wait after attempt n (0-based).
func (p Policy) Backoff(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 1 {
		mult = 2.0
	}
	d := float64(p.BaseDelay)
	for i := 0; i < attempt; i++ {
		d *= mult
		if p.MaxDelay > 0 && d >= float64(p.MaxDelay) {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a non-retryable error, exhausts the
// attempt budget, or ctx is done. The last error is returned as-is so callers
// can still classify it.
func Do(ctx context.Context, p Policy, retryable func(error) bool, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.Backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
	}
	return err
}

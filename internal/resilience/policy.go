// Package resilience wraps outbound remote-channel calls with retry and
// backoff, and detects process suspend/resume from tick timing.
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Default retry parameters for outbound sends.
const (
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 5 * time.Minute
	DefaultMaxRetries = 10
)

// Policy describes the exponential backoff applied to transient
// failures: delays double from Base up to Max, and reset to Base after
// any success.
type Policy struct {
	Base       time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultPolicy returns the standard policy: 1s doubling to 5min,
// surfacing the failure after 10 attempts.
func DefaultPolicy() Policy {
	return Policy{
		Base:       DefaultBaseDelay,
		Max:        DefaultMaxDelay,
		MaxRetries: DefaultMaxRetries,
	}
}

// Delay returns the backoff delay for a 0-indexed attempt, capped at Max.
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.Base
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= p.Max {
			return p.Max
		}
	}
	if delay > p.Max {
		return p.Max
	}
	return delay
}

// Do runs op with exponential backoff until it succeeds, the retry
// budget is exhausted, or ctx is cancelled. The caller's op is expected
// to honor ctx itself; Do only schedules the attempts.
func (p Policy) Do(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.MaxInterval = p.Max
	b.Multiplier = 2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxRetries)),
	)
	if err != nil {
		return fmt.Errorf("retries exhausted: %w", err)
	}
	return nil
}

// DoNotify is Do with a callback invoked before each backoff sleep,
// used to record retry metrics and log the upcoming delay.
func (p Policy) DoNotify(ctx context.Context, op func() error, notify func(err error, next time.Duration)) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.MaxInterval = p.Max
	b.Multiplier = 2

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxRetries)),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return fmt.Errorf("retries exhausted: %w", err)
	}
	return nil
}

// Permanent marks an error as non-retryable; Do stops immediately and
// returns it. Used for caller mistakes (bad key, unknown conversation)
// that backoff cannot fix.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Package retry runs backend calls under a bounded retry policy.
//
// Retries wait a fixed delay with random jitter between attempts. Errors that
// cannot succeed on a later attempt (missing object, denied access, invalid
// range or input) and cancellation of the caller's context stop immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
)

// Policy controls how a single operation is retried.
type Policy struct {
	// MaxRetries is the number of attempts after the first one
	MaxRetries int

	// Delay is the nominal wait between attempts
	Delay time.Duration

	// Jitter randomizes Delay by up to this fraction in either direction
	Jitter float64

	// AttemptTimeout bounds each attempt; an expired attempt is retried. Zero disables it.
	AttemptTimeout time.Duration
}

// DefaultPolicy returns the range fetch policy: 10 retries 100ms apart with ±25% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 10,
		Delay:      100 * time.Millisecond,
		Jitter:     0.25,
	}
}

// Attempts returns the maximum number of calls the policy allows.
func (p Policy) Attempts() int {
	return max(p.MaxRetries, 0) + 1
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Delay
	b.MaxInterval = p.Delay
	b.Multiplier = 1
	b.RandomizationFactor = p.Jitter
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(p.MaxRetries, 0))), ctx)
}

// Notify is called before each wait with the number of attempts made so far,
// the error of the last attempt and the upcoming delay.
type Notify func(attempt int, err error, next time.Duration)

// Do calls fn until it succeeds, fails permanently or the policy is exhausted.
// It returns the value of the successful call and the number of calls made.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error), notify Notify) (T, int, error) {
	var (
		result   T
		attempts int
	)

	op := func() error {
		attempts++
		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		defer cancel()

		v, err := fn(actx)
		if err == nil {
			result = v
			return nil
		}
		if ctx.Err() != nil || errors.IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.RetryNotify(op, p.backOff(ctx), func(err error, next time.Duration) {
		if notify != nil {
			notify(attempts, err, next)
		}
	})
	if err != nil {
		var zero T
		return zero, attempts, err
	}
	return result, attempts, nil
}

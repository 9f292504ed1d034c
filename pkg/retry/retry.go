// Package retry runs an operation a bounded number of times with a backoff
// between attempts. It knows nothing about what is retried.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retry loop. Attempts counts the first try, so an Attempts
// of 4 means one try and up to three retries. A Multiplier above 1 grows the
// delay exponentially up to MaxDelay.
type Policy struct {
	Attempts   int
	Delay      time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// Once runs an operation a single time.
var Once = Policy{Attempts: 1}

func (p Policy) String() string {
	if p.Multiplier > 1 {
		return fmt.Sprintf("%d attempts, %s x%g up to %s", p.attempts(), p.Delay, p.Multiplier, p.MaxDelay)
	}
	return fmt.Sprintf("%d attempts, %s apart", p.attempts(), p.Delay)
}

func (p Policy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

func (p Policy) backOff() backoff.BackOff {
	var b backoff.BackOff
	if p.Multiplier > 1 {
		e := backoff.NewExponentialBackOff()
		e.InitialInterval = p.Delay
		e.Multiplier = p.Multiplier
		e.RandomizationFactor = 0
		e.MaxElapsedTime = 0
		if p.MaxDelay > 0 {
			e.MaxInterval = p.MaxDelay
		}
		b = e
	} else {
		b = backoff.NewConstantBackOff(p.Delay)
	}
	return backoff.WithMaxRetries(b, uint64(p.attempts()-1))
}

// Func is the retried operation. attempt starts at 1.
type Func func(attempt int) error

// NotifyFunc is called after a failed attempt that will be retried.
type NotifyFunc func(err error, attempt int, next time.Duration)

// Do runs op until it succeeds, returns a Permanent error, the attempts run
// out or ctx is done. It returns nil or the last error seen.
func Do(ctx context.Context, p Policy, op Func) error {
	return DoNotify(ctx, p, op, nil)
}

// DoNotify is Do with a callback before every retry.
func DoNotify(ctx context.Context, p Policy, op Func, notify NotifyFunc) error {
	attempt := 0
	operation := func() error {
		attempt++
		return op(attempt)
	}

	var n backoff.Notify
	if notify != nil {
		n = func(err error, next time.Duration) {
			notify(err, attempt, next)
		}
	}

	return backoff.RetryNotify(operation, backoff.WithContext(p.backOff(), ctx), n)
}

// Permanent wraps err so that Do stops retrying and returns err.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

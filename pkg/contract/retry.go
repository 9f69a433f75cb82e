package contract

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/raulk/clock"
)

// RetryPolicy retries an operation a fixed number of times with a fixed delay.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy is used for source account lookups.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Delay: time.Second}

// Do runs op until it succeeds, returns a backoff.Permanent error, the
// attempts are exhausted or ctx is done. onRetry is called before each retry.
func (p RetryPolicy) Do(ctx context.Context, clk clock.Clock, op func() error, onRetry func(err error, attempt int)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	b = backoff.WithMaxRetries(b, uint64(attempts-1))
	b = backoff.WithContext(b, ctx)

	attempt := 0
	notify := func(err error, _ time.Duration) {
		attempt++
		if onRetry != nil {
			onRetry(err, attempt)
		}
	}
	return backoff.RetryNotifyWithTimer(op, b, notify, &clockTimer{clock: clk})
}

// clockTimer adapts a clock.Clock to backoff.Timer.
type clockTimer struct {
	clock clock.Clock
	timer *clock.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer == nil {
		t.timer = t.clock.Timer(d)
		return
	}
	t.timer.Reset(d)
}

func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}

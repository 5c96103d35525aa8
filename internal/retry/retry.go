// Package retry provides a storage-agnostic bounded retry helper used to
// absorb replication and trigger latency between systems.
package retry

import (
	"context"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Policy bounds a retry loop: at most Attempts calls with a fixed Delay
// between them. Retryable decides which errors are worth another attempt;
// anything else is returned immediately.
type Policy struct {
	Attempts  int
	Delay     time.Duration
	Retryable func(error) bool
}

// Result reports the fetched value along with how many calls were made.
type Result[T any] struct {
	Value    T
	Attempts int
}

// Fetch calls fetch until it succeeds, returns a non-retryable error, the
// attempt budget is spent or ctx is done. The worst-case wait is
// (Attempts-1) * Delay.
func Fetch[T any](ctx context.Context, p Policy, fetch func(ctx context.Context) (T, error)) (Result[T], error) {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := p.Delay
	if delay <= 0 {
		delay = time.Nanosecond
	}

	backoff := goretry.WithMaxRetries(uint64(attempts-1), goretry.NewConstant(delay))

	var res Result[T]
	err := goretry.Do(ctx, backoff, func(ctx context.Context) error {
		res.Attempts++
		v, err := fetch(ctx)
		if err != nil {
			if p.Retryable != nil && p.Retryable(err) {
				return goretry.RetryableError(err)
			}
			return err
		}
		res.Value = v
		return nil
	})
	return res, err
}

package swapper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Defaults for confirmation polling
const (
	DefaultPollInterval = 5 * time.Second
	DefaultPollTimeout  = 2 * time.Minute
)

// ErrPollTimeout is returned when a poll does not complete in time
var ErrPollTimeout = errors.New("poll timed out")

// CheckFunc is one polling attempt. done=true ends the poll with value; a
// non-nil error aborts it.
type CheckFunc[T any] func(ctx context.Context) (value T, done bool, err error)

// PollUntil runs check immediately and then every interval until it reports
// done, fails, or timeout elapses.
func PollUntil[T any](ctx context.Context, check CheckFunc[T], interval, timeout time.Duration) (T, error) {
	var zero T
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		value, done, err := check(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return value, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return zero, fmt.Errorf("%w after %s", ErrPollTimeout, timeout)
			}
			return zero, ctx.Err()
		case <-ticker.C:
		}
	}
}

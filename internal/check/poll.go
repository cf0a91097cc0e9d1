package check

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Poll when the condition never held.
var ErrTimeout = errors.New("condition not met before deadline")

// PollOptions bounds a readiness poll.
type PollOptions struct {
	Timeout time.Duration // overall deadline (default 10s)
	Initial time.Duration // first backoff interval (default 100ms)
	Max     time.Duration // backoff cap (default 1s)
}

func (o PollOptions) withDefaults() PollOptions {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Initial <= 0 {
		o.Initial = 100 * time.Millisecond
	}
	if o.Max <= 0 {
		o.Max = time.Second
	}
	if o.Max < o.Initial {
		o.Max = o.Initial
	}
	return o
}

// Poll evaluates cond until it returns true, the deadline passes, or ctx is
// done. The interval doubles from Initial up to Max. cond errors are treated
// as "not yet" and the last one is reported on timeout.
func Poll(ctx context.Context, opts PollOptions, cond func(context.Context) (bool, error)) error {
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	interval := opts.Initial
	var lastErr error
	for {
		ok, err := cond(ctx)
		if err == nil && ok {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				if lastErr != nil {
					return fmt.Errorf("%w after %s: %v", ErrTimeout, opts.Timeout, lastErr)
				}
				return fmt.Errorf("%w after %s", ErrTimeout, opts.Timeout)
			}
			return ctx.Err()
		case <-timer.C:
		}

		interval *= 2
		if interval > opts.Max {
			interval = opts.Max
		}
	}
}

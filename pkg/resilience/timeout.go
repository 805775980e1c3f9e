package resilience

import (
	"context"
	"errors"
	"time"
)

// ErrTimedOut is returned by RunWithTimeout when the deadline elapses before
// fn completes.
var ErrTimedOut = errors.New("resilience: operation timed out")

// RunWithTimeout races fn against a deadline. The derived context passed to fn
// is cancelled when the deadline elapses, so well-behaved calls abort their
// I/O; a call that ignores cancellation keeps running but its result is
// discarded. The result channel is buffered so the goroutine never leaks.
func RunWithTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}

	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	ch := make(chan result, 1)
	go func() {
		val, err := fn(cctx)
		ch <- result{val: val, err: err}
	}()

	select {
	case r := <-ch:
		return r.val, r.err
	case <-cctx.Done():
		var zero T
		if ctx.Err() != nil {
			// Caller-side cancellation, not our deadline
			return zero, ctx.Err()
		}
		return zero, ErrTimedOut
	}
}

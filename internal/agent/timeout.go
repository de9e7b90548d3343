package agent

import (
	"context"
	"fmt"
	"time"
)

// RunWithTimeout races an invocation against the given ceiling. On expiry it
// kills the in-flight process and returns a failure result describing the
// timeout. A non-positive timeout runs without a ceiling. The timer is
// stopped as soon as the real result lands.
func RunWithTimeout(ctx context.Context, r Runner, prompt string, opts Options, sink Sink, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		return r.Run(ctx, prompt, opts, sink)
	}

	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := r.Run(ctx, prompt, opts, sink)
		done <- outcome{res, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.res, o.err
	case <-timer.C:
		r.Kill()
		// Wait for Run to unwind so the runner's active slot is released
		// before the caller starts the next iteration.
		o := <-done
		return Result{
			Output:   o.res.Output,
			Stderr:   o.res.Stderr,
			Failed:   true,
			ErrorMsg: fmt.Sprintf("invocation timed out after %s", timeout),
			Duration: time.Since(start),
		}, nil
	}
}

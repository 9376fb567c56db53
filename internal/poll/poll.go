// Package poll implements a bounded, cancellable fixed-interval wait.
//
// Both the catalog query executor and the service lifecycle controller block
// on remote state machines ("submit, poll until a target status, proceed").
// This package is that loop, written once: the probe runs immediately, then
// once per interval, until it reports done, the budget is exhausted, or the
// context is cancelled.
package poll

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that a wait exhausted its budget before the probed
// state became terminal.
type TimeoutError struct {
	// What names the awaited condition, e.g. "query execution q-123".
	What string
	// After is the configured budget that elapsed.
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out waiting for %s after %s", e.What, e.After)
}

// Options controls one wait.
type Options struct {
	// Interval between probes. Required, must be > 0.
	Interval time.Duration

	// MaxWait bounds the total wait. If <= 0 the wait is unbounded and ends
	// only via probe completion, probe error, or context cancellation.
	MaxWait time.Duration

	// What names the awaited condition for the TimeoutError message.
	What string

	// OnTick, when non-nil, runs after every probe that reported not-done.
	// Callers use it for poll-tick logging and metrics.
	OnTick func()
}

// Probe checks the remote state once. done=true ends the wait successfully;
// a non-nil error ends it immediately.
type Probe func(ctx context.Context) (done bool, err error)

// Until runs probe on the configured cadence until it reports done.
//
// The first probe runs before any sleep, so an already-terminal state never
// costs an interval. Errors returned: the probe's error verbatim, a
// *TimeoutError when MaxWait elapses, or ctx.Err() on cancellation.
func Until(ctx context.Context, opts Options, probe Probe) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("poll: interval must be positive, got %s", opts.Interval)
	}

	var deadline <-chan time.Time
	if opts.MaxWait > 0 {
		t := time.NewTimer(opts.MaxWait)
		defer t.Stop()
		deadline = t.C
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		done, err := probe(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if opts.OnTick != nil {
			opts.OnTick()
		}

		select {
		case <-ticker.C:
		case <-deadline:
			return &TimeoutError{What: opts.What, After: opts.MaxWait}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

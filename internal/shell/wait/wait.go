// Package wait polls a remote resource until it reaches a target status.
package wait

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/artpar/agentkit/internal/core/progress"
	"github.com/artpar/agentkit/internal/shell/reporter"
)

var (
	// ErrTimeout means the timeout elapsed before a terminal status.
	ErrTimeout = errors.New("timed out waiting for status")
	// ErrFailed means the resource reached a failure status.
	ErrFailed = errors.New("resource reached a failure status")
)

// Fetch returns the current status of the resource being waited on.
type Fetch func(ctx context.Context) (string, error)

// Options configures a wait.
type Options struct {
	// Description is shown on the progress task, followed by the status.
	Description string

	// Targets are the statuses that end the wait successfully.
	Targets []string

	// Failures are the statuses that end the wait with ErrFailed.
	// Default: ["Error"].
	Failures []string

	// Interval is the time between polls.
	// Default: 3 seconds.
	Interval time.Duration

	// Timeout bounds the whole wait. Zero waits until ctx is done.
	Timeout time.Duration

	// Total is the progress value shown on success.
	// Default: 100.
	Total float64

	// Expected is the duration after which about 63% of Total is shown.
	// Default: a third of Timeout, or one minute.
	Expected time.Duration

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if len(o.Failures) == 0 {
		o.Failures = []string{"Error"}
	}
	if o.Interval <= 0 {
		o.Interval = 3 * time.Second
	}
	if o.Total <= 0 {
		o.Total = 100
	}
	if o.Expected <= 0 {
		o.Expected = o.Timeout / 3
		if o.Expected <= 0 {
			o.Expected = time.Minute
		}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// ForStatus polls fetch every Interval until the status is one of Targets
// (returns the status and nil), one of Failures (returns the status and an
// error matching ErrFailed) or the timeout elapses (ErrTimeout). Fetch
// errors end the wait immediately.
//
// Progress follows progress.Curve and reaches Total only together with the
// success description. The description changes on every status change.
func ForStatus(ctx context.Context, fetch Fetch, opts Options, rep reporter.Reporter) (string, error) {
	opts.applyDefaults()
	rep = reporter.OrSilent(rep)

	task := rep.Task(opts.Description, opts.Total)
	defer task.Close()

	curve := progress.NewCurve(opts.Expected, opts.Total)
	start := time.Now()
	var deadline time.Time
	parent := ctx
	if opts.Timeout > 0 {
		deadline = start.Add(opts.Timeout)
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline)
		defer cancel()
	}
	timedOut := func(status string) error {
		return fmt.Errorf("%w after %s (last status %s)", ErrTimeout, opts.Timeout, status)
	}

	last := ""
	for {
		status, err := fetch(ctx)
		if err != nil {
			if !deadline.IsZero() && errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil {
				return last, timedOut(last)
			}
			return last, fmt.Errorf("fetch status: %w", err)
		}

		desc := ""
		if status != last {
			opts.Logger.Debug("status changed", "from", last, "to", status)
			desc = describe(opts.Description, status)
			last = status
		}

		switch {
		case slices.Contains(opts.Targets, status):
			task.Update(describe(opts.Description, status), opts.Total)
			return status, nil
		case slices.Contains(opts.Failures, status):
			task.Update(desc, curve.At(time.Since(start)))
			return status, fmt.Errorf("%w: %s", ErrFailed, status)
		}

		task.Update(desc, curve.At(time.Since(start)))

		sleep := opts.Interval
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return status, timedOut(status)
			}
			sleep = min(sleep, remaining)
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			if parent.Err() == nil {
				return status, timedOut(status)
			}
			return status, parent.Err()
		case <-timer.C:
		}
	}
}

func describe(prefix, status string) string {
	if prefix == "" {
		return status
	}
	return prefix + ": " + status
}

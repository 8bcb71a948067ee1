package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work submitted to Dispatch. It must capture its own
// error into the returned result rather than letting it propagate, so one
// failing task never aborts its siblings (spec §4.5, §9's "exceptions as
// control flow" note).
type Task[R any] func(ctx context.Context) R

// Dispatch submits all tasks to a worker pool sized to concurrency and
// collects their results. Ordering of completion is not preserved, but the
// position of each result in the returned slice matches the position of its
// task in tasks (spec §4.5 — "ordering of completion is not preserved").
// The pool is torn down on return.
func Dispatch[R any](ctx context.Context, tasks []Task[R], concurrency int) []R {
	results := make([]R, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	if concurrency < 1 {
		concurrency = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			results[i] = task(gctx)
			return nil
		})
	}

	// Tasks capture their own errors into R; Wait only ever returns nil here
	// because no Task returns a Go error to the group itself.
	_ = g.Wait()

	return results
}

package util

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Parallel calls fn for every input with at most workerLimit calls in
// flight. The first failure cancels the context seen by the other calls,
// stops scheduling and is returned. Inputs not yet scheduled when parent is
// cancelled are skipped and parent's error is returned.
func Parallel[T any](parent context.Context, inputs []T, workerLimit int, fn func(context.Context, T) error) error {
	if len(inputs) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(parent)
	g.SetLimit(max(1, workerLimit))
	for _, item := range inputs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error { return fn(ctx, item) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return parent.Err()
}

package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEachOrdered runs fn for every index on at most limit goroutines and
// returns the results by index, so output order matches input order.
func forEachOrdered[T any](ctx context.Context, n, limit int, fn func(ctx context.Context, i int) T) ([]T, error) {
	out := make([]T, n)
	if limit <= 0 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = fn(gctx, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

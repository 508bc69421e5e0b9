package apy

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// fanOut runs fn for every key with at most limit calls in flight and
// returns the results in key order. limit <= 1 runs sequentially. The first
// error cancels the remaining work and no partial result is returned.
func fanOut[T any](ctx context.Context, keys []string, limit int, fn func(ctx context.Context, key string) ([]T, error)) ([][]T, error) {
	results := make([][]T, len(keys))
	if limit <= 1 {
		for i, key := range keys {
			rows, err := fn(ctx, key)
			if err != nil {
				return nil, err
			}
			results[i] = rows
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			rows, err := fn(gctx, key)
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

package httpclient

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Gather runs calls concurrently, at most limit at a time (no limit when
// limit <= 0), and returns their results in call order. The first error
// cancels the context passed to the remaining calls.
func Gather[T any](ctx context.Context, limit int, calls ...func(ctx context.Context) (T, error)) ([]T, error) {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	out := make([]T, len(calls))
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			v, err := call(gctx)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

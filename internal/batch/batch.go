// Package batch runs work in fixed-size, sequential chunks whose items run
// concurrently.
package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Run splits items into chunks of limit and processes each chunk
// concurrently. A chunk starts only after the previous one has fully
// settled. If any item of a chunk fails, the chunk still settles, onBatch is
// skipped and Run returns the first error without starting later chunks.
// onBatch may be nil; an error from it aborts the same way. A limit below 1
// is treated as 1. process receives the item's index within its chunk.
// Results of completed chunks are returned in input order.
func Run[T, R any](
	ctx context.Context,
	items []T,
	limit int,
	process func(ctx context.Context, item T, index int) (R, error),
	onBatch func(ctx context.Context, results []R) error,
) ([]R, error) {
	if limit < 1 {
		limit = 1
	}

	results := make([]R, 0, len(items))
	for start := 0; start < len(items); start += limit {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := min(start+limit, len(items))
		chunk := make([]R, end-start)

		// No derived context: siblings of a failed item run to completion.
		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				r, err := process(ctx, items[i], i-start)
				if err != nil {
					return fmt.Errorf("batch %d-%d item %d: %w", start, end-1, i-start, err)
				}
				chunk[i-start] = r
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return results, err
		}

		if onBatch != nil {
			if err := onBatch(ctx, chunk); err != nil {
				return results, fmt.Errorf("batch %d-%d: %w", start, end-1, err)
			}
		}
		results = append(results, chunk...)
	}
	return results, nil
}

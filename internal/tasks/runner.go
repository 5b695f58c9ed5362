package tasks

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Result holds the settled outcome of one task, keyed by its index in the
// input order. Completion order across tasks is unspecified.
type Result[T any] struct {
	Value T
	Err   error
}

// BatchError aggregates individual task failures. It is returned only after
// every task has settled, so callers can persist the successes first.
type BatchError struct {
	FailedIndexes []int
	Errs          []error
}

func (e *BatchError) Error() string {
	parts := make([]string, 0, len(e.Errs))
	for i, idx := range e.FailedIndexes {
		parts = append(parts, fmt.Sprintf("task %d: %v", idx, e.Errs[i]))
	}
	return fmt.Sprintf("%d of batch failed: %s", len(e.FailedIndexes), strings.Join(parts, "; "))
}

// Run executes n independent tasks with at most limit in flight. As each task
// completes the next queued one starts immediately. Run never fails fast: it
// returns only after all tasks have settled, with per-task results and, when
// at least one task failed, a *BatchError naming the failed indexes. Successful
// results are always populated alongside the aggregate error so completed work
// is never discarded.
func Run[T any](ctx context.Context, limit int, n int, fn func(ctx context.Context, index int) (T, error)) ([]Result[T], error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]Result[T], n)
	if n == 0 {
		return results, nil
	}

	// Plain WithContext would cancel the group on first error; each closure
	// returns nil so every task runs to settlement regardless of siblings.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			v, err := fn(gctx, i)
			results[i] = Result[T]{Value: v, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchError{}
	for i := range results {
		if results[i].Err != nil {
			batch.FailedIndexes = append(batch.FailedIndexes, i)
			batch.Errs = append(batch.Errs, results[i].Err)
		}
	}
	if len(batch.FailedIndexes) == 0 {
		return results, nil
	}
	sort.Ints(batch.FailedIndexes)
	return results, batch
}

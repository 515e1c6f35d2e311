package cmd

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// batchResult contains the results of a bulk operation
type batchResult struct {
	Requested int
	Succeeded []string
	Failed    []batchError
}

// batchError contains information about a failed item
type batchError struct {
	Item string
	Err  error
}

// Error implements the error interface
func (e batchError) Error() string {
	return fmt.Sprintf("%s: %v", e.Item, e.Err)
}

// runBatch applies fn to every item with at most concurrency calls in
// flight. A failing item never stops the others.
func runBatch(ctx context.Context, concurrency int, items []string, fn func(ctx context.Context, item string) error) batchResult {
	result := batchResult{Requested: len(items)}
	if len(items) == 0 {
		return result
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	var mu sync.Mutex
	for _, item := range items {
		g.Go(func() error {
			err := fn(ctx, item)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, batchError{Item: item, Err: err})
			} else {
				result.Succeeded = append(result.Succeeded, item)
			}
			return nil
		})
	}
	_ = g.Wait()

	// keep input order regardless of completion order
	order := make(map[string]int, len(items))
	for i, item := range items {
		order[item] = i
	}
	slices.SortFunc(result.Succeeded, func(a, b string) int { return order[a] - order[b] })
	slices.SortFunc(result.Failed, func(a, b batchError) int { return order[a.Item] - order[b.Item] })

	return result
}

func bulkConcurrency() int {
	if cfg == nil {
		return 1
	}
	return cfg.Bulk.Concurrency
}

// applyBatch runs fn over items, logs the outcome and returns an error if
// any item failed. In dry-run mode nothing is called.
func applyBatch(ctx context.Context, verb string, items []string, fn func(ctx context.Context, item string) error) (batchResult, error) {
	if isDryRun() {
		logger.Info().Msgf("DRY RUN MODE - would %s %d item(s)", verb, len(items))
		return batchResult{Requested: len(items), Succeeded: items}, nil
	}

	result := runBatch(ctx, bulkConcurrency(), items, fn)

	logger.Info().
		Int("succeeded", len(result.Succeeded)).
		Int("failed", len(result.Failed)).
		Msgf("Bulk %s complete", verb)

	// Log individual failures
	for _, failure := range result.Failed {
		logger.Error().
			Err(failure.Err).
			Str("item", failure.Item).
			Msgf("Failed to %s", verb)
	}

	if len(result.Failed) > 0 {
		return result, fmt.Errorf("failed to %s %d of %d item(s)", verb, len(result.Failed), result.Requested)
	}
	return result, nil
}

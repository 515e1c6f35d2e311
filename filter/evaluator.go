package filter

import (
	"context"
	"runtime"
	"slices"
	"sync"
)

// EvaluatorOption configures an evaluator
type EvaluatorOption func(*ConcurrentEvaluator)

// WithWorkers sets the number of worker goroutines. Values below 1 keep
// the default of one worker per CPU.
func WithWorkers(workers int) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		if workers > 0 {
			e.workerCount = workers
		}
	}
}

// WithBatchSize sets the chunk size below which evaluation stays sequential
func WithBatchSize(size int) EvaluatorOption {
	return func(e *ConcurrentEvaluator) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// ConcurrentEvaluator evaluates filters over large record sets with a
// worker pool. Results always keep input order.
type ConcurrentEvaluator struct {
	workerCount int
	batchSize   int
	pool        WorkerPool
}

// NewConcurrentEvaluator creates a new concurrent evaluator
func NewConcurrentEvaluator(opts ...EvaluatorOption) *ConcurrentEvaluator {
	e := &ConcurrentEvaluator{
		workerCount: runtime.GOMAXPROCS(0),
		batchSize:   100,
	}

	for _, opt := range opts {
		opt(e)
	}
	e.workerCount = max(e.workerCount, 1)
	e.pool = NewWorkerPool(e.workerCount)

	return e
}

// Evaluate returns the indices of the subjects that match, ascending
func (e *ConcurrentEvaluator) Evaluate(ctx context.Context, filter CompiledFilter, subjects []Subject) ([]int, error) {
	if len(subjects) == 0 {
		return []int{}, nil
	}

	if len(subjects) < e.batchSize {
		return evaluateRange(filter, subjects, 0), nil
	}

	return e.evaluateConcurrent(ctx, filter, subjects)
}

// EvaluateBatch evaluates several named filters over the same subjects
func (e *ConcurrentEvaluator) EvaluateBatch(ctx context.Context, filters map[string]CompiledFilter, subjects []Subject) (map[string][]int, error) {
	results := make(map[string][]int, len(filters))
	if len(filters) == 0 || len(subjects) == 0 {
		return results, nil
	}

	for name, filter := range filters {
		matches, err := e.Evaluate(ctx, filter, subjects)
		if err != nil {
			return nil, err
		}
		results[name] = matches
	}

	return results, nil
}

func evaluateRange(filter CompiledFilter, subjects []Subject, offset int) []int {
	matches := make([]int, 0, len(subjects)/4)
	for i, subject := range subjects {
		if filter.Evaluate(subject) {
			matches = append(matches, offset+i)
		}
	}
	return matches
}

func (e *ConcurrentEvaluator) evaluateConcurrent(ctx context.Context, filter CompiledFilter, subjects []Subject) ([]int, error) {
	chunkSize := max(len(subjects)/e.workerCount, e.batchSize)
	chunks := (len(subjects) + chunkSize - 1) / chunkSize
	results := make([][]int, chunks)

	var wg sync.WaitGroup
	for chunk := range chunks {
		start := chunk * chunkSize
		end := min(start+chunkSize, len(subjects))

		wg.Add(1)
		err := e.pool.Submit(ctx, func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			results[chunk] = evaluateRange(filter, subjects[start:end], start)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, err
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return slices.Concat(results...), nil
}

// Stop gracefully stops the evaluator's worker pool
func (e *ConcurrentEvaluator) Stop(ctx context.Context) error {
	return e.pool.Stop(ctx)
}

// Select returns the items that match filter, in input order.
func Select[T Subject](ctx context.Context, e *ConcurrentEvaluator, filter CompiledFilter, items []T) ([]T, error) {
	subjects := make([]Subject, len(items))
	for i, item := range items {
		subjects[i] = item
	}

	indices, err := e.Evaluate(ctx, filter, subjects)
	if err != nil {
		return nil, err
	}

	selected := make([]T, 0, len(indices))
	for _, i := range indices {
		selected = append(selected, items[i])
	}
	return selected, nil
}

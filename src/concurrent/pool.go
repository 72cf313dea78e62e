package concurrent

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
)

const defaultConcurrency = 10

// WorkerPool bounds how many calls run at once.
type WorkerPool struct {
	sem      chan struct{}
	inFlight atomic.Int64
}

// NewWorkerPool creates a pool admitting at most maxWorkers concurrent calls.
func NewWorkerPool(maxWorkers int) *WorkerPool {
	if maxWorkers <= 0 {
		maxWorkers = defaultConcurrency
	}
	return &WorkerPool{sem: make(chan struct{}, maxWorkers)}
}

// Do runs fn once a slot is free, or returns ctx.Err() if ctx ends first.
func (wp *WorkerPool) Do(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case wp.sem <- struct{}{}:
	}
	wp.inFlight.Add(1)
	defer func() {
		wp.inFlight.Add(-1)
		<-wp.sem
	}()
	return fn()
}

// Capacity is the maximum number of concurrent calls.
func (wp *WorkerPool) Capacity() int { return cap(wp.sem) }

// InFlight is the number of calls currently running.
func (wp *WorkerPool) InFlight() int { return int(wp.inFlight.Load()) }

// ParallelMap applies fn to every item with at most limit goroutines running.
// Results keep input order. The returned error is the first failure by index.
func ParallelMap[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) ([]R, error) {
	if len(items) == 0 {
		return nil, nil
	}
	pool := NewWorkerPool(limit)
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(idx int, val T) {
			defer wg.Done()
			errs[idx] = pool.Do(ctx, func() error {
				var err error
				results[idx], err = fn(ctx, val)
				return err
			})
		}(i, item)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// ParallelForEach runs fn for every item and combines all failures.
func ParallelForEach[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return nil
	}
	pool := NewWorkerPool(limit)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		err error
	)
	for _, item := range items {
		wg.Add(1)
		go func(val T) {
			defer wg.Done()
			if e := pool.Do(ctx, func() error { return fn(ctx, val) }); e != nil {
				mu.Lock()
				err = multierr.Append(err, e)
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()
	return err
}

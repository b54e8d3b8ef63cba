// Package pool runs a function over a slice with a fixed number of goroutines.
package pool

import (
	"context"
	"sync"
)

// WorkerFunc processes one item.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// MapFunc processes one item and produces a result.
type MapFunc[T, R any] func(ctx context.Context, item T) (R, error)

// Run processes items with numWorkers goroutines and returns the errors the
// workers reported, in no particular order. Items not yet handed to a worker when
// ctx is cancelled are skipped.
func Run[T any](ctx context.Context, items []T, numWorkers int, fn WorkerFunc[T]) []error {
	_, errs := Map(ctx, items, numWorkers, func(ctx context.Context, item T) (struct{}, error) {
		return struct{}{}, fn(ctx, item)
	})
	return errs
}

// Map is Run with results. results[i] belongs to items[i] and holds the zero value
// for items that failed or were skipped. numWorkers below one means one worker.
func Map[T, R any](ctx context.Context, items []T, numWorkers int, fn MapFunc[T, R]) ([]R, []error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(items) {
		numWorkers = len(items)
	}

	results := make([]R, len(items))
	tasks := make(chan int, numWorkers)
	errCh := make(chan error, len(items))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				if ctx.Err() != nil {
					continue
				}
				r, err := fn(ctx, items[idx])
				if err != nil {
					errCh <- err
					continue
				}
				results[idx] = r
			}
		}()
	}

feed:
	for i := range items {
		select {
		case tasks <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	return results, errs
}

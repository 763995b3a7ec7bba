// Package bulk runs a function over a list of items, sequentially or with a
// bounded worker pool. Items sharing a key never run concurrently.
package bulk

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Operation represents a bulk operation configuration
type Operation struct {
	Jobs            int
	ContinueOnError bool
	Logger          *zap.Logger
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Skipped    int
	Errors     []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Item  string
	Error error
}

// ItemFunc is the function to execute for each item
type ItemFunc[T any] func(ctx context.Context, item T) error

// KeyFunc names an item for locking and error reporting
type KeyFunc[T any] func(item T) string

// Execute runs fn over items. Cancelling ctx stops new items from starting;
// items not started are counted as Skipped.
func Execute[T any](ctx context.Context, op *Operation, items []T, key KeyFunc[T], fn ItemFunc[T]) *Result {
	if len(items) == 0 {
		return &Result{}
	}

	jobs := op.Jobs
	if jobs == 0 {
		jobs = runtime.NumCPU()
	}
	if jobs > len(items) {
		jobs = len(items)
	}

	if jobs <= 1 {
		return executeSequential(ctx, op, items, key, fn)
	}
	return executeParallel(ctx, op, items, key, fn, jobs)
}

func (op *Operation) logger() *zap.Logger {
	if op.Logger == nil {
		return zap.NewNop()
	}
	return op.Logger
}

// executeSequential processes items one by one
func executeSequential[T any](ctx context.Context, op *Operation, items []T, key KeyFunc[T], fn ItemFunc[T]) *Result {
	result := &Result{
		TotalItems: len(items),
	}
	log := op.logger()

	for i, item := range items {
		if ctx.Err() != nil {
			result.Skipped = len(items) - i
			log.Warn("bulk operation cancelled", zap.Int("remaining", result.Skipped))
			return result
		}

		if err := fn(ctx, item); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{Item: key(item), Error: err})
			log.Debug("item failed", zap.String("item", key(item)), zap.Error(err))

			if !op.ContinueOnError {
				result.Skipped = len(items) - i - 1
				return result
			}
			continue
		}
		result.Succeeded++
	}

	return result
}

// executeParallel processes items in parallel using a worker pool
func executeParallel[T any](ctx context.Context, op *Operation, items []T, key KeyFunc[T], fn ItemFunc[T], workers int) *Result {
	result := &Result{
		TotalItems: len(items),
	}
	log := op.logger()

	workQueue := make(chan T, len(items))
	for _, item := range items {
		workQueue <- item
	}
	close(workQueue)

	var (
		succeeded  atomic.Int32
		failed     atomic.Int32
		skipped    atomic.Int32
		stopSignal atomic.Bool
		errorsMux  sync.Mutex
	)
	locks := newKeyLocks()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for item := range workQueue {
				if ctx.Err() != nil || (!op.ContinueOnError && stopSignal.Load()) {
					skipped.Add(1)
					continue
				}

				k := key(item)
				unlock := locks.lock(k)
				err := fn(ctx, item)
				unlock()

				if err != nil {
					failed.Add(1)
					errorsMux.Lock()
					result.Errors = append(result.Errors, ItemError{Item: k, Error: err})
					errorsMux.Unlock()
					log.Debug("item failed", zap.String("item", k), zap.Error(err))

					if !op.ContinueOnError {
						stopSignal.Store(true)
					}
					continue
				}
				succeeded.Add(1)
			}
		}()
	}

	wg.Wait()

	result.Succeeded = int(succeeded.Load())
	result.Failed = int(failed.Load())
	result.Skipped = int(skipped.Load())
	if result.Skipped > 0 && ctx.Err() != nil {
		log.Warn("bulk operation cancelled", zap.Int("remaining", result.Skipped))
	}

	return result
}

// ExitCode returns the appropriate exit code for the result
func (r *Result) ExitCode() int {
	if r.Failed == 0 && r.Skipped == 0 {
		return 0 // All succeeded
	}
	if r.Succeeded > 0 {
		return 5 // Partial success
	}
	return 1 // All failed
}

// PrintSummary prints the item errors, at most ten of them
func (r *Result) PrintSummary(w io.Writer) {
	if len(r.Errors) == 0 {
		return
	}

	errs := r.Errors
	if len(errs) > 10 {
		fmt.Fprintf(w, "Showing first 10 errors (of %d):\n", len(errs))
		errs = errs[:10]
	} else {
		fmt.Fprintf(w, "Errors:\n")
	}
	for _, e := range errs {
		fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
	}
}

// keyLocks hands out one mutex per key
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *keyLocks) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}

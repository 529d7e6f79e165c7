// Package worker provides a bounded goroutine pool.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
)

// ErrStopped is returned when submitting to a pool that has been stopped.
var ErrStopped = errors.New("worker pool stopped")

// ProcessFunc handles one job.
type ProcessFunc[T any] func(ctx context.Context, job T) error

// Pool runs jobs of type T on a fixed number of goroutines fed by a buffered queue.
type Pool[T any] struct {
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	logger     *slog.Logger
	wg         sync.WaitGroup

	mu       sync.RWMutex
	stopped  bool
	quit     chan struct{}
	stopOnce sync.Once
}

// NewPool creates a pool. numWorkers <= 0 uses one worker per CPU. Processor
// errors are logged at warn level when logger is non-nil.
func NewPool[T any](numWorkers, bufferSize int, processor ProcessFunc[T], logger *slog.Logger) *Pool[T] {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &Pool[T]{
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
		logger:     logger,
		quit:       make(chan struct{}),
	}
}

// Workers returns the number of goroutines the pool runs.
func (p *Pool[T]) Workers() int { return p.numWorkers }

// Start launches the workers. Workers exit when ctx is cancelled or the pool is stopped.
func (p *Pool[T]) Start(ctx context.Context) {
	for i := 1; i <= p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool[T]) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if err := p.processor(ctx, job); err != nil && p.logger != nil {
				p.logger.Warn("worker job failed", "worker", id, "error", err)
			}
		}
	}
}

// Submit queues a job, blocking until there is room, ctx is done, or the pool stops.
func (p *Pool[T]) Submit(ctx context.Context, job T) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}

	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.quit:
		return ErrStopped
	}
}

// TrySubmit queues a job without blocking. It reports false when the queue is
// full or the pool is stopped.
func (p *Pool[T]) TrySubmit(job T) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return false
	}

	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// Stop rejects new jobs, lets workers finish the queued ones, and waits for them.
// It is safe to call more than once.
func (p *Pool[T]) Stop() {
	p.stopOnce.Do(func() {
		close(p.quit)

		p.mu.Lock()
		p.stopped = true
		p.mu.Unlock()

		close(p.jobs)
	})
	p.wg.Wait()
}

// Each runs fn for every index in [0, n) on up to numWorkers goroutines and
// returns the first error. Remaining jobs are skipped once a job fails or ctx
// is cancelled.
func Each(ctx context.Context, numWorkers, n int, fn func(ctx context.Context, i int) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		once     sync.Once
		firstErr error
	)
	workers := numWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	pool := NewPool[int](min(workers, max(n, 1)), n, func(ctx context.Context, i int) error {
		if ctx.Err() != nil {
			return nil
		}
		if err := fn(ctx, i); err != nil {
			once.Do(func() {
				firstErr = err
				cancel()
			})
		}
		return nil
	}, nil)
	pool.Start(ctx)

	for i := range n {
		if err := pool.Submit(ctx, i); err != nil {
			break
		}
	}
	pool.Stop()

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

// Package worker runs CPU-bound jobs on a bounded set of goroutines.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrClosed is returned by Run after Close.
	ErrClosed = errors.New("worker pool closed")

	// ErrPanic wraps a value recovered from a panicking job.
	ErrPanic = errors.New("job panicked")
)

// Pool bounds how many jobs execute at once.
type Pool struct {
	sem    *semaphore.Weighted
	size   int
	wg     sync.WaitGroup
	closed atomic.Bool
}

// New returns a pool running at most size jobs concurrently. A non-positive
// size uses runtime.NumCPU().
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the concurrency limit.
func (p *Pool) Size() int { return p.size }

// Run waits for a free slot and executes fn on its own goroutine. If ctx is
// done first, Run returns ctx.Err() immediately; a job already started keeps
// its slot until it returns and its result is discarded.
func (p *Pool) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// Do is Run for jobs that produce a value.
func Do[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if p.closed.Load() {
		return zero, ErrClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	type result struct {
		val T
		err error
	}
	done := make(chan result, 1)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}
		}()

		v, err := fn(ctx)
		done <- result{val: v, err: err}
	}()

	select {
	case r := <-done:
		return r.val, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Close rejects new jobs and waits for running ones to finish.
func (p *Pool) Close() {
	p.closed.Store(true)
	p.wg.Wait()
}

// Closed reports whether Close has been called.
func (p *Pool) Closed() bool { return p.closed.Load() }

// Package workpool runs CPU-bound work (text segmentation, image signatures)
// off the caller's goroutine with a bounded number of concurrent workers.
package workpool

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool bounds concurrent CPU-bound jobs.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// New creates a pool with the given number of workers.
// A size <= 0 uses GOMAXPROCS.
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Do runs fn on a worker goroutine and waits for it to finish.
// If ctx is cancelled before a worker is free, fn never runs. If ctx is
// cancelled while fn runs, Do returns ctx.Err() and fn's result is discarded.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if p == nil {
		return runSafely(fn)
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		defer p.sem.Release(1)
		done <- runSafely(fn)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is a typed helper around Pool.Do.
func Run[T any](ctx context.Context, p *Pool, fn func() (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func runSafely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panic: %v", r)
		}
	}()
	return fn()
}

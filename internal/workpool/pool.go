// Package workpool bounds CPU-bound work such as tokenization to a fixed
// number of concurrent goroutines.
package workpool

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Pool runs at most Size functions at once.
type Pool struct {
	name   string
	size   int
	sem    *semaphore.Weighted
	active atomic.Int64
}

// New returns a pool of size workers; size below 1 is treated as 1.
func New(name string, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{name: name, size: size, sem: semaphore.NewWeighted(int64(size))}
}

func (p *Pool) Name() string { return p.name }
func (p *Pool) Size() int    { return p.size }

// Active reports the number of functions currently running.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Do waits for a free worker and runs fn on the calling goroutine. A panic in
// fn is returned as an error.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) (err error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	p.active.Add(1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("workpool %s: panic: %v", p.name, r)
		}
		p.active.Add(-1)
		p.sem.Release(1)
	}()
	return fn(ctx)
}

// Submit runs fn on p and returns its result.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

// Future is the pending result of Go.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go starts fn on p in the background.
func Go[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = Submit(ctx, p, fn)
	}()
	return f
}

// Wait blocks until the result is ready or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed when the result is ready.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Package workerpool runs blocking calls on a bounded number of goroutines
// and hands the caller a future to wait on.
package workerpool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Submit queues fn. fn receives the submitter's context; if that context is
// cancelled before a slot frees up, fn never runs and the future reports the
// context error.
func Submit[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			f.err = err
			return
		}
		defer p.sem.Release(1)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Await blocks until the task finishes or ctx is done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Do submits fn and waits for it.
func Do[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	return Submit(ctx, p, fn).Await(ctx)
}

// Drain waits for running tasks to finish and blocks new ones from starting.
func (p *Pool) Drain(ctx context.Context) error {
	return p.sem.Acquire(ctx, p.size)
}

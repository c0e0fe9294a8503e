package async

import (
	"context"
	"sync"
)

// Future holds the outcome of an operation completed by code other than the
// goroutine that created it. It resolves exactly once; every waiter observes
// the same outcome.
type Future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

// NewFuture creates an unresolved future.
func NewFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

// Resolve completes the future with a value. It returns false if the future
// was already completed, in which case the call has no effect.
func (f *Future[T]) Resolve(value T) bool {
	return f.complete(value, nil)
}

// Reject completes the future with an error. It returns false if the future
// was already completed.
func (f *Future[T]) Reject(err error) bool {
	var zero T
	return f.complete(zero, err)
}

func (f *Future[T]) complete(value T, err error) bool {
	completed := false
	f.once.Do(func() {
		f.value = value
		f.err = err
		close(f.done)
		completed = true
	})
	return completed
}

// Done returns a channel closed once the future is completed.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsCompleted reports whether the future has been resolved or rejected.
func (f *Future[T]) IsCompleted() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future completes or ctx is done.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

package async

import (
	"context"
	"sync"
)

// Channel is a FIFO queue connecting producers and consumers across
// goroutines. A bounded channel blocks writers while it is full; an unbounded
// channel never blocks writers.
//
// Unlike a Go channel, completing a Channel while writers are blocked is not a
// panic: blocked and future writers fail with ErrChannelCompleted, and buffered
// items remain readable until drained.
//
// It is safe for concurrent use by multiple readers and writers.
type Channel[T any] struct {
	mu        sync.Mutex
	items     []T
	capacity  int // 0 means unbounded
	completed bool

	// changed is closed and replaced whenever the channel state changes,
	// waking every goroutine parked in a wait.
	changed chan struct{}
}

// NewBoundedChannel creates a channel that holds at most capacity items.
func NewBoundedChannel[T any](capacity int) *Channel[T] {
	if capacity < 1 {
		panic("async: bounded channel capacity must be at least 1")
	}
	return &Channel[T]{
		capacity: capacity,
		changed:  make(chan struct{}),
	}
}

// NewUnboundedChannel creates a channel without a capacity limit.
func NewUnboundedChannel[T any]() *Channel[T] {
	return &Channel[T]{
		changed: make(chan struct{}),
	}
}

// broadcast wakes all waiters. Must be called with mu held.
func (c *Channel[T]) broadcast() {
	close(c.changed)
	c.changed = make(chan struct{})
}

func (c *Channel[T]) full() bool {
	return c.capacity > 0 && len(c.items) >= c.capacity
}

// WaitToWrite blocks until a write would not block. It returns false when the
// channel has been completed and no further writes are accepted.
func (c *Channel[T]) WaitToWrite(ctx context.Context) (bool, error) {
	for {
		c.mu.Lock()
		if c.completed {
			c.mu.Unlock()
			return false, nil
		}
		if !c.full() {
			c.mu.Unlock()
			return true, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Write appends item to the channel, blocking while a bounded channel is full.
// It fails with ErrChannelCompleted if the channel is or becomes completed.
func (c *Channel[T]) Write(ctx context.Context, item T) error {
	for {
		c.mu.Lock()
		if c.completed {
			c.mu.Unlock()
			return ErrChannelCompleted
		}
		if !c.full() {
			c.items = append(c.items, item)
			c.broadcast()
			c.mu.Unlock()
			return nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// WaitToRead blocks until an item is available. It returns false once the
// channel is completed and every buffered item has been read.
func (c *Channel[T]) WaitToRead(ctx context.Context) (bool, error) {
	for {
		c.mu.Lock()
		if len(c.items) > 0 {
			c.mu.Unlock()
			return true, nil
		}
		if c.completed {
			c.mu.Unlock()
			return false, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
}

// Read removes and returns the oldest item, blocking while the channel is
// empty. It fails with ErrChannelCompleted once the channel is completed and
// drained.
func (c *Channel[T]) Read(ctx context.Context) (T, error) {
	for {
		c.mu.Lock()
		if item, ok := c.dequeue(); ok {
			c.mu.Unlock()
			return item, nil
		}
		if c.completed {
			c.mu.Unlock()
			var zero T
			return zero, ErrChannelCompleted
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-changed:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryRead returns the oldest item without blocking.
func (c *Channel[T]) TryRead() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dequeue()
}

// dequeue pops the head item. Must be called with mu held.
func (c *Channel[T]) dequeue() (T, bool) {
	var zero T
	if len(c.items) == 0 {
		return zero, false
	}
	item := c.items[0]
	c.items[0] = zero
	c.items = c.items[1:]
	if len(c.items) == 0 {
		c.items = nil
	}
	c.broadcast()
	return item, true
}

// Len returns the number of buffered items.
func (c *Channel[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Complete marks the channel as accepting no further writes. Buffered items
// remain readable. Calling Complete more than once has no effect.
func (c *Channel[T]) Complete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.completed {
		return
	}
	c.completed = true
	c.broadcast()
}

// IsCompleted reports whether Complete has been called.
func (c *Channel[T]) IsCompleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

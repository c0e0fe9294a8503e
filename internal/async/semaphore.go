package async

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Semaphore is a counting lock holding a count in [0, max]. Acquire blocks
// while the count is zero; blocked callers are woken in the order they
// started waiting.
type Semaphore struct {
	sem *semaphore.Weighted
	max int64

	mu   sync.Mutex
	held int64
}

// NewSemaphore creates a semaphore with the given initial and maximum count.
func NewSemaphore(initial, max int) *Semaphore {
	if max < 1 {
		panic("async: semaphore max must be at least 1")
	}
	if initial < 0 || initial > max {
		panic("async: semaphore initial count out of range")
	}

	s := &Semaphore{
		sem: semaphore.NewWeighted(int64(max)),
		max: int64(max),
	}
	if taken := int64(max - initial); taken > 0 {
		s.sem.TryAcquire(taken)
		s.held = taken
	}
	return s
}

// Acquire decrements the count, blocking while it is zero or ctx is done.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	s.mu.Lock()
	s.held++
	s.mu.Unlock()
	return nil
}

// TryAcquire decrements the count if it is positive, without blocking.
func (s *Semaphore) TryAcquire() bool {
	if !s.sem.TryAcquire(1) {
		return false
	}
	s.mu.Lock()
	s.held++
	s.mu.Unlock()
	return true
}

// Release increments the count and wakes the longest waiting Acquire.
// Releasing a semaphore already at its maximum count is a no-op.
func (s *Semaphore) Release() {
	s.mu.Lock()
	if s.held == 0 {
		s.mu.Unlock()
		return
	}
	s.held--
	s.mu.Unlock()
	s.sem.Release(1)
}

// Count returns the current count.
func (s *Semaphore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.max - s.held)
}

package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphore_MutualExclusion(t *testing.T) {
	sem := NewSemaphore(1, 1)
	ctx := context.Background()

	var holders, maxHolders int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			n := atomic.AddInt32(&holders, 1)
			for {
				m := atomic.LoadInt32(&maxHolders)
				if n <= m || atomic.CompareAndSwapInt32(&maxHolders, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&holders, -1)
			sem.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxHolders, "at most one goroutine may hold the lock")
	assert.Equal(t, 1, sem.Count())
}

func TestSemaphore_WakesWaitersInAcquisitionOrder(t *testing.T) {
	sem := NewSemaphore(1, 1)
	ctx := context.Background()
	require.NoError(t, sem.Acquire(ctx))

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := sem.Acquire(ctx); err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			sem.Release()
		}(i)
		// Give each goroutine time to park before starting the next.
		time.Sleep(10 * time.Millisecond)
	}

	sem.Release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestSemaphore_ReleaseNeverExceedsMax(t *testing.T) {
	sem := NewSemaphore(2, 2)
	sem.Release()
	sem.Release()
	assert.Equal(t, 2, sem.Count())

	assert.True(t, sem.TryAcquire())
	assert.True(t, sem.TryAcquire())
	assert.False(t, sem.TryAcquire())
}

func TestSemaphore_InitialCount(t *testing.T) {
	sem := NewSemaphore(0, 1)
	assert.Equal(t, 0, sem.Count())
	assert.False(t, sem.TryAcquire())

	sem.Release()
	assert.True(t, sem.TryAcquire())
}

func TestSemaphore_AcquireHonorsContext(t *testing.T) {
	sem := NewSemaphore(0, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := sem.Acquire(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, sem.Count())
}

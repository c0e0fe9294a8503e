package shutdown

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_ShutdownOnce(t *testing.T) {
	m := New()

	var callCount atomic.Int32
	m.AddCleanup(func(reason string) {
		callCount.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Shutdown("test")
		}()
	}
	wg.Wait()

	if count := callCount.Load(); count != 1 {
		t.Errorf("Cleanup called %d times, expected 1", count)
	}
}

func TestManager_CleanupOrder(t *testing.T) {
	m := New()

	var order []int
	for i := 1; i <= 3; i++ {
		m.AddCleanup(func(reason string) {
			order = append(order, i)
		})
	}

	m.Shutdown("test")

	if len(order) != 3 {
		t.Fatalf("Expected 3 cleanups, got %d", len(order))
	}
	for i, v := range order {
		if v != i+1 {
			t.Errorf("Cleanup order wrong: expected %d at position %d, got %d", i+1, i, v)
		}
	}
}

func TestManager_ContextCancelledBeforeCleanup(t *testing.T) {
	m := New()

	if err := m.Context().Err(); err != nil {
		t.Fatalf("Context cancelled before shutdown: %v", err)
	}

	var cancelledFirst atomic.Bool
	m.AddCleanup(func(reason string) {
		cancelledFirst.Store(m.Context().Err() != nil)
	})
	m.Shutdown("test")

	if !cancelledFirst.Load() {
		t.Error("Context was not cancelled before cleanup ran")
	}
}

func TestManager_Reason(t *testing.T) {
	m := New()

	if reason := m.Reason(); reason != "" {
		t.Errorf("Expected empty reason before shutdown, got %q", reason)
	}

	m.Shutdown("first")
	m.Shutdown("second")

	if reason := m.Reason(); reason != "first" {
		t.Errorf("Expected reason 'first', got %q", reason)
	}
	if m.Signaled() {
		t.Error("Signaled() = true for a manual shutdown")
	}
}

func TestManager_Signaled(t *testing.T) {
	m := New()
	m.Shutdown("signal:interrupt")
	if !m.Signaled() {
		t.Error("Signaled() = false for a signal shutdown")
	}
}

func TestManager_Done(t *testing.T) {
	m := New()

	select {
	case <-m.Done():
		t.Error("Done channel closed before shutdown")
	default:
	}

	m.Shutdown("test")

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Error("Done channel not closed after shutdown")
	}
}

func TestManager_StartThenShutdown(t *testing.T) {
	m := New()
	m.Start()
	m.Shutdown("test")

	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Error("Shutdown did not complete")
	}
}

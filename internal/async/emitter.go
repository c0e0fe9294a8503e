package async

import (
	"context"
	"sync"
)

// Listener handles one emitted event.
type Listener func(ctx context.Context, payload any) error

// ListenerID identifies a registered listener so it can be removed later.
type ListenerID uint64

type registration struct {
	id       ListenerID
	listener Listener
}

// EventEmitter maps event names to ordered listener lists.
//
// Emit calls listeners sequentially in registration order and waits for each
// one. The first listener error stops the emission and is returned to the
// caller; remaining listeners are not invoked for that emission.
type EventEmitter struct {
	mu        sync.RWMutex
	listeners map[string][]registration
	nextID    ListenerID
	disposed  bool
}

// NewEventEmitter creates an emitter with no listeners.
func NewEventEmitter() *EventEmitter {
	return &EventEmitter{
		listeners: make(map[string][]registration),
	}
}

// On registers listener for the named event.
func (e *EventEmitter) On(name string, listener Listener) (ListenerID, error) {
	if listener == nil {
		panic("async: nil listener")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return 0, ErrDisposed
	}

	e.nextID++
	id := e.nextID
	e.listeners[name] = append(e.listeners[name], registration{id: id, listener: listener})
	return id, nil
}

// Remove unregisters a listener. It reports whether the listener was found.
func (e *EventEmitter) Remove(name string, id ListenerID) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return false, ErrDisposed
	}

	regs := e.listeners[name]
	for i, reg := range regs {
		if reg.id != id {
			continue
		}
		// Copy so an in-flight Emit keeps its snapshot intact.
		next := make([]registration, 0, len(regs)-1)
		next = append(next, regs[:i]...)
		next = append(next, regs[i+1:]...)
		if len(next) == 0 {
			delete(e.listeners, name)
		} else {
			e.listeners[name] = next
		}
		return true, nil
	}
	return false, nil
}

// Emit invokes the listeners registered for name with payload.
func (e *EventEmitter) Emit(ctx context.Context, name string, payload any) error {
	e.mu.RLock()
	if e.disposed {
		e.mu.RUnlock()
		return ErrDisposed
	}
	regs := e.listeners[name]
	e.mu.RUnlock()

	for _, reg := range regs {
		if err := reg.listener(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// ListenerCount returns the number of listeners registered for name.
func (e *EventEmitter) ListenerCount(name string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[name])
}

// Dispose removes all listeners. Later calls to On, Remove and Emit return
// ErrDisposed. Dispose is idempotent.
func (e *EventEmitter) Dispose() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return
	}
	e.disposed = true
	e.listeners = nil
}

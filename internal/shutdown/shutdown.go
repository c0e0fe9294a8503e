// Package shutdown coordinates graceful termination of long running commands.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/aula-chat/aula-go/internal/logging"
)

// Func performs cleanup during shutdown. reason describes what triggered it.
type Func func(reason string)

// Manager cancels a context and runs cleanup functions exactly once, when a
// signal arrives or Shutdown is called.
//
// It is safe for concurrent use.
type Manager struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	once     sync.Once
	done     chan struct{}
	reason   string
	cleanups []Func
}

// New creates a manager. Signals are not handled until Start is called.
func New() *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Context returns a context that is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// AddCleanup registers fn. Cleanup functions run in registration order after
// the context has been cancelled.
func (m *Manager) AddCleanup(fn Func) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanups = append(m.cleanups, fn)
}

// Start listens for SIGINT and SIGTERM and shuts down when one arrives. The
// handler is removed once shutdown completes.
func (m *Manager) Start() {
	logger := logging.Shutdown()
	logger.Debug("Shutdown manager started, listening for signals")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Signal received, initiating shutdown", "signal", sig.String())
			m.Shutdown("signal:" + sig.String())
		case <-m.done:
		}
	}()
}

// Shutdown cancels the context and runs the cleanup functions. Only the first
// call has an effect; every call blocks until cleanup is complete. Cleanup
// functions must not call Shutdown.
func (m *Manager) Shutdown(reason string) {
	m.once.Do(func() {
		m.run(reason)
	})
	<-m.done
}

func (m *Manager) run(reason string) {
	logger := logging.Shutdown()
	logger.Debug("Starting shutdown sequence", "reason", reason)

	m.mu.Lock()
	m.reason = reason
	cleanups := make([]Func, len(m.cleanups))
	copy(cleanups, m.cleanups)
	m.mu.Unlock()

	m.cancel()

	for i, fn := range cleanups {
		logger.Debug("Running cleanup function", "index", i, "total", len(cleanups))
		fn(reason)
	}

	logger.Debug("Shutdown sequence complete", "reason", reason)
	close(m.done)
}

// Done returns a channel that is closed when shutdown is complete.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Reason returns the reason passed to the first Shutdown, or "" before it.
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// Signaled reports whether shutdown was triggered by a signal.
func (m *Manager) Signaled() bool {
	return strings.HasPrefix(m.Reason(), "signal:")
}

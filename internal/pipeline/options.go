package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/aula-chat/aula-go/internal/async"
)

// Clock returns the current time.
type Clock func() time.Time

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type options struct {
	now             Clock
	sleep           Sleeper
	emitter         *async.EventEmitter
	logger          *slog.Logger
	allowConcurrent bool
}

// Option configures a pipeline stage.
type Option func(*options)

// WithClock sets the time source used for rate limit windows.
func WithClock(now Clock) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithSleeper sets how stages wait for a reset instant.
func WithSleeper(sleep Sleeper) Option {
	return func(o *options) {
		o.sleep = sleep
	}
}

// WithEmitter sets the emitter that receives RequestDeferred and RateLimited
// events. A stage never disposes an emitter it was given.
func WithEmitter(e *async.EventEmitter) Option {
	return func(o *options) {
		o.emitter = e
	}
}

// WithLogger sets the stage logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// AllowConcurrentRequests lets requests to the same route overlap. When false,
// the route limiter serializes them in arrival order.
func AllowConcurrentRequests(allow bool) Option {
	return func(o *options) {
		o.allowConcurrent = allow
	}
}

func buildOptions(defaultLogger func() *slog.Logger, opts []Option) options {
	o := options{
		now:   time.Now,
		sleep: Sleep,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = defaultLogger()
	}
	return o
}

package pipeline

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aula-chat/aula-go/internal/async"
	"github.com/aula-chat/aula-go/internal/logging"
)

// RouteRateLimit is the tracked budget of one route. Values are replaced,
// never mutated. Remaining is always within [0, RequestLimit].
type RouteRateLimit struct {
	RequestLimit int
	Window       time.Duration
	Remaining    int
	ResetAt      time.Time
}

func newRouteRateLimit(limit int, window time.Duration, remaining int, resetAt time.Time) RouteRateLimit {
	if limit < 1 || window < time.Millisecond {
		panic(fmt.Sprintf("pipeline: invalid route rate limit %d/%s", limit, window))
	}
	remaining = max(0, min(remaining, limit))
	return RouteRateLimit{
		RequestLimit: limit,
		Window:       window,
		Remaining:    remaining,
		ResetAt:      resetAt,
	}
}

// RouteKey identifies the route of a request: the upper-cased method and the
// URL without query, fragment or trailing slash.
func RouteKey(method string, u *url.URL) string {
	path := strings.TrimRight(u.EscapedPath(), "/")
	return strings.ToUpper(method) + " " +
		strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path
}

// RouteRateLimiter tracks per-route budgets from the server's rate limit
// headers and holds requests back when a route is exhausted.
type RouteRateLimiter struct {
	next            Handler
	allowConcurrent bool
	now             Clock
	sleep           Sleeper
	emitter         *async.EventEmitter
	logger          *slog.Logger

	mu       sync.Mutex
	locks    map[string]*async.Semaphore
	limits   map[string]RouteRateLimit
	disposed bool
}

// NewRouteRateLimiter wraps next.
func NewRouteRateLimiter(next Handler, opts ...Option) *RouteRateLimiter {
	o := buildOptions(logging.RateLimit, opts)
	return &RouteRateLimiter{
		next:            next,
		allowConcurrent: o.allowConcurrent,
		now:             o.now,
		sleep:           o.sleep,
		emitter:         o.emitter,
		logger:          o.logger,
		locks:           make(map[string]*async.Semaphore),
		limits:          make(map[string]RouteRateLimit),
	}
}

// AllowsConcurrentRequests reports whether requests to one route may overlap.
func (l *RouteRateLimiter) AllowsConcurrentRequests() bool {
	return l.allowConcurrent
}

// Limit returns the tracked budget for a route, if any.
func (l *RouteRateLimiter) Limit(method string, u *url.URL) (RouteRateLimit, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	limit, ok := l.limits[RouteKey(method, u)]
	return limit, ok
}

// Send delegates req to the next stage within the route's budget.
func (l *RouteRateLimiter) Send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	key := RouteKey(req.Method, req.URL)

	lock, err := l.routeLock(key)
	if err != nil {
		return nil, err
	}
	if lock != nil {
		if err := lock.Acquire(ctx); err != nil {
			return nil, err
		}
		defer lock.Release()
	}

	logger := l.logger.With("route", key)

	for {
		now := l.now()
		limit, tracked, err := l.rollover(key, now)
		if err != nil {
			return nil, err
		}

		if tracked && limit.Remaining < 1 {
			logger.Debug("Route exhausted, deferring request", "reset_at", limit.ResetAt)
			if err := emit(ctx, l.emitter, EventRequestDeferred, RequestDeferredEvent{URL: req.URL, ResetAt: limit.ResetAt}); err != nil {
				return nil, err
			}
			if err := l.sleep(ctx, limit.ResetAt.Sub(now)); err != nil {
				return nil, err
			}
			continue
		}

		resp, err := l.next.Send(req)
		if err != nil {
			return nil, err
		}

		requestLimit, window, ok, err := routeLimitHeaders(resp.Header)
		if err != nil {
			logger.Warn("Ignoring malformed rate limit headers",
				"limit", resp.Header.Get(HeaderRouteLimit),
				"window", resp.Header.Get(HeaderRouteWindow),
				"error", err)
		}
		if !ok {
			return resp, nil
		}

		limit = l.consume(key, requestLimit, window, now)

		global, present := isGlobal(resp.Header)
		if !present || global {
			return resp, nil
		}

		resetAt := limit.ResetAt
		if t, ok := resetsAt(resp.Header); ok {
			resetAt = t
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			discardResponse(resp)
			logger.Info("Rate limited by server", "reset_at", resetAt)
			if err := emit(ctx, l.emitter, EventRateLimited, RateLimitedEvent{ResetAt: resetAt}); err != nil {
				return nil, err
			}
			if err := l.sleep(ctx, resetAt.Sub(l.now())); err != nil {
				return nil, err
			}
			if err := rewindBody(req); err != nil {
				return nil, err
			}
			continue
		}

		if err := emit(ctx, l.emitter, EventRequestDeferred, RequestDeferredEvent{URL: req.URL, ResetAt: resetAt}); err != nil {
			discardResponse(resp)
			return nil, err
		}
		return resp, nil
	}
}

func (l *RouteRateLimiter) routeLock(key string) (*async.Semaphore, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return nil, ErrDisposed
	}
	lock := l.locks[key]
	if lock == nil && !l.allowConcurrent {
		lock = async.NewSemaphore(1, 1)
		l.locks[key] = lock
	}
	return lock, nil
}

// rollover opens a fresh window when the tracked one has expired.
func (l *RouteRateLimiter) rollover(key string, now time.Time) (RouteRateLimit, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return RouteRateLimit{}, false, ErrDisposed
	}
	limit, ok := l.limits[key]
	if !ok {
		return RouteRateLimit{}, false, nil
	}
	if !limit.ResetAt.After(now) {
		limit = newRouteRateLimit(limit.RequestLimit, limit.Window, limit.RequestLimit, now.Add(limit.Window))
		l.limits[key] = limit
	}
	return limit, true, nil
}

// consume records one request against the route, resynchronizing with the
// server when it reports a different limit or window.
func (l *RouteRateLimiter) consume(key string, requestLimit int, window time.Duration, now time.Time) RouteRateLimit {
	l.mu.Lock()
	defer l.mu.Unlock()

	limit, ok := l.limits[key]
	if !ok || limit.RequestLimit != requestLimit || limit.Window != window {
		limit = newRouteRateLimit(requestLimit, window, requestLimit, now.Add(window))
	}
	limit = newRouteRateLimit(limit.RequestLimit, limit.Window, limit.Remaining-1, limit.ResetAt)
	if !l.disposed {
		l.limits[key] = limit
	}
	return limit
}

// Dispose clears all tracked limits and locks. Later calls to Send fail with
// ErrDisposed.
func (l *RouteRateLimiter) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return
	}
	l.disposed = true
	clear(l.limits)
	clear(l.locks)
}

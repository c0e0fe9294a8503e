package pipeline

import (
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/aula-chat/aula-go/internal/async"
	"github.com/aula-chat/aula-go/internal/logging"
)

// defaultGlobalPause is used when a global 429 carries no reset hint.
const defaultGlobalPause = time.Second

// GlobalRateLimiter gates every route through one shared token bucket and
// pauses all traffic when the server reports a global rate limit.
type GlobalRateLimiter struct {
	next    Handler
	limiter *rate.Limiter
	now     Clock
	sleep   Sleeper
	emitter *async.EventEmitter
	logger  *slog.Logger

	mu          sync.Mutex
	pausedUntil time.Time
	disposed    bool
}

// NewGlobalRateLimiter wraps next with a budget of requestsPerSecond and
// burst. A non-positive rate disables the local budget; global 429 responses
// are still honored.
func NewGlobalRateLimiter(next Handler, requestsPerSecond float64, burst int, opts ...Option) *GlobalRateLimiter {
	o := buildOptions(logging.RateLimit, opts)

	limit := rate.Limit(requestsPerSecond)
	if requestsPerSecond <= 0 || math.IsInf(requestsPerSecond, 1) {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}

	return &GlobalRateLimiter{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
		now:     o.now,
		sleep:   o.sleep,
		emitter: o.emitter,
		logger:  o.logger,
	}
}

// Send delegates req to the next stage once the shared budget allows it.
func (g *GlobalRateLimiter) Send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	for {
		now := g.now()
		until, err := g.pauseDeadline()
		if err != nil {
			return nil, err
		}

		if until.After(now) {
			if err := g.deferUntil(req, until, now); err != nil {
				return nil, err
			}
			continue
		}

		reservation := g.limiter.ReserveN(now, 1)
		if delay := reservation.DelayFrom(now); delay > 0 {
			if err := g.deferUntil(req, now.Add(delay), now); err != nil {
				reservation.CancelAt(g.now())
				return nil, err
			}
		}

		resp, err := g.next.Send(req)
		if err != nil {
			return nil, err
		}

		if global, _ := isGlobal(resp.Header); !global || resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}

		now = g.now()
		resetAt, ok := resetsAt(resp.Header)
		if !ok {
			resetAt, ok = retryAfter(resp.Header, now)
		}
		if !ok {
			resetAt = now.Add(defaultGlobalPause)
		}
		discardResponse(resp)

		g.pause(resetAt)
		g.logger.Warn("Global rate limit reached, pausing all requests", "reset_at", resetAt)

		if err := emit(ctx, g.emitter, EventRateLimited, RateLimitedEvent{ResetAt: resetAt}); err != nil {
			return nil, err
		}
		if err := g.sleep(ctx, resetAt.Sub(now)); err != nil {
			return nil, err
		}
		if err := rewindBody(req); err != nil {
			return nil, err
		}
	}
}

func (g *GlobalRateLimiter) deferUntil(req *http.Request, until, now time.Time) error {
	ctx := req.Context()
	g.logger.Debug("Global budget exhausted, deferring request",
		"url", req.URL.Redacted(),
		"reset_at", until)
	if err := emit(ctx, g.emitter, EventRequestDeferred, RequestDeferredEvent{URL: req.URL, ResetAt: until}); err != nil {
		return err
	}
	return g.sleep(ctx, until.Sub(now))
}

func (g *GlobalRateLimiter) pauseDeadline() (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.disposed {
		return time.Time{}, ErrDisposed
	}
	return g.pausedUntil, nil
}

func (g *GlobalRateLimiter) pause(until time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if until.After(g.pausedUntil) {
		g.pausedUntil = until
	}
}

// Dispose makes later calls to Send fail with ErrDisposed.
func (g *GlobalRateLimiter) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disposed = true
	g.pausedUntil = time.Time{}
}

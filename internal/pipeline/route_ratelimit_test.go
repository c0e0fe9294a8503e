package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-chat/aula-go/internal/async"
	"github.com/aula-chat/aula-go/internal/logging"
)

const roomsURL = "https://aula.example/api/v1/rooms"

func TestRouteKey(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		want   string
	}{
		{"plain", "get", "https://aula.example/api/v1/rooms", "GET https://aula.example/api/v1/rooms"},
		{"trailing slash", "GET", "https://aula.example/api/v1/rooms/", "GET https://aula.example/api/v1/rooms"},
		{"query dropped", "GET", "https://aula.example/api/v1/rooms?count=5#top", "GET https://aula.example/api/v1/rooms"},
		{"host case", "POST", "HTTPS://Aula.Example/api/v1/rooms", "POST https://aula.example/api/v1/rooms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, RouteKey(tt.method, u))
		})
	}
}

func TestRouteRateLimiter_DefersWhenExhausted(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{clock: clock, responses: []func() *http.Response{
		respond(http.StatusOK, routeHeaders(5, 1000, "")),
	}}
	emitter := async.NewEventEmitter()
	events := recordEvents(t, emitter)
	limiter := NewRouteRateLimiter(inner, append(clock.options(), WithEmitter(emitter))...)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		resp, err := limiter.Send(newRequest(t, ctx, http.MethodGet, roomsURL))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.Empty(t, clock.Sleeps())

	u, _ := url.Parse(roomsURL)
	limit, ok := limiter.Limit(http.MethodGet, u)
	require.True(t, ok)
	assert.Equal(t, 0, limit.Remaining)
	assert.Equal(t, epoch.Add(time.Second), limit.ResetAt)

	_, err := limiter.Send(newRequest(t, ctx, http.MethodGet, roomsURL))
	require.NoError(t, err)

	// The sixth request waits exactly until the reset instant.
	assert.Equal(t, []time.Duration{time.Second}, clock.Sleeps())
	require.Len(t, inner.callTimes, 6)
	assert.Equal(t, epoch.Add(time.Second), inner.callTimes[5])

	require.Len(t, *events, 1)
	deferred, ok := (*events)[0].(RequestDeferredEvent)
	require.True(t, ok)
	assert.Equal(t, epoch.Add(time.Second), deferred.ResetAt)
	assert.Equal(t, roomsURL, deferred.URL.String())

	limit, _ = limiter.Limit(http.MethodGet, u)
	assert.Equal(t, 4, limit.Remaining)
	assert.Equal(t, epoch.Add(2*time.Second), limit.ResetAt)
}

func TestRouteRateLimiter_WindowRollover(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{responses: []func() *http.Response{
		respond(http.StatusOK, routeHeaders(5, 1000, "")),
	}}
	limiter := NewRouteRateLimiter(inner, clock.options()...)
	u, _ := url.Parse(roomsURL)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := limiter.Send(newRequest(t, ctx, http.MethodGet, roomsURL))
		require.NoError(t, err)
	}
	limit, _ := limiter.Limit(http.MethodGet, u)
	assert.Equal(t, 2, limit.Remaining)

	clock.Advance(1500 * time.Millisecond)
	rolloverAt := clock.Now()

	_, err := limiter.Send(newRequest(t, ctx, http.MethodGet, roomsURL))
	require.NoError(t, err)

	limit, _ = limiter.Limit(http.MethodGet, u)
	assert.Equal(t, 5, limit.RequestLimit)
	assert.Equal(t, 4, limit.Remaining, "window refilled to 5, then one request consumed")
	assert.Equal(t, rolloverAt.Add(1000*time.Millisecond), limit.ResetAt)
	assert.Empty(t, clock.Sleeps())
}

func TestRouteRateLimiter_RetriesAfterTooManyRequests(t *testing.T) {
	clock := newFakeClock()
	resetAt := epoch.Add(2 * time.Second)

	tooMany := routeHeaders(1, 500, "false")
	tooMany[HeaderResetsAt] = resetAt.Format(time.RFC3339Nano)

	inner := &scriptedHandler{clock: clock, responses: []func() *http.Response{
		respond(http.StatusTooManyRequests, tooMany),
		respond(http.StatusOK, routeHeaders(1, 500, "false")),
	}}
	emitter := async.NewEventEmitter()
	events := recordEvents(t, emitter)
	limiter := NewRouteRateLimiter(inner, append(clock.options(), WithEmitter(emitter))...)

	resp, err := limiter.Send(newRequest(t, context.Background(), http.MethodPost, roomsURL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2, inner.Calls())
	assert.Equal(t, []time.Duration{2 * time.Second}, clock.Sleeps())
	assert.Equal(t, resetAt, inner.callTimes[1])

	require.Len(t, *events, 2)
	limited, ok := (*events)[0].(RateLimitedEvent)
	require.True(t, ok)
	assert.Equal(t, resetAt, limited.ResetAt)

	// The successful request used the last slot of the new window.
	deferred, ok := (*events)[1].(RequestDeferredEvent)
	require.True(t, ok)
	assert.Equal(t, resetAt.Add(500*time.Millisecond), deferred.ResetAt)
}

func TestRouteRateLimiter_GlobalLimitIsNotHandled(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{responses: []func() *http.Response{
		respond(http.StatusTooManyRequests, routeHeaders(5, 1000, "true")),
	}}
	limiter := NewRouteRateLimiter(inner, clock.options()...)

	resp, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 1, inner.Calls())
}

func TestRouteRateLimiter_NoHeadersMeansUnlimited(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{responses: []func() *http.Response{
		respond(http.StatusOK, nil),
	}}
	emitter := async.NewEventEmitter()
	events := recordEvents(t, emitter)
	limiter := NewRouteRateLimiter(inner, append(clock.options(), WithEmitter(emitter))...)

	for i := 0; i < 20; i++ {
		_, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
		require.NoError(t, err)
	}

	u, _ := url.Parse(roomsURL)
	_, tracked := limiter.Limit(http.MethodGet, u)
	assert.False(t, tracked)
	assert.Empty(t, clock.Sleeps())
	assert.Empty(t, *events)
}

func TestRouteRateLimiter_MalformedHeadersAreIgnored(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"non-numeric limit", map[string]string{HeaderRouteLimit: "many", HeaderRouteWindow: "1000"}},
		{"non-numeric window", map[string]string{HeaderRouteLimit: "5", HeaderRouteWindow: "soon"}},
		{"zero limit", map[string]string{HeaderRouteLimit: "0", HeaderRouteWindow: "1000"}},
		{"negative window", map[string]string{HeaderRouteLimit: "5", HeaderRouteWindow: "-1000"}},
		{"window overflows duration", map[string]string{
			HeaderRouteLimit:  "5",
			HeaderRouteWindow: "10000000000000",
			HeaderIsGlobal:    "false",
		}},
		{"window beyond int64", map[string]string{HeaderRouteLimit: "5", HeaderRouteWindow: "99999999999999999999"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			inner := &scriptedHandler{responses: []func() *http.Response{
				respond(http.StatusOK, tt.headers),
			}}
			limiter := NewRouteRateLimiter(inner, clock.options()...)

			resp, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			u, _ := url.Parse(roomsURL)
			_, tracked := limiter.Limit(http.MethodGet, u)
			assert.False(t, tracked)
		})
	}
}

func TestRouteLimitHeaders_LargestWindow(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderRouteLimit, "5")
	h.Set(HeaderRouteWindow, strconv.FormatInt(maxWindowMilliseconds, 10))

	limit, window, ok, err := routeLimitHeaders(h)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, limit)
	assert.Positive(t, window)
}

func TestRetryAfter(t *testing.T) {
	now := epoch
	tests := []struct {
		value  string
		want   time.Time
		wantOK bool
	}{
		{"", time.Time{}, false},
		{"3", now.Add(3 * time.Second), true},
		{" 30 ", now.Add(30 * time.Second), true},
		{"-5", now, true},
		{"0", now, true},
		{"1.5", time.Time{}, false},
		{"1e3", time.Time{}, false},
		{"soon", time.Time{}, false},
		{"Wed, 21 Oct 2026 07:28:00 GMT", time.Date(2026, time.October, 21, 7, 28, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set(HeaderRetryAfter, tt.value)
			}
			got, ok := retryAfter(h, now)
			require.Equal(t, tt.wantOK, ok)
			assert.True(t, tt.want.Equal(got), "retryAfter(%q) = %v, want %v", tt.value, got, tt.want)
		})
	}
}

func TestRouteRateLimiter_ResynchronizesOnChangedLimits(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{responses: []func() *http.Response{
		respond(http.StatusOK, routeHeaders(5, 1000, "")),
		respond(http.StatusOK, routeHeaders(5, 1000, "")),
		respond(http.StatusOK, routeHeaders(10, 2000, "")),
	}}
	limiter := NewRouteRateLimiter(inner, clock.options()...)
	u, _ := url.Parse(roomsURL)

	for i := 0; i < 2; i++ {
		_, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
		require.NoError(t, err)
	}
	limit, _ := limiter.Limit(http.MethodGet, u)
	assert.Equal(t, 3, limit.Remaining)

	clock.Advance(100 * time.Millisecond)
	_, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	require.NoError(t, err)

	limit, _ = limiter.Limit(http.MethodGet, u)
	assert.Equal(t, RouteRateLimit{
		RequestLimit: 10,
		Window:       2 * time.Second,
		Remaining:    9,
		ResetAt:      epoch.Add(100*time.Millisecond + 2*time.Second),
	}, limit)
}

func TestRouteRateLimiter_RoutesAreIndependent(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{responses: []func() *http.Response{
		respond(http.StatusOK, routeHeaders(1, 1000, "")),
	}}
	limiter := NewRouteRateLimiter(inner, clock.options()...)

	_, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	require.NoError(t, err)
	_, err = limiter.Send(newRequest(t, context.Background(), http.MethodPost, roomsURL))
	require.NoError(t, err)
	_, err = limiter.Send(newRequest(t, context.Background(), http.MethodGet, "https://aula.example/api/v1/users"))
	require.NoError(t, err)

	assert.Empty(t, clock.Sleeps())
}

func TestRouteRateLimiter_SerializesSameRoute(t *testing.T) {
	var active, maxActive, calls int32
	gate := make(chan struct{})
	inner := HandlerFunc(func(req *http.Request) (*http.Response, error) {
		n := atomic.AddInt32(&active, 1)
		if n > atomic.LoadInt32(&maxActive) {
			atomic.StoreInt32(&maxActive, n)
		}
		atomic.AddInt32(&calls, 1)
		<-gate
		atomic.AddInt32(&active, -1)
		return respond(http.StatusOK, nil)(), nil
	})
	limiter := NewRouteRateLimiter(inner, WithLogger(logging.Discard()))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
			assert.NoError(t, err)
		}()
	}

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "only one request may be in flight per route")

	close(gate)
	wg.Wait()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&maxActive))
}

func TestRouteRateLimiter_AllowConcurrentRequests(t *testing.T) {
	var arrived sync.WaitGroup
	arrived.Add(2)
	inner := HandlerFunc(func(req *http.Request) (*http.Response, error) {
		arrived.Done()
		arrived.Wait()
		return respond(http.StatusOK, nil)(), nil
	})
	limiter := NewRouteRateLimiter(inner, AllowConcurrentRequests(true), WithLogger(logging.Discard()))
	assert.True(t, limiter.AllowsConcurrentRequests())

	done := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("concurrent requests to the same route were serialized")
	}
}

func TestRouteRateLimiter_ReleasesLockOnError(t *testing.T) {
	boom := errors.New("connection reset")
	var calls int32
	inner := HandlerFunc(func(req *http.Request) (*http.Response, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return nil, boom
		}
		return respond(http.StatusOK, nil)(), nil
	})
	limiter := NewRouteRateLimiter(inner, WithLogger(logging.Discard()))

	_, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	resp, err := limiter.Send(newRequest(t, ctx, http.MethodGet, roomsURL))
	require.NoError(t, err, "route lock must be released after a failed request")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouteRateLimiter_DeferralHonorsContext(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{responses: []func() *http.Response{
		respond(http.StatusOK, routeHeaders(1, int(time.Hour/time.Millisecond), "")),
	}}
	limiter := NewRouteRateLimiter(inner, WithClock(clock.Now), WithLogger(logging.Discard()))

	_, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limiter.Send(newRequest(t, ctx, http.MethodGet, roomsURL))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.Calls())
}

func TestRouteRateLimiter_ListenerErrorPropagates(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{responses: []func() *http.Response{
		respond(http.StatusOK, routeHeaders(1, 1000, "false")),
	}}
	emitter := async.NewEventEmitter()
	boom := errors.New("listener failed")
	_, err := emitter.On(EventRequestDeferred, func(context.Context, any) error { return boom })
	require.NoError(t, err)

	limiter := NewRouteRateLimiter(inner, append(clock.options(), WithEmitter(emitter))...)
	_, err = limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	assert.ErrorIs(t, err, boom)
}

func TestRouteRateLimiter_Dispose(t *testing.T) {
	clock := newFakeClock()
	inner := &scriptedHandler{responses: []func() *http.Response{
		respond(http.StatusOK, routeHeaders(5, 1000, "")),
	}}
	limiter := NewRouteRateLimiter(inner, clock.options()...)

	_, err := limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	require.NoError(t, err)

	limiter.Dispose()
	limiter.Dispose()

	u, _ := url.Parse(roomsURL)
	_, tracked := limiter.Limit(http.MethodGet, u)
	assert.False(t, tracked)

	_, err = limiter.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	assert.ErrorIs(t, err, ErrDisposed)
	assert.Equal(t, 1, inner.Calls())
}

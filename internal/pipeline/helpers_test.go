package pipeline

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aula-chat/aula-go/internal/async"
	"github.com/aula-chat/aula-go/internal/logging"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// fakeClock is a manual clock whose sleeps advance time instantly.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: epoch}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

func (c *fakeClock) options() []Option {
	return []Option{
		WithClock(c.Now),
		WithSleeper(c.Sleep),
		WithLogger(logging.Discard()),
	}
}

// scriptedHandler returns canned responses in order, repeating the last one.
type scriptedHandler struct {
	mu        sync.Mutex
	responses []func() *http.Response
	calls     int
	callTimes []time.Time
	bodies    []string
	clock     *fakeClock
}

func (h *scriptedHandler) Send(req *http.Request) (*http.Response, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if req.Body != nil {
		data, _ := io.ReadAll(req.Body)
		_ = req.Body.Close()
		h.bodies = append(h.bodies, string(data))
	}
	if h.clock != nil {
		h.callTimes = append(h.callTimes, h.clock.Now())
	}

	i := min(h.calls, len(h.responses)-1)
	h.calls++
	resp := h.responses[i]()
	resp.Request = req
	return resp, nil
}

func (h *scriptedHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func respond(status int, headers map[string]string) func() *http.Response {
	return func() *http.Response {
		h := make(http.Header)
		for k, v := range headers {
			h.Set(k, v)
		}
		return &http.Response{
			StatusCode: status,
			Header:     h,
			Body:       io.NopCloser(strings.NewReader("")),
		}
	}
}

func routeHeaders(limit, windowMs int, global string) map[string]string {
	h := map[string]string{
		HeaderRouteLimit:  strconv.Itoa(limit),
		HeaderRouteWindow: strconv.Itoa(windowMs),
	}
	if global != "" {
		h[HeaderIsGlobal] = global
	}
	return h
}

// recordEvents registers listeners for both rate limit events.
func recordEvents(t *testing.T, e *async.EventEmitter) *[]any {
	t.Helper()
	var mu sync.Mutex
	events := &[]any{}
	record := func(_ context.Context, payload any) error {
		mu.Lock()
		defer mu.Unlock()
		*events = append(*events, payload)
		return nil
	}
	if _, err := e.On(EventRequestDeferred, record); err != nil {
		t.Fatalf("On failed: %v", err)
	}
	if _, err := e.On(EventRateLimited, record); err != nil {
		t.Fatalf("On failed: %v", err)
	}
	return events
}

func newRequest(t *testing.T, ctx context.Context, method, url string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		t.Fatalf("NewRequest failed: %v", err)
	}
	return req
}

package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/aula-chat/aula-go/internal/async"
	"github.com/aula-chat/aula-go/internal/logging"
	"github.com/aula-chat/aula-go/internal/pipeline"
)

// apiPath is appended to the base URI of every request.
const apiPath = "api/v1/"

// maxErrorBody caps how much of an error response is read for problem details.
const maxErrorBody = 1 << 20

// Client calls the Aula REST API. It is safe for concurrent use.
type Client struct {
	handler  pipeline.Handler
	owned    *pipeline.Pipeline
	emitter  *async.EventEmitter
	logger   *slog.Logger
	settings pipeline.Settings
	http     *http.Client

	mu       sync.RWMutex
	baseURL  *url.URL
	token    string
	disposed bool
}

// Option configures the client.
type Option func(*Client)

// WithHandler replaces the default pipeline. The client does not dispose a
// handler it was given.
func WithHandler(h pipeline.Handler) Option {
	return func(c *Client) {
		c.handler = h
	}
}

// WithHTTPClient sets the HTTP client used by the default pipeline transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithAllowConcurrentRequests lets requests to the same route overlap.
// Default is true.
func WithAllowConcurrentRequests(allow bool) Option {
	return func(c *Client) {
		c.settings.AllowConcurrentRequests = allow
	}
}

// WithGlobalRateLimit sets the shared request budget across all routes.
func WithGlobalRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		c.settings.GlobalRequestsPerSecond = requestsPerSecond
		c.settings.GlobalBurst = burst
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a client. SetBaseURI must be called before any request.
func New(opts ...Option) *Client {
	c := &Client{
		emitter:  async.NewEventEmitter(),
		settings: pipeline.Settings{AllowConcurrentRequests: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Rest()
	}
	if c.handler == nil {
		c.owned = pipeline.Default(c.http, c.settings,
			pipeline.WithEmitter(c.emitter),
			pipeline.WithLogger(c.logger))
		c.handler = c.owned
	}
	return c
}

// SetBaseURI sets the server address. Requests go to <base>/api/v1/.
func (c *Client) SetBaseURI(base *url.URL) error {
	if base == nil || base.Scheme == "" || base.Host == "" {
		return fmt.Errorf("set base uri: absolute uri required")
	}
	u := *base
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Path += apiPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.baseURL = &u
	return nil
}

// BaseURI returns the API root, or nil before SetBaseURI.
func (c *Client) BaseURI() *url.URL {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.baseURL == nil {
		return nil
	}
	u := *c.baseURL
	return &u
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return ErrDisposed
	}
	c.token = token
	return nil
}

// OnRequestDeferred registers a listener for requests held back by a rate
// limit.
func (c *Client) OnRequestDeferred(fn func(ctx context.Context, e pipeline.RequestDeferredEvent) error) (async.ListenerID, error) {
	return c.emitter.On(pipeline.EventRequestDeferred, func(ctx context.Context, payload any) error {
		return fn(ctx, payload.(pipeline.RequestDeferredEvent))
	})
}

// OnRateLimited registers a listener for 429 responses that will be retried.
func (c *Client) OnRateLimited(fn func(ctx context.Context, e pipeline.RateLimitedEvent) error) (async.ListenerID, error) {
	return c.emitter.On(pipeline.EventRateLimited, func(ctx context.Context, payload any) error {
		return fn(ctx, payload.(pipeline.RateLimitedEvent))
	})
}

// RemoveListener unregisters a listener returned by OnRequestDeferred or
// OnRateLimited.
func (c *Client) RemoveListener(event string, id async.ListenerID) (bool, error) {
	return c.emitter.Remove(event, id)
}

// Dispose releases the pipeline and event listeners. It is idempotent.
func (c *Client) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()

	if c.owned != nil {
		c.owned.Dispose()
	}
	c.emitter.Dispose()
}

// request describes one API call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
}

// do sends r and returns the raw response. The caller closes the body.
func (c *Client) do(ctx context.Context, r request) (*http.Response, error) {
	c.mu.RLock()
	disposed, base, token := c.disposed, c.baseURL, c.token
	c.mu.RUnlock()

	if disposed {
		return nil, ErrDisposed
	}
	if base == nil {
		return nil, ErrBaseURIMissing
	}

	target := base.JoinPath(r.path)
	if len(r.query) > 0 {
		target.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("marshal: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return c.handler.Send(req)
}

// ensureSuccess converts a non-2xx response into an *Error and closes it.
func ensureSuccess(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return newError(resp, body)
}

// call sends r and decodes a successful JSON response into out. A nil out
// discards the body. ignore lists statuses that yield found=false instead of
// an error.
func (c *Client) call(ctx context.Context, op string, r request, out any, ignore ...int) (found bool, err error) {
	resp, err := c.do(ctx, r)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	for _, status := range ignore {
		if resp.StatusCode == status {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return false, nil
		}
	}

	if err := ensureSuccess(resp); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return true, nil
	}

	switch dst := out.(type) {
	case *[]byte:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false, fmt.Errorf("%s: read: %w", op, err)
		}
		*dst = data
	default:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return true, nil
}

func (q PageQuery) values() url.Values {
	v := url.Values{}
	if q.Count > 0 {
		v.Set("count", strconv.Itoa(q.Count))
	}
	if q.After != "" {
		v.Set("after", q.After)
	}
	if q.Before != "" {
		v.Set("before", q.Before)
	}
	return v
}

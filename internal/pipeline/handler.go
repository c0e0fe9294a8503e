package pipeline

import (
	"errors"
	"io"
	"net/http"
)

var (
	// ErrDisposed is returned by Send after the stage has been disposed.
	ErrDisposed = errors.New("pipeline: handler disposed")

	// ErrBodyNotRewindable is returned when a request must be resent but its
	// body cannot be read again.
	ErrBodyNotRewindable = errors.New("pipeline: request body cannot be rewound")
)

// Handler sends a request and returns its response. The request context
// bounds every wait a stage performs.
type Handler interface {
	Send(req *http.Request) (*http.Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(req *http.Request) (*http.Response, error)

// Send calls f(req).
func (f HandlerFunc) Send(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Disposer is implemented by stages that hold state.
type Disposer interface {
	Dispose()
}

// Stage wraps the next handler in the chain.
type Stage func(next Handler) Handler

// Pipeline is a composed handler chain.
type Pipeline struct {
	head     Handler
	handlers []Handler
}

// Chain composes stages around transport. Stages are listed outermost first,
// so Chain(t, a, b) sends through a, then b, then t.
func Chain(transport Handler, stages ...Stage) *Pipeline {
	p := &Pipeline{handlers: []Handler{transport}}
	h := transport
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i](h)
		p.handlers = append(p.handlers, h)
	}
	p.head = h
	return p
}

// Send sends req through the outermost stage.
func (p *Pipeline) Send(req *http.Request) (*http.Response, error) {
	return p.head.Send(req)
}

// Dispose disposes every stage in the chain that holds state.
func (p *Pipeline) Dispose() {
	DisposeAll(p.handlers...)
}

// DisposeAll calls Dispose on each handler implementing Disposer.
func DisposeAll(handlers ...Handler) {
	for _, h := range handlers {
		if d, ok := h.(Disposer); ok {
			d.Dispose()
		}
	}
}

// Settings configures the default chain.
type Settings struct {
	// AllowConcurrentRequests disables the per-route serialization lock.
	AllowConcurrentRequests bool
	// GlobalRequestsPerSecond is the shared budget across all routes.
	// Zero or less means unlimited.
	GlobalRequestsPerSecond float64
	// GlobalBurst is the number of requests allowed at once.
	GlobalBurst int
}

// Default builds RouteRateLimiter -> GlobalRateLimiter -> Retry5xx -> Transport
// around client. Options are applied to every stage.
func Default(client *http.Client, settings Settings, opts ...Option) *Pipeline {
	routeOpts := append([]Option{AllowConcurrentRequests(settings.AllowConcurrentRequests)}, opts...)
	return Chain(NewTransport(client, opts...),
		func(next Handler) Handler { return NewRouteRateLimiter(next, routeOpts...) },
		func(next Handler) Handler {
			return NewGlobalRateLimiter(next, settings.GlobalRequestsPerSecond, settings.GlobalBurst, opts...)
		},
		func(next Handler) Handler { return NewRetry5xx(next, opts...) },
	)
}

// rewindBody prepares req to be sent again.
func rewindBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return ErrBodyNotRewindable
	}
	body, err := req.GetBody()
	if err != nil {
		return err
	}
	req.Body = body
	return nil
}

// discardResponse drains and closes a response that will not be returned.
func discardResponse(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

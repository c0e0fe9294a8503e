package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/aula-chat/aula-go/internal/async"
)

// Event names emitted by the rate limiting stages.
const (
	EventRequestDeferred = "RequestDeferred"
	EventRateLimited     = "RateLimited"
)

// RequestDeferredEvent reports that a route is exhausted until ResetAt. It is
// emitted both before a request is held back and, informationally, after a
// request consumed the last slot of a window.
type RequestDeferredEvent struct {
	URL     *url.URL
	ResetAt time.Time
}

// RateLimitedEvent reports that the server answered 429 Too Many Requests and
// the request will be resent at ResetAt.
type RateLimitedEvent struct {
	ResetAt time.Time
}

func emit(ctx context.Context, e *async.EventEmitter, name string, payload any) error {
	if e == nil {
		return nil
	}
	if err := e.Emit(ctx, name, payload); err != nil {
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}

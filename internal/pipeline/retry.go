package pipeline

import (
	"log/slog"
	"net/http"

	"github.com/aula-chat/aula-go/internal/logging"
)

// Retry5xx resends a request for as long as the server answers
// 500 Internal Server Error. There is no backoff and no attempt cap; only a
// different status, a transport error or the request context ends the loop.
type Retry5xx struct {
	next   Handler
	logger *slog.Logger
}

// NewRetry5xx wraps next.
func NewRetry5xx(next Handler, opts ...Option) *Retry5xx {
	o := buildOptions(logging.Rest, opts)
	return &Retry5xx{next: next, logger: o.logger}
}

// Send delegates to the next stage, retrying on 500.
func (r *Retry5xx) Send(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		resp, err := r.next.Send(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusInternalServerError {
			return resp, nil
		}

		discardResponse(resp)
		r.logger.Debug("Retrying after server error",
			"method", req.Method,
			"url", req.URL.Redacted(),
			"attempt", attempt)

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rewindBody(req); err != nil {
			return nil, err
		}
	}
}

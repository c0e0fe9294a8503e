package pipeline

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/aula-chat/aula-go/internal/logging"
)

// Transport is the innermost stage. It performs the network call.
type Transport struct {
	client *http.Client
	logger *slog.Logger
}

// NewTransport wraps client. A nil client uses http.DefaultClient.
func NewTransport(client *http.Client, opts ...Option) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	o := buildOptions(logging.Rest, opts)
	return &Transport{client: client, logger: o.logger}
}

// Send performs req and returns the raw response, whatever its status.
func (t *Transport) Send(req *http.Request) (*http.Response, error) {
	logger := logging.WithRequest(t.logger, uuid.NewString(), req.Method, req.URL.Redacted())
	start := time.Now()

	resp, err := t.client.Do(req)
	if err != nil {
		logger.Debug("Request failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	logger.Debug("Response received",
		"status", resp.StatusCode,
		"duration", time.Since(start))
	return resp, nil
}

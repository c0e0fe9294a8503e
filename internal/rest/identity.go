package rest

import (
	"context"
	"net/http"
)

// Register creates an account. The server sends a confirmation email.
func (c *Client) Register(ctx context.Context, body RegisterRequest) error {
	_, err := c.call(ctx, "register", request{method: http.MethodPost, path: "identity/register", body: body}, nil)
	return err
}

// LogIn exchanges credentials for a token. The token is not applied to the
// client; call SetToken with it.
func (c *Client) LogIn(ctx context.Context, body LogInRequest) (*LogInResponse, error) {
	var resp LogInResponse
	if _, err := c.call(ctx, "log in", request{method: http.MethodPost, path: "identity/log-in", body: body}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

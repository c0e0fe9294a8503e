package rest

import (
	"context"
	"net/http"
	"net/url"
)

func userPath(userID string) string {
	return "users/" + url.PathEscape(userID)
}

// GetCurrentUser returns the authenticated user.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var user User
	if _, err := c.call(ctx, "get current user", request{method: http.MethodGet, path: "users/@me"}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUsers lists users.
func (c *Client) GetUsers(ctx context.Context, query PageQuery) ([]User, error) {
	var users []User
	if _, err := c.call(ctx, "get users", request{method: http.MethodGet, path: "users", query: query.values()}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns a user, or nil if it does not exist.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	found, err := c.call(ctx, "get user", request{method: http.MethodGet, path: userPath(userID)}, &user, http.StatusNotFound)
	if err != nil || !found {
		return nil, err
	}
	return &user, nil
}

// ModifyCurrentUser updates the authenticated user's profile.
func (c *Client) ModifyCurrentUser(ctx context.Context, body ModifyCurrentUserRequest) (*User, error) {
	var user User
	if _, err := c.call(ctx, "modify current user", request{method: http.MethodPatch, path: "users/@me", body: body}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SetCurrentUserRoom moves the authenticated user into a room.
func (c *Client) SetCurrentUserRoom(ctx context.Context, roomID string) error {
	body := struct {
		RoomID string `json:"roomId"`
	}{RoomID: roomID}
	_, err := c.call(ctx, "set current user room", request{method: http.MethodPut, path: "users/@me/room", body: body}, nil)
	return err
}

package rest

import (
	"context"
	"net/http"
	"net/url"
)

func userBanPath(userID string) string {
	return "bans/users/" + url.PathEscape(userID)
}

// BanUser bans a user. It returns nil without an error when the user is
// already banned.
func (c *Client) BanUser(ctx context.Context, userID string, body BanUserRequest) (Ban, error) {
	var data []byte
	found, err := c.call(ctx, "ban user", request{method: http.MethodPut, path: userBanPath(userID), body: body}, &data, http.StatusConflict)
	if err != nil || !found {
		return nil, err
	}
	return DecodeBan(data)
}

// UnbanUser lifts a user's ban.
func (c *Client) UnbanUser(ctx context.Context, userID string) error {
	_, err := c.call(ctx, "unban user", request{method: http.MethodDelete, path: userBanPath(userID)}, nil)
	return err
}

// GetBans lists bans.
func (c *Client) GetBans(ctx context.Context, query PageQuery) ([]Ban, error) {
	var data []byte
	if _, err := c.call(ctx, "get bans", request{method: http.MethodGet, path: "bans", query: query.values()}, &data); err != nil {
		return nil, err
	}
	return DecodeBans(data)
}

// GetUserBan returns a user's ban, or nil if the user is not banned.
func (c *Client) GetUserBan(ctx context.Context, userID string) (Ban, error) {
	var data []byte
	found, err := c.call(ctx, "get user ban", request{method: http.MethodGet, path: userBanPath(userID)}, &data, http.StatusNotFound)
	if err != nil || !found {
		return nil, err
	}
	return DecodeBan(data)
}

package rest

import (
	"context"
	"net/http"
	"net/url"
)

func roomPath(roomID string, rest ...string) string {
	p := "rooms/" + url.PathEscape(roomID)
	for _, segment := range rest {
		p += "/" + segment
	}
	return p
}

// GetRooms lists rooms.
func (c *Client) GetRooms(ctx context.Context, query PageQuery) ([]Room, error) {
	var rooms []Room
	if _, err := c.call(ctx, "get rooms", request{method: http.MethodGet, path: "rooms", query: query.values()}, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// GetRoom returns a room, or nil if it does not exist.
func (c *Client) GetRoom(ctx context.Context, roomID string) (*Room, error) {
	var room Room
	found, err := c.call(ctx, "get room", request{method: http.MethodGet, path: roomPath(roomID)}, &room, http.StatusNotFound)
	if err != nil || !found {
		return nil, err
	}
	return &room, nil
}

// CreateRoom creates a room.
func (c *Client) CreateRoom(ctx context.Context, body CreateRoomRequest) (*Room, error) {
	var room Room
	if _, err := c.call(ctx, "create room", request{method: http.MethodPost, path: "rooms", body: body}, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// ModifyRoom updates a room.
func (c *Client) ModifyRoom(ctx context.Context, roomID string, body ModifyRoomRequest) (*Room, error) {
	var room Room
	if _, err := c.call(ctx, "modify room", request{method: http.MethodPatch, path: roomPath(roomID), body: body}, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// RemoveRoom deletes a room.
func (c *Client) RemoveRoom(ctx context.Context, roomID string) error {
	_, err := c.call(ctx, "remove room", request{method: http.MethodDelete, path: roomPath(roomID)}, nil)
	return err
}

// GetRoomUsers lists the users currently in a room.
func (c *Client) GetRoomUsers(ctx context.Context, roomID string) ([]User, error) {
	var users []User
	if _, err := c.call(ctx, "get room users", request{method: http.MethodGet, path: roomPath(roomID, "users")}, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetRoomConnections lists the rooms reachable from a room.
func (c *Client) GetRoomConnections(ctx context.Context, roomID string) ([]Room, error) {
	var rooms []Room
	if _, err := c.call(ctx, "get room connections", request{method: http.MethodGet, path: roomPath(roomID, "connections")}, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// AddRoomConnection connects roomID to targetID.
func (c *Client) AddRoomConnection(ctx context.Context, roomID, targetID string) error {
	_, err := c.call(ctx, "add room connection",
		request{method: http.MethodPut, path: roomPath(roomID, "connections", url.PathEscape(targetID))}, nil)
	return err
}

// RemoveRoomConnection disconnects roomID from targetID.
func (c *Client) RemoveRoomConnection(ctx context.Context, roomID, targetID string) error {
	_, err := c.call(ctx, "remove room connection",
		request{method: http.MethodDelete, path: roomPath(roomID, "connections", url.PathEscape(targetID))}, nil)
	return err
}

// StartTyping signals that the authenticated user is typing in a room.
func (c *Client) StartTyping(ctx context.Context, roomID string) error {
	_, err := c.call(ctx, "start typing", request{method: http.MethodPost, path: roomPath(roomID, "start-typing")}, nil)
	return err
}

// StopTyping signals that the authenticated user stopped typing.
func (c *Client) StopTyping(ctx context.Context, roomID string) error {
	_, err := c.call(ctx, "stop typing", request{method: http.MethodPost, path: roomPath(roomID, "stop-typing")}, nil)
	return err
}

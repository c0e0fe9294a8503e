package rest

import (
	"context"
	"net/http"
	"net/url"
)

// GetMessages lists messages in a room, newest first.
func (c *Client) GetMessages(ctx context.Context, roomID string, query PageQuery) ([]Message, error) {
	var messages []Message
	r := request{method: http.MethodGet, path: roomPath(roomID, "messages"), query: query.values()}
	if _, err := c.call(ctx, "get messages", r, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// GetMessage returns a message, or nil if it does not exist.
func (c *Client) GetMessage(ctx context.Context, roomID, messageID string) (*Message, error) {
	var message Message
	r := request{method: http.MethodGet, path: roomPath(roomID, "messages", url.PathEscape(messageID))}
	found, err := c.call(ctx, "get message", r, &message, http.StatusNotFound)
	if err != nil || !found {
		return nil, err
	}
	return &message, nil
}

// SendMessage posts a message in a room.
func (c *Client) SendMessage(ctx context.Context, roomID string, body SendMessageRequest) (*Message, error) {
	var message Message
	r := request{method: http.MethodPost, path: roomPath(roomID, "messages"), body: body}
	if _, err := c.call(ctx, "send message", r, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

// RemoveMessage deletes a message.
func (c *Client) RemoveMessage(ctx context.Context, roomID, messageID string) error {
	r := request{method: http.MethodDelete, path: roomPath(roomID, "messages", url.PathEscape(messageID))}
	_, err := c.call(ctx, "remove message", r, nil)
	return err
}

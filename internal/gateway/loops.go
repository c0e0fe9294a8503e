package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aula-chat/aula-go/internal/async"
)

// receiveLoop reassembles messages and hands each payload to dispatch. It
// returns an error only for a fatal payload handling failure.
func (c *Client) receiveLoop(ctx context.Context, outgoing *async.Channel[*pendingSend], logger *slog.Logger) error {
	defer outgoing.Complete()

	buf := make([]byte, receiveBufferSize)
	var message bytes.Buffer

	for {
		result, err := c.socket.Receive(ctx, buf)
		if err != nil {
			if c.socket.State() == StateOpen {
				logger.Debug("Gateway receive failed", "error", err)
			}
			outgoing.Complete()
			c.closeSocket(CloseNormalClosure)
			return nil
		}

		switch result.MessageType {
		case MessageClose:
			logger.Debug("Gateway close frame received")
			outgoing.Complete()
			c.closeSocket(CloseNormalClosure)
			return nil
		case MessageBinary:
			logger.Warn("Binary frame received, closing")
			c.closeSocket(CloseUnsupportedData)
			return nil
		}

		message.Write(buf[:result.Count])
		if !result.EndOfMessage {
			continue
		}

		p, err := c.decode(message.Bytes())
		size := message.Len()
		message.Reset()
		if err != nil {
			if errors.Is(err, ErrInvalidUTF8) || errors.Is(err, ErrMalformedPayload) {
				logger.Warn("Invalid payload received, closing", "error", err, "size", size)
				c.closeSocket(CloseInvalidPayloadData)
				return nil
			}
			c.closeSocket(CloseInternalError)
			return fmt.Errorf("handle payload: %w", err)
		}

		go c.dispatch(p, logger)
	}
}

// dispatch emits the typed event for p.
func (c *Client) dispatch(p Payload, logger *slog.Logger) {
	event, err := c.eventFromPayload(p)
	if err != nil {
		logger.Warn("Undecodable event data", "operation", p.Operation, "event", p.Event, "error", err)
		return
	}
	if event == nil {
		logger.Debug("Ignoring unknown payload", "operation", p.Operation, "event", p.Event)
		return
	}

	if err := c.emitter.Emit(context.Background(), event.Name(), event); err != nil && !errors.Is(err, async.ErrDisposed) {
		logger.Warn("Event listener failed", "event", event.Name(), "error", err)
	}
}

// sendLoop transmits queued payloads one at a time in enqueue order.
func (c *Client) sendLoop(ctx context.Context, outgoing *async.Channel[*pendingSend], logger *slog.Logger) error {
	for {
		ok, err := outgoing.WaitToRead(ctx)
		if err != nil || !ok || c.socket.State() != StateOpen {
			return nil
		}

		p, err := outgoing.Read(ctx)
		if err != nil {
			return nil
		}

		if err := c.socket.Send(ctx, p.data, MessageText, true); err != nil {
			logger.Warn("Gateway send failed", "error", err)
			p.sent.Reject(fmt.Errorf("%w: %w", ErrNotConnected, err))
			c.closeSocket(CloseInternalError)
			return nil
		}
		p.sent.Resolve(struct{}{})
	}
}

// closeSocket closes the socket if it is still open.
func (c *Client) closeSocket(code CloseCode) {
	if c.socket.State() != StateOpen {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeWait)
	defer cancel()
	if err := c.socket.Close(ctx, code); err != nil {
		c.logger.Debug("Gateway close failed", "code", int(code), "error", err)
	}
}

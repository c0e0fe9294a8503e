package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aula-chat/aula-go/internal/logging"
)

// closeWait bounds how long writing a close frame may take.
const closeWait = 5 * time.Second

var errSocketNotOpen = errors.New("socket is not open")

// WebSocket is the default Socket, backed by gorilla/websocket.
type WebSocket struct {
	dialer *websocket.Dialer
	header http.Header
	logger *slog.Logger

	mu    sync.Mutex
	state SocketState
	conn  *websocket.Conn

	// readMu guards reader, the message currently being received.
	readMu sync.Mutex
	reader io.Reader

	// writeMu guards writer, the message currently being sent.
	writeMu sync.Mutex
	writer  io.WriteCloser
}

// WebSocketOption configures a WebSocket.
type WebSocketOption func(*WebSocket)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) WebSocketOption {
	return func(ws *WebSocket) {
		ws.dialer = d
	}
}

// WithSocketLogger sets the socket logger.
func WithSocketLogger(logger *slog.Logger) WebSocketOption {
	return func(ws *WebSocket) {
		ws.logger = logger
	}
}

// NewWebSocket creates a closed socket.
func NewWebSocket(opts ...WebSocketOption) *WebSocket {
	ws := &WebSocket{
		dialer: websocket.DefaultDialer,
		header: make(http.Header),
	}
	for _, opt := range opts {
		opt(ws)
	}
	if ws.logger == nil {
		ws.logger = logging.Gateway()
	}
	return ws
}

// Header returns the handshake headers.
func (ws *WebSocket) Header() http.Header {
	return ws.header
}

// State returns the current state.
func (ws *WebSocket) State() SocketState {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state
}

// Connect dials u. http and https URLs are dialed as ws and wss.
func (ws *WebSocket) Connect(ctx context.Context, u *url.URL) error {
	ws.mu.Lock()
	if ws.state != StateClosed {
		state := ws.state
		ws.mu.Unlock()
		return &SocketError{Op: "connect", Err: errors.New("socket is " + state.String())}
	}
	ws.state = StateConnecting
	ws.mu.Unlock()

	target := *u
	switch target.Scheme {
	case "http":
		target.Scheme = "ws"
	case "https":
		target.Scheme = "wss"
	}

	conn, resp, err := ws.dialer.DialContext(ctx, target.String(), ws.header.Clone())
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	if err != nil {
		if ws.state == StateConnecting {
			ws.state = StateClosed
		}
		return &SocketError{Op: "connect", Err: err}
	}
	if ws.state == StateDisposed {
		_ = conn.Close()
		return &SocketError{Op: "connect", Err: errors.New("socket disposed")}
	}

	ws.conn = conn
	ws.state = StateOpen
	ws.reader = nil
	ws.writer = nil
	ws.logger.Debug("WebSocket connected", "url", target.Redacted())
	return nil
}

func (ws *WebSocket) openConn() (*websocket.Conn, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.state != StateOpen || ws.conn == nil {
		return nil, errSocketNotOpen
	}
	return ws.conn, nil
}

// Receive reads the next chunk of the current message.
func (ws *WebSocket) Receive(ctx context.Context, buf []byte) (ReceiveResult, error) {
	conn, err := ws.openConn()
	if err != nil {
		return ReceiveResult{}, &SocketError{Op: "receive", Err: err}
	}

	ws.readMu.Lock()
	defer ws.readMu.Unlock()

	// Unblock the read when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if ws.reader == nil {
		messageType, r, err := conn.NextReader()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				ws.logger.Debug("WebSocket close frame received", "code", closeErr.Code, "text", closeErr.Text)
				return ReceiveResult{MessageType: MessageClose, EndOfMessage: true}, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				err = ctxErr
			}
			return ReceiveResult{}, &SocketError{Op: "receive", Err: err}
		}
		if messageType == websocket.BinaryMessage {
			// Report the type immediately; the payload is not consumed.
			return ReceiveResult{MessageType: MessageBinary, EndOfMessage: true}, nil
		}
		ws.reader = r
	}

	n, err := ws.reader.Read(buf)
	switch {
	case errors.Is(err, io.EOF):
		ws.reader = nil
		return ReceiveResult{Count: n, MessageType: MessageText, EndOfMessage: true}, nil
	case err != nil:
		ws.reader = nil
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return ReceiveResult{}, &SocketError{Op: "receive", Err: err}
	default:
		return ReceiveResult{Count: n, MessageType: MessageText}, nil
	}
}

// Send writes data. Fragments of one message share a writer until
// endOfMessage.
func (ws *WebSocket) Send(ctx context.Context, data []byte, t MessageType, endOfMessage bool) error {
	conn, err := ws.openConn()
	if err != nil {
		return &SocketError{Op: "send", Err: err}
	}

	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = conn.SetWriteDeadline(deadline)

	if ws.writer == nil {
		frameType := websocket.TextMessage
		if t == MessageBinary {
			frameType = websocket.BinaryMessage
		}
		w, err := conn.NextWriter(frameType)
		if err != nil {
			return &SocketError{Op: "send", Err: err}
		}
		ws.writer = w
	}

	if _, err := ws.writer.Write(data); err != nil {
		ws.writer = nil
		return &SocketError{Op: "send", Err: err}
	}
	if endOfMessage {
		w := ws.writer
		ws.writer = nil
		if err := w.Close(); err != nil {
			return &SocketError{Op: "send", Err: err}
		}
	}
	return nil
}

// Close sends a close frame with code and closes the connection. Closing a
// socket that is not open is a no-op.
func (ws *WebSocket) Close(ctx context.Context, code CloseCode) error {
	ws.mu.Lock()
	if ws.state != StateOpen || ws.conn == nil {
		ws.mu.Unlock()
		return nil
	}
	conn := ws.conn
	ws.conn = nil
	ws.state = StateClosed
	ws.mu.Unlock()

	deadline := time.Now().Add(closeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	err := conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(int(code), ""), deadline)
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}
	if closeErr := conn.Close(); err == nil {
		err = closeErr
	}

	ws.logger.Debug("WebSocket closed", "code", int(code))
	if err != nil {
		return &SocketError{Op: "close", Err: err}
	}
	return nil
}

// Dispose closes the connection without a close handshake. The socket cannot
// be reused.
func (ws *WebSocket) Dispose() {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if ws.state == StateDisposed {
		return
	}
	if ws.conn != nil {
		_ = ws.conn.Close()
		ws.conn = nil
	}
	ws.state = StateDisposed
}

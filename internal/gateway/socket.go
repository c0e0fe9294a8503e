package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// MessageType is the kind of a received or sent frame.
type MessageType int

const (
	MessageText MessageType = iota
	MessageBinary
	MessageClose
)

func (t MessageType) String() string {
	switch t {
	case MessageText:
		return "text"
	case MessageBinary:
		return "binary"
	case MessageClose:
		return "close"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// SocketState is the lifecycle state of a Socket.
type SocketState int

const (
	StateClosed SocketState = iota
	StateConnecting
	StateOpen
	StateDisposed
)

func (s SocketState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("SocketState(%d)", int(s))
	}
}

// CloseCode is a WebSocket close status code (RFC 6455, section 7.4.1).
type CloseCode int

const (
	CloseNormalClosure      CloseCode = 1000
	CloseUnsupportedData    CloseCode = 1003
	CloseInvalidPayloadData CloseCode = 1007
	CloseInternalError      CloseCode = 1011
)

// ReceiveResult describes one chunk read by Socket.Receive.
type ReceiveResult struct {
	Count        int
	MessageType  MessageType
	EndOfMessage bool
}

// Socket is the message transport used by Client.
type Socket interface {
	// Connect performs the handshake using the headers returned by Header.
	Connect(ctx context.Context, u *url.URL) error
	// Send writes data as part of a message of type t. The message ends when
	// endOfMessage is true.
	Send(ctx context.Context, data []byte, t MessageType, endOfMessage bool) error
	// Receive reads the next chunk of the current message into buf. A
	// received close frame is reported as MessageClose, not as an error.
	Receive(ctx context.Context, buf []byte) (ReceiveResult, error)
	// Close sends a close frame with code and releases the connection.
	Close(ctx context.Context, code CloseCode) error
	State() SocketState
	// Header holds the handshake headers for the next Connect.
	Header() http.Header
	Dispose()
}

// SocketError is a transport failure reported by a Socket.
type SocketError struct {
	Op  string
	Err error
}

func (e *SocketError) Error() string {
	return "socket " + e.Op + ": " + e.Err.Error()
}

func (e *SocketError) Unwrap() error {
	return e.Err
}

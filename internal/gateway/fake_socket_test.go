package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
)

// frame is one scripted inbound chunk.
type frame struct {
	data []byte
	typ  MessageType
	end  bool
}

func textFrame(s string) frame {
	return frame{data: []byte(s), typ: MessageText, end: true}
}

// fakeSocket is a scripted Socket. Inbound frames are pushed with push;
// outbound messages appear on sent.
type fakeSocket struct {
	header http.Header

	inbound chan frame
	sent    chan []byte

	// sendGate, when set, blocks every Send until it receives a value or the
	// socket closes.
	sendGate chan struct{}

	mu            sync.Mutex
	state         SocketState
	closed        chan struct{}
	closeCodes    []CloseCode
	connectURL    *url.URL
	connectHeader http.Header
	connectErr    error
	connects      int
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		header:  make(http.Header),
		inbound: make(chan frame),
		sent:    make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSocket) push(ctx context.Context, f frame) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	select {
	case s.inbound <- f:
		return true
	case <-closed:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *fakeSocket) Connect(_ context.Context, u *url.URL) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		return &SocketError{Op: "connect", Err: errors.New("socket is " + s.state.String())}
	}
	s.connects++
	s.connectURL = u
	s.connectHeader = s.header.Clone()
	if s.connectErr != nil {
		return &SocketError{Op: "connect", Err: s.connectErr}
	}
	s.state = StateOpen
	s.closed = make(chan struct{})
	return nil
}

func (s *fakeSocket) Send(ctx context.Context, data []byte, _ MessageType, _ bool) error {
	s.mu.Lock()
	if s.state != StateOpen {
		s.mu.Unlock()
		return &SocketError{Op: "send", Err: errSocketNotOpen}
	}
	closed := s.closed
	s.mu.Unlock()

	s.sent <- append([]byte(nil), data...)

	if s.sendGate != nil {
		select {
		case <-s.sendGate:
		case <-closed:
			return &SocketError{Op: "send", Err: errSocketNotOpen}
		case <-ctx.Done():
			return &SocketError{Op: "send", Err: ctx.Err()}
		}
	}
	return nil
}

func (s *fakeSocket) Receive(ctx context.Context, buf []byte) (ReceiveResult, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()

	select {
	case f := <-s.inbound:
		n := copy(buf, f.data)
		return ReceiveResult{Count: n, MessageType: f.typ, EndOfMessage: f.end}, nil
	case <-closed:
		return ReceiveResult{}, &SocketError{Op: "receive", Err: errSocketNotOpen}
	case <-ctx.Done():
		return ReceiveResult{}, &SocketError{Op: "receive", Err: ctx.Err()}
	}
}

func (s *fakeSocket) Close(_ context.Context, code CloseCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateOpen {
		return nil
	}
	s.state = StateClosed
	s.closeCodes = append(s.closeCodes, code)
	close(s.closed)
	return nil
}

func (s *fakeSocket) State() SocketState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSocket) Header() http.Header {
	return s.header
}

func (s *fakeSocket) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateOpen {
		close(s.closed)
	}
	s.state = StateDisposed
}

func (s *fakeSocket) codes() []CloseCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CloseCode(nil), s.closeCodes...)
}

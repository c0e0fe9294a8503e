package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aula-chat/aula-go/internal/async"
	"github.com/aula-chat/aula-go/internal/logging"
	"github.com/aula-chat/aula-go/internal/rest"
)

// Handshake headers.
const (
	HeaderIntents       = "X-Intents"
	HeaderSessionID     = "X-SessionId"
	HeaderAuthorization = "Authorization"
)

// receiveBufferSize is the chunk size of a single socket read.
const receiveBufferSize = 1024

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// current connection state.
	ErrInvalidState = errors.New("gateway: invalid state")
	// ErrNotConnected is returned when an operation requires a connection.
	ErrNotConnected = errors.New("gateway: not connected")
	// ErrBaseURIMissing is returned by Connect before SetBaseURI.
	ErrBaseURIMissing = errors.New("gateway: base URI not set")
	// ErrIntentsMissing is returned by Connect before SetIntents.
	ErrIntentsMissing = errors.New("gateway: intents not set")
	// ErrDisposed is returned by every call on a disposed client.
	ErrDisposed = errors.New("gateway: client disposed")
)

// pendingSend is a serialized payload waiting for the send loop.
type pendingSend struct {
	data []byte
	sent *async.Future[struct{}]
}

// Client is a gateway connection. It is safe for concurrent use.
type Client struct {
	socket   Socket
	rest     *rest.Client
	ownsRest bool
	emitter  *async.EventEmitter
	logger   *slog.Logger

	// decode parses a reassembled message.
	decode func([]byte) (Payload, error)

	mu         sync.Mutex
	gatewayURL *url.URL
	intentsSet bool
	disconnect *async.Future[struct{}]
	outgoing   *async.Channel[*pendingSend]
	stopLoops  context.CancelFunc
	disposed   bool
}

// Option configures a Client.
type Option func(*Client)

// WithSocket replaces the default gorilla WebSocket.
func WithSocket(s Socket) Option {
	return func(c *Client) {
		c.socket = s
	}
}

// WithRestClient shares a REST client. Base URI and token changes made on
// the gateway client are forwarded to it. The gateway client does not
// dispose a REST client it was given.
func WithRestClient(r *rest.Client) Option {
	return func(c *Client) {
		c.rest = r
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a disconnected client.
func New(opts ...Option) *Client {
	c := &Client{
		emitter: async.NewEventEmitter(),
		decode:  DecodePayload,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Gateway()
	}
	if c.socket == nil {
		c.socket = NewWebSocket(WithSocketLogger(c.logger))
	}
	if c.rest == nil {
		c.rest = rest.New()
		c.ownsRest = true
	}
	return c
}

// Rest returns the REST client paired with this gateway client.
func (c *Client) Rest() *rest.Client {
	return c.rest
}

// State returns the socket state.
func (c *Client) State() SocketState {
	return c.socket.State()
}

// requireClosed must be called with mu held.
func (c *Client) requireClosed(op string) error {
	if c.disposed {
		return ErrDisposed
	}
	if state := c.socket.State(); state != StateClosed {
		return fmt.Errorf("%s: socket is %s: %w", op, state, ErrInvalidState)
	}
	return nil
}

// SetIntents sets the events the server should send. Only valid while
// disconnected.
func (c *Client) SetIntents(intents Intents) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireClosed("set intents"); err != nil {
		return err
	}
	c.socket.Header().Set(HeaderIntents, strconv.FormatUint(uint64(intents), 10))
	c.intentsSet = true
	return nil
}

// SetBaseURI sets the server address. The gateway endpoint is
// <base>/api/v1/gateway. The REST client is updated too. Only valid while
// disconnected.
func (c *Client) SetBaseURI(base *url.URL) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireClosed("set base uri"); err != nil {
		return err
	}
	if err := c.rest.SetBaseURI(base); err != nil {
		return err
	}

	u := *base
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Path += "api/v1/gateway"
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	c.gatewayURL = &u
	return nil
}

// GatewayURI returns the gateway endpoint, or nil before SetBaseURI.
func (c *Client) GatewayURI() *url.URL {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gatewayURL == nil {
		return nil
	}
	u := *c.gatewayURL
	return &u
}

// SetToken sets the bearer token for the handshake and the REST client. Only
// valid while disconnected.
func (c *Client) SetToken(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireClosed("set token"); err != nil {
		return err
	}
	if err := c.rest.SetToken(token); err != nil {
		return err
	}
	c.socket.Header().Set(HeaderAuthorization, "Bearer "+token)
	return nil
}

// Connect opens a connection. An empty sessionID starts a fresh session;
// otherwise the session is resumed and SessionResumed is emitted before any
// dispatch event. Connect returns once both loops are running.
func (c *Client) Connect(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if err := c.requireClosed("connect"); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.disconnect != nil {
		c.mu.Unlock()
		return fmt.Errorf("connect: previous connection still shutting down: %w", ErrInvalidState)
	}
	if c.gatewayURL == nil {
		c.mu.Unlock()
		return ErrBaseURIMissing
	}
	if !c.intentsSet {
		c.mu.Unlock()
		return ErrIntentsMissing
	}

	header := c.socket.Header()
	header.Del(HeaderSessionID)
	if sessionID != "" {
		header.Set(HeaderSessionID, sessionID)
	}
	target := *c.gatewayURL

	// Reserve the session so concurrent Connect calls fail fast.
	disconnect := async.NewFuture[struct{}]()
	c.disconnect = disconnect
	c.mu.Unlock()

	abort := func(err error) error {
		c.mu.Lock()
		c.disconnect = nil
		c.mu.Unlock()
		return err
	}

	if err := c.socket.Connect(ctx, &target); err != nil {
		return abort(fmt.Errorf("connect: %w", err))
	}

	if sessionID != "" {
		if err := c.emitter.Emit(ctx, EventSessionResumed, SessionResumedEvent{source: source{c}, SessionID: sessionID}); err != nil {
			c.closeSocket(CloseNormalClosure)
			return abort(fmt.Errorf("connect: %w", err))
		}
	}

	logger := logging.WithConnection(c.logger, uuid.NewString(), sessionID)
	outgoing := async.NewUnboundedChannel[*pendingSend]()
	loopCtx, stop := context.WithCancel(context.Background())

	c.mu.Lock()
	c.outgoing = outgoing
	c.stopLoops = stop
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		stop()
		return abort(ErrDisposed)
	}

	logger.Info("Gateway connected", "url", target.Redacted())

	g, gctx := errgroup.WithContext(loopCtx)
	g.Go(func() error { return c.receiveLoop(gctx, outgoing, logger) })
	g.Go(func() error { return c.sendLoop(gctx, outgoing, logger) })

	go func() {
		err := g.Wait()
		stop()
		c.teardown(outgoing, disconnect, err, logger)
	}()
	return nil
}

// teardown runs once both loops have ended.
func (c *Client) teardown(outgoing *async.Channel[*pendingSend], disconnect *async.Future[struct{}], err error, logger *slog.Logger) {
	outgoing.Complete()
	for {
		p, ok := outgoing.TryRead()
		if !ok {
			break
		}
		p.sent.Reject(ErrNotConnected)
	}

	c.mu.Lock()
	if c.outgoing == outgoing {
		c.outgoing = nil
		c.stopLoops = nil
	}
	c.disconnect = nil
	c.mu.Unlock()

	if err != nil {
		logger.Error("Gateway connection failed", "error", err)
		disconnect.Reject(err)
	} else {
		logger.Info("Gateway disconnected")
		disconnect.Resolve(struct{}{})
	}

	event := ClientDisconnectedEvent{source: source{c}, Err: err}
	if err := c.emitter.Emit(context.Background(), EventClientDisconnected, event); err != nil && !errors.Is(err, async.ErrDisposed) {
		logger.Warn("ClientDisconnected listener failed", "error", err)
	}
}

// WaitForDisconnect blocks until the current connection has ended. It
// returns the fatal error that ended it, if any.
func (c *Client) WaitForDisconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	disconnect := c.disconnect
	c.mu.Unlock()

	if disconnect == nil {
		return ErrNotConnected
	}
	_, err := disconnect.Wait(ctx)
	return err
}

// Disconnect closes the connection with a normal closure. The loops observe
// the closed socket and end; use WaitForDisconnect to wait for them.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	c.mu.Unlock()

	if c.socket.State() != StateOpen {
		return ErrNotConnected
	}
	if err := c.socket.Close(ctx, CloseNormalClosure); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// UpdatePresence sets the user's presence. It returns once the payload has
// been written to the socket.
func (c *Client) UpdatePresence(ctx context.Context, presence rest.Presence) error {
	data, err := json.Marshal(struct {
		Presence rest.Presence `json:"presence"`
	}{presence})
	if err != nil {
		return fmt.Errorf("update presence: %w", err)
	}
	return c.sendDispatch(ctx, eventUpdatePresence, data)
}

// sendDispatch queues a dispatch payload and waits for its transmission.
func (c *Client) sendDispatch(ctx context.Context, event string, data json.RawMessage) error {
	message, err := EncodePayload(Payload{Operation: OperationDispatch, Event: event, Data: data})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	outgoing := c.outgoing
	c.mu.Unlock()

	if outgoing == nil {
		return ErrNotConnected
	}

	p := &pendingSend{data: message, sent: async.NewFuture[struct{}]()}
	ok, err := outgoing.WaitToWrite(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotConnected
	}
	if err := outgoing.Write(ctx, p); err != nil {
		if errors.Is(err, async.ErrChannelCompleted) {
			return ErrNotConnected
		}
		return err
	}

	_, err = p.sent.Wait(ctx)
	return err
}

// On registers a listener for the named event. The payload is the matching
// Event struct.
func (c *Client) On(name string, listener async.Listener) (async.ListenerID, error) {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return 0, ErrDisposed
	}
	return c.emitter.On(name, listener)
}

// Remove unregisters a listener.
func (c *Client) Remove(name string, id async.ListenerID) (bool, error) {
	c.mu.Lock()
	disposed := c.disposed
	c.mu.Unlock()
	if disposed {
		return false, ErrDisposed
	}
	return c.emitter.Remove(name, id)
}

// Listen registers a typed listener for events of type E.
func Listen[E Event](c *Client, fn func(ctx context.Context, e E) error) (async.ListenerID, error) {
	var zero E
	return c.On(zero.Name(), func(ctx context.Context, payload any) error {
		e, ok := payload.(E)
		if !ok {
			return nil
		}
		return fn(ctx, e)
	})
}

// Dispose closes the socket and drops every listener. It is idempotent.
func (c *Client) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	stop := c.stopLoops
	c.mu.Unlock()

	c.emitter.Dispose()
	c.socket.Dispose()
	if stop != nil {
		stop()
	}
	if c.ownsRest {
		c.rest.Dispose()
	}
}

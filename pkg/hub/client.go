// Package hub is the module-side client for the fabric gateway. One
// Client wraps one transport session: opened once, shared by method
// invocations and telemetry, closed once. There is no reconnect logic
// here; when the session dies every call fails until the owner builds
// a new client.
package hub

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ziyasal/iotedge/pkg/identity"
	"github.com/ziyasal/iotedge/pkg/netstack"
	"github.com/ziyasal/iotedge/pkg/protocol"
	"github.com/ziyasal/iotedge/pkg/protocol/codec"
	"github.com/ziyasal/iotedge/pkg/transport"
)

var (
	// ErrClosed reports use of a client after Close.
	ErrClosed = errors.New("hub: client closed")

	// ErrConnectionClosed reports the gateway ending the session.
	ErrConnectionClosed = errors.New("hub: connection closed by gateway")
)

// HandshakeError is a gateway refusing the session.
type HandshakeError struct {
	Status int
	Reason string
}

func (e *HandshakeError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("hub: handshake refused: status %d", e.Status)
	}
	return fmt.Sprintf("hub: handshake refused: status %d (%s)", e.Status, e.Reason)
}

const (
	defaultDialTimeout      = 10 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	keepalivePingTimeout    = 5 * time.Second
)

// Options configures Open. Kind, Address and Identity are required.
type Options struct {
	Kind     transport.Kind
	Address  string
	Identity identity.ModuleIdentity

	// Token is the optional shared-access token presented in Hello.
	Token string

	// Format encodes bodies; json or cbor. Zero means json.
	Format codec.Format

	DialTimeout      time.Duration
	HandshakeTimeout time.Duration

	// KeepAlive pings the gateway at this interval. Zero disables.
	KeepAlive time.Duration

	// TLS applies to QUIC links.
	TLS *tls.Config

	Logger *zap.Logger
}

func (o *Options) normalize() error {
	if o.Address == "" {
		return errors.New("hub: address required")
	}
	if err := o.Identity.Validate(); err != nil {
		return fmt.Errorf("hub: %w", err)
	}
	if o.Format == codec.FormatUnknown {
		o.Format = codec.FormatJSON
	}
	if o.Format != codec.FormatJSON && o.Format != codec.FormatCBOR {
		return fmt.Errorf("hub: format %v not usable for bodies", o.Format)
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = defaultHandshakeTimeout
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return nil
}

// Call names a method to invoke, with its body and the timeout hint
// forwarded to the target.
type Call struct {
	Name    string
	Payload json.RawMessage
	Timeout time.Duration
}

// Client is a live session with the gateway. Safe for concurrent use.
type Client struct {
	sess   transport.Session
	format codec.Format
	local  identity.ModuleIdentity
	log    *zap.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]chan *protocol.Envelope
	recvErr error

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup

	sessionID string
}

// Open dials the gateway and performs the Hello handshake. A refused
// or timed-out handshake closes the session and fails the open.
func Open(ctx context.Context, opts Options) (*Client, error) {
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	tr, err := netstack.NewByKind(opts.Kind, netstack.Options{
		DialTimeout: opts.DialTimeout,
		KeepAlive:   opts.KeepAlive,
		TLS:         opts.TLS,
	})
	if err != nil {
		return nil, err
	}
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	sess, err := tr.Dial(dialCtx, opts.Address)
	if err != nil {
		return nil, fmt.Errorf("hub: dial %s via %v: %w", opts.Address, opts.Kind, err)
	}

	c := &Client{
		sess:    sess,
		format:  opts.Format,
		local:   opts.Identity,
		log:     opts.Logger,
		pending: make(map[uuid.UUID]chan *protocol.Envelope),
		closed:  make(chan struct{}),
	}
	c.wg.Add(1)
	go c.recvLoop()

	hsCtx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
	defer cancel()
	hello := protocol.Hello{
		DeviceID: opts.Identity.DeviceID,
		ModuleID: opts.Identity.ModuleID,
		Token:    opts.Token,
		SentAt:   time.Now().UnixMilli(),
	}
	env, err := c.roundTrip(hsCtx, protocol.MsgHello, 0, hello)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("hub: handshake: %w", err)
	}
	if env.Header.Type != protocol.MsgHelloAck {
		c.Close()
		return nil, fmt.Errorf("hub: handshake: unexpected reply %v", env.Header.Type)
	}
	var ack protocol.HelloAck
	if _, err := protocol.DecodeBody(env.Body, &ack); err != nil {
		c.Close()
		return nil, fmt.Errorf("hub: handshake: %w", err)
	}
	if ack.Status != protocol.StatusOK {
		c.Close()
		return nil, &HandshakeError{Status: ack.Status, Reason: ack.Reason}
	}
	c.sessionID = ack.SessionID

	if opts.KeepAlive > 0 {
		c.wg.Add(1)
		go c.keepaliveLoop(opts.KeepAlive)
	}
	c.log.Debug("session open",
		zap.String("session_id", c.sessionID),
		zap.Stringer("kind", sess.Kind()),
		zap.String("address", opts.Address))
	return c, nil
}

// SessionID is the gateway-assigned id, empty if it assigned none.
func (c *Client) SessionID() string { return c.sessionID }

// InvokeMethod sends one method call and waits for the matching
// result. The fabric's own status travels in the result body; an error
// here means the call never produced one.
func (c *Client) InvokeMethod(ctx context.Context, target identity.ModuleIdentity, call Call) (*protocol.MethodResult, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}
	body := protocol.MethodCall{
		TargetDevice:   target.DeviceID,
		TargetModule:   target.ModuleID,
		Name:           call.Name,
		Payload:        call.Payload,
		TimeoutSeconds: uint32(call.Timeout / time.Second),
	}
	env, err := c.roundTrip(ctx, protocol.MsgMethodCall, 0, body)
	if err != nil {
		return nil, err
	}
	if env.Header.Type != protocol.MsgMethodResult {
		return nil, fmt.Errorf("hub: unexpected reply %v to method call", env.Header.Type)
	}
	var res protocol.MethodResult
	if _, err := protocol.DecodeBody(env.Body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SendEvent publishes one telemetry message and waits for the
// gateway's ack. The client stamps id, identity and enqueue time.
func (c *Client) SendEvent(ctx context.Context, payload json.RawMessage) error {
	id := uuid.NewString()
	body := protocol.Event{
		ID:         id,
		DeviceID:   c.local.DeviceID,
		ModuleID:   c.local.ModuleID,
		Payload:    payload,
		EnqueuedAt: time.Now().UnixMilli(),
	}
	env, err := c.roundTrip(ctx, protocol.MsgEvent, protocol.FlagAckRequested, body)
	if err != nil {
		return err
	}
	if env.Header.Type != protocol.MsgEventAck {
		return fmt.Errorf("hub: unexpected reply %v to event", env.Header.Type)
	}
	var ack protocol.EventAck
	if _, err := protocol.DecodeBody(env.Body, &ack); err != nil {
		return err
	}
	if ack.Status != protocol.StatusOK {
		return fmt.Errorf("hub: event %s rejected: status %d", id, ack.Status)
	}
	return nil
}

// Close tears the session down. Idempotent; pending calls fail fast.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.sess.Close()
		c.wg.Wait()
	})
	return c.closeErr
}

// roundTrip sends one frame and waits for the correlated reply.
func (c *Client) roundTrip(ctx context.Context, t protocol.MsgType, flags uint16, body any) (*protocol.Envelope, error) {
	corr := uuid.New()
	ch := make(chan *protocol.Envelope, 1)

	c.mu.Lock()
	if c.recvErr != nil {
		err := c.recvErr
		c.mu.Unlock()
		return nil, err
	}
	c.pending[corr] = ch
	c.mu.Unlock()
	defer c.unregister(corr)

	frame, err := protocol.Seal(t, corr, flags, c.format, body)
	if err != nil {
		return nil, err
	}
	if err := c.sess.WriteFrame(frame); err != nil {
		return nil, fmt.Errorf("hub: write %v: %w", t, err)
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return nil, c.terminalErr()
		}
		return env, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *Client) unregister(corr uuid.UUID) {
	c.mu.Lock()
	delete(c.pending, corr)
	c.mu.Unlock()
}

func (c *Client) terminalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recvErr != nil {
		return c.recvErr
	}
	return ErrClosed
}

// recvLoop owns the read side: it answers pings and routes correlated
// replies to their waiters. A read error fails everything in flight.
func (c *Client) recvLoop() {
	defer c.wg.Done()
	for {
		raw, err := c.sess.ReadFrame()
		if err != nil {
			c.failPending(err)
			return
		}
		env, err := protocol.DecodeFrame(raw)
		if err != nil {
			c.log.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		switch env.Header.Type {
		case protocol.MsgPing:
			pong, err := protocol.Seal(protocol.MsgPong, env.Header.Correlation, 0, c.format, nil)
			if err == nil {
				c.sess.WriteFrame(pong)
			}
		default:
			c.deliver(&env)
		}
	}
}

func (c *Client) deliver(env *protocol.Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.Header.Correlation]
	if ok {
		delete(c.pending, env.Header.Correlation)
	}
	c.mu.Unlock()
	if !ok {
		// Reply to a call whose waiter already timed out.
		c.log.Debug("discarding uncorrelated reply",
			zap.Stringer("type", env.Header.Type),
			zap.String("correlation", env.Header.Correlation.String()))
		return
	}
	ch <- env
}

func (c *Client) failPending(cause error) {
	c.mu.Lock()
	if c.recvErr == nil {
		select {
		case <-c.closed:
			c.recvErr = ErrClosed
		default:
			if errors.Is(cause, io.EOF) {
				c.recvErr = ErrConnectionClosed
			} else {
				c.recvErr = fmt.Errorf("hub: connection lost: %w", cause)
			}
		}
	}
	for corr, ch := range c.pending {
		delete(c.pending, corr)
		close(ch)
	}
	c.mu.Unlock()
}

func (c *Client) keepaliveLoop(interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), keepalivePingTimeout)
			_, err := c.roundTrip(ctx, protocol.MsgPing, 0, nil)
			cancel()
			if err != nil {
				c.log.Debug("keepalive ping failed", zap.Error(err))
			}
		}
	}
}

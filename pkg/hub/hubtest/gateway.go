// Package hubtest runs an in-process fabric gateway for tests. It
// speaks just enough of the protocol to exercise a client: handshake
// with optional token check, method dispatch to registered handlers,
// event recording with acks, and ping answers.
package hubtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ziyasal/iotedge/pkg/netstack"
	"github.com/ziyasal/iotedge/pkg/protocol"
	"github.com/ziyasal/iotedge/pkg/protocol/codec"
	"github.com/ziyasal/iotedge/pkg/transport"
)

// MethodHandler answers one method call.
type MethodHandler func(call protocol.MethodCall) (status int, payload json.RawMessage)

// Gateway is a test fabric endpoint. Configure before Start; handlers
// may be swapped while running.
type Gateway struct {
	mu            sync.Mutex
	handlers      map[string]MethodHandler
	events        *eventStore
	methodCalls   int
	requireToken  bool
	token         string
	dropEventAcks bool
	sessions      map[int]transport.Session
	nextSession   int

	ln     transport.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGateway() *Gateway {
	return &Gateway{
		handlers: make(map[string]MethodHandler),
		events:   newEventStore(0, 0),
		sessions: make(map[int]transport.Session),
	}
}

// RetainEvents bounds the journal like a gateway's store-and-forward
// queue: entries expire after ttl and at most max are kept. Zero
// disables either bound.
func (g *Gateway) RetainEvents(ttl time.Duration, max int) {
	g.mu.Lock()
	g.events = newEventStore(ttl, max)
	g.mu.Unlock()
}

// RequireToken makes the handshake demand this exact token.
func (g *Gateway) RequireToken(token string) {
	g.mu.Lock()
	g.requireToken = true
	g.token = token
	g.mu.Unlock()
}

// DropEventAcks silently swallows events so publish waits time out.
func (g *Gateway) DropEventAcks(drop bool) {
	g.mu.Lock()
	g.dropEventAcks = drop
	g.mu.Unlock()
}

// HandleMethod routes calls for device/module to handler.
func (g *Gateway) HandleMethod(device, module string, handler MethodHandler) {
	g.mu.Lock()
	g.handlers[device+"/"+module] = handler
	g.mu.Unlock()
}

// Events snapshots the recorded telemetry in arrival order.
func (g *Gateway) Events() []protocol.Event {
	g.mu.Lock()
	store := g.events
	g.mu.Unlock()
	return store.Snapshot()
}

// MethodCalls counts calls seen, handled or not.
func (g *Gateway) MethodCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.methodCalls
}

// Start listens on addr for the given link family and serves sessions
// until Close. It returns the bound address, useful with ":0".
func (g *Gateway) Start(ctx context.Context, kind transport.Kind, addr string) (string, error) {
	tr, err := netstack.NewByKind(kind, netstack.Options{})
	if err != nil {
		return "", err
	}
	ln, err := tr.Listen(ctx, addr)
	if err != nil {
		return "", err
	}
	g.ln = ln

	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.wg.Add(1)
	go g.acceptLoop(ctx)
	return ln.Addr().String(), nil
}

// Close stops accepting and tears down every live session.
func (g *Gateway) Close() {
	if g.cancel != nil {
		g.cancel()
	}
	if g.ln != nil {
		g.ln.Close()
	}
	g.mu.Lock()
	for id, sess := range g.sessions {
		delete(g.sessions, id)
		sess.Close()
	}
	g.mu.Unlock()
	g.wg.Wait()
}

func (g *Gateway) acceptLoop(ctx context.Context) {
	defer g.wg.Done()
	for {
		sess, err := g.ln.Accept(ctx)
		if err != nil {
			return
		}
		g.mu.Lock()
		g.nextSession++
		id := g.nextSession
		g.sessions[id] = sess
		g.mu.Unlock()

		g.wg.Add(1)
		go g.serve(id, sess)
	}
}

func (g *Gateway) serve(id int, sess transport.Session) {
	defer g.wg.Done()
	defer func() {
		g.mu.Lock()
		delete(g.sessions, id)
		g.mu.Unlock()
		sess.Close()
	}()

	for {
		raw, err := sess.ReadFrame()
		if err != nil {
			return
		}
		env, err := protocol.DecodeFrame(raw)
		if err != nil {
			continue
		}
		switch env.Header.Type {
		case protocol.MsgHello:
			g.answerHello(sess, id, env)
		case protocol.MsgMethodCall:
			// Dispatch async so a slow handler cannot stall the
			// session; clients rely on this for timeout tests.
			g.wg.Add(1)
			go func(env protocol.Envelope) {
				defer g.wg.Done()
				g.answerMethodCall(sess, env)
			}(env)
		case protocol.MsgEvent:
			g.recordEvent(sess, env)
		case protocol.MsgPing:
			reply(sess, protocol.MsgPong, env.Header.Correlation, codec.FormatJSON, nil)
		}
	}
}

func (g *Gateway) answerHello(sess transport.Session, id int, env protocol.Envelope) {
	var hello protocol.Hello
	format, err := protocol.DecodeBody(env.Body, &hello)
	if err != nil {
		return
	}
	g.mu.Lock()
	required, token := g.requireToken, g.token
	g.mu.Unlock()

	ack := protocol.HelloAck{Status: protocol.StatusOK, SessionID: fmt.Sprintf("sess-%d", id)}
	if required && hello.Token != token {
		ack = protocol.HelloAck{Status: protocol.StatusUnauthorized, Reason: "bad token"}
	}
	reply(sess, protocol.MsgHelloAck, env.Header.Correlation, format, ack)
}

func (g *Gateway) answerMethodCall(sess transport.Session, env protocol.Envelope) {
	var call protocol.MethodCall
	format, err := protocol.DecodeBody(env.Body, &call)
	if err != nil {
		return
	}
	g.mu.Lock()
	g.methodCalls++
	handler, ok := g.handlers[call.TargetDevice+"/"+call.TargetModule]
	g.mu.Unlock()

	res := protocol.MethodResult{Status: protocol.StatusNotFound}
	if ok {
		status, payload := handler(call)
		res = protocol.MethodResult{Status: status, Payload: payload}
	}
	reply(sess, protocol.MsgMethodResult, env.Header.Correlation, format, res)
}

func (g *Gateway) recordEvent(sess transport.Session, env protocol.Envelope) {
	var ev protocol.Event
	format, err := protocol.DecodeBody(env.Body, &ev)
	if err != nil {
		return
	}
	g.mu.Lock()
	store := g.events
	drop := g.dropEventAcks
	g.mu.Unlock()
	store.Add(ev)

	if drop || env.Header.Flags&protocol.FlagAckRequested == 0 {
		return
	}
	reply(sess, protocol.MsgEventAck, env.Header.Correlation, format,
		protocol.EventAck{Status: protocol.StatusOK, ID: ev.ID})
}

func reply(sess transport.Session, t protocol.MsgType, corr uuid.UUID, format codec.Format, body any) {
	frame, err := protocol.Seal(t, corr, 0, format, body)
	if err != nil {
		return
	}
	sess.WriteFrame(frame)
}

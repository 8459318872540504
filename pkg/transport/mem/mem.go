// Package mem is an in-process transport used by tests. Listeners
// register in a process-global table keyed by address, so a gateway
// started anywhere in the process is reachable by name without sockets.
package mem

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/ziyasal/iotedge/pkg/transport"
)

const sessionBuffer = 64

var registry = struct {
	mu        sync.Mutex
	listeners map[string]*listener
}{listeners: make(map[string]*listener)}

// Transport implements transport.Transport over in-process channels.
type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	if _, ok := registry.listeners[address]; ok {
		return nil, fmt.Errorf("mem: address %q already bound", address)
	}
	l := &listener{
		addr:    memAddr(address),
		pending: make(chan *session, 16),
		closed:  make(chan struct{}),
	}
	registry.listeners[address] = l
	return l, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
	registry.mu.Lock()
	l, ok := registry.listeners[address]
	registry.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("mem: no listener at %q", address)
	}
	client, server := newPair(memAddr("dial:"+address), memAddr(address))
	select {
	case l.pending <- server:
		return client, nil
	case <-l.closed:
		return nil, fmt.Errorf("mem: listener at %q closed", address)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type listener struct {
	addr    memAddr
	pending chan *session
	closed  chan struct{}
	once    sync.Once
}

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
	select {
	case s := <-l.pending:
		return s, nil
	case <-l.closed:
		return nil, net.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *listener) Addr() net.Addr { return l.addr }

func (l *listener) Close() error {
	l.once.Do(func() {
		registry.mu.Lock()
		delete(registry.listeners, string(l.addr))
		registry.mu.Unlock()
		close(l.closed)
	})
	return nil
}

// newPair builds two sessions wired back to back.
func newPair(clientAddr, serverAddr memAddr) (*session, *session) {
	a := &session{
		local:  clientAddr,
		remote: serverAddr,
		in:     make(chan []byte, sessionBuffer),
		closed: make(chan struct{}),
	}
	b := &session{
		local:  serverAddr,
		remote: clientAddr,
		in:     make(chan []byte, sessionBuffer),
		closed: make(chan struct{}),
	}
	a.peer, b.peer = b, a
	return a, b
}

type session struct {
	local  memAddr
	remote memAddr
	in     chan []byte
	peer   *session
	closed chan struct{}
	once   sync.Once
}

func (s *session) Kind() transport.Kind { return transport.KindMem }
func (s *session) LocalAddr() net.Addr  { return s.local }
func (s *session) RemoteAddr() net.Addr { return s.remote }

func (s *session) WriteFrame(b []byte) error {
	if len(b) > transport.MaxFrameSize {
		return transport.ErrFrameTooLarge
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case <-s.closed:
		return net.ErrClosed
	case <-s.peer.closed:
		return io.ErrClosedPipe
	case s.peer.in <- cp:
		return nil
	}
}

func (s *session) ReadFrame() ([]byte, error) {
	// Prefer buffered frames over a racing peer close.
	select {
	case b := <-s.in:
		return b, nil
	default:
	}
	select {
	case b := <-s.in:
		return b, nil
	case <-s.closed:
		return nil, net.ErrClosed
	case <-s.peer.closed:
		select {
		case b := <-s.in:
			return b, nil
		default:
			return nil, io.EOF
		}
	}
}

func (s *session) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type memAddr string

func (a memAddr) Network() string { return "mem" }
func (a memAddr) String() string  { return string(a) }

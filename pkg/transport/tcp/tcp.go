// Package tcp carries frames over plain TCP, the default link to an
// edge gateway. Frames use the shared u32-LE length prefix.
package tcp

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/ziyasal/iotedge/pkg/transport"
)

// Options tunes the dial side. The zero value is usable.
type Options struct {
	// DialTimeout bounds connection establishment when the caller's
	// context carries no deadline of its own.
	DialTimeout time.Duration

	// KeepAlive sets the TCP keep-alive period. Zero keeps the
	// platform default, negative disables keep-alives.
	KeepAlive time.Duration
}

// Transport implements transport.Transport over TCP.
type Transport struct {
	opts Options
}

func New(opts Options) *Transport { return &Transport{opts: opts} }

func (t *Transport) Kind() transport.Kind { return transport.KindTCP }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return &listener{ln: ln}, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
	d := net.Dialer{Timeout: t.opts.DialTimeout, KeepAlive: t.opts.KeepAlive}
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	return newSession(conn), nil
}

type listener struct {
	ln net.Listener
}

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		c, err := l.ln.Accept()
		ch <- result{c, err}
	}()
	select {
	case <-ctx.Done():
		l.ln.Close()
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		return newSession(r.conn), nil
	}
}

func (l *listener) Addr() net.Addr { return l.ln.Addr() }
func (l *listener) Close() error   { return l.ln.Close() }

type session struct {
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newSession(conn net.Conn) *session {
	return &session{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}
}

func (s *session) Kind() transport.Kind { return transport.KindTCP }
func (s *session) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *session) WriteFrame(b []byte) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := transport.WriteFrameTo(s.bw, b); err != nil {
		return err
	}
	return s.bw.Flush()
}

func (s *session) ReadFrame() ([]byte, error) {
	return transport.ReadFrameFrom(s.br)
}

func (s *session) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.conn.Close() })
	return s.closeErr
}

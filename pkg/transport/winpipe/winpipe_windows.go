//go:build windows

// Package winpipe carries frames over Windows named pipes via
// go-winio. Edge gateways on Windows hosts expose a pipe instead of a
// TCP port; addresses may be bare names, which get the \\.\pipe\
// prefix attached.
package winpipe

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"time"

	winio "github.com/Microsoft/go-winio"

	"github.com/ziyasal/iotedge/pkg/transport"
)

// Options tunes the dial side. The zero value is usable.
type Options struct {
	DialTimeout time.Duration
}

// Transport implements transport.Transport over named pipes.
type Transport struct {
	opts Options
}

func New(opts Options) *Transport { return &Transport{opts: opts} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

func pipePath(address string) string {
	if strings.HasPrefix(address, `\\`) {
		return address
	}
	return `\\.\pipe\` + address
}

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	ln, err := winio.ListenPipe(pipePath(address), nil)
	if err != nil {
		return nil, err
	}
	return &listener{ln: ln}, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
	if t.opts.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.DialTimeout)
		defer cancel()
	}
	conn, err := winio.DialPipeContext(ctx, pipePath(address))
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

func (s *session) Kind() transport.Kind { return transport.KindWinPipe }
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

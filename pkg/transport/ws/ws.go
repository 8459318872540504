// Package ws carries frames over WebSocket binary messages using
// gorilla/websocket. Useful when the gateway sits behind an HTTP
// ingress that will not pass raw TCP.
package ws

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ziyasal/iotedge/pkg/transport"
)

// Options tunes the dial side. The zero value is usable.
type Options struct {
	DialTimeout time.Duration

	// Path is the HTTP path the listener serves and the dialer
	// requests when the address carries none. Defaults to "/".
	Path string
}

// Transport implements transport.Transport over WebSocket.
type Transport struct {
	opts Options
}

func New(opts Options) *Transport {
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &Transport{opts: opts}
}

func (t *Transport) Kind() transport.Kind { return transport.KindWebSocket }

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
	url := address
	if !strings.Contains(url, "://") {
		url = "ws://" + url + t.opts.Path
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: t.opts.DialTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	return newSession(conn), nil
}

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	l := &listener{
		ln:      ln,
		pending: make(chan *session, 16),
		closed:  make(chan struct{}),
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc(t.opts.Path, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case l.pending <- newSession(conn):
		case <-l.closed:
			conn.Close()
		}
	})
	l.srv = &http.Server{Handler: mux}
	go l.srv.Serve(ln)
	return l, nil
}

type listener struct {
	ln      net.Listener
	srv     *http.Server
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

func (l *listener) Addr() net.Addr { return l.ln.Addr() }

func (l *listener) Close() error {
	l.once.Do(func() {
		close(l.closed)
		l.srv.Close()
	})
	return nil
}

type session struct {
	conn *websocket.Conn
	wmu  sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newSession(conn *websocket.Conn) *session {
	conn.SetReadLimit(transport.MaxFrameSize)
	return &session{conn: conn}
}

func (s *session) Kind() transport.Kind { return transport.KindWebSocket }
func (s *session) LocalAddr() net.Addr  { return s.conn.LocalAddr() }
func (s *session) RemoteAddr() net.Addr { return s.conn.RemoteAddr() }

func (s *session) WriteFrame(b []byte) error {
	if len(b) > transport.MaxFrameSize {
		return transport.ErrFrameTooLarge
	}
	// gorilla allows one concurrent writer only.
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, b)
}

func (s *session) ReadFrame() ([]byte, error) {
	for {
		typ, b, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if typ != websocket.BinaryMessage {
			continue
		}
		return b, nil
	}
}

func (s *session) Close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		s.wmu.Lock()
		s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		s.wmu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Package transport defines the framed-link contract used to reach the
// fabric gateway. A Transport dials or listens on one link family (tcp,
// websocket, quic, windows named pipe, or the in-process mem link) and
// yields Sessions that exchange length-prefixed frames. Framing is
// identical across families so the protocol layer never cares which
// link carried a frame.
package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
)

// Kind identifies a link family.
type Kind int

const (
	KindUnknown Kind = iota
	KindTCP
	KindWebSocket
	KindQUIC
	KindWinPipe
	KindMem
)

func (k Kind) String() string {
	switch k {
	case KindTCP:
		return "tcp"
	case KindWebSocket:
		return "ws"
	case KindQUIC:
		return "quic"
	case KindWinPipe:
		return "winpipe"
	case KindMem:
		return "mem"
	default:
		return "unknown"
	}
}

// ParseKind maps a config string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tcp":
		return KindTCP, nil
	case "ws", "websocket":
		return KindWebSocket, nil
	case "quic":
		return KindQUIC, nil
	case "winpipe", "npipe":
		return KindWinPipe, nil
	case "mem":
		return KindMem, nil
	default:
		return KindUnknown, fmt.Errorf("transport: unknown kind %q", s)
	}
}

// Session is a single framed connection. WriteFrame and ReadFrame move
// whole frames; partial frames never surface. A Session is not safe for
// concurrent WriteFrame calls from multiple goroutines unless the
// implementation says otherwise; one reader plus one writer is fine.
type Session interface {
	Kind() Kind
	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// WriteFrame sends one frame. It blocks until the frame is handed
	// to the link or the session fails.
	WriteFrame(b []byte) error

	// ReadFrame blocks for the next frame. It returns io.EOF once the
	// peer closes cleanly.
	ReadFrame() ([]byte, error)

	Close() error
}

// Listener accepts inbound sessions for one bound address.
type Listener interface {
	Accept(ctx context.Context) (Session, error)
	Addr() net.Addr
	Close() error
}

// Transport is one link family.
type Transport interface {
	Kind() Kind
	Listen(ctx context.Context, address string) (Listener, error)
	Dial(ctx context.Context, address string) (Session, error)
}

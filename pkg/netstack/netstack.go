// Package netstack maps a configured link family to its transport
// implementation. The probe picks one family at startup; nothing here
// keeps state beyond the options handed to the constructors.
package netstack

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/ziyasal/iotedge/pkg/transport"
	"github.com/ziyasal/iotedge/pkg/transport/mem"
	"github.com/ziyasal/iotedge/pkg/transport/quic"
	"github.com/ziyasal/iotedge/pkg/transport/tcp"
	"github.com/ziyasal/iotedge/pkg/transport/winpipe"
	"github.com/ziyasal/iotedge/pkg/transport/ws"
)

// ErrUnknownKind reports a kind no factory covers.
var ErrUnknownKind = fmt.Errorf("netstack: unknown transport kind")

// Options carries the per-family tuning a probe config resolves to.
type Options struct {
	DialTimeout time.Duration
	KeepAlive   time.Duration

	// TLS applies to QUIC. Nil means the development config.
	TLS *tls.Config

	// WSPath is the HTTP path for websocket links. Empty means "/".
	WSPath string
}

// NewByKind builds the transport for one link family.
func NewByKind(kind transport.Kind, opts Options) (transport.Transport, error) {
	switch kind {
	case transport.KindTCP:
		return tcp.New(tcp.Options{DialTimeout: opts.DialTimeout, KeepAlive: opts.KeepAlive}), nil
	case transport.KindWebSocket:
		return ws.New(ws.Options{DialTimeout: opts.DialTimeout, Path: opts.WSPath}), nil
	case transport.KindQUIC:
		return quic.New(quic.Options{TLS: opts.TLS, DialTimeout: opts.DialTimeout, KeepAlive: opts.KeepAlive}), nil
	case transport.KindWinPipe:
		return winpipe.New(winpipe.Options{DialTimeout: opts.DialTimeout}), nil
	case transport.KindMem:
		return mem.New(), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
	}
}

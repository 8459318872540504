//go:build !windows

// Package winpipe carries frames over Windows named pipes. On other
// platforms every operation reports ErrUnsupported.
package winpipe

import (
	"context"
	"errors"
	"time"

	"github.com/ziyasal/iotedge/pkg/transport"
)

// ErrUnsupported reports that named pipes exist only on Windows.
var ErrUnsupported = errors.New("winpipe: named pipes are windows-only")

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

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	return nil, ErrUnsupported
}

func (t *Transport) Dial(ctx context.Context, address string) (transport.Session, error) {
	return nil, ErrUnsupported
}

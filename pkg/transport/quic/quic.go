// Package quic carries frames over a single bidirectional QUIC stream.
// The dialing side opens the stream and must speak first; the fabric
// handshake does exactly that, so stream setup costs no extra round trip.
package quic

import (
	"bufio"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"time"

	quicgo "github.com/quic-go/quic-go"

	"github.com/ziyasal/iotedge/pkg/transport"
)

const alpnProto = "iotedge-fabric"

// Options tunes both sides. The zero value is usable for development:
// the listener self-signs and the dialer skips verification.
type Options struct {
	// TLS overrides the generated development config. Production
	// deployments must set it on both ends.
	TLS *tls.Config

	DialTimeout time.Duration
	KeepAlive   time.Duration
}

// Transport implements transport.Transport over QUIC.
type Transport struct {
	opts Options
}

func New(opts Options) *Transport { return &Transport{opts: opts} }

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) quicConfig() *quicgo.Config {
	cfg := &quicgo.Config{MaxIdleTimeout: 30 * time.Second}
	if t.opts.KeepAlive > 0 {
		cfg.KeepAlivePeriod = t.opts.KeepAlive
	}
	return cfg
}

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
	tlsConf := t.opts.TLS
	if tlsConf == nil {
		var err error
		tlsConf, err = selfSignedConfig()
		if err != nil {
			return nil, err
		}
	} else {
		tlsConf = tlsConf.Clone()
	}
	tlsConf.NextProtos = append(tlsConf.NextProtos, alpnProto)
	ln, err := quicgo.ListenAddr(address, tlsConf, t.quicConfig())
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
	tlsConf := t.opts.TLS
	if tlsConf == nil {
		tlsConf = &tls.Config{InsecureSkipVerify: true}
	} else {
		tlsConf = tlsConf.Clone()
	}
	tlsConf.NextProtos = append(tlsConf.NextProtos, alpnProto)
	conn, err := quicgo.DialAddr(ctx, address, tlsConf, t.quicConfig())
	if err != nil {
		return nil, err
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		conn.CloseWithError(0, "stream open failed")
		return nil, err
	}
	return newSession(conn, stream), nil
}

type listener struct {
	ln *quicgo.Listener
}

func (l *listener) Accept(ctx context.Context) (transport.Session, error) {
	conn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		conn.CloseWithError(0, "stream accept failed")
		return nil, err
	}
	return newSession(conn, stream), nil
}

func (l *listener) Addr() net.Addr { return l.ln.Addr() }
func (l *listener) Close() error   { return l.ln.Close() }

type session struct {
	conn   quicgo.Connection
	stream quicgo.Stream
	br     *bufio.Reader
	bw     *bufio.Writer

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func newSession(conn quicgo.Connection, stream quicgo.Stream) *session {
	return &session{
		conn:   conn,
		stream: stream,
		br:     bufio.NewReader(stream),
		bw:     bufio.NewWriter(stream),
	}
}

func (s *session) Kind() transport.Kind { return transport.KindQUIC }
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
	s.closeOnce.Do(func() {
		s.stream.Close()
		s.closeErr = s.conn.CloseWithError(0, "")
	})
	return s.closeErr
}

// selfSignedConfig builds a throwaway ECDSA cert for development and
// in-process tests.
func selfSignedConfig() (*tls.Config, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "iotedge-dev"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
	}, nil
}

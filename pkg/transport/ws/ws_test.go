package ws

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/ziyasal/iotedge/pkg/transport"
)

func TestDialListenRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr := New(Options{DialTimeout: 2 * time.Second})
	ln, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	type accepted struct {
		sess transport.Session
		err  error
	}
	acceptCh := make(chan accepted, 1)
	go func() {
		s, err := ln.Accept(ctx)
		acceptCh <- accepted{s, err}
	}()

	client, err := tr.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	a := <-acceptCh
	if a.err != nil {
		t.Fatalf("accept: %v", a.err)
	}
	defer a.sess.Close()

	want := []byte("telemetry-event")
	if err := client.WriteFrame(want); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := a.sess.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("frame mismatch: %q", got)
	}
}

func TestCleanCloseReadsEOF(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr := New(Options{})
	ln, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	acceptCh := make(chan transport.Session, 1)
	go func() {
		s, err := ln.Accept(ctx)
		if err == nil {
			acceptCh <- s
		}
	}()

	client, err := tr.Dial(ctx, ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	server := <-acceptCh
	defer server.Close()

	client.Close()
	if _, err := server.ReadFrame(); err != io.EOF {
		t.Fatalf("expected io.EOF on clean peer close, got %v", err)
	}
}

func TestURLAddressForm(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr := New(Options{Path: "/edge"})
	ln, err := tr.Listen(ctx, "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	go func() {
		if s, err := ln.Accept(ctx); err == nil {
			defer s.Close()
			if b, err := s.ReadFrame(); err == nil {
				s.WriteFrame(b)
			}
		}
	}()

	client, err := tr.Dial(ctx, "ws://"+ln.Addr().String()+"/edge")
	if err != nil {
		t.Fatalf("dial with full url: %v", err)
	}
	defer client.Close()

	if err := client.WriteFrame([]byte("echo")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := client.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "echo" {
		t.Fatalf("unexpected echo %q", got)
	}
}

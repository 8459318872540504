package transport

import (
	"bytes"
	"io"
	"testing"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"tcp":       KindTCP,
		"ws":        KindWebSocket,
		"websocket": KindWebSocket,
		"QUIC":      KindQUIC,
		"winpipe":   KindWinPipe,
		"npipe":     KindWinPipe,
		" mem ":     KindMem,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil {
			t.Fatalf("ParseKind(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseKind(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseKind("carrier-pigeon"); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestKindString(t *testing.T) {
	if KindTCP.String() != "tcp" || KindMem.String() != "mem" {
		t.Fatal("kind string mismatch")
	}
	if Kind(99).String() != "unknown" {
		t.Fatal("out-of-range kind should stringify as unknown")
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello fabric")
	if err := WriteFrameTo(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFrameFrom(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("frame mismatch: got %q", got)
	}
}

func TestFrameEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrameTo(&buf, nil); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	got, err := ReadFrameFrom(&buf)
	if err != nil {
		t.Fatalf("read empty: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty frame, got %d bytes", len(got))
	}
}

func TestFrameTooLargeHeader(t *testing.T) {
	// 0xFFFFFFFF length prefix must be rejected before any allocation.
	buf := bytes.NewReader([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	if _, err := ReadFrameFrom(buf); err != ErrFrameTooLarge {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}

func TestFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrameTo(&buf, []byte("abcdef")); err != nil {
		t.Fatalf("write: %v", err)
	}
	short := bytes.NewReader(buf.Bytes()[:buf.Len()-2])
	if _, err := ReadFrameFrom(short); err != io.ErrUnexpectedEOF {
		t.Fatalf("expected ErrUnexpectedEOF, got %v", err)
	}
}

package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestFrameRoundTrip(t *testing.T) {
	in := Envelope{
		Header: Header{Type: MsgMethodResult, Correlation: uuid.New()},
		Body:   []byte("body bytes"),
	}
	frame, err := EncodeFrame(&in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(frame) != HeaderSize+len(in.Body) {
		t.Fatalf("frame length %d", len(frame))
	}
	out, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Header.Type != in.Header.Type || out.Header.Correlation != in.Header.Correlation {
		t.Fatalf("header mismatch: %+v", out.Header)
	}
	if out.Header.PayloadLen != uint32(len(in.Body)) {
		t.Fatalf("payload length not derived from body: %d", out.Header.PayloadLen)
	}
	if !bytes.Equal(out.Body, in.Body) {
		t.Fatalf("body mismatch: %q", out.Body)
	}
}

func TestEncodeFrameBodyless(t *testing.T) {
	frame, err := EncodeFrame(&Envelope{Header: Header{Type: MsgPing, Correlation: uuid.New()}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(frame) != HeaderSize {
		t.Fatalf("bodyless frame should be header only, got %d bytes", len(frame))
	}
	out, err := DecodeFrame(frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Body) != 0 {
		t.Fatalf("expected empty body, got %d bytes", len(out.Body))
	}
}

func TestDecodeFrameLengthMismatch(t *testing.T) {
	frame, err := EncodeFrame(&Envelope{
		Header: Header{Type: MsgEvent, Correlation: uuid.New()},
		Body:   []byte("0123456789"),
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	truncated := frame[:len(frame)-3]
	if _, err := DecodeFrame(truncated); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

package protocol

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestHeaderRoundTrip(t *testing.T) {
	in := Header{
		Type:        MsgMethodCall,
		Flags:       FlagAckRequested,
		PayloadLen:  512,
		Correlation: uuid.New(),
	}
	var buf [HeaderSize]byte
	if err := EncodeHeader(buf[:], in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := DecodeHeader(buf[:])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch:\n in: %+v\nout: %+v", in, out)
	}
}

func TestHeaderWireLayout(t *testing.T) {
	corr := uuid.New()
	var buf [HeaderSize]byte
	err := EncodeHeader(buf[:], Header{Type: MsgEvent, PayloadLen: 7, Correlation: corr})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if buf[0] != 'E' || buf[1] != 'H' {
		t.Fatalf("magic bytes: % x", buf[:2])
	}
	if buf[2] != Version {
		t.Fatalf("version byte: %d", buf[2])
	}
	if MsgType(buf[3]) != MsgEvent {
		t.Fatalf("type byte: %d", buf[3])
	}
	if got := binary.LittleEndian.Uint32(buf[8:12]); got != 7 {
		t.Fatalf("payload length field: %d", got)
	}
	if got := uuid.UUID(buf[12:28]); got != corr {
		t.Fatalf("correlation field: %v", got)
	}
}

func TestDecodeHeaderRejectsCorruption(t *testing.T) {
	var buf [HeaderSize]byte
	if err := EncodeHeader(buf[:], Header{Type: MsgPing}); err != nil {
		t.Fatalf("encode: %v", err)
	}

	short := buf[:HeaderSize-1]
	if _, err := DecodeHeader(short); !errors.Is(err, ErrShortHeader) {
		t.Fatalf("short buffer: expected ErrShortHeader, got %v", err)
	}

	bad := buf
	bad[0] = 'X'
	if _, err := DecodeHeader(bad[:]); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("bad magic: expected ErrBadMagic, got %v", err)
	}

	bad = buf
	bad[2] = Version + 9
	if _, err := DecodeHeader(bad[:]); !errors.Is(err, ErrBadVersion) {
		t.Fatalf("bad version: expected ErrBadVersion, got %v", err)
	}
}

package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize caps a single frame. Anything larger aborts the session
// rather than ballooning memory on a corrupt or hostile length prefix.
const MaxFrameSize = 1 << 24

// ErrFrameTooLarge reports a frame exceeding MaxFrameSize on either side.
var ErrFrameTooLarge = fmt.Errorf("transport: frame exceeds %d bytes", MaxFrameSize)

// WriteFrameTo writes one u32-LE length-prefixed frame to w.
// Stream-oriented families (tcp, winpipe, quic) share this framing.
func WriteFrameTo(w io.Writer, b []byte) error {
	if len(b) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(b)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadFrameFrom reads one u32-LE length-prefixed frame from r.
func ReadFrameFrom(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	n := binary.LittleEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

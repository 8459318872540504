package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// HeaderSize is the fixed byte length of the wire header.
//
// Layout, little-endian:
//
//	[0:2]   magic 'E','H'
//	[2]     version
//	[3]     message type
//	[4:6]   flags
//	[6:8]   reserved
//	[8:12]  payload length
//	[12:28] correlation id (uuid bytes)
//	[28:32] reserved
const HeaderSize = 32

const (
	// Magic marks a frame as ours; 'E','H' on the wire.
	Magic uint16 = 0x4845

	// Version is the current header version.
	Version uint8 = 1
)

var (
	ErrShortHeader = errors.New("protocol: header shorter than 32 bytes")
	ErrBadMagic    = errors.New("protocol: bad magic")
	ErrBadVersion  = errors.New("protocol: unsupported version")
)

// Header is the decoded fixed region of a frame.
type Header struct {
	Type        MsgType
	Flags       uint16
	PayloadLen  uint32
	Correlation uuid.UUID
}

// EncodeHeader writes h into dst, which must hold HeaderSize bytes.
func EncodeHeader(dst []byte, h Header) error {
	if len(dst) < HeaderSize {
		return ErrShortHeader
	}
	binary.LittleEndian.PutUint16(dst[0:2], Magic)
	dst[2] = Version
	dst[3] = byte(h.Type)
	binary.LittleEndian.PutUint16(dst[4:6], h.Flags)
	binary.LittleEndian.PutUint16(dst[6:8], 0)
	binary.LittleEndian.PutUint32(dst[8:12], h.PayloadLen)
	copy(dst[12:28], h.Correlation[:])
	binary.LittleEndian.PutUint32(dst[28:32], 0)
	return nil
}

// DecodeHeader parses the fixed region from b.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortHeader
	}
	if binary.LittleEndian.Uint16(b[0:2]) != Magic {
		return Header{}, ErrBadMagic
	}
	if b[2] != Version {
		return Header{}, fmt.Errorf("%w: %d", ErrBadVersion, b[2])
	}
	h := Header{
		Type:       MsgType(b[3]),
		Flags:      binary.LittleEndian.Uint16(b[4:6]),
		PayloadLen: binary.LittleEndian.Uint32(b[8:12]),
	}
	copy(h.Correlation[:], b[12:28])
	return h, nil
}

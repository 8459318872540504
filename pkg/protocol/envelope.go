package protocol

import (
	"errors"
	"fmt"
)

// MaxPayload caps a body; matches the transport frame cap minus header.
const MaxPayload = 1<<24 - HeaderSize

var (
	ErrPayloadTooLarge = errors.New("protocol: payload exceeds cap")
	ErrLengthMismatch  = errors.New("protocol: header length disagrees with frame")
	errNilEnvelope     = errors.New("protocol: nil envelope")
)

// Envelope pairs a header with its raw body bytes.
type Envelope struct {
	Header Header
	Body   []byte
}

// EncodeFrame serializes env into a single transport frame. The
// header's PayloadLen is set from the body; callers never fill it.
func EncodeFrame(env *Envelope) ([]byte, error) {
	if env == nil {
		return nil, errNilEnvelope
	}
	if len(env.Body) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(env.Body))
	}
	env.Header.PayloadLen = uint32(len(env.Body))
	frame := make([]byte, HeaderSize+len(env.Body))
	if err := EncodeHeader(frame[:HeaderSize], env.Header); err != nil {
		return nil, err
	}
	copy(frame[HeaderSize:], env.Body)
	return frame, nil
}

// DecodeFrame parses one transport frame. The returned body aliases
// the input; callers that keep it past the frame's lifetime must copy.
func DecodeFrame(frame []byte) (Envelope, error) {
	h, err := DecodeHeader(frame)
	if err != nil {
		return Envelope{}, err
	}
	if int(h.PayloadLen) != len(frame)-HeaderSize {
		return Envelope{}, fmt.Errorf("%w: header says %d, frame carries %d",
			ErrLengthMismatch, h.PayloadLen, len(frame)-HeaderSize)
	}
	return Envelope{Header: h, Body: frame[HeaderSize:]}, nil
}

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ziyasal/iotedge/pkg/protocol/codec"
)

// Bodies are format-prefixed: one codec.Format byte, then the encoded
// struct. Ping and Pong carry no body at all.

// Hello opens a session; the gateway answers with HelloAck.
type Hello struct {
	DeviceID string `json:"device_id"`
	ModuleID string `json:"module_id"`
	Token    string `json:"token,omitempty"`
	SentAt   int64  `json:"sent_at"` // unix ms
}

// HelloAck accepts or refuses a session.
type HelloAck struct {
	Status    int    `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// MethodCall asks the fabric to invoke a named method on a module.
type MethodCall struct {
	TargetDevice   string          `json:"target_device"`
	TargetModule   string          `json:"target_module"`
	Name           string          `json:"name"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	TimeoutSeconds uint32          `json:"timeout_seconds,omitempty"`
}

// MethodResult carries the target's response back to the caller.
type MethodResult struct {
	Status  int             `json:"status"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event is one telemetry message routed upstream by the fabric.
type Event struct {
	ID         string          `json:"id"`
	DeviceID   string          `json:"device_id"`
	ModuleID   string          `json:"module_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt int64           `json:"enqueued_at"` // unix ms
}

// EventAck confirms the gateway accepted an event.
type EventAck struct {
	Status int    `json:"status"`
	ID     string `json:"id"`
}

var ErrEmptyBody = errors.New("protocol: empty body")

// EncodeBody serializes v with the codec for f and prepends the format
// byte.
func EncodeBody(f codec.Format, v any) ([]byte, error) {
	c, err := codec.Default().Get(f)
	if err != nil {
		return nil, err
	}
	enc, err := c.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 1+len(enc))
	out[0] = byte(f)
	copy(out[1:], enc)
	return out, nil
}

// DecodeBody reads the format byte, decodes the rest into v, and
// reports which format the sender used.
func DecodeBody(b []byte, v any) (codec.Format, error) {
	if len(b) == 0 {
		return codec.FormatUnknown, ErrEmptyBody
	}
	f := codec.Format(b[0])
	c, err := codec.Default().Get(f)
	if err != nil {
		return f, err
	}
	if err := c.Unmarshal(b[1:], v); err != nil {
		return f, fmt.Errorf("protocol: decode %v body: %w", f, err)
	}
	return f, nil
}

// Seal builds a complete frame: header plus format-prefixed body.
// A nil v produces a bodyless frame (ping, pong).
func Seal(t MsgType, corr uuid.UUID, flags uint16, f codec.Format, v any) ([]byte, error) {
	env := Envelope{Header: Header{Type: t, Flags: flags, Correlation: corr}}
	if v != nil {
		body, err := EncodeBody(f, v)
		if err != nil {
			return nil, err
		}
		env.Body = body
	}
	return EncodeFrame(&env)
}

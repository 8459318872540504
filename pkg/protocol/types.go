// Package protocol defines the framed wire format spoken between a
// module client and the fabric gateway: a fixed little-endian header
// carrying type, flags and a correlation id, followed by a
// format-prefixed body. Request/response pairs share a correlation id;
// everything else about sequencing lives above this package.
package protocol

// MsgType identifies the message carried by a frame.
type MsgType uint8

const (
	MsgUnknown MsgType = iota
	MsgHello
	MsgHelloAck
	MsgMethodCall
	MsgMethodResult
	MsgEvent
	MsgEventAck
	MsgPing
	MsgPong
)

func (t MsgType) String() string {
	switch t {
	case MsgHello:
		return "hello"
	case MsgHelloAck:
		return "hello_ack"
	case MsgMethodCall:
		return "method_call"
	case MsgMethodResult:
		return "method_result"
	case MsgEvent:
		return "event"
	case MsgEventAck:
		return "event_ack"
	case MsgPing:
		return "ping"
	case MsgPong:
		return "pong"
	default:
		return "unknown"
	}
}

// Header flags.
const (
	// FlagAckRequested asks the receiver to answer with the matching
	// ack type. Method calls imply a response and do not set it.
	FlagAckRequested uint16 = 1 << 0
)

// Status codes carried in result and ack bodies. HTTP-style so method
// handlers can pass through familiar values.
const (
	StatusOK             = 200
	StatusBadRequest     = 400
	StatusUnauthorized   = 401
	StatusNotFound       = 404
	StatusError          = 500
	StatusNotImplemented = 501
	StatusTimeout        = 504
)

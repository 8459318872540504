// Package codec serializes protocol bodies. Every body on the wire is
// tagged with a one-byte Format so both ends can mix encodings on a
// single session; the probe picks one per config and sticks to it.
package codec

import (
	"fmt"
	"strings"
)

// Format tags the encoding of a body.
type Format uint8

const (
	FormatUnknown Format = 0
	FormatJSON    Format = 1
	FormatCBOR    Format = 2
	FormatProto   Format = 3
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCBOR:
		return "cbor"
	case FormatProto:
		return "proto"
	default:
		return "unknown"
	}
}

// ParseFormat maps a config string to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "cbor":
		return FormatCBOR, nil
	case "proto", "protobuf":
		return FormatProto, nil
	default:
		return FormatUnknown, fmt.Errorf("codec: unknown format %q", s)
	}
}

// Codec marshals and unmarshals one encoding.
type Codec interface {
	Format() Format
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry resolves a Format to its Codec.
type Registry struct {
	codecs map[Format]Codec
}

// NewRegistry returns a registry with the built-in codecs registered.
func NewRegistry() *Registry {
	r := &Registry{codecs: make(map[Format]Codec)}
	r.Register(JSON{})
	r.Register(CBOR{})
	r.Register(Proto{})
	return r
}

// Register adds or replaces the codec for its format.
func (r *Registry) Register(c Codec) {
	r.codecs[c.Format()] = c
}

// Get resolves a format. Unknown formats error rather than guessing.
func (r *Registry) Get(f Format) (Codec, error) {
	c, ok := r.codecs[f]
	if !ok {
		return nil, fmt.Errorf("codec: no codec registered for format %v", f)
	}
	return c, nil
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry with the built-ins.
func Default() *Registry { return defaultRegistry }

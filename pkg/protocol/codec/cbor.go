package codec

import "github.com/fxamacker/cbor/v2"

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic("codec: cbor enc mode: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("codec: cbor dec mode: " + err.Error())
	}
}

// CBOR is the compact binary encoding, canonical form so equal bodies
// produce equal bytes.
type CBOR struct{}

func (CBOR) Format() Format { return FormatCBOR }

func (CBOR) Marshal(v any) ([]byte, error) { return cborEnc.Marshal(v) }

func (CBOR) Unmarshal(data []byte, v any) error { return cborDec.Unmarshal(data, v) }

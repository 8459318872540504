package codec

import "encoding/json"

// JSON is the default body encoding. Interoperable with anything, and
// the payloads this probe moves are tiny.
type JSON struct{}

func (JSON) Format() Format { return FormatJSON }

func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

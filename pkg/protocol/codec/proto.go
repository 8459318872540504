package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Proto handles protobuf bodies. Values must implement proto.Message;
// anything else is a caller bug, not a wire condition.
type Proto struct{}

func (Proto) Format() Format { return FormatProto }

func (Proto) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("codec: proto marshal needs proto.Message, got %T", v)
	}
	return proto.Marshal(m)
}

func (Proto) Unmarshal(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("codec: proto unmarshal needs proto.Message, got %T", v)
	}
	return proto.Unmarshal(data, m)
}

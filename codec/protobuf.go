package codec

import (
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type Protobuf[T proto.Message] struct {
	new func() T // constructor for a concrete message (e.g., func() *mypb.User { return &mypb.User{} })
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}

// ProtoValue carries dynamic values as google.protobuf.Value. Only JSON-like
// shapes survive: nil, bool, numbers (decoded as float64), strings, []any and
// map[string]any. []byte encodes as a base64 string.
type ProtoValue struct{}

func (ProtoValue) Encode(v any) ([]byte, error) {
	pv, err := structpb.NewValue(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(pv)
}

func (ProtoValue) Decode(b []byte) (any, error) {
	var pv structpb.Value
	if err := proto.Unmarshal(b, &pv); err != nil {
		return nil, err
	}
	return pv.AsInterface(), nil
}

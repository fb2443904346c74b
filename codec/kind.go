package codec

import (
	"fmt"
	"strings"

	"github.com/unkn0wn-root/cachette/codec/table"
)

// Kind selects one dynamic codec variant.
type Kind uint8

const (
	KindVanilla Kind = iota + 1
	KindJSON
	KindFastJSON
	KindCBOR
	KindMsgpack
	KindProtobuf
	KindCSV
	KindFeather
	KindParquet
)

var kindNames = map[Kind]string{
	KindVanilla:  "vanilla",
	KindJSON:     "json",
	KindFastJSON: "fastjson",
	KindCBOR:     "cbor",
	KindMsgpack:  "msgpack",
	KindProtobuf: "protobuf",
	KindCSV:      "csv",
	KindFeather:  "feather",
	KindParquet:  "parquet",
}

// legacy names accepted by ParseKind
var kindAliases = map[string]Kind{
	"orjson": KindFastJSON,
	"pickle": KindCBOR,
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Tabular reports whether the kind only accepts frame values.
func (k Kind) Tabular() bool {
	return k == KindCSV || k == KindFeather || k == KindParquet
}

// ParseKind resolves a config name (case-insensitive, aliases included).
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	k, ok := kindAliases[name]
	return k, ok
}

// Kinds lists every canonical kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindNames))
	for k := KindVanilla; k <= KindParquet; k++ {
		out = append(out, k)
	}
	return out
}

func build(kind Kind, s settings) (Codec[any], error) {
	switch kind {
	case KindVanilla:
		return Vanilla{}, nil
	case KindJSON:
		return JSON[any]{}, nil
	case KindFastJSON:
		return FastJSON[any]{}, nil
	case KindCBOR:
		return NewCBOR[any](s.det)
	case KindMsgpack:
		return Msgpack[any]{}, nil
	case KindProtobuf:
		return ProtoValue{}, nil
	case KindCSV:
		return table.CSV{}, nil
	case KindFeather:
		return table.Feather{}, nil
	case KindParquet:
		return table.Parquet{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

package codec

import "fmt"

// Bytes is an identity codec for []byte values.
type Bytes struct{}

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String is a trivial codec for Go string values. By convention this assumes
// UTF-8 and performs no validation.
type String struct{}

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }

// Vanilla stores the plain text form of a value. Strings and byte slices are
// kept as is, anything else goes through fmt. Decode always returns a string.
type Vanilla struct{}

func (Vanilla) Encode(v any) ([]byte, error) {
	switch x := v.(type) {
	case nil:
		return nil, fmt.Errorf("vanilla: cannot encode nil")
	case string:
		return []byte(x), nil
	case []byte:
		return append([]byte(nil), x...), nil
	default:
		return []byte(fmt.Sprint(x)), nil
	}
}

func (Vanilla) Decode(b []byte) (any, error) { return string(b), nil }

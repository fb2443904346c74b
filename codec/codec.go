// Package codec turns cached values into bytes and back.
//
// Typed codecs (JSON[V], CBOR[V], Msgpack[V], Protobuf[T], String, Bytes) are
// meant for library users with a concrete value type. Backends work with
// Codec[any] values built by New, which also classifies every failure as an
// *Error matching ErrEncode or ErrDecode.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

type settings struct {
	maxDecode int
	det       bool
}

type Option func(*settings)

// WithMaxDecode rejects payloads longer than n bytes before decoding.
// n <= 0 disables the limit.
func WithMaxDecode(n int) Option { return func(s *settings) { s.maxDecode = n } }

// WithDeterministic makes the cbor codec emit canonical (core deterministic) bytes.
func WithDeterministic() Option { return func(s *settings) { s.det = true } }

// New builds the dynamic codec for kind.
func New(kind Kind, opts ...Option) (Codec[any], error) {
	var s settings
	for _, o := range opts {
		o(&s)
	}

	inner, err := build(kind, s)
	if err != nil {
		return nil, err
	}
	if s.maxDecode > 0 {
		inner = Limit[any]{Inner: inner, MaxDecode: s.maxDecode}
	}
	return classified{name: kind.String(), inner: inner}, nil
}

// classified maps every inner failure to *Error so callers can rely on
// errors.Is(err, ErrEncode/ErrDecode) regardless of the variant.
type classified struct {
	name  string
	inner Codec[any]
}

func (c classified) Encode(v any) ([]byte, error) {
	b, err := c.inner.Encode(v)
	if err != nil {
		return nil, &Error{Codec: c.name, Op: OpEncode, Err: err}
	}
	return b, nil
}

func (c classified) Decode(b []byte) (any, error) {
	v, err := c.inner.Decode(b)
	if err != nil {
		return nil, &Error{Codec: c.name, Op: OpDecode, Err: err}
	}
	return v, nil
}

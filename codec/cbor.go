package codec

import (
	"math/big"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Set is an unordered collection, carried on the wire as CBOR tag 258.
// Element order is preserved as written.
type Set []any

// Decimal is an arbitrary precision decimal Mant * 10^Exp (CBOR tag 4).
type Decimal struct {
	_    struct{} `cbor:",toarray"`
	Exp  int64
	Mant *big.Int
}

func NewDecimal(mant, exp int64) Decimal {
	return Decimal{Exp: exp, Mant: big.NewInt(mant)}
}

// Equal compares exponent and mantissa.
func (d Decimal) Equal(o Decimal) bool {
	if d.Exp != o.Exp {
		return false
	}
	if d.Mant == nil || o.Mant == nil {
		return d.Mant == o.Mant
	}
	return d.Mant.Cmp(o.Mant) == 0
}

const (
	tagDecimal = 4
	tagSet     = 258
)

// CBOR is a Codec that serializes values using fxamacker/cbor.
// The zero value is NOT ready to use. Construct with NewCBOR or MustCBOR.
//
// Times are tagged (tag 0, RFC3339Nano) and come back as time.Time even when
// decoding into any. Set and Decimal round trip through their tags, integers
// decode as int64 (big.Int past its range) and maps as map[string]any.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

func tags() (cbor.TagSet, error) {
	ts := cbor.NewTagSet()
	opts := cbor.TagOptions{EncTag: cbor.EncTagRequired, DecTag: cbor.DecTagRequired}
	if err := ts.Add(opts, reflect.TypeOf(Set(nil)), tagSet); err != nil {
		return nil, err
	}
	if err := ts.Add(opts, reflect.TypeOf(Decimal{}), tagDecimal); err != nil {
		return nil, err
	}
	return ts, nil
}

// NewCBOR constructs a CBOR codec.
//   - Deterministic is true, uses CoreDetEncOptions (RFC 8949).
//   - Otherwise uses PreferredUnsortedEncOptions (smaller/faster defaults).
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano
	eo.TimeTag = cbor.EncTagRequired

	ts, err := tags()
	if err != nil {
		return CBOR[V]{}, err
	}
	em, err := eo.EncModeWithTags(ts)
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSignedOrBigInt,
	}.DecModeWithTags(ts)
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error.
// Should not use for prod just handy for package-level variables in tests/examples.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}

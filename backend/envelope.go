package backend

import (
	"time"

	"github.com/unkn0wn-root/cachette/codec"
	"github.com/unkn0wn-root/cachette/internal/wire"
)

// Seal encodes v and frames it with its absolute expiry, for stores that
// only keep opaque bytes.
func (o Options) Seal(v any, ttl time.Duration) ([]byte, error) {
	payload, err := o.Codec.Encode(v)
	if err != nil {
		return nil, err
	}
	exp := wire.ExpiresAt(o.Now(), o.TTLFor(ttl))
	return wire.EncodeEntry(wire.Envelope{ExpiresAt: exp, Payload: payload}), nil
}

// Unseal reverses Seal. An expired entry reports live=false and is not
// decoded. Malformed frames fail as decode errors, never as misses.
func (o Options) Unseal(b []byte) (v any, remaining int, live bool, err error) {
	e, err := wire.DecodeEntry(b)
	if err != nil {
		return nil, 0, false, codec.Decoding("envelope", err)
	}
	now := o.Now()
	if !e.Live(now) {
		return nil, TTLExpired, false, nil
	}
	v, err = o.Codec.Decode(e.Payload)
	if err != nil {
		return nil, 0, false, err
	}
	return v, e.Remaining(now), true, nil
}

// Live reports whether a framed entry is still live without decoding its
// payload. Corrupt frames count as not live.
func (o Options) Live(b []byte) bool {
	e, err := wire.DecodeEntry(b)
	return err == nil && e.Live(o.Now())
}

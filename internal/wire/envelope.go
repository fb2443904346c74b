// Package wire holds the value envelope shared by backends that keep opaque
// bytes (payload + absolute expiry) and its binary framing.
package wire

import "time"

// Envelope pairs an encoded payload with its absolute expiry (unix nanoseconds).
type Envelope struct {
	ExpiresAt int64
	Payload   []byte
}

// ExpiresAt returns now+ttl as unix nanoseconds.
func ExpiresAt(now time.Time, ttl time.Duration) int64 {
	return now.Add(ttl).UnixNano()
}

// Live reports whether the envelope is still valid at now.
// now == ExpiresAt counts as expired.
func (e Envelope) Live(now time.Time) bool {
	return e.ExpiresAt-now.UnixNano() > 0
}

// Remaining returns whole seconds to live, rounded up, or 0 once expired.
func (e Envelope) Remaining(now time.Time) int {
	return Seconds(time.Duration(e.ExpiresAt - now.UnixNano()))
}

// Seconds rounds a positive duration up to whole seconds; non-positive => 0.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	s := d / time.Second
	if d%time.Second != 0 {
		s++
	}
	return int(s)
}

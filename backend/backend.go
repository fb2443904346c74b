// Package backend defines the store contract every cachette backend satisfies.
//
// Values go through the backend's codec on the way in and out. Expiry is
// absolute: an entry is live while expiresAt - now > 0, so an entry whose
// expiry equals now is already gone. Stores without native expiry keep an
// envelope (payload + expiresAt) and evict lazily on read.
package backend

import (
	"context"
	"time"

	"github.com/unkn0wn-root/cachette/codec"
)

const (
	// TTLMissing is reported by FetchWithTTL when no entry exists.
	TTLMissing = -1
	// TTLExpired is reported by FetchWithTTL when the entry exists but is past expiry.
	TTLExpired = 0

	DefaultTTL = 60 * time.Second
)

// Backend must be safe for concurrent use.
type Backend interface {
	// Fetch returns (v, true, nil) on a live hit and (nil, false, nil) on a miss
	// or an expired entry.
	Fetch(ctx context.Context, key string) (any, bool, error)

	// FetchWithTTL returns the remaining whole seconds (rounded up) with the
	// value. A miss reports TTLMissing, an expired entry TTLExpired; the value
	// is nil in both cases.
	FetchWithTTL(ctx context.Context, key string) (int, any, error)

	// Put stores v under key for ttl. ttl <= 0 means the backend default.
	Put(ctx context.Context, key string, v any, ttl time.Duration) error

	// Clear removes either one key or every key starting with namespace.
	// Exactly one of the two must be set; neither is a no-op returning 0.
	// The count only includes entries that were still live.
	Clear(ctx context.Context, namespace, key string) (int, error)

	Close(ctx context.Context) error
}

// Options is shared by every backend constructor.
type Options struct {
	// Codec is required.
	Codec codec.Codec[any]
	// TTL applies to Put calls with ttl <= 0. Zero means DefaultTTL.
	TTL time.Duration
	// Logger defaults to NopLogger.
	Logger Logger
	// Now defaults to time.Now. Tests inject a fake clock here.
	Now func() time.Time
}

// Normalize fills defaults in place and returns the result.
func (o Options) Normalize() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Logger == nil {
		o.Logger = NopLogger{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// TTLFor picks the effective ttl for a Put.
func (o Options) TTLFor(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return o.TTL
	}
	return ttl
}

// CheckClear validates Clear arguments. done reports that the call is a no-op.
func CheckClear(namespace, key string) (done bool, err error) {
	if namespace != "" && key != "" {
		return true, ErrClearArgs
	}
	return namespace == "" && key == "", nil
}

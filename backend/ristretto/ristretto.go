// Package ristretto is an in-process backend on top of dgraph-io/ristretto.
// Ristretto expires entries itself, but only to the second, so values are
// framed with their exact expiry like the other opaque stores.
//
// Ristretto cannot enumerate keys; namespace clear is unsupported.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/internal/wire"
)

const name = "ristretto"

type Config struct {
	// MaxSizeMB bounds the summed size of stored frames. Zero means 64.
	MaxSizeMB int
	// NumCounters defaults to ten counters per expected 1KiB entry.
	NumCounters int64
	BufferItems int64
	Metrics     bool
}

type Ristretto struct {
	c    *rc.Cache
	opts backend.Options
}

var _ backend.Backend = (*Ristretto)(nil)

func New(cfg Config, opts backend.Options) (*Ristretto, error) {
	if opts.Codec == nil {
		return nil, backend.ErrNoCodec
	}
	if cfg.MaxSizeMB < 0 || cfg.NumCounters < 0 || cfg.BufferItems < 0 {
		return nil, errors.New("ristretto backend: invalid config")
	}
	maxCost := int64(cfg.MaxSizeMB) << 20
	if maxCost == 0 {
		maxCost = 64 << 20
	}
	counters := cfg.NumCounters
	if counters == 0 {
		counters = 10 * (maxCost >> 10)
	}
	buffer := cfg.BufferItems
	if buffer == 0 {
		buffer = 64
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: counters,
		MaxCost:     maxCost,
		BufferItems: buffer,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Ristretto{c: c, opts: opts.Normalize()}, nil
}

// get returns the stored frame; an unexpected value shape is dropped.
func (r *Ristretto) get(key string) []byte {
	v, ok := r.c.Get(key)
	if !ok {
		return nil
	}
	b, _ := v.([]byte)
	if b == nil {
		r.c.Del(key)
	}
	return b
}

func (r *Ristretto) Fetch(_ context.Context, key string) (any, bool, error) {
	b := r.get(key)
	if b == nil {
		return nil, false, nil
	}
	v, _, live, err := r.opts.Unseal(b)
	if err != nil {
		return nil, false, err
	}
	if !live {
		r.c.Del(key)
		return nil, false, nil
	}
	return v, true, nil
}

func (r *Ristretto) FetchWithTTL(_ context.Context, key string) (int, any, error) {
	b := r.get(key)
	if b == nil {
		return backend.TTLMissing, nil, nil
	}
	v, ttl, live, err := r.opts.Unseal(b)
	if err != nil {
		return 0, nil, err
	}
	if !live {
		r.c.Del(key)
		return backend.TTLExpired, nil, nil
	}
	return ttl, v, nil
}

// Put waits for ristretto's write buffer so the value is visible on return.
func (r *Ristretto) Put(_ context.Context, key string, v any, ttl time.Duration) error {
	ttl = r.opts.TTLFor(ttl)
	b, err := r.opts.Seal(v, ttl)
	if err != nil {
		return err
	}
	native := time.Duration(wire.Seconds(ttl)) * time.Second
	if !r.c.SetWithTTL(key, b, int64(len(b)), native) {
		return &backend.OpError{Backend: name, Op: "put", Key: key, Kind: backend.ErrRejected}
	}
	r.c.Wait()
	return nil
}

func (r *Ristretto) Clear(_ context.Context, namespace, key string) (int, error) {
	if done, err := backend.CheckClear(namespace, key); done {
		return 0, err
	}
	if namespace != "" {
		return 0, backend.Unsupported(name, "clear namespace")
	}
	b := r.get(key)
	if b == nil {
		return 0, nil
	}
	r.c.Del(key)
	r.c.Wait()
	if r.opts.Live(b) {
		return 1, nil
	}
	return 0, nil
}

func (r *Ristretto) Close(context.Context) error {
	r.c.Wait()
	r.c.Close()
	return nil
}

// Metrics is nil unless Config.Metrics was set.
func (r *Ristretto) Metrics() *rc.Metrics { return r.c.Metrics }

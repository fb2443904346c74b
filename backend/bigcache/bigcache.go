// Package bigcache is an in-process backend on top of allegro/bigcache.
// BigCache only knows one global life window, so every value carries its own
// expiry in an envelope and expired entries are dropped on read.
package bigcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	bc "github.com/allegro/bigcache/v3"

	"github.com/unkn0wn-root/cachette/backend"
)

const (
	name = "bigcache"

	DefaultLifeWindow = 24 * time.Hour
)

type Config struct {
	// MaxSizeMB is BigCache's hard limit. Zero means 64.
	MaxSizeMB int
	// LifeWindow is the upper bound any entry lives for, whatever its ttl.
	LifeWindow  time.Duration
	CleanWindow time.Duration
	Shards      int
}

type BigCache struct {
	c    *bc.BigCache
	opts backend.Options
}

var _ backend.Backend = (*BigCache)(nil)

// printf feeds bigcache's own diagnostics into the backend logger.
type printf struct{ l backend.Logger }

func (p printf) Printf(format string, v ...any) {
	p.l.Warn("cachette: bigcache", backend.Fields{"backend": name, "msg": fmt.Sprintf(format, v...)})
}

func New(cfg Config, opts backend.Options) (*BigCache, error) {
	if opts.Codec == nil {
		return nil, backend.ErrNoCodec
	}
	opts = opts.Normalize()

	life := cfg.LifeWindow
	if life <= 0 {
		life = DefaultLifeWindow
	}
	conf := bc.DefaultConfig(life)
	conf.Shards = 64
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	conf.MaxEntriesInWindow = 10_000
	conf.CleanWindow = 5 * time.Minute
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	conf.HardMaxCacheSize = 64
	if cfg.MaxSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.MaxSizeMB
	}
	conf.Verbose = false
	conf.Logger = printf{opts.Logger}

	c, err := bc.NewBigCache(conf)
	if err != nil {
		return nil, err
	}
	return &BigCache{c: c, opts: opts}, nil
}

func (b *BigCache) get(op, key string) ([]byte, error) {
	raw, err := b.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, backend.Unavailable(name, op, key, err)
	}
	return raw, nil
}

func (b *BigCache) evict(key string) {
	if err := b.c.Delete(key); err != nil && !errors.Is(err, bc.ErrEntryNotFound) {
		b.opts.Logger.Warn("cachette: lazy eviction failed", backend.Fields{"backend": name, "key": key, "err": err})
		return
	}
	b.opts.Logger.Debug("cachette: evicted expired entry", backend.Fields{"backend": name, "key": key})
}

func (b *BigCache) Fetch(_ context.Context, key string) (any, bool, error) {
	raw, err := b.get("fetch", key)
	if err != nil || raw == nil {
		return nil, false, err
	}
	v, _, live, err := b.opts.Unseal(raw)
	if err != nil {
		return nil, false, err
	}
	if !live {
		b.evict(key)
		return nil, false, nil
	}
	return v, true, nil
}

func (b *BigCache) FetchWithTTL(_ context.Context, key string) (int, any, error) {
	raw, err := b.get("fetch_with_ttl", key)
	if err != nil {
		return 0, nil, err
	}
	if raw == nil {
		return backend.TTLMissing, nil, nil
	}
	v, ttl, live, err := b.opts.Unseal(raw)
	if err != nil {
		return 0, nil, err
	}
	if !live {
		b.evict(key)
		return backend.TTLExpired, nil, nil
	}
	return ttl, v, nil
}

func (b *BigCache) Put(_ context.Context, key string, v any, ttl time.Duration) error {
	raw, err := b.opts.Seal(v, ttl)
	if err != nil {
		return err
	}
	if err := b.c.Set(key, raw); err != nil {
		return &backend.OpError{Backend: name, Op: "put", Key: key, Kind: backend.ErrRejected, Err: err}
	}
	return nil
}

func (b *BigCache) Clear(_ context.Context, namespace, key string) (int, error) {
	if done, err := backend.CheckClear(namespace, key); done {
		return 0, err
	}
	if key != "" {
		return b.remove(key)
	}

	// collect first; deleting while the iterator holds shard snapshots is safe
	// but would make it report removed entries as errors
	var keys []string
	it := b.c.Iterator()
	for it.SetNext() {
		e, err := it.Value()
		if err != nil {
			continue
		}
		if strings.HasPrefix(e.Key(), namespace) {
			keys = append(keys, e.Key())
		}
	}
	n := 0
	for _, k := range keys {
		c, err := b.remove(k)
		if err != nil {
			return n, err
		}
		n += c
	}
	b.opts.Logger.Debug("cachette: namespace cleared", backend.Fields{"backend": name, "namespace": namespace, "removed": n})
	return n, nil
}

// remove deletes key and reports 1 if it was live.
func (b *BigCache) remove(key string) (int, error) {
	raw, err := b.get("clear", key)
	if err != nil || raw == nil {
		return 0, err
	}
	err = b.c.Delete(key)
	switch {
	case errors.Is(err, bc.ErrEntryNotFound):
		return 0, nil
	case err != nil:
		return 0, backend.Unavailable(name, "clear", key, err)
	}
	if b.opts.Live(raw) {
		return 1, nil
	}
	return 0, nil
}

func (b *BigCache) Close(context.Context) error { return b.c.Close() }

// Len is the number of entries held, expired ones included.
func (b *BigCache) Len() int { return b.c.Len() }

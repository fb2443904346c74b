// Package memcached is the Memcached backend. Memcached only has whole second
// expiry, so values are framed with their exact expiry and the server side
// expiration is rounded up.
package memcached

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/internal/wire"
)

const (
	name        = "memcached"
	DefaultPort = "11211"

	// relative expirations above this are read by memcached as unix timestamps
	maxRelative = 30 * 24 * time.Hour
)

var ErrNoHosts = errors.New("memcached backend: no hosts")

// Client is the subset of *memcache.Client the backend uses.
type Client interface {
	Get(key string) (*memcache.Item, error)
	Set(item *memcache.Item) error
	Delete(key string) error
}

type Config struct {
	// Client wins over Hosts when set.
	Client Client
	// Hosts is a comma separated list; a missing port defaults to 11211.
	Hosts   string
	Timeout time.Duration
}

type Memcached struct {
	c    Client
	opts backend.Options
}

var _ backend.Backend = (*Memcached)(nil)

// SplitHosts parses "a,b:11212" into host:port pairs.
func SplitHosts(hosts string) []string {
	var out []string
	for _, h := range strings.Split(hosts, ",") {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(h); err != nil {
			h = net.JoinHostPort(strings.Trim(h, "[]"), DefaultPort)
		}
		out = append(out, h)
	}
	return out
}

func New(cfg Config, opts backend.Options) (*Memcached, error) {
	if opts.Codec == nil {
		return nil, backend.ErrNoCodec
	}
	c := cfg.Client
	if c == nil {
		servers := SplitHosts(cfg.Hosts)
		if len(servers) == 0 {
			return nil, ErrNoHosts
		}
		mc := memcache.New(servers...)
		if cfg.Timeout > 0 {
			mc.Timeout = cfg.Timeout
		}
		c = mc
	}
	return &Memcached{c: c, opts: opts.Normalize()}, nil
}

// get returns the raw frame; nil on miss.
func (m *Memcached) get(op, key string) ([]byte, error) {
	it, err := m.c.Get(key)
	switch {
	case errors.Is(err, memcache.ErrCacheMiss):
		return nil, nil
	case errors.Is(err, memcache.ErrMalformedKey):
		return nil, err
	case err != nil:
		return nil, backend.Unavailable(name, op, key, err)
	}
	return it.Value, nil
}

func (m *Memcached) Fetch(_ context.Context, key string) (any, bool, error) {
	b, err := m.get("fetch", key)
	if err != nil || b == nil {
		return nil, false, err
	}
	v, _, live, err := m.opts.Unseal(b)
	if err != nil {
		return nil, false, err
	}
	if !live {
		m.evict(key)
		return nil, false, nil
	}
	return v, true, nil
}

func (m *Memcached) FetchWithTTL(_ context.Context, key string) (int, any, error) {
	b, err := m.get("fetch_with_ttl", key)
	if err != nil {
		return 0, nil, err
	}
	if b == nil {
		return backend.TTLMissing, nil, nil
	}
	v, ttl, live, err := m.opts.Unseal(b)
	if err != nil {
		return 0, nil, err
	}
	if !live {
		m.evict(key)
		return backend.TTLExpired, nil, nil
	}
	return ttl, v, nil
}

// evict drops an entry the envelope says is expired but the server still holds.
func (m *Memcached) evict(key string) {
	if err := m.c.Delete(key); err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		m.opts.Logger.Warn("cachette: lazy eviction failed", backend.Fields{"backend": name, "key": key, "err": err})
	}
}

func (m *Memcached) Put(_ context.Context, key string, v any, ttl time.Duration) error {
	ttl = m.opts.TTLFor(ttl)
	b, err := m.opts.Seal(v, ttl)
	if err != nil {
		return err
	}
	err = m.c.Set(&memcache.Item{Key: key, Value: b, Expiration: expiration(ttl, time.Now())})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, memcache.ErrMalformedKey):
		return err
	default:
		return backend.Unavailable(name, "put", key, err)
	}
}

// expiration converts ttl to memcached's expiration field, rounding up.
func expiration(ttl time.Duration, now time.Time) int32 {
	if ttl > maxRelative {
		return int32(now.Add(ttl).Unix() + 1)
	}
	return int32(wire.Seconds(ttl))
}

// Clear supports single keys only; memcached cannot enumerate a namespace.
func (m *Memcached) Clear(_ context.Context, namespace, key string) (int, error) {
	if done, err := backend.CheckClear(namespace, key); done {
		return 0, err
	}
	if namespace != "" {
		return 0, backend.Unsupported(name, "clear namespace")
	}

	b, err := m.get("clear", key)
	if err != nil || b == nil {
		return 0, err
	}
	err = m.c.Delete(key)
	switch {
	case errors.Is(err, memcache.ErrCacheMiss):
		return 0, nil
	case err != nil:
		return 0, backend.Unavailable(name, "clear", key, err)
	}
	if m.opts.Live(b) {
		return 1, nil
	}
	return 0, nil
}

func (m *Memcached) Close(context.Context) error {
	if c, ok := m.c.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Package redis is the Redis/Valkey backend. Expiry is native (SET PX) and
// values are stored as plain codec output, so other clients can read them.
package redis

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/internal/wire"
)

var ErrNilClient = errors.New("redis backend: nil client and empty url")

// NoExpiry is reported by FetchWithTTL for keys written without a TTL by
// another client.
const NoExpiry = math.MaxInt32

// deletes every key matching ARGV[1] in batches and returns the count
var clearScript = goredis.NewScript(`
local keys = redis.call('KEYS', ARGV[1])
local n = 0
for i = 1, #keys, 5000 do
  n = n + redis.call('DEL', unpack(keys, i, math.min(i + 4999, #keys)))
end
return n
`)

type Config struct {
	Client goredis.UniversalClient
	// URL is parsed when Client is nil; valkey:// and valkeys:// are accepted.
	URL         string
	CloseClient bool // set true only if this backend exclusively owns the client
	// Name labels errors and logs ("redis" or "valkey").
	Name string
}

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	name        string
	opts        backend.Options
}

var _ backend.Backend = (*Redis)(nil)

// NormalizeURL maps valkey schemes onto the redis ones go-redis understands.
func NormalizeURL(u string) string {
	switch {
	case strings.HasPrefix(u, "valkey://"):
		return "redis://" + strings.TrimPrefix(u, "valkey://")
	case strings.HasPrefix(u, "valkeys://"):
		return "rediss://" + strings.TrimPrefix(u, "valkeys://")
	}
	return u
}

func New(cfg Config, opts backend.Options) (*Redis, error) {
	if opts.Codec == nil {
		return nil, backend.ErrNoCodec
	}
	name := cfg.Name
	if name == "" {
		name = "redis"
	}
	rdb, owned := cfg.Client, cfg.CloseClient
	if rdb == nil {
		if cfg.URL == "" {
			return nil, ErrNilClient
		}
		o, err := goredis.ParseURL(NormalizeURL(cfg.URL))
		if err != nil {
			return nil, err
		}
		rdb, owned = goredis.NewClient(o), true
	}
	return &Redis{rdb: rdb, closeClient: owned, name: name, opts: opts.Normalize()}, nil
}

func (p *Redis) Fetch(ctx context.Context, key string) (any, bool, error) {
	b, err := p.rdb.Get(ctx, key).Bytes()
	if err == goredis.Nil {
		return nil, false, nil // miss
	}
	if err != nil {
		return nil, false, backend.Unavailable(p.name, "fetch", key, err)
	}
	v, err := p.opts.Codec.Decode(b)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// FetchWithTTL reads PTTL and the value in one MULTI/EXEC round trip.
// Redis never exposes expired keys, so expiry reports TTLMissing.
func (p *Redis) FetchWithTTL(ctx context.Context, key string) (int, any, error) {
	var (
		pttl *goredis.DurationCmd
		get  *goredis.StringCmd
	)
	_, err := p.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pttl = pipe.PTTL(ctx, key)
		get = pipe.Get(ctx, key)
		return nil
	})
	if err != nil && err != goredis.Nil {
		return 0, nil, backend.Unavailable(p.name, "fetch_with_ttl", key, err)
	}

	b, err := get.Bytes()
	if err == goredis.Nil {
		return backend.TTLMissing, nil, nil
	}
	if err != nil {
		return 0, nil, backend.Unavailable(p.name, "fetch_with_ttl", key, err)
	}
	v, err := p.opts.Codec.Decode(b)
	if err != nil {
		return 0, nil, err
	}

	d := pttl.Val()
	if d < 0 {
		return NoExpiry, v, nil
	}
	return wire.Seconds(d), v, nil
}

func (p *Redis) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := p.opts.Codec.Encode(v)
	if err != nil {
		return err
	}
	if err := p.rdb.Set(ctx, key, b, p.opts.TTLFor(ttl)).Err(); err != nil {
		return backend.Unavailable(p.name, "put", key, err)
	}
	return nil
}

func (p *Redis) Clear(ctx context.Context, namespace, key string) (int, error) {
	if done, err := backend.CheckClear(namespace, key); done {
		return 0, err
	}
	if key != "" {
		n, err := p.rdb.Del(ctx, key).Result()
		if err != nil {
			return 0, backend.Unavailable(p.name, "clear", key, err)
		}
		return int(n), nil
	}

	n, err := clearScript.Run(ctx, p.rdb, nil, escapeGlob(namespace)+"*").Int()
	if err != nil {
		return 0, backend.Unavailable(p.name, "clear", namespace, err)
	}
	p.opts.Logger.Debug("cachette: namespace cleared", backend.Fields{"backend": p.name, "namespace": namespace, "removed": n})
	return n, nil
}

// escapeGlob makes namespace match literally inside a KEYS pattern.
func escapeGlob(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (p *Redis) Close(context.Context) error {
	if p.closeClient {
		if err := p.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

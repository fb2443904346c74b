package cachette

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/backend/bigcache"
	"github.com/unkn0wn-root/cachette/backend/bolt"
	"github.com/unkn0wn-root/cachette/backend/file"
	"github.com/unkn0wn-root/cachette/backend/inmemory"
	"github.com/unkn0wn-root/cachette/backend/memcached"
	"github.com/unkn0wn-root/cachette/backend/mongodb"
	"github.com/unkn0wn-root/cachette/backend/redis"
	"github.com/unkn0wn-root/cachette/backend/ristretto"
	"github.com/unkn0wn-root/cachette/codec"
)

// Options carries runtime dependencies that do not belong in Config.
type Options struct {
	Logger Logger // if nil, NopLogger is used
	// Now overrides the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
}

// Cache is the configured codec and backend pair. It adds nothing on top of
// the backend: no retries and no local caching.
type Cache struct {
	cfg     Config
	codec   codec.Codec[any]
	backend backend.Backend
	log     Logger
}

// New validates cfg and builds its codec and backend eagerly.
func New(ctx context.Context, cfg Config, opts Options) (*Cache, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := coalesce[Logger](opts.Logger, NopLogger{})

	var copts []codec.Option
	if cfg.MaxDecodeBytes > 0 {
		copts = append(copts, codec.WithMaxDecode(cfg.MaxDecodeBytes))
	}
	c, err := codec.New(cfg.Codec, copts...)
	if err != nil {
		return nil, invalid("codec", ErrUnknownCodec, err.Error())
	}

	b, err := open(ctx, cfg, backend.Options{Codec: c, TTL: cfg.TTL, Logger: log, Now: opts.Now})
	if err != nil {
		return nil, err
	}
	log.Info("cachette: ready", Fields{"backend": cfg.Backend.String(), "codec": cfg.Codec.String(), "ttl": cfg.TTL})
	return &Cache{cfg: cfg, codec: c, backend: b, log: log}, nil
}

// Open is Load followed by New with default Options.
func Open(ctx context.Context, pairs ...Pair) (*Cache, error) {
	cfg, err := Load(pairs...)
	if err != nil {
		return nil, err
	}
	return New(ctx, cfg, Options{})
}

func open(ctx context.Context, cfg Config, bo backend.Options) (backend.Backend, error) {
	switch cfg.Backend {
	case BackendInMemory:
		return built("cleanup_interval")(inmemory.New(inmemory.Config{CleanupInterval: cfg.CleanupInterval}, bo))
	case BackendRedis:
		return built("redis_url")(redis.New(redis.Config{URL: cfg.RedisURL, Name: "redis"}, bo))
	case BackendValkey:
		return built("valkey_url")(redis.New(redis.Config{URL: cfg.ValkeyURL, Name: "valkey"}, bo))
	case BackendMemcached:
		return built("memcached_host")(memcached.New(memcached.Config{Hosts: cfg.MemcachedHost}, bo))
	case BackendMongoDB:
		return built("mongodb_url")(mongodb.New(ctx, mongodb.Config{
			URL:        cfg.MongoDBURL,
			Database:   cfg.DatabaseName,
			Collection: cfg.TableName,
		}, bo))
	case BackendFile:
		return built("file_path")(file.New(file.Config{Path: cfg.FilePath}, bo))
	case BackendRistretto:
		return built("max_size_mb")(ristretto.New(ristretto.Config{MaxSizeMB: cfg.MaxSizeMB}, bo))
	case BackendBigCache:
		return built("max_size_mb")(bigcache.New(bigcache.Config{MaxSizeMB: cfg.MaxSizeMB}, bo))
	case BackendBolt:
		return built("bolt_path")(bolt.Open(bolt.Config{Path: cfg.BoltPath, Bucket: cfg.TableName}, bo))
	default:
		return nil, invalid("backend", ErrUnknownBackend, cfg.Backend.String())
	}
}

// built adapts a constructor result. Transport failures pass through as
// ErrBackendUnavailable; anything else the constructor rejects is a
// configuration problem and is reported against field.
func built(field string) func(backend.Backend, error) (backend.Backend, error) {
	return func(b backend.Backend, err error) (backend.Backend, error) {
		switch {
		case err == nil:
			return b, nil
		case errors.Is(err, backend.ErrUnavailable):
			return nil, err
		default:
			return nil, invalid(field, ErrInvalidOption, err.Error())
		}
	}
}

// Fetch returns the live value for key. A miss is (nil, false, nil).
func (c *Cache) Fetch(ctx context.Context, key string) (any, bool, error) {
	return c.backend.Fetch(ctx, key)
}

// FetchWithTTL returns the remaining whole seconds with the value: -1 when
// absent, 0 when found but expired.
func (c *Cache) FetchWithTTL(ctx context.Context, key string) (int, any, error) {
	return c.backend.FetchWithTTL(ctx, key)
}

// Put stores v for ttl, or for the configured ttl when ttl <= 0.
func (c *Cache) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	return c.backend.Put(ctx, key, v, ttl)
}

// Clear removes one key or a whole namespace (key prefix) and reports how
// many live entries went away.
func (c *Cache) Clear(ctx context.Context, namespace, key string) (int, error) {
	return c.backend.Clear(ctx, namespace, key)
}

func (c *Cache) Close(ctx context.Context) error {
	c.log.Debug("cachette: closing", Fields{"backend": c.cfg.Backend.String()})
	return c.backend.Close(ctx)
}

func (c *Cache) Config() Config { return c.cfg }

// Codec exposes the configured codec, e.g. to pre-encode values.
func (c *Cache) Codec() codec.Codec[any] { return c.codec }

package cachette

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unkn0wn-root/cachette/backend/memcached"
	"github.com/unkn0wn-root/cachette/backend/redis"
	"github.com/unkn0wn-root/cachette/codec"
)

// BackendKind selects one store variant.
type BackendKind uint8

const (
	BackendInMemory BackendKind = iota + 1
	BackendRedis
	BackendValkey
	BackendMemcached
	BackendMongoDB
	BackendFile
	BackendRistretto
	BackendBigCache
	BackendBolt
)

var backendNames = map[BackendKind]string{
	BackendInMemory:  "inmemory",
	BackendRedis:     "redis",
	BackendValkey:    "valkey",
	BackendMemcached: "memcached",
	BackendMongoDB:   "mongodb",
	BackendFile:      "file",
	BackendRistretto: "ristretto",
	BackendBigCache:  "bigcache",
	BackendBolt:      "bolt",
}

var backendAliases = map[string]BackendKind{
	"pickle": BackendFile,
}

func (k BackendKind) String() string {
	if n, ok := backendNames[k]; ok {
		return n
	}
	return fmt.Sprintf("backend(%d)", uint8(k))
}

// ParseBackend resolves a config name (case-insensitive, aliases included).
func ParseBackend(name string) (BackendKind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range backendNames {
		if n == name {
			return k, true
		}
	}
	k, ok := backendAliases[name]
	return k, ok
}

// Backends lists every canonical backend in declaration order.
func Backends() []BackendKind {
	out := make([]BackendKind, 0, len(backendNames))
	for k := BackendInMemory; k <= BackendBolt; k++ {
		out = append(out, k)
	}
	return out
}

func names[K fmt.Stringer](ks []K) string {
	s := make([]string, len(ks))
	for i, k := range ks {
		s[i] = k.String()
	}
	return strings.Join(s, ", ")
}

const (
	DefaultTTL       = 60 * time.Second
	DefaultTableName = "cachette"
	DefaultMaxSizeMB = 64

	MinTTL = time.Second
	MaxTTL = time.Hour
)

// Config is the resolved configuration. Treat it as a value: New copies it
// and Cache.Config returns a copy.
type Config struct {
	Backend BackendKind
	Codec   codec.Kind
	TTL     time.Duration

	RedisURL      string
	ValkeyURL     string
	MemcachedHost string
	DatabaseName  string
	MongoDBURL    string
	TableName     string
	FilePath      string
	BoltPath      string

	MaxSizeMB       int
	CleanupInterval time.Duration
	MaxDecodeBytes  int
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	c.Backend = coalesce(c.Backend, BackendInMemory)
	c.Codec = coalesce(c.Codec, codec.KindVanilla)
	c.TTL = coalesce(c.TTL, DefaultTTL)
	c.TableName = coalesce(c.TableName, DefaultTableName)
	c.MaxSizeMB = coalesce(c.MaxSizeMB, DefaultMaxSizeMB)
	return c
}

// Validate checks c after defaults are applied. The order is fixed: backend,
// backend requirements, codec, ttl, remaining bounds.
func (c Config) Validate() error {
	c = c.withDefaults()
	if _, ok := backendNames[c.Backend]; !ok {
		return invalid("backend", ErrUnknownBackend, c.Backend.String())
	}
	if err := c.checkBackend(); err != nil {
		return err
	}
	if _, ok := codec.ParseKind(c.Codec.String()); !ok {
		return invalid("codec", ErrUnknownCodec, c.Codec.String())
	}
	if err := checkTTL(c.TTL); err != nil {
		return err
	}
	return c.checkBounds()
}

type requirement struct {
	key, val string
	// parse, when set, rejects values the backend client would not accept.
	parse func(string) error
}

// checkBackend enforces the options each backend cannot run without and
// parses connection settings so malformed ones fail at load time.
func (c Config) checkBackend() error {
	var reqs []requirement
	switch c.Backend {
	case BackendRedis:
		reqs = []requirement{{"redis_url", c.RedisURL, parseRedisURL}}
	case BackendValkey:
		reqs = []requirement{{"valkey_url", c.ValkeyURL, parseRedisURL}}
	case BackendMemcached:
		reqs = []requirement{{"memcached_host", c.MemcachedHost, parseHosts}}
	case BackendMongoDB:
		reqs = []requirement{{"database_name", c.DatabaseName, nil}, {"mongodb_url", c.MongoDBURL, parseMongoURL}}
	case BackendFile:
		reqs = []requirement{{"file_path", c.FilePath, nil}}
	case BackendBolt:
		reqs = []requirement{{"bolt_path", c.BoltPath, nil}}
	}
	for _, r := range reqs {
		if strings.TrimSpace(r.val) == "" {
			return invalid(r.key, ErrMissingOption, fmt.Sprintf("required when backend is %s", c.Backend))
		}
		if r.parse == nil {
			continue
		}
		if err := r.parse(r.val); err != nil {
			return invalid(r.key, ErrInvalidOption, err.Error())
		}
	}
	return nil
}

func parseRedisURL(u string) error {
	_, err := goredis.ParseURL(redis.NormalizeURL(u))
	return err
}

func parseHosts(h string) error {
	if len(memcached.SplitHosts(h)) == 0 {
		return memcached.ErrNoHosts
	}
	return nil
}

func parseMongoURL(u string) error {
	return options.Client().ApplyURI(u).Validate()
}

func checkTTL(d time.Duration) error {
	if d < MinTTL || d > MaxTTL {
		return invalid("ttl", ErrInvalidTTL, d.String())
	}
	return nil
}

func (c Config) checkBounds() error {
	switch {
	case c.MaxSizeMB < 1:
		return invalid("max_size_mb", ErrInvalidOption, "must be >= 1")
	case c.CleanupInterval < 0:
		return invalid("cleanup_interval", ErrInvalidOption, "must be >= 0")
	case c.MaxDecodeBytes < 0:
		return invalid("max_decode_bytes", ErrInvalidOption, "must be >= 0")
	}
	return nil
}

// Pair is one raw option. Keys are case-insensitive.
type Pair struct {
	Key   string
	Value any
}

// Opt is shorthand for Pair{key, value}.
func Opt(key string, value any) Pair { return Pair{Key: key, Value: value} }

type stringKey struct {
	key   string
	field func(*Config) *string
}

// in declaration order, so type errors are reported deterministically
var stringKeys = []stringKey{
	{"redis_url", func(c *Config) *string { return &c.RedisURL }},
	{"valkey_url", func(c *Config) *string { return &c.ValkeyURL }},
	{"memcached_host", func(c *Config) *string { return &c.MemcachedHost }},
	{"database_name", func(c *Config) *string { return &c.DatabaseName }},
	{"mongodb_url", func(c *Config) *string { return &c.MongoDBURL }},
	{"table_name", func(c *Config) *string { return &c.TableName }},
	{"file_path", func(c *Config) *string { return &c.FilePath }},
	{"bolt_path", func(c *Config) *string { return &c.BoltPath }},
}

// Keys lists every recognized option key.
func Keys() []string {
	out := []string{"backend", "codec", "ttl"}
	for _, k := range stringKeys {
		out = append(out, k.key)
	}
	return append(out, "max_size_mb", "cleanup_interval", "max_decode_bytes")
}

func known(key string) bool {
	for _, k := range Keys() {
		if k == key {
			return true
		}
	}
	return false
}

var keyAliases = map[string]string{
	"pickle_path": "file_path",
}

// Load resolves raw options into a validated Config. Later duplicates win and
// nil values count as absent. Failures are *ValidationError.
func Load(pairs ...Pair) (Config, error) {
	raw := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k := strings.ToLower(strings.TrimSpace(p.Key))
		if a, ok := keyAliases[k]; ok {
			k = a
		}
		if !known(k) {
			return Config{}, invalid(p.Key, ErrUnknownOption, "")
		}
		if p.Value == nil {
			continue
		}
		raw[k] = p.Value
	}

	var cfg Config
	if v, ok := raw["backend"]; ok {
		s, err := toString("backend", v)
		if err != nil {
			return Config{}, err
		}
		k, ok := ParseBackend(s)
		if !ok {
			return Config{}, invalid("backend", ErrUnknownBackend, fmt.Sprintf("%q (want one of %s)", s, names(Backends())))
		}
		cfg.Backend = k
	}
	for _, sk := range stringKeys {
		v, ok := raw[sk.key]
		if !ok {
			continue
		}
		s, err := toString(sk.key, v)
		if err != nil {
			return Config{}, err
		}
		*sk.field(&cfg) = s
	}
	cfg = cfg.withDefaults()
	if err := cfg.checkBackend(); err != nil {
		return Config{}, err
	}

	if v, ok := raw["codec"]; ok {
		s, err := toString("codec", v)
		if err != nil {
			return Config{}, err
		}
		k, ok := codec.ParseKind(s)
		if !ok {
			return Config{}, invalid("codec", ErrUnknownCodec, fmt.Sprintf("%q (want one of %s)", s, names(codec.Kinds())))
		}
		cfg.Codec = k
	}

	if v, ok := raw["ttl"]; ok {
		n, err := toInt(v)
		if err != nil {
			return Config{}, invalid("ttl", ErrInvalidTTL, err.Error())
		}
		if n < int(MinTTL/time.Second) || n > int(MaxTTL/time.Second) {
			return Config{}, invalid("ttl", ErrInvalidTTL, strconv.Itoa(n))
		}
		cfg.TTL = time.Duration(n) * time.Second
	}

	ints := []struct {
		key string
		set func(int)
	}{
		{"max_size_mb", func(n int) { cfg.MaxSizeMB = n }},
		{"cleanup_interval", func(n int) { cfg.CleanupInterval = time.Duration(n) * time.Second }},
		{"max_decode_bytes", func(n int) { cfg.MaxDecodeBytes = n }},
	}
	for _, it := range ints {
		v, ok := raw[it.key]
		if !ok {
			continue
		}
		n, err := toInt(v)
		if err != nil {
			return Config{}, invalid(it.key, ErrInvalidOption, err.Error())
		}
		it.set(n)
	}
	if err := cfg.checkBounds(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func toString(key string, v any) (string, error) {
	switch v.(type) {
	case bool, []any, map[string]any:
		return "", invalid(key, ErrInvalidOption, fmt.Sprintf("want a string, got %T", v))
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", invalid(key, ErrInvalidOption, fmt.Sprintf("want a string, got %T", v))
	}
	return s, nil
}

// toInt accepts integers of any width and integral floats or strings. Bools
// and fractions are rejected rather than truncated.
func toInt(v any) (int, error) {
	switch x := v.(type) {
	case bool:
		return 0, errors.New("want an integer, got bool")
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("want an integer, got %v", x)
		}
	case float32:
		if float64(x) != math.Trunc(float64(x)) {
			return 0, fmt.Errorf("want an integer, got %v", x)
		}
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("want an integer, got %q", x)
		}
		return n, nil
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, fmt.Errorf("want an integer, got %T", v)
	}
	return n, nil
}

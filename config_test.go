package cachette

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachette/codec"
)

func field(t *testing.T, err error) string {
	t.Helper()
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want *ValidationError, got %T: %v", err, err)
	}
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("%v should match ErrValidation", err)
	}
	return ve.Field
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendInMemory || cfg.Codec != codec.KindVanilla || cfg.TTL != 60*time.Second {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.TableName != "cachette" || cfg.MaxSizeMB != 64 {
		t.Fatalf("defaults = %+v", cfg)
	}
}

func TestLoadKeysAreCaseInsensitiveAndLastWins(t *testing.T) {
	cfg, err := Load(
		Opt("Backend", "REDIS"),
		Opt("REDIS_URL", "redis://a"),
		Opt("redis_url", "redis://b"),
		Opt("ttl", 10),
		Opt("TTL", nil), // absent, does not reset
	)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendRedis || cfg.RedisURL != "redis://b" || cfg.TTL != 10*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadLegacyNames(t *testing.T) {
	cfg, err := Load(Opt("backend", "pickle"), Opt("pickle_path", "/tmp/c.bin"), Opt("codec", "orjson"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != BackendFile || cfg.FilePath != "/tmp/c.bin" || cfg.Codec != codec.KindFastJSON {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestLoadRequiredOptions(t *testing.T) {
	cases := []struct {
		backend string
		extra   []Pair
		field   string
	}{
		{"redis", nil, "redis_url"},
		{"redis", []Pair{Opt("redis_url", "")}, "redis_url"},
		{"valkey", nil, "valkey_url"},
		{"memcached", nil, "memcached_host"},
		{"mongodb", nil, "database_name"},
		{"mongodb", []Pair{Opt("database_name", "db")}, "mongodb_url"},
		{"mongodb", []Pair{Opt("mongodb_url", "mongodb://x")}, "database_name"},
		{"file", nil, "file_path"},
		{"pickle", nil, "file_path"},
		{"bolt", nil, "bolt_path"},
	}
	for _, tc := range cases {
		_, err := Load(append([]Pair{Opt("backend", tc.backend)}, tc.extra...)...)
		if !errors.Is(err, ErrMissingOption) {
			t.Fatalf("%s: want ErrMissingOption, got %v", tc.backend, err)
		}
		if f := field(t, err); f != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.backend, f, tc.field)
		}
		if !strings.Contains(err.Error(), tc.field) {
			t.Fatalf("%s: message %q should name %s", tc.backend, err, tc.field)
		}
	}

	malformed := []struct {
		backend string
		extra   []Pair
		field   string
	}{
		{"redis", []Pair{Opt("redis_url", "http://example:6379")}, "redis_url"},
		{"redis", []Pair{Opt("redis_url", "redis://host:6379/notadb")}, "redis_url"},
		{"valkey", []Pair{Opt("valkey_url", "ftp://example")}, "valkey_url"},
		{"memcached", []Pair{Opt("memcached_host", ",")}, "memcached_host"},
		{"mongodb", []Pair{Opt("database_name", "db"), Opt("mongodb_url", "http://example")}, "mongodb_url"},
	}
	for _, tc := range malformed {
		_, err := Load(append([]Pair{Opt("backend", tc.backend)}, tc.extra...)...)
		if !errors.Is(err, ErrInvalidOption) {
			t.Fatalf("%s %v: want ErrInvalidOption, got %v", tc.backend, tc.extra, err)
		}
		if f := field(t, err); f != tc.field {
			t.Fatalf("%s: field = %q, want %q", tc.backend, f, tc.field)
		}
	}

	for _, pairs := range [][]Pair{
		{Opt("backend", "valkey"), Opt("valkey_url", "valkeys://example:6380/2")},
		{Opt("backend", "memcached"), Opt("memcached_host", "a, b:11212")},
		{Opt("backend", "mongodb"), Opt("database_name", "db"), Opt("mongodb_url", "mongodb://localhost:27017")},
	} {
		if _, err := Load(pairs...); err != nil {
			t.Fatalf("%v: %v", pairs, err)
		}
	}
}

func TestLoadValidationOrder(t *testing.T) {
	// backend requirement beats codec and ttl
	_, err := Load(Opt("backend", "redis"), Opt("codec", "nope"), Opt("ttl", 0))
	if !errors.Is(err, ErrMissingOption) {
		t.Fatalf("want missing redis_url first, got %v", err)
	}
	// codec beats ttl
	_, err = Load(Opt("codec", "nope"), Opt("ttl", 0))
	if !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("want ErrUnknownCodec, got %v", err)
	}
	// unknown backend beats everything
	_, err = Load(Opt("backend", "dynamodb"), Opt("codec", "nope"))
	if !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("want ErrUnknownBackend, got %v", err)
	}
	// ttl beats the remaining bounds
	_, err = Load(Opt("ttl", 0), Opt("max_size_mb", 0))
	if !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("want ErrInvalidTTL, got %v", err)
	}
}

func TestLoadTTLBounds(t *testing.T) {
	for _, v := range []any{0, -1, 3601, 1 << 62, 2.5, true, "abc"} {
		if _, err := Load(Opt("ttl", v)); !errors.Is(err, ErrInvalidTTL) {
			t.Fatalf("ttl=%v: want ErrInvalidTTL, got %v", v, err)
		}
	}
	for _, v := range []any{1, 3600, int64(30), uint8(5), 2.0, " 42 "} {
		if _, err := Load(Opt("ttl", v)); err != nil {
			t.Fatalf("ttl=%v: %v", v, err)
		}
	}
}

func TestLoadRejectsUnknownKeysAndBadTypes(t *testing.T) {
	if _, err := Load(Opt("expire", 10)); !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("want ErrUnknownOption, got %v", err)
	}
	if _, err := Load(Opt("backend", true)); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("want ErrInvalidOption, got %v", err)
	}
	if _, err := Load(Opt("max_size_mb", 0)); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("want ErrInvalidOption, got %v", err)
	}
	if _, err := Load(Opt("cleanup_interval", -1)); !errors.Is(err, ErrInvalidOption) {
		t.Fatalf("want ErrInvalidOption, got %v", err)
	}
}

func TestValidateStruct(t *testing.T) {
	if err := (Config{}).Validate(); err != nil {
		t.Fatalf("zero config should validate with defaults: %v", err)
	}
	if err := (Config{Backend: BackendValkey}).Validate(); !errors.Is(err, ErrMissingOption) {
		t.Fatalf("want ErrMissingOption, got %v", err)
	}
	if err := (Config{Backend: 99}).Validate(); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("want ErrUnknownBackend, got %v", err)
	}
	if err := (Config{Codec: 99}).Validate(); !errors.Is(err, ErrUnknownCodec) {
		t.Fatalf("want ErrUnknownCodec, got %v", err)
	}
	if err := (Config{TTL: 2 * time.Hour}).Validate(); !errors.Is(err, ErrInvalidTTL) {
		t.Fatalf("want ErrInvalidTTL, got %v", err)
	}
}

func TestParseBackend(t *testing.T) {
	for _, k := range Backends() {
		got, ok := ParseBackend(strings.ToUpper(k.String()))
		if !ok || got != k {
			t.Fatalf("ParseBackend(%s) = %v, %v", k, got, ok)
		}
	}
	if _, ok := ParseBackend("dynamodb"); ok {
		t.Fatalf("dynamodb is not a backend")
	}
}

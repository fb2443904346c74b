package cachette

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachette/codec"
)

func TestLoadYAML(t *testing.T) {
	doc := `
backend: mongodb
database_name: app
mongodb_url: mongodb://localhost:27017
table_name: sessions
codec: msgpack
ttl: 120
unused: ~
`
	_, err := LoadYAML(strings.NewReader(doc))
	if !errors.Is(err, ErrUnknownOption) {
		t.Fatalf("unknown key must fail even when null, got %v", err)
	}

	doc = strings.Replace(doc, "unused: ~\n", "", 1)
	cfg, err := LoadYAML(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if cfg.Backend != BackendMongoDB || cfg.TableName != "sessions" || cfg.Codec != codec.KindMsgpack || cfg.TTL != 2*time.Minute {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestYAMLPairsKeepOrder(t *testing.T) {
	pairs, err := YAMLPairs(strings.NewReader("ttl: 5\ncodec: json\nbackend: inmemory\n"))
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, p := range pairs {
		keys = append(keys, p.Key)
	}
	if got := strings.Join(keys, ","); got != "ttl,codec,backend" {
		t.Fatalf("order = %s", got)
	}
}

func TestYAMLRejectsNonMapping(t *testing.T) {
	if _, err := LoadYAML(strings.NewReader("- a\n- b\n")); err == nil {
		t.Fatalf("expected error for a sequence document")
	}
	cfg, err := LoadYAML(strings.NewReader(""))
	if err != nil || cfg.Backend != BackendInMemory {
		t.Fatalf("empty document = (%+v, %v)", cfg, err)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("APP_CACHE_BACKEND", "valkey")
	t.Setenv("APP_CACHE_VALKEY_URL", "valkey://localhost:6379")
	t.Setenv("APP_CACHE_TTL", "30")
	t.Setenv("APP_CACHE_CODEC", "")

	cfg, err := LoadEnv("app_cache")
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.Backend != BackendValkey || cfg.ValkeyURL != "valkey://localhost:6379" || cfg.TTL != 30*time.Second {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Codec != codec.KindVanilla {
		t.Fatalf("empty variable should be ignored, codec = %s", cfg.Codec)
	}
}

func TestEnvCanonicalKeyBeatsAlias(t *testing.T) {
	t.Setenv("CX_BACKEND", "pickle")
	t.Setenv("CX_PICKLE_PATH", "/tmp/legacy.bin")
	t.Setenv("CX_FILE_PATH", "/tmp/cache.bin")

	cfg, err := LoadEnv("CX")
	if err != nil {
		t.Fatalf("LoadEnv: %v", err)
	}
	if cfg.FilePath != "/tmp/cache.bin" {
		t.Fatalf("file_path = %q, want the canonical value", cfg.FilePath)
	}
}

func TestLoadFromLayersEnvOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cachette.yaml")
	if err := os.WriteFile(path, []byte("ttl: 10\ncodec: json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CX_TTL", "20")

	cfg, err := LoadFrom(path, "CX")
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.TTL != 20*time.Second || cfg.Codec != codec.KindJSON {
		t.Fatalf("cfg = %+v", cfg)
	}

	cfg, err = LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"), "CX")
	if err != nil || cfg.TTL != 20*time.Second {
		t.Fatalf("missing file = (%+v, %v)", cfg, err)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadFile on a missing file: %v", err)
	}
}

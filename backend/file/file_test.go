package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/backend/backendtest"
	"github.com/unkn0wn-root/cachette/codec"
)

func TestCompliance(t *testing.T) {
	backendtest.Run(t, backendtest.Harness{
		New: func(t *testing.T, opts backend.Options) backend.Backend {
			f, err := New(Config{Path: filepath.Join(t.TempDir(), "cache.bin")}, opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			return f
		},
	})
}

func newFile(t *testing.T, path string) *File {
	t.Helper()
	c, _ := codec.New(codec.KindCBOR)
	f, err := New(Config{Path: path}, backend.Options{Codec: c})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return f
}

func TestSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.bin")

	if err := newFile(t, path).Put(ctx, "k", map[string]any{"a": "b"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	v, ok, err := newFile(t, path).Fetch(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Fetch after reopen: %v %v", ok, err)
	}
	if m, _ := v.(map[string]any); m["a"] != "b" {
		t.Fatalf("unexpected value %#v", v)
	}

	matches, _ := filepath.Glob(path + ".tmp-*")
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestMissingFileIsEmpty(t *testing.T) {
	f := newFile(t, filepath.Join(t.TempDir(), "nope.bin"))
	ttl, v, err := f.FetchWithTTL(context.Background(), "k")
	if err != nil || ttl != backend.TTLMissing || v != nil {
		t.Fatalf("FetchWithTTL = (%d, %v, %v)", ttl, v, err)
	}
	if _, err := os.Stat(f.path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("reading should not create the file")
	}
}

func TestCorruptFileIsDecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.bin")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := newFile(t, path).Fetch(context.Background(), "k"); !errors.Is(err, codec.ErrDecode) {
		t.Fatalf("want decode error, got %v", err)
	}
}

func TestUnreadablePathIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	// a directory where the file should be
	if _, _, err := newFile(t, dir).Fetch(context.Background(), "k"); !errors.Is(err, backend.ErrUnavailable) {
		t.Fatalf("want ErrUnavailable, got %v", err)
	}
}

func TestRequiresPath(t *testing.T) {
	c, _ := codec.New(codec.KindJSON)
	if _, err := New(Config{}, backend.Options{Codec: c}); !errors.Is(err, ErrNoPath) {
		t.Fatalf("want ErrNoPath, got %v", err)
	}
}

func TestInvalidKeyIsRejected(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.bin")
	f := newFile(t, path)
	for _, key := range []string{"", strings.Repeat("k", 0x10000)} {
		if err := f.Put(ctx, key, "v", 0); !errors.Is(err, backend.ErrRejected) {
			t.Fatalf("len %d: want ErrRejected, got %v", len(key), err)
		}
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("rejected put should not create the file: %v", err)
	}
}

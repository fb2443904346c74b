package ristretto

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/backend/backendtest"
	"github.com/unkn0wn-root/cachette/codec"
)

func TestCompliance(t *testing.T) {
	backendtest.Run(t, backendtest.Harness{
		New: func(t *testing.T, opts backend.Options) backend.Backend {
			r, err := New(Config{MaxSizeMB: 4}, opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			t.Cleanup(func() { _ = r.Close(context.Background()) })
			return r
		},
		NamespaceUnsupported: true,
		NativeExpiry:         true,
	})
}

func newRistretto(t *testing.T, cfg Config) *Ristretto {
	t.Helper()
	c, _ := codec.New(codec.KindMsgpack)
	r, err := New(cfg, backend.Options{Codec: c})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func TestNativeTTLIsRoundedUp(t *testing.T) {
	r := newRistretto(t, Config{})
	if err := r.Put(context.Background(), "k", "v", 1500*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	d, ok := r.c.GetTTL("k")
	if !ok || d <= 1500*time.Millisecond || d > 2*time.Second {
		t.Fatalf("native ttl = %v (%v), want (1.5s, 2s]", d, ok)
	}
}

func TestForeignValueIsDropped(t *testing.T) {
	r := newRistretto(t, Config{})
	r.c.Set("k", 42, 1)
	r.c.Wait()
	if _, ok, err := r.Fetch(context.Background(), "k"); ok || err != nil {
		t.Fatalf("Fetch = (%v, %v), want clean miss", ok, err)
	}
	if _, ok := r.c.Get("k"); ok {
		t.Fatalf("unexpected entry should be removed")
	}
}

func TestCorruptFrameIsDecodeError(t *testing.T) {
	r := newRistretto(t, Config{})
	r.c.Set("k", []byte("not a frame"), 1)
	r.c.Wait()
	if _, _, err := r.Fetch(context.Background(), "k"); !errors.Is(err, codec.ErrDecode) {
		t.Fatalf("want decode error, got %v", err)
	}
}

func TestMetrics(t *testing.T) {
	r := newRistretto(t, Config{Metrics: true})
	ctx := context.Background()
	_ = r.Put(ctx, "k", "v", time.Minute)
	_, _, _ = r.Fetch(ctx, "k")
	_, _, _ = r.Fetch(ctx, "absent")
	if m := r.Metrics(); m == nil || m.Hits() != 1 || m.Misses() != 1 {
		t.Fatalf("metrics = %+v", m)
	}
}

func TestInvalidConfig(t *testing.T) {
	c, _ := codec.New(codec.KindJSON)
	if _, err := New(Config{MaxSizeMB: -1}, backend.Options{Codec: c}); err == nil {
		t.Fatalf("expected error for negative size")
	}
	if _, err := New(Config{}, backend.Options{}); !errors.Is(err, backend.ErrNoCodec) {
		t.Fatalf("want ErrNoCodec, got %v", err)
	}
}

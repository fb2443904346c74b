package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/backend/backendtest"
	"github.com/unkn0wn-root/cachette/codec"
	"github.com/unkn0wn-root/cachette/internal/wire"
)

func TestCompliance(t *testing.T) {
	backendtest.Run(t, backendtest.Harness{
		New: func(t *testing.T, opts backend.Options) backend.Backend {
			s, err := New(Config{}, opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			t.Cleanup(func() { _ = s.Close(context.Background()) })
			return s
		},
	})
}

func newStore(t *testing.T, cfg Config, clock *backendtest.Clock) *Store {
	t.Helper()
	c, err := codec.New(codec.KindVanilla)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	s, err := New(cfg, backend.Options{Codec: c, Now: clock.Now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestFetchEvictsExpiredLazily(t *testing.T) {
	ctx := context.Background()
	clock := backendtest.NewClock()
	s := newStore(t, Config{}, clock)

	if err := s.Put(ctx, "k", "v", time.Second); err != nil {
		t.Fatal(err)
	}
	clock.Advance(2 * time.Second)
	if s.Len() != 1 {
		t.Fatalf("entry should stay until read, len=%d", s.Len())
	}
	if _, ok, _ := s.Fetch(ctx, "k"); ok {
		t.Fatalf("expected miss")
	}
	if s.Len() != 0 {
		t.Fatalf("expired entry should be evicted on read, len=%d", s.Len())
	}
	if ttl, _, _ := s.FetchWithTTL(ctx, "k"); ttl != backend.TTLMissing {
		t.Fatalf("evicted entry ttl = %d", ttl)
	}
}

func TestCleanupSweepsExpired(t *testing.T) {
	ctx := context.Background()
	clock := backendtest.NewClock()
	s := newStore(t, Config{}, clock)

	_ = s.Put(ctx, "short", "v", time.Second)
	_ = s.Put(ctx, "long", "v", time.Hour)
	clock.Advance(2 * time.Second)

	if n := s.Cleanup(); n != 1 {
		t.Fatalf("Cleanup removed %d, want 1", n)
	}
	if s.Len() != 1 {
		t.Fatalf("len=%d, want 1", s.Len())
	}
}

func TestJanitorRuns(t *testing.T) {
	ctx := context.Background()
	clock := backendtest.NewClock()
	s := newStore(t, Config{CleanupInterval: 10 * time.Millisecond}, clock)

	_ = s.Put(ctx, "k", "v", time.Second)
	clock.Advance(2 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for s.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("janitor never swept expired entry")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestDecodeErrorsSurface(t *testing.T) {
	ctx := context.Background()
	c, _ := codec.New(codec.KindJSON)
	s, err := New(Config{}, backend.Options{Codec: c})
	if err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	s.entries["bad"] = wire.Envelope{ExpiresAt: time.Now().Add(time.Hour).UnixNano(), Payload: []byte("{not json")}
	s.mu.Unlock()

	if _, _, err := s.Fetch(ctx, "bad"); !errors.Is(err, codec.ErrDecode) {
		t.Fatalf("want decode error, got %v", err)
	}
}

func TestRequiresCodec(t *testing.T) {
	if _, err := New(Config{}, backend.Options{}); !errors.Is(err, backend.ErrNoCodec) {
		t.Fatalf("want ErrNoCodec, got %v", err)
	}
}

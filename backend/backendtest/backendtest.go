// Package backendtest is the compliance suite shared by every backend.
package backendtest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/codec"
)

// Clock is a manual clock for Options.Now.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at the current wall time so stores with server side
// expiry never see entries that are already in the past.
func NewClock() *Clock {
	return &Clock{now: time.Now().Truncate(time.Second)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Harness describes the backend under test.
type Harness struct {
	// New returns a fresh, empty backend built with opts. Register cleanup on t.
	New func(t *testing.T, opts backend.Options) backend.Backend
	// Advance moves store side time along with the clock (e.g. miniredis
	// FastForward). Optional.
	Advance func(d time.Duration)
	// NamespaceUnsupported marks stores that answer namespace clear with
	// backend.ErrUnsupported.
	NamespaceUnsupported bool
	// NativeExpiry marks stores that may drop expired entries on their own, so
	// FetchWithTTL after expiry may report TTLMissing instead of TTLExpired.
	NativeExpiry bool
}

type env struct {
	t     *testing.T
	h     Harness
	clock *Clock
	b     backend.Backend
}

func (h Harness) setup(t *testing.T, ttl time.Duration) *env {
	t.Helper()
	c, err := codec.New(codec.KindJSON)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	clock := NewClock()
	b := h.New(t, backend.Options{Codec: c, TTL: ttl, Now: clock.Now})
	return &env{t: t, h: h, clock: clock, b: b}
}

func (e *env) advance(d time.Duration) {
	e.clock.Advance(d)
	if e.h.Advance != nil {
		e.h.Advance(d)
	}
}

func (e *env) put(key string, v any, ttl time.Duration) {
	e.t.Helper()
	if err := e.b.Put(context.Background(), key, v, ttl); err != nil {
		e.t.Fatalf("Put(%q): %v", key, err)
	}
}

func (e *env) fetch(key string) (any, bool) {
	e.t.Helper()
	v, ok, err := e.b.Fetch(context.Background(), key)
	if err != nil {
		e.t.Fatalf("Fetch(%q): %v", key, err)
	}
	return v, ok
}

func (e *env) fetchTTL(key string) (int, any) {
	e.t.Helper()
	ttl, v, err := e.b.FetchWithTTL(context.Background(), key)
	if err != nil {
		e.t.Fatalf("FetchWithTTL(%q): %v", key, err)
	}
	return ttl, v
}

func (e *env) clear(ns, key string) int {
	e.t.Helper()
	n, err := e.b.Clear(context.Background(), ns, key)
	if err != nil {
		e.t.Fatalf("Clear(%q, %q): %v", ns, key, err)
	}
	return n
}

func (e *env) expectHit(key string, want any) {
	e.t.Helper()
	v, ok := e.fetch(key)
	if !ok {
		e.t.Fatalf("Fetch(%q): expected hit", key)
	}
	if !reflect.DeepEqual(v, want) {
		e.t.Fatalf("Fetch(%q) = %#v, want %#v", key, v, want)
	}
}

func (e *env) expectMiss(key string) {
	e.t.Helper()
	if v, ok := e.fetch(key); ok {
		e.t.Fatalf("Fetch(%q): expected miss, got %#v", key, v)
	}
}

func (e *env) expectGone(key string) {
	e.t.Helper()
	ttl, v := e.fetchTTL(key)
	if v != nil {
		e.t.Fatalf("FetchWithTTL(%q): expected no value, got %#v", key, v)
	}
	switch {
	case ttl == backend.TTLExpired:
	case ttl == backend.TTLMissing && e.h.NativeExpiry:
	default:
		e.t.Fatalf("FetchWithTTL(%q) ttl = %d after expiry", key, ttl)
	}
}

// Run executes the suite. Every subtest gets its own backend.
func Run(t *testing.T, h Harness) {
	t.Helper()

	t.Run("Miss", func(t *testing.T) {
		e := h.setup(t, 0)
		e.expectMiss("absent")
		ttl, v := e.fetchTTL("absent")
		if ttl != backend.TTLMissing || v != nil {
			t.Fatalf("FetchWithTTL on miss = (%d, %#v)", ttl, v)
		}
	})

	t.Run("PutFetch", func(t *testing.T) {
		e := h.setup(t, 0)
		want := map[string]any{"name": "ada", "n": 3.0}
		e.put("user:1", want, 10*time.Second)
		e.expectHit("user:1", want)

		ttl, v := e.fetchTTL("user:1")
		if ttl < 1 || ttl > 10 {
			t.Fatalf("ttl = %d, want 1..10", ttl)
		}
		if !reflect.DeepEqual(v, want) {
			t.Fatalf("FetchWithTTL value = %#v", v)
		}
	})

	t.Run("Expiry", func(t *testing.T) {
		e := h.setup(t, 0)
		e.put("k", "v", 2*time.Second)
		e.advance(3 * time.Second)
		// FetchWithTTL first: lazy eviction on Fetch would turn 0 into -1.
		e.expectGone("k")
		e.expectMiss("k")
		if n := e.clear("", "k"); n != 0 {
			t.Fatalf("Clear of expired key = %d, want 0", n)
		}
	})

	t.Run("ExpiryBoundary", func(t *testing.T) {
		e := h.setup(t, 0)
		e.put("k", "v", 2*time.Second)
		e.advance(2 * time.Second)
		e.expectMiss("k")
	})

	t.Run("ClearKey", func(t *testing.T) {
		e := h.setup(t, 0)
		e.put("k", "v", time.Minute)
		if n := e.clear("", "k"); n != 1 {
			t.Fatalf("Clear = %d, want 1", n)
		}
		e.expectMiss("k")
		if n := e.clear("", "k"); n != 0 {
			t.Fatalf("second Clear = %d, want 0", n)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		e := h.setup(t, 0)
		e.put("k", "v1", time.Minute)
		e.put("k", "v2", 2*time.Second)
		e.expectHit("k", "v2")
		if ttl, _ := e.fetchTTL("k"); ttl < 1 || ttl > 2 {
			t.Fatalf("ttl after overwrite = %d, want 1..2", ttl)
		}
		e.advance(3 * time.Second)
		e.expectMiss("k")
	})

	t.Run("DefaultTTL", func(t *testing.T) {
		e := h.setup(t, 5*time.Second)
		e.put("k", "v", 0)
		if ttl, _ := e.fetchTTL("k"); ttl < 1 || ttl > 5 {
			t.Fatalf("default ttl = %d, want 1..5", ttl)
		}
		e.advance(6 * time.Second)
		e.expectMiss("k")
	})

	t.Run("ClearArgs", func(t *testing.T) {
		e := h.setup(t, 0)
		if _, err := e.b.Clear(context.Background(), "ns:", "ns:k"); !errors.Is(err, backend.ErrClearArgs) {
			t.Fatalf("Clear with both args: %v", err)
		}
		if n := e.clear("", ""); n != 0 {
			t.Fatalf("Clear with neither = %d", n)
		}
	})

	t.Run("Namespace", func(t *testing.T) {
		e := h.setup(t, 0)
		if h.NamespaceUnsupported {
			e.put("user:1", "a", time.Minute)
			_, err := e.b.Clear(context.Background(), "user:", "")
			if !errors.Is(err, backend.ErrUnsupported) {
				t.Fatalf("namespace clear: want ErrUnsupported, got %v", err)
			}
			e.expectHit("user:1", "a")
			return
		}

		e.put("user:old", "x", time.Second)
		e.advance(2 * time.Second)
		e.put("user:1", "a", time.Minute)
		e.put("user:2", "b", time.Minute)
		e.put("order:1", "c", time.Minute)

		if n := e.clear("user:", ""); n != 2 {
			t.Fatalf("namespace clear = %d, want 2", n)
		}
		e.expectMiss("user:1")
		e.expectMiss("user:2")
		e.expectMiss("user:old")
		e.expectHit("order:1", "c")
		if n := e.clear("user:", ""); n != 0 {
			t.Fatalf("second namespace clear = %d, want 0", n)
		}
	})

	t.Run("NamespaceIsLiteral", func(t *testing.T) {
		if h.NamespaceUnsupported {
			t.Skip("namespace clear unsupported")
		}
		e := h.setup(t, 0)
		e.put("a*[b].c:1", "x", time.Minute)
		e.put("aXbYc:1", "y", time.Minute)
		if n := e.clear("a*[b].c:", ""); n != 1 {
			t.Fatalf("literal namespace clear = %d, want 1", n)
		}
		e.expectHit("aXbYc:1", "y")
	})

	t.Run("Concurrent", func(t *testing.T) {
		e := h.setup(t, 0)
		ctx := context.Background()
		var g errgroup.Group
		for w := 0; w < 8; w++ {
			w := w
			g.Go(func() error {
				for i := 0; i < 20; i++ {
					key := fmt.Sprintf("w%d:%d", w, i)
					if err := e.b.Put(ctx, key, key, time.Minute); err != nil {
						return err
					}
					v, ok, err := e.b.Fetch(ctx, key)
					if err != nil {
						return err
					}
					if !ok || v != key {
						return fmt.Errorf("read-your-write failed for %s: %v %v", key, v, ok)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("concurrent use: %v", err)
		}
	})
}

// Package inmemory is the in-process backend: a map of envelopes guarded by
// an RWMutex, evicted lazily on read and optionally swept by a janitor.
package inmemory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/internal/wire"
)

const name = "inmemory"

type Config struct {
	// CleanupInterval > 0 starts a goroutine that drops expired entries.
	CleanupInterval time.Duration
}

type Store struct {
	opts backend.Options

	mu      sync.RWMutex
	entries map[string]wire.Envelope

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ backend.Backend = (*Store)(nil)

func New(cfg Config, opts backend.Options) (*Store, error) {
	if opts.Codec == nil {
		return nil, backend.ErrNoCodec
	}
	s := &Store{
		opts:    opts.Normalize(),
		entries: make(map[string]wire.Envelope),
	}
	if cfg.CleanupInterval > 0 {
		s.ticker = time.NewTicker(cfg.CleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup()
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s, nil
}

// lookup returns the entry and whether it was present. Expired entries are
// deleted before returning.
func (s *Store) lookup(key string) (wire.Envelope, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || e.Live(s.opts.Now()) {
		return e, ok
	}

	s.mu.Lock()
	// recheck: a concurrent Put may have replaced it
	cur, still := s.entries[key]
	evict := still && !cur.Live(s.opts.Now())
	if evict {
		delete(s.entries, key)
	}
	s.mu.Unlock()
	if evict {
		s.opts.Logger.Debug("cachette: evicted expired entry", backend.Fields{"backend": name, "key": key})
	}
	return e, true
}

func (s *Store) Fetch(_ context.Context, key string) (any, bool, error) {
	e, ok := s.lookup(key)
	if !ok || !e.Live(s.opts.Now()) {
		return nil, false, nil
	}
	v, err := s.opts.Codec.Decode(e.Payload)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Store) FetchWithTTL(_ context.Context, key string) (int, any, error) {
	e, ok := s.lookup(key)
	if !ok {
		return backend.TTLMissing, nil, nil
	}
	now := s.opts.Now()
	if !e.Live(now) {
		return backend.TTLExpired, nil, nil
	}
	v, err := s.opts.Codec.Decode(e.Payload)
	if err != nil {
		return 0, nil, err
	}
	return e.Remaining(now), v, nil
}

func (s *Store) Put(_ context.Context, key string, v any, ttl time.Duration) error {
	payload, err := s.opts.Codec.Encode(v)
	if err != nil {
		return err
	}
	e := wire.Envelope{ExpiresAt: wire.ExpiresAt(s.opts.Now(), s.opts.TTLFor(ttl)), Payload: payload}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

func (s *Store) Clear(_ context.Context, namespace, key string) (int, error) {
	if done, err := backend.CheckClear(namespace, key); done {
		return 0, err
	}
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if key != "" {
		e, ok := s.entries[key]
		if !ok {
			return 0, nil
		}
		delete(s.entries, key)
		if e.Live(now) {
			return 1, nil
		}
		return 0, nil
	}

	n := 0
	for k, e := range s.entries {
		if !strings.HasPrefix(k, namespace) {
			continue
		}
		delete(s.entries, k)
		if e.Live(now) {
			n++
		}
	}
	s.opts.Logger.Debug("cachette: namespace cleared", backend.Fields{"backend": name, "namespace": namespace, "removed": n})
	return n, nil
}

// Cleanup drops every expired entry and returns how many were removed.
func (s *Store) Cleanup() int {
	now := s.opts.Now()
	n := 0
	s.mu.Lock()
	for k, e := range s.entries {
		if !e.Live(now) {
			delete(s.entries, k)
			n++
		}
	}
	s.mu.Unlock()
	if n > 0 {
		s.opts.Logger.Debug("cachette: janitor swept entries", backend.Fields{"backend": name, "removed": n})
	}
	return n
}

// Len counts stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the janitor. Safe to call multiple times.
func (s *Store) Close(_ context.Context) error {
	s.once.Do(func() {
		if s.stopCh != nil {
			s.ticker.Stop()
			close(s.stopCh)
			s.wg.Wait()
		}
	})
	return nil
}

// Package file keeps the whole cache in one local file. Every operation reads
// the file, works on it in memory and, when something changed, writes it
// back through a temp file and rename.
//
// A mutex serializes callers within one process. Several processes writing
// the same file can still lose updates.
package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/codec"
	"github.com/unkn0wn-root/cachette/internal/wire"
)

const name = "file"

var ErrNoPath = errors.New("file backend: path is required")

type Config struct {
	Path string
	// Perm for newly created files; 0 means 0o600.
	Perm fs.FileMode
}

type File struct {
	path string
	perm fs.FileMode
	opts backend.Options
	mu   sync.Mutex
}

var _ backend.Backend = (*File)(nil)

func New(cfg Config, opts backend.Options) (*File, error) {
	if opts.Codec == nil {
		return nil, backend.ErrNoCodec
	}
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	perm := cfg.Perm
	if perm == 0 {
		perm = 0o600
	}
	return &File{path: cfg.Path, perm: perm, opts: opts.Normalize()}, nil
}

// load returns every record in the file; a missing file is an empty table.
func (f *File) load(op string) (map[string]wire.Envelope, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]wire.Envelope{}, nil
	}
	if err != nil {
		return nil, backend.Unavailable(name, op, "", err)
	}
	recs, err := wire.DecodeTable(b)
	if err != nil {
		return nil, codec.Decoding("table", err)
	}
	m := make(map[string]wire.Envelope, len(recs))
	for _, r := range recs {
		m[r.Key] = r.Envelope
	}
	return m, nil
}

func (f *File) store(op string, m map[string]wire.Envelope) error {
	recs := make([]wire.Record, 0, len(m))
	for k, e := range m {
		recs = append(recs, wire.Record{Key: k, Envelope: e})
	}
	b, err := wire.EncodeTable(recs)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return backend.Unavailable(name, op, "", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return backend.Unavailable(name, op, "", err)
	}
	if err := tmp.Chmod(f.perm); err != nil {
		_ = tmp.Close()
		return backend.Unavailable(name, op, "", err)
	}
	if err := tmp.Close(); err != nil {
		return backend.Unavailable(name, op, "", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return backend.Unavailable(name, op, "", err)
	}
	return nil
}

// read looks key up and drops it from the file when expired.
func (f *File) read(op, key string) (wire.Envelope, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load(op)
	if err != nil {
		return wire.Envelope{}, false, err
	}
	e, ok := m[key]
	if !ok || e.Live(f.opts.Now()) {
		return e, ok, nil
	}
	delete(m, key)
	if err := f.store(op, m); err != nil {
		return wire.Envelope{}, false, err
	}
	f.opts.Logger.Debug("cachette: evicted expired entry", backend.Fields{"backend": name, "key": key})
	return e, true, nil
}

func (f *File) Fetch(_ context.Context, key string) (any, bool, error) {
	e, ok, err := f.read("fetch", key)
	if err != nil || !ok || !e.Live(f.opts.Now()) {
		return nil, false, err
	}
	v, err := f.opts.Codec.Decode(e.Payload)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (f *File) FetchWithTTL(_ context.Context, key string) (int, any, error) {
	e, ok, err := f.read("fetch_with_ttl", key)
	if err != nil {
		return 0, nil, err
	}
	if !ok {
		return backend.TTLMissing, nil, nil
	}
	now := f.opts.Now()
	if !e.Live(now) {
		return backend.TTLExpired, nil, nil
	}
	v, err := f.opts.Codec.Decode(e.Payload)
	if err != nil {
		return 0, nil, err
	}
	return e.Remaining(now), v, nil
}

func (f *File) Put(_ context.Context, key string, v any, ttl time.Duration) error {
	if l := len(key); l == 0 || l > wire.MaxKeyLen {
		return &backend.OpError{Backend: name, Op: "put", Key: key, Kind: backend.ErrRejected, Err: wire.ErrKeyLength}
	}
	payload, err := f.opts.Codec.Encode(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load("put")
	if err != nil {
		return err
	}
	m[key] = wire.Envelope{ExpiresAt: wire.ExpiresAt(f.opts.Now(), f.opts.TTLFor(ttl)), Payload: payload}
	return f.store("put", m)
}

func (f *File) Clear(_ context.Context, namespace, key string) (int, error) {
	if done, err := backend.CheckClear(namespace, key); done {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	m, err := f.load("clear")
	if err != nil {
		return 0, err
	}
	now := f.opts.Now()
	removed, n := 0, 0
	for k, e := range m {
		if (key != "" && k == key) || (namespace != "" && strings.HasPrefix(k, namespace)) {
			delete(m, k)
			removed++
			if e.Live(now) {
				n++
			}
		}
	}
	if removed == 0 {
		return 0, nil
	}
	if err := f.store("clear", m); err != nil {
		return 0, err
	}
	if namespace != "" {
		f.opts.Logger.Debug("cachette: namespace cleared", backend.Fields{"backend": name, "namespace": namespace, "removed": n})
	}
	return n, nil
}

func (f *File) Close(context.Context) error { return nil }

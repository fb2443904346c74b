// Package bolt is a persistent single-file backend on bbolt. Values are
// stored framed with their expiry in one bucket; expired entries are removed
// when read.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"time"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/unkn0wn-root/cachette/backend"
)

const (
	name          = "bolt"
	DefaultBucket = "cachette"
)

var ErrNoPath = errors.New("bolt backend: path is required")

type Config struct {
	Path   string
	Bucket string
	// Timeout waits for the file lock held by another process. Zero means 1s.
	Timeout time.Duration
}

type Bolt struct {
	db     *bolt.DB
	bucket []byte
	opts   backend.Options
}

var _ backend.Backend = (*Bolt)(nil)

func Open(cfg Config, opts backend.Options) (*Bolt, error) {
	if opts.Codec == nil {
		return nil, backend.ErrNoCodec
	}
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bolt.Open(cfg.Path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, backend.Unavailable(name, "open", "", err)
	}
	bucket := []byte(DefaultBucket)
	if cfg.Bucket != "" {
		bucket = []byte(cfg.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, backend.Unavailable(name, "open", "", err)
	}
	return &Bolt{db: db, bucket: bucket, opts: opts.Normalize()}, nil
}

// get copies the stored frame out of the read transaction.
func (b *Bolt) get(op, key string) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(b.bucket).Get([]byte(key)); v != nil {
			out = bytes.Clone(v)
		}
		return nil
	})
	if err != nil {
		return nil, backend.Unavailable(name, op, key, err)
	}
	return out, nil
}

// evict deletes key if it is still expired when the write transaction runs.
func (b *Bolt) evict(key string) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		v := bk.Get([]byte(key))
		if v == nil || b.opts.Live(v) {
			return nil
		}
		return bk.Delete([]byte(key))
	})
	if err != nil {
		b.opts.Logger.Warn("cachette: lazy eviction failed", backend.Fields{"backend": name, "key": key, "err": err})
	}
}

func (b *Bolt) Fetch(_ context.Context, key string) (any, bool, error) {
	raw, err := b.get("fetch", key)
	if err != nil || raw == nil {
		return nil, false, err
	}
	v, _, live, err := b.opts.Unseal(raw)
	if err != nil {
		return nil, false, err
	}
	if !live {
		b.evict(key)
		return nil, false, nil
	}
	return v, true, nil
}

func (b *Bolt) FetchWithTTL(_ context.Context, key string) (int, any, error) {
	raw, err := b.get("fetch_with_ttl", key)
	if err != nil {
		return 0, nil, err
	}
	if raw == nil {
		return backend.TTLMissing, nil, nil
	}
	v, ttl, live, err := b.opts.Unseal(raw)
	if err != nil {
		return 0, nil, err
	}
	if !live {
		b.evict(key)
		return backend.TTLExpired, nil, nil
	}
	return ttl, v, nil
}

func (b *Bolt) Put(_ context.Context, key string, v any, ttl time.Duration) error {
	raw, err := b.opts.Seal(v, ttl)
	if err != nil {
		return err
	}
	err = b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(b.bucket).Put([]byte(key), raw)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, berrors.ErrKeyRequired), errors.Is(err, berrors.ErrKeyTooLarge), errors.Is(err, berrors.ErrValueTooLarge):
		return &backend.OpError{Backend: name, Op: "put", Key: key, Kind: backend.ErrRejected, Err: err}
	default:
		return backend.Unavailable(name, "put", key, err)
	}
}

// Clear runs in one write transaction. Namespace mode seeks to the prefix and
// walks forward while keys still match.
func (b *Bolt) Clear(_ context.Context, namespace, key string) (int, error) {
	if done, err := backend.CheckClear(namespace, key); done {
		return 0, err
	}
	n := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket(b.bucket)
		if key != "" {
			v := bk.Get([]byte(key))
			if v == nil {
				return nil
			}
			if b.opts.Live(v) {
				n = 1
			}
			return bk.Delete([]byte(key))
		}

		prefix := []byte(namespace)
		var doomed [][]byte
		c := bk.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			doomed = append(doomed, bytes.Clone(k))
			if b.opts.Live(v) {
				n++
			}
		}
		for _, k := range doomed {
			if err := bk.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, backend.Unavailable(name, "clear", namespace+key, err)
	}
	if namespace != "" {
		b.opts.Logger.Debug("cachette: namespace cleared", backend.Fields{"backend": name, "namespace": namespace, "removed": n})
	}
	return n, nil
}

func (b *Bolt) Close(context.Context) error { return b.db.Close() }

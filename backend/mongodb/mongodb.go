// Package mongodb is the MongoDB backend. Each entry is one document
// {key, value, expires}; a TTL index on expires lets the server reap old
// documents while reads compare expires against the clock for exact liveness.
package mongodb

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/cachette/backend"
	"github.com/unkn0wn-root/cachette/internal/wire"
)

const (
	name              = "mongodb"
	DefaultCollection = "cachette"
)

var ErrNoDatabase = errors.New("mongodb backend: database name is required")

type Config struct {
	// Client wins over URL when set; it is never disconnected by Close.
	Client     *mongo.Client
	URL        string
	Database   string
	Collection string
}

type entry struct {
	Key     string    `bson:"key"`
	Value   []byte    `bson:"value"`
	Expires time.Time `bson:"expires"`
}

type MongoDB struct {
	client *mongo.Client
	owned  bool
	db     *mongo.Database
	coll   *mongo.Collection
	opts   backend.Options

	ready atomic.Bool
	sf    singleflight.Group
}

var _ backend.Backend = (*MongoDB)(nil)

func New(ctx context.Context, cfg Config, opts backend.Options) (*MongoDB, error) {
	if opts.Codec == nil {
		return nil, backend.ErrNoCodec
	}
	if cfg.Database == "" {
		return nil, ErrNoDatabase
	}
	client, owned := cfg.Client, false
	if client == nil {
		c, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URL))
		if err != nil {
			return nil, backend.Unavailable(name, "connect", "", err)
		}
		client, owned = c, true
	}
	coll := cfg.Collection
	if coll == "" {
		coll = DefaultCollection
	}
	db := client.Database(cfg.Database)
	return &MongoDB{
		client: client,
		owned:  owned,
		db:     db,
		coll:   db.Collection(coll),
		opts:   opts.Normalize(),
	}, nil
}

// ensure provisions the collection and its indexes once. Concurrent first
// callers share one attempt; a failed attempt is retried on the next call.
func (m *MongoDB) ensure(ctx context.Context) error {
	if m.ready.Load() {
		return nil
	}
	_, err, _ := m.sf.Do("provision", func() (any, error) {
		if m.ready.Load() {
			return nil, nil
		}
		collName := m.coll.Name()
		names, err := m.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: collName}})
		if err != nil {
			return nil, err
		}
		if len(names) == 0 {
			if err := m.db.CreateCollection(ctx, collName); err != nil {
				var ce mongo.CommandError
				// NamespaceExists: another process won the race
				if !errors.As(err, &ce) || ce.Code != 48 {
					return nil, err
				}
			}
			m.opts.Logger.Info("cachette: created collection", backend.Fields{"backend": name, "collection": collName})
		}
		_, err = m.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "expires", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		})
		if err != nil {
			return nil, err
		}
		m.ready.Store(true)
		return nil, nil
	})
	if err != nil {
		return backend.Unavailable(name, "provision", m.coll.Name(), err)
	}
	return nil
}

func (m *MongoDB) find(ctx context.Context, op, key string) (*entry, error) {
	if err := m.ensure(ctx); err != nil {
		return nil, err
	}
	var e entry
	err := m.coll.FindOne(ctx, bson.M{"key": key}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, backend.Unavailable(name, op, key, err)
	}
	return &e, nil
}

// expiresAt rounds up to the millisecond BSON dates keep, so a stored entry
// never expires before its ttl has passed.
func expiresAt(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl).Add(time.Millisecond - 1).Truncate(time.Millisecond)
}

func live(e *entry, now time.Time) bool { return e.Expires.Sub(now) > 0 }

// evict removes key only if it is still expired, so a concurrent Put survives.
func (m *MongoDB) evict(ctx context.Context, key string, now time.Time) {
	_, err := m.coll.DeleteOne(ctx, bson.M{"key": key, "expires": bson.M{"$lte": now}})
	if err != nil {
		m.opts.Logger.Warn("cachette: lazy eviction failed", backend.Fields{"backend": name, "key": key, "err": err})
	}
}

func (m *MongoDB) Fetch(ctx context.Context, key string) (any, bool, error) {
	e, err := m.find(ctx, "fetch", key)
	if err != nil || e == nil {
		return nil, false, err
	}
	now := m.opts.Now()
	if !live(e, now) {
		m.evict(ctx, key, now)
		return nil, false, nil
	}
	v, err := m.opts.Codec.Decode(e.Value)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (m *MongoDB) FetchWithTTL(ctx context.Context, key string) (int, any, error) {
	e, err := m.find(ctx, "fetch_with_ttl", key)
	if err != nil {
		return 0, nil, err
	}
	if e == nil {
		return backend.TTLMissing, nil, nil
	}
	now := m.opts.Now()
	if !live(e, now) {
		m.evict(ctx, key, now)
		return backend.TTLExpired, nil, nil
	}
	v, err := m.opts.Codec.Decode(e.Value)
	if err != nil {
		return 0, nil, err
	}
	return wire.Seconds(e.Expires.Sub(now)), v, nil
}

func (m *MongoDB) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := m.opts.Codec.Encode(v)
	if err != nil {
		return err
	}
	if err := m.ensure(ctx); err != nil {
		return err
	}
	doc := entry{Key: key, Value: b, Expires: expiresAt(m.opts.Now(), m.opts.TTLFor(ttl))}
	_, err = m.coll.ReplaceOne(ctx, bson.M{"key": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return backend.Unavailable(name, "put", key, err)
	}
	return nil
}

func (m *MongoDB) Clear(ctx context.Context, namespace, key string) (int, error) {
	if done, err := backend.CheckClear(namespace, key); done {
		return 0, err
	}
	if err := m.ensure(ctx); err != nil {
		return 0, err
	}
	now := m.opts.Now()

	if key != "" {
		var e entry
		err := m.coll.FindOneAndDelete(ctx, bson.M{"key": key}).Decode(&e)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, nil
		}
		if err != nil {
			return 0, backend.Unavailable(name, "clear", key, err)
		}
		if live(&e, now) {
			return 1, nil
		}
		return 0, nil
	}

	prefix := bson.M{"$regex": "^" + regexp.QuoteMeta(namespace)}
	res, err := m.coll.DeleteMany(ctx, bson.M{"key": prefix, "expires": bson.M{"$gt": now}})
	if err != nil {
		return 0, backend.Unavailable(name, "clear", namespace, err)
	}
	// whatever is left under the prefix is expired and not counted
	if _, err := m.coll.DeleteMany(ctx, bson.M{"key": prefix}); err != nil {
		return 0, backend.Unavailable(name, "clear", namespace, err)
	}
	n := int(res.DeletedCount)
	m.opts.Logger.Debug("cachette: namespace cleared", backend.Fields{"backend": name, "namespace": namespace, "removed": n})
	return n, nil
}

// Close disconnects the client when the backend created it.
func (m *MongoDB) Close(ctx context.Context) error {
	if !m.owned {
		return nil
	}
	if err := m.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return err
	}
	return nil
}

// Package cachette is a TTL key-value cache with one contract over several
// stores (in-process map, Redis/Valkey, Memcached, MongoDB, a local file,
// Ristretto, BigCache and bbolt) and pluggable codecs.
//
// Configuration is a flat set of named options resolved once into a Config:
//
//	c, err := cachette.Open(ctx,
//		cachette.Opt("backend", "redis"),
//		cachette.Opt("redis_url", "redis://localhost:6379/0"),
//		cachette.Opt("codec", "msgpack"),
//		cachette.Opt("ttl", 300),
//	)
//
// The Cache then exposes four operations:
//
//	Fetch(key)          value or a miss
//	FetchWithTTL(key)   remaining seconds (-1 absent, 0 expired) and value
//	Put(key, v, ttl)    ttl <= 0 uses the configured ttl
//	Clear(ns, key)      one key or every key starting with ns
//
// An entry is live while its absolute expiry is strictly in the future. A miss
// is never an error; transport failures match ErrBackendUnavailable and
// namespace clear on stores that cannot enumerate keys matches ErrUnsupported.
package cachette

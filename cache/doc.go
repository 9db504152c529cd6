// Package cache provides a keyed time-bounded cache with pluggable storage
// backends and a type-safe generic view.
//
// # Model
//
// Every entry is a value plus the time it was inserted. Entries are immutable:
// [TTL.Set] replaces the whole entry, so a reader never observes a partially
// updated value. Freshness is not a property of the entry but of the question
// being asked: [TTL.IsExpired] and [TTL.Lookup] take the TTL as an argument and
// compare it against the insertion time at read time. `now - insertedAt > ttl`
// means expired; an entry exactly ttl old is still fresh.
//
// There is no background eviction and no size bound. An expired entry that
// is never read again stays in the backend until it is overwritten, removed
// with [TTL.Remove], [TTL.RemoveMatching] or [TTL.RemoveFunc], or the cache is
// cleared. This suits small, bounded key spaces such as reference catalogs.
//
// # Backends
//
//   - [NewInMemory]: In-process map guarded by a mutex. Values are stored
//     as-is, so callers must not mutate what they store. Lost on restart.
//
//   - [NewRedis]: Backed by Redis using [github.com/redis/go-redis/v9].
//     Values are msgpack encoded into a hash together with their insertion
//     time. A key prefix (default [DefaultPrefix]) namespaces the cache. The
//     caller owns the client.
//
//   - [NewSQLite]: Backed by [modernc.org/sqlite] (pure Go). Values are
//     msgpack encoded BLOBs. File-backed databases survive restarts.
//
// # Typed view
//
// [New] wraps a backend in a [TTL] view for a single value type. For the
// in-memory backend the view performs a direct type assertion; for serialized
// backends it decodes the stored bytes with [github.com/vmihailenco/msgpack/v5].
// An entry that cannot be turned back into the view's type is corrupt: it is
// deleted, counted in [Stats.Corrupt] and reported as a miss, never as an
// error. Backend I/O errors are returned to the caller, who decides whether to
// treat them as a miss.
package cache

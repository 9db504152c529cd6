package cache

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Stats is a point-in-time snapshot of a TTL view's counters.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Stale   uint64 `json:"stale"`
	Sets    uint64 `json:"sets"`
	Corrupt uint64 `json:"corrupt"`
}

// TTL is a typed view over a Backend. It stores the most recent value per key
// together with its insertion time and answers freshness questions lazily at
// read time; there is no background sweeping, an expired entry stays in the
// backend until it is overwritten or removed.
type TTL[V any] struct {
	backend Backend
	cfg     config

	hits    atomic.Uint64
	misses  atomic.Uint64
	stale   atomic.Uint64
	sets    atomic.Uint64
	corrupt atomic.Uint64
}

// New returns a typed view over backend. Several views may share one backend
// as long as their keys do not collide.
func New[V any](backend Backend, opts ...Option) *TTL[V] {
	return &TTL[V]{backend: backend, cfg: applyOptions(opts)}
}

// Backend returns the store beneath the view.
func (c *TTL[V]) Backend() Backend {
	return c.backend
}

// decode converts a loaded entry into V. In-memory backends hand back the
// stored object, serialized backends hand back msgpack bytes.
func (c *TTL[V]) decode(ctx context.Context, key string, entry Entry) (V, bool) {
	if typed, ok := entry.Value.(V); ok {
		return typed, true
	}
	var result V
	if data, ok := entry.Value.([]byte); ok {
		err := msgpack.Unmarshal(data, &result)
		if err == nil {
			return result, true
		}
		c.cfg.logger.Warn("cache: dropping undecodable entry %s: %s", key, err)
	} else {
		c.cfg.logger.Warn("cache: dropping entry %s of unexpected type %T", key, entry.Value)
	}
	c.corrupt.Add(1)
	if _, err := c.backend.Delete(ctx, key); err != nil {
		c.cfg.logger.Warn("cache: failed to delete corrupt entry %s: %s", key, err)
	}
	var zero V
	return zero, false
}

func (c *TTL[V]) load(ctx context.Context, key string) (V, time.Time, bool, error) {
	var zero V
	entry, found, err := c.backend.Load(ctx, key)
	if err != nil {
		return zero, time.Time{}, false, errors.Wrapf(err, "cache: load %s", key)
	}
	if !found {
		return zero, time.Time{}, false, nil
	}
	val, ok := c.decode(ctx, key, entry)
	if !ok {
		return zero, time.Time{}, false, nil
	}
	return val, entry.InsertedAt, true, nil
}

func (c *TTL[V]) expired(insertedAt time.Time, ttl time.Duration) bool {
	return c.cfg.now().Sub(insertedAt) > ttl
}

// Get returns the stored value regardless of its age.
func (c *TTL[V]) Get(ctx context.Context, key string) (V, bool, error) {
	val, _, found, err := c.load(ctx, key)
	return val, found, err
}

// IsExpired reports whether key is absent or older than ttl.
func (c *TTL[V]) IsExpired(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	_, insertedAt, found, err := c.load(ctx, key)
	if err != nil {
		return true, err
	}
	if !found {
		return true, nil
	}
	return c.expired(insertedAt, ttl), nil
}

// Lookup returns the value under key only if it is present and not older than
// ttl. Freshness and value come from the same entry.
func (c *TTL[V]) Lookup(ctx context.Context, key string, ttl time.Duration) (V, bool, error) {
	val, insertedAt, found, err := c.load(ctx, key)
	if err != nil {
		c.misses.Add(1)
		return val, false, err
	}
	if !found {
		c.misses.Add(1)
		return val, false, nil
	}
	if c.expired(insertedAt, ttl) {
		c.stale.Add(1)
		var zero V
		return zero, false, nil
	}
	c.hits.Add(1)
	return val, true, nil
}

// Set inserts or replaces the value under key, stamping it with the current time.
func (c *TTL[V]) Set(ctx context.Context, key string, value V) error {
	if err := c.backend.Store(ctx, key, Entry{Value: value, InsertedAt: c.cfg.now()}); err != nil {
		return errors.Wrapf(err, "cache: store %s", key)
	}
	c.sets.Add(1)
	return nil
}

// Remove deletes a single key.
func (c *TTL[V]) Remove(ctx context.Context, key string) (bool, error) {
	return c.backend.Delete(ctx, key)
}

// RemoveMatching deletes every key beginning with prefix and returns how many
// were removed.
func (c *TTL[V]) RemoveMatching(ctx context.Context, prefix string) (int, error) {
	return c.remove(ctx, prefix, func(key string) bool { return strings.HasPrefix(key, prefix) })
}

// RemoveFunc deletes every key for which fn returns true.
func (c *TTL[V]) RemoveFunc(ctx context.Context, fn func(key string) bool) (int, error) {
	return c.remove(ctx, "", fn)
}

func (c *TTL[V]) remove(ctx context.Context, prefix string, fn func(key string) bool) (int, error) {
	keys, err := c.backend.Keys(ctx, prefix)
	if err != nil {
		return 0, errors.Wrap(err, "cache: list keys")
	}
	var removed int
	for _, key := range keys {
		if !fn(key) {
			continue
		}
		ok, err := c.backend.Delete(ctx, key)
		if err != nil {
			return removed, errors.Wrapf(err, "cache: delete %s", key)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}

// Clear empties the backend.
func (c *TTL[V]) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// Stats returns the view's counters.
func (c *TTL[V]) Stats() Stats {
	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Stale:   c.stale.Load(),
		Sets:    c.sets.Load(),
		Corrupt: c.corrupt.Load(),
	}
}

package cache

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	redisValueField    = "v"
	redisInsertedField = "t"
	redisScanCount     = 256
)

type redisCache struct {
	client *redis.Client
	cfg    config
}

var _ Backend = (*redisCache)(nil)

// NewRedis returns a new Backend stored in Redis hashes (field "v" holds the
// msgpack value, field "t" the insertion time in unix nanoseconds). Keys carry
// no Redis TTL since freshness is decided by the reader. Every process using
// the same client and prefix shares the cache.
// The caller owns the client; Close does not close it.
func NewRedis(client *redis.Client, opts ...Option) Backend {
	return &redisCache{client: client, cfg: applyOptions(opts)}
}

func (c *redisCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

func (c *redisCache) prefixKey(key string) string {
	if c.cfg.prefix == "" {
		return key
	}
	return c.cfg.prefix + ":" + key
}

func (c *redisCache) unprefixKey(key string) string {
	if c.cfg.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, c.cfg.prefix+":")
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (c *redisCache) Load(ctx context.Context, key string) (Entry, bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	fields, err := c.client.HGetAll(qctx, c.prefixKey(key)).Result()
	if err != nil {
		return Entry{}, false, err
	}
	data, ok := fields[redisValueField]
	if !ok {
		return Entry{}, false, nil
	}
	nanos, err := strconv.ParseInt(fields[redisInsertedField], 10, 64)
	if err != nil {
		return Entry{}, false, errors.Wrapf(err, "redis cache: bad insertion time for %s", key)
	}
	return Entry{Value: []byte(data), InsertedAt: time.Unix(0, nanos)}, true, nil
}

func (c *redisCache) Store(ctx context.Context, key string, entry Entry) error {
	data, err := msgpack.Marshal(entry.Value)
	if err != nil {
		return err
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.HSet(qctx, c.prefixKey(key),
		redisValueField, data,
		redisInsertedField, entry.InsertedAt.UnixNano(),
	).Err()
}

func (c *redisCache) Delete(ctx context.Context, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	result, err := c.client.Del(qctx, c.prefixKey(key)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

func (c *redisCache) Keys(ctx context.Context, prefix string) ([]string, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	pattern := globEscaper.Replace(prefix) + "*"
	if c.cfg.prefix != "" {
		pattern = globEscaper.Replace(c.cfg.prefix) + ":" + pattern
	}
	var keys []string
	iter := c.client.Scan(qctx, 0, pattern, redisScanCount).Iterator()
	for iter.Next(qctx) {
		keys = append(keys, c.unprefixKey(iter.Val()))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

func (c *redisCache) Clear(ctx context.Context) error {
	keys, err := c.Keys(ctx, "")
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = c.prefixKey(key)
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.client.Del(qctx, full...).Err()
}

// Close leaves the client open for its owner.
func (c *redisCache) Close() error {
	return nil
}

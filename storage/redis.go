package storage

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"

	"github.com/agentuity/go-catalog/resilience"
)

const (
	fieldData        = "d"
	fieldContentType = "ct"
	fieldETag        = "etag"
	fieldUpdated     = "t"
	scanCount        = 256
)

// DefaultPrefix namespaces object keys in a shared Redis.
const DefaultPrefix = "catalog:objects"

type redisStore struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

var _ Provider = (*redisStore)(nil)

type RedisOption func(*redisStore)

func WithPrefix(prefix string) RedisOption {
	return func(r *redisStore) { r.prefix = prefix }
}

// WithTimeout bounds each Redis round trip.
func WithTimeout(d time.Duration) RedisOption {
	return func(r *redisStore) { r.timeout = d }
}

// NewRedis returns a Provider storing each object in a Redis hash. The
// caller owns the client.
func NewRedis(client *redis.Client, opts ...RedisOption) Provider {
	r := &redisStore{client: client, prefix: DefaultPrefix, timeout: 5 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *redisStore) key(key string) string {
	return r.prefix + ":" + key
}

func (r *redisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, r.timeout)
}

func (r *redisStore) Put(ctx context.Context, key string, data []byte, contentType string) (Object, error) {
	if key == "" {
		return Object{}, resilience.Permanent(errors.New("storage: key is required"))
	}
	obj := Object{Key: key, Size: int64(len(data)), ContentType: contentType, ETag: ETag(data), UpdatedAt: r.now()}
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	err := r.client.HSet(qctx, r.key(key),
		fieldData, data,
		fieldContentType, contentType,
		fieldETag, obj.ETag,
		fieldUpdated, obj.UpdatedAt.UnixNano(),
	).Err()
	if err != nil {
		return Object{}, errors.Wrapf(err, "storage: put %s", key)
	}
	return obj, nil
}

func (r *redisStore) object(key string, fields map[string]string) (Object, error) {
	nanos, err := strconv.ParseInt(fields[fieldUpdated], 10, 64)
	if err != nil {
		return Object{}, errors.Wrapf(err, "storage: bad timestamp for %s", key)
	}
	return Object{
		Key:         key,
		Size:        int64(len(fields[fieldData])),
		ContentType: fields[fieldContentType],
		ETag:        fields[fieldETag],
		UpdatedAt:   time.Unix(0, nanos),
	}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, Object, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	fields, err := r.client.HGetAll(qctx, r.key(key)).Result()
	if err != nil {
		return nil, Object{}, errors.Wrapf(err, "storage: get %s", key)
	}
	data, ok := fields[fieldData]
	if !ok {
		return nil, Object{}, resilience.Absent(errors.Wrapf(ErrNotFound, "%s", key))
	}
	obj, err := r.object(key, fields)
	if err != nil {
		return nil, Object{}, err
	}
	return []byte(data), obj, nil
}

func (r *redisStore) Delete(ctx context.Context, key string) error {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	n, err := r.client.Del(qctx, r.key(key)).Result()
	if err != nil {
		return errors.Wrapf(err, "storage: delete %s", key)
	}
	if n == 0 {
		return resilience.Absent(errors.Wrapf(ErrNotFound, "%s", key))
	}
	return nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func (r *redisStore) List(ctx context.Context, prefix string) ([]Object, error) {
	qctx, cancel := r.queryCtx(ctx)
	defer cancel()
	pattern := globEscaper.Replace(r.key(prefix)) + "*"
	var out []Object
	iter := r.client.Scan(qctx, 0, pattern, scanCount).Iterator()
	for iter.Next(qctx) {
		full := iter.Val()
		fields, err := r.client.HGetAll(qctx, full).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "storage: list %s", prefix)
		}
		if _, ok := fields[fieldData]; !ok {
			continue
		}
		obj, err := r.object(strings.TrimPrefix(full, r.prefix+":"), fields)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(err, "storage: list %s", prefix)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if out == nil {
		out = []Object{}
	}
	return out, nil
}

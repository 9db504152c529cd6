package cache

import (
	"context"
	"time"

	"github.com/agentuity/go-catalog/logger"
)

// Entry is a single cached value and the moment it was stored. Entries are
// never mutated in place; a write replaces the whole entry.
type Entry struct {
	Value      any
	InsertedAt time.Time
}

// Backend is the untyped key/entry store beneath a TTL view. Implementations
// must be safe for concurrent use. Backends never expire entries on their
// own: freshness is decided by the reader.
type Backend interface {
	// Load returns the entry stored under key. Serialized backends return the
	// encoded value as []byte.
	Load(ctx context.Context, key string) (Entry, bool, error)
	// Store inserts or replaces the entry under key.
	Store(ctx context.Context, key string, entry Entry) error
	// Delete removes key, reporting whether it was present.
	Delete(ctx context.Context, key string) (bool, error)
	// Keys lists the stored keys beginning with prefix. An empty prefix lists every key.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Clear removes every entry.
	Clear(ctx context.Context) error
	// Close releases resources owned by the backend.
	Close() error
}

// DefaultQueryTimeout is the per-operation timeout for cache backends that
// perform I/O (SQLite, Redis).
const DefaultQueryTimeout = 5 * time.Second

// DefaultPrefix namespaces keys in shared Redis instances.
const DefaultPrefix = "catalog"

// config holds the resolved configuration for a backend or a TTL view.
type config struct {
	queryTimeout time.Duration
	prefix       string
	now          func() time.Time
	logger       logger.Logger
}

// Option configures a Backend or a TTL view. Options that do not apply to a
// given constructor are ignored.
type Option func(*config)

func defaultConfig() config {
	return config{
		queryTimeout: DefaultQueryTimeout,
		prefix:       DefaultPrefix,
		now:          time.Now,
		logger:       logger.Discard(),
	}
}

func applyOptions(opts []Option) config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithQueryTimeout sets the per-operation timeout for I/O-backed caches
// (SQLite, Redis). Defaults to DefaultQueryTimeout (5 seconds).
func WithQueryTimeout(d time.Duration) Option {
	return func(c *config) { c.queryTimeout = d }
}

// WithPrefix sets the key prefix for namespacing cache keys.
// Applies to the Redis backend. Defaults to DefaultPrefix.
func WithPrefix(p string) Option {
	return func(c *config) { c.prefix = p }
}

// WithNow overrides the clock used to stamp and age entries.
func WithNow(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithLogger sets the logger used to report corrupt entries and backend errors.
func WithLogger(log logger.Logger) Option {
	return func(c *config) { c.logger = log }
}

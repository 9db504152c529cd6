package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/agentuity/go-catalog/cache"
	"github.com/agentuity/go-catalog/catalog"
	"github.com/agentuity/go-catalog/logger"
	"github.com/agentuity/go-catalog/resilience"
)

// DefaultRefreshLimit bounds concurrent background refreshes per repository.
const DefaultRefreshLimit = 4

// Repository serves the collections of one kind from the shared cache,
// fetching through the source dispatcher when an entry is missing or stale.
//
// Concurrent misses on the same key each trigger a fetch unless the
// repository was built WithCoalescing.
type Repository[T catalog.Record] struct {
	kind         catalog.Kind
	ttl          time.Duration
	cache        *cache.TTL[[]T]
	dispatcher   *resilience.Dispatcher[catalog.Source]
	logger       logger.Logger
	coalesce     bool
	refreshLimit int

	group   singleflight.Group
	pending sync.WaitGroup

	mu       sync.RWMutex
	language string
	hot      map[string]catalog.Descriptor
}

type options struct {
	ttl          time.Duration
	language     string
	coalesce     bool
	refreshLimit int
	logger       logger.Logger
	cacheOpts    []cache.Option
}

// Option configures a Repository.
type Option func(*options)

// WithTTL overrides the kind's default freshness window.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithLanguage sets the initial language.
func WithLanguage(lang string) Option {
	return func(o *options) { o.language = lang }
}

// WithCoalescing collapses concurrent misses for the same key into a single
// provider call.
func WithCoalescing() Option {
	return func(o *options) { o.coalesce = true }
}

// WithRefreshLimit bounds how many background refreshes run at once.
func WithRefreshLimit(n int) Option {
	return func(o *options) { o.refreshLimit = n }
}

// WithLogger sets the logger; entries are prefixed with the kind.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithCacheOptions passes options to the typed cache view, such as its clock.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

// New returns a repository for kind storing entries in backend.
func New[T catalog.Record](kind catalog.Kind, backend cache.Backend, dispatcher *resilience.Dispatcher[catalog.Source], opts ...Option) *Repository[T] {
	o := options{
		ttl:          kind.DefaultTTL(),
		language:     "en",
		refreshLimit: DefaultRefreshLimit,
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.refreshLimit < 1 {
		o.refreshLimit = 1
	}
	log := o.logger.WithPrefix("[" + string(kind) + "]")
	cacheOpts := append([]cache.Option{cache.WithLogger(log)}, o.cacheOpts...)
	return &Repository[T]{
		kind:         kind,
		ttl:          o.ttl,
		cache:        cache.New[[]T](backend, cacheOpts...),
		dispatcher:   dispatcher,
		logger:       log,
		coalesce:     o.coalesce,
		refreshLimit: o.refreshLimit,
		language:     o.language,
		hot:          make(map[string]catalog.Descriptor),
	}
}

// Name is the kind served by the repository.
func (r *Repository[T]) Name() string {
	return string(r.kind)
}

// Kind is the catalog kind served.
func (r *Repository[T]) Kind() catalog.Kind {
	return r.kind
}

// TTL is the freshness window applied to every entry.
func (r *Repository[T]) TTL() time.Duration {
	return r.ttl
}

// Stats returns the cache counters of this repository.
func (r *Repository[T]) Stats() cache.Stats {
	return r.cache.Stats()
}

// CurrentLanguage returns the language reads are localized to.
func (r *Repository[T]) CurrentLanguage() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.language
}

func (r *Repository[T]) descriptor(params []string) catalog.Descriptor {
	return catalog.Descriptor{
		Kind:     r.kind,
		Params:   append([]string(nil), params...),
		Language: r.CurrentLanguage(),
	}
}

// GetAll returns the collection narrowed by params in the current language.
func (r *Repository[T]) GetAll(ctx context.Context, params ...string) ([]T, error) {
	items, err := r.load(ctx, r.descriptor(params))
	if err != nil {
		return nil, err
	}
	return slices.Clone(items), nil
}

// GetByID scans the collection for the record with the given identifier.
func (r *Repository[T]) GetByID(ctx context.Context, id string, params ...string) (T, bool, error) {
	var zero T
	items, err := r.load(ctx, r.descriptor(params))
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if item.Identifier() == id {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// Search returns the records with a text field containing query, ignoring
// case. An empty query returns the whole collection.
func (r *Repository[T]) Search(ctx context.Context, query string, params ...string) ([]T, error) {
	items, err := r.load(ctx, r.descriptor(params))
	if err != nil {
		return nil, err
	}
	return filter(items, query), nil
}

// GetPage returns the 1-indexed page of limit records. A page past the end
// is empty, the last page may be short.
func (r *Repository[T]) GetPage(ctx context.Context, page, limit int, params ...string) ([]T, error) {
	if page < 1 || limit < 1 {
		return nil, ErrInvalidPage
	}
	items, err := r.load(ctx, r.descriptor(params))
	if err != nil {
		return nil, err
	}
	return paginate(items, page, limit), nil
}

func filter[T catalog.Record](items []T, query string) []T {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return slices.Clone(items)
	}
	matches := make([]T, 0)
	for _, item := range items {
		for _, field := range item.SearchText() {
			if strings.Contains(strings.ToLower(field), q) {
				matches = append(matches, item)
				break
			}
		}
	}
	return matches
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := min(start+limit, len(items))
	return slices.Clone(items[start:end])
}

// load returns the cached collection for d, fetching it when missing or
// stale. The returned slice is shared with the cache and must not be
// modified.
func (r *Repository[T]) load(ctx context.Context, d catalog.Descriptor) ([]T, error) {
	key := d.Key()
	r.touch(key, d)

	items, ok, err := r.cache.Lookup(ctx, key, r.ttl)
	if err != nil {
		r.logger.Warn("cache read for %s failed, fetching: %s", key, err)
	}
	if ok {
		return items, nil
	}
	if !r.coalesce {
		return r.fetch(ctx, d)
	}
	v, err, shared := r.group.Do(key, func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), d)
	})
	if shared {
		r.logger.Trace("coalesced fetch for %s", key)
	}
	if err != nil {
		return nil, err
	}
	return v.([]T), nil
}

func (r *Repository[T]) fetch(ctx context.Context, d catalog.Descriptor) ([]T, error) {
	key := d.Key()
	items, err := resilience.Call(ctx, r.dispatcher, string(r.kind), func(ctx context.Context, src catalog.Source) ([]T, error) {
		payload, err := src.Fetch(ctx, d)
		if err != nil {
			return nil, err
		}
		return catalog.Decode[T](r.kind, payload)
	})
	if err != nil {
		return nil, &UnavailableError{Kind: r.kind, Key: key, Err: err}
	}
	if err := r.cache.Set(ctx, key, items); err != nil {
		r.logger.Warn("failed to cache %s: %s", key, err)
	}
	return items, nil
}

func (r *Repository[T]) touch(key string, d catalog.Descriptor) {
	r.mu.Lock()
	r.hot[key] = d
	r.mu.Unlock()
}

// SetCurrentLanguage switches reads to lang. Entries of this kind tagged with
// the previous or the new language are dropped, and the collections read
// under the previous language are refetched in the background. Refresh
// failures are only logged; Wait blocks until refreshes finish.
func (r *Repository[T]) SetCurrentLanguage(ctx context.Context, lang string) error {
	r.mu.Lock()
	prev := r.language
	if lang == prev {
		r.mu.Unlock()
		return nil
	}
	r.language = lang
	var warm []catalog.Descriptor
	for key, d := range r.hot {
		if d.Language == prev || d.Language == lang {
			delete(r.hot, key)
		}
		if d.Language == prev {
			warm = append(warm, d.WithLanguage(lang))
		}
	}
	r.mu.Unlock()

	prefix := catalog.KeyPrefix(r.kind)
	removed, err := r.cache.RemoveFunc(ctx, func(key string) bool {
		return strings.HasPrefix(key, prefix) && (catalog.KeyHasLanguage(key, prev) || catalog.KeyHasLanguage(key, lang))
	})
	if err != nil {
		return err
	}
	r.logger.Debug("language %s -> %s: invalidated %d entries, refreshing %d", prev, lang, removed, len(warm))
	r.refresh(ctx, warm)
	return nil
}

func (r *Repository[T]) refresh(ctx context.Context, descriptors []catalog.Descriptor) {
	if len(descriptors) == 0 {
		return
	}
	bg := context.WithoutCancel(ctx)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		var g errgroup.Group
		g.SetLimit(r.refreshLimit)
		for _, d := range descriptors {
			g.Go(func() error {
				if _, err := r.load(bg, d); err != nil {
					r.logger.Warn("background refresh of %s failed: %s", d.Key(), err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Wait blocks until every background refresh has finished.
func (r *Repository[T]) Wait() {
	r.pending.Wait()
}

// ClearCache drops every entry of this kind.
func (r *Repository[T]) ClearCache(ctx context.Context) error {
	r.mu.Lock()
	clear(r.hot)
	r.mu.Unlock()
	_, err := r.cache.RemoveMatching(ctx, catalog.KeyPrefix(r.kind))
	return err
}

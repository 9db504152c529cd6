// Package app wires the catalog components for one process.
package app

import (
	"context"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentuity/go-catalog/auth"
	"github.com/agentuity/go-catalog/cache"
	"github.com/agentuity/go-catalog/catalog"
	"github.com/agentuity/go-catalog/config"
	"github.com/agentuity/go-catalog/logger"
	"github.com/agentuity/go-catalog/metrics"
	"github.com/agentuity/go-catalog/prefs"
	"github.com/agentuity/go-catalog/repository"
	"github.com/agentuity/go-catalog/resilience"
	"github.com/agentuity/go-catalog/source"
	"github.com/agentuity/go-catalog/storage"
	"github.com/agentuity/go-catalog/telemetry"
)

// Provider ids registered with the shared health monitor.
const (
	SourceAPI    resilience.ProviderID = "api"
	SourceBundle resilience.ProviderID = "bundle"
	AuthLocal    resilience.ProviderID = "auth-local"
	StorageRedis resilience.ProviderID = "storage-redis"
	StorageLocal resilience.ProviderID = "storage-local"
)

// languageAware is the part of a repository the app fans out to.
type languageAware interface {
	metrics.StatsSource
	SetCurrentLanguage(ctx context.Context, lang string) error
	ClearCache(ctx context.Context) error
	Wait()
}

// App owns the process-scoped state: the shared cache backend, the single
// health monitor, one repository per kind and the auth and storage
// capabilities. Build it with New and release it with Close.
type App struct {
	Skills      *repository.Repository[catalog.Skill]
	Countries   *repository.Repository[catalog.Country]
	Cities      *repository.Repository[catalog.City]
	Occupations *repository.Repository[catalog.Occupation]
	Hobbies     *repository.Repository[catalog.Hobby]
	Auth        *auth.Failover
	Storage     *storage.Failover

	logger    logger.Logger
	backend   cache.Backend
	monitor   *resilience.HealthMonitor
	prefs     prefs.Store
	telemetry *telemetry.Telemetry
	providers []resilience.ProviderID
	repos     []languageAware
	closers   []func() error

	mu       sync.Mutex
	language string
}

type options struct {
	logger           logger.Logger
	backend          cache.Backend
	prefs            prefs.Store
	tracerProvider   trace.TracerProvider
	sources          []resilience.Provider[catalog.Source]
	authProviders    []resilience.Provider[auth.Provider]
	storageProviders []resilience.Provider[storage.Provider]
}

type Option func(*options)

func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithBackend replaces the backend selected by the cache driver. The app
// still closes it.
func WithBackend(b cache.Backend) Option {
	return func(o *options) { o.backend = b }
}

func WithPrefs(store prefs.Store) Option {
	return func(o *options) { o.prefs = store }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithSources replaces the configured catalog sources, primary first.
func WithSources(providers ...resilience.Provider[catalog.Source]) Option {
	return func(o *options) { o.sources = providers }
}

func WithAuthProviders(providers ...resilience.Provider[auth.Provider]) Option {
	return func(o *options) { o.authProviders = providers }
}

func WithStorageProviders(providers ...resilience.Provider[storage.Provider]) Option {
	return func(o *options) { o.storageProviders = providers }
}

// New builds an App from cfg. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (a *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a = &App{}
	defer func() {
		if err != nil {
			a.closeAll()
			if a.telemetry != nil {
				a.telemetry.Shutdown(context.WithoutCancel(ctx))
			}
			a = nil
		}
	}()

	log := o.logger
	if log == nil {
		log = logger.New(cfg.Log.Format, os.Stderr, logger.ParseLevel(cfg.Log.Level, logger.LevelInfo))
	}
	if cfg.Telemetry.Endpoint != "" {
		tel, err := telemetry.New(ctx, telemetry.Options{
			Endpoint:    cfg.Telemetry.Endpoint,
			Token:       cfg.Telemetry.Token,
			ServiceName: cfg.Telemetry.ServiceName,
			Version:     source.Version,
			Level:       logger.ParseLevel(cfg.Log.Level, logger.LevelInfo),
		})
		if err != nil {
			return nil, err
		}
		a.telemetry = tel
		log = logger.NewMultiLogger(log, tel.Logger)
		if o.tracerProvider == nil {
			o.tracerProvider = tel.TracerProvider
		}
	}
	a.logger = log

	dispatchOpts := []resilience.DispatcherOption{resilience.WithLogger(log)}
	if o.tracerProvider != nil {
		dispatchOpts = append(dispatchOpts, resilience.WithTracerProvider(o.tracerProvider))
	}
	a.monitor = resilience.NewHealthMonitor(cfg.HealthPolicy(), resilience.WithMonitorLogger(log))

	if a.backend = o.backend; a.backend == nil {
		if a.backend, err = a.openBackend(ctx, cfg.Cache); err != nil {
			return nil, err
		}
	}
	a.closers = append(a.closers, a.backend.Close)

	if o.sources == nil {
		if o.sources, err = defaultSources(cfg.Source, log); err != nil {
			return nil, err
		}
	}
	sources, err := resilience.NewDispatcher("catalog", a.monitor, o.sources, dispatchOpts...)
	if err != nil {
		return nil, err
	}

	if a.prefs = o.prefs; a.prefs == nil {
		if a.prefs, err = openPrefs(cfg.Prefs); err != nil {
			return nil, err
		}
	}
	a.language = cfg.Language
	if lang, ok, err := a.prefs.Get(ctx, prefs.LanguageKey); err != nil {
		log.Warn("failed to read language preference, using %s: %s", cfg.Language, err)
	} else if ok && lang != "" {
		a.language = lang
	}

	repoOpts := func(kind catalog.Kind) []repository.Option {
		ro := []repository.Option{
			repository.WithTTL(cfg.TTL(kind)),
			repository.WithLanguage(a.language),
			repository.WithRefreshLimit(cfg.Cache.RefreshLimit),
			repository.WithLogger(log),
		}
		if cfg.Cache.Coalesce {
			ro = append(ro, repository.WithCoalescing())
		}
		return ro
	}
	a.Skills = repository.New[catalog.Skill](catalog.Skills, a.backend, sources, repoOpts(catalog.Skills)...)
	a.Countries = repository.New[catalog.Country](catalog.Countries, a.backend, sources, repoOpts(catalog.Countries)...)
	a.Cities = repository.New[catalog.City](catalog.Cities, a.backend, sources, repoOpts(catalog.Cities)...)
	a.Occupations = repository.New[catalog.Occupation](catalog.Occupations, a.backend, sources, repoOpts(catalog.Occupations)...)
	a.Hobbies = repository.New[catalog.Hobby](catalog.Hobbies, a.backend, sources, repoOpts(catalog.Hobbies)...)
	a.repos = []languageAware{a.Skills, a.Countries, a.Cities, a.Occupations, a.Hobbies}

	if o.authProviders == nil {
		if o.authProviders, err = defaultAuth(ctx, cfg.Auth); err != nil {
			return nil, err
		}
	}
	authDispatcher, err := resilience.NewDispatcher("auth", a.monitor, o.authProviders, dispatchOpts...)
	if err != nil {
		return nil, err
	}
	a.Auth = auth.NewFailover(authDispatcher)

	if o.storageProviders == nil {
		if o.storageProviders, err = a.defaultStorage(cfg.Storage); err != nil {
			return nil, err
		}
	}
	storageDispatcher, err := resilience.NewDispatcher("storage", a.monitor, o.storageProviders, dispatchOpts...)
	if err != nil {
		return nil, err
	}
	a.Storage = storage.NewFailover(storageDispatcher)

	for _, ids := range [][]resilience.ProviderID{sources.ProviderIDs(), authDispatcher.ProviderIDs(), storageDispatcher.ProviderIDs()} {
		a.providers = append(a.providers, ids...)
	}
	log.Debug("catalog ready: language=%s cache=%s providers=%v", a.language, cfg.Cache.Driver, a.providers)
	return a, nil
}

func (a *App) openBackend(ctx context.Context, cfg config.Cache) (cache.Backend, error) {
	opts := []cache.Option{
		cache.WithPrefix(cfg.Prefix),
		cache.WithQueryTimeout(cfg.QueryTimeout.Std()),
		cache.WithLogger(a.logger),
	}
	switch cfg.Driver {
	case config.DriverRedis:
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "cache")
		}
		a.closers = append(a.closers, client.Close)
		return cache.NewRedis(client, opts...), nil
	case config.DriverSQLite:
		return cache.NewSQLite(ctx, cfg.SQLitePath, opts...)
	default:
		return cache.NewInMemory(), nil
	}
}

func newRedisClient(url string) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid redis url")
	}
	return redis.NewClient(redisOpts), nil
}

func defaultSources(cfg config.Source, log logger.Logger) ([]resilience.Provider[catalog.Source], error) {
	var providers []resilience.Provider[catalog.Source]
	if cfg.BaseURL != "" {
		api, err := source.NewHTTP(cfg.BaseURL,
			source.WithToken(cfg.Token),
			source.WithClient(&http.Client{Timeout: cfg.Timeout.Std()}),
			source.WithHTTPLogger(log),
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, resilience.Provider[catalog.Source]{ID: SourceAPI, Impl: api})
	}
	bundle := source.DefaultBundle(source.WithBundleLogger(log))
	if cfg.BundleDir != "" {
		bundle = source.NewBundle(os.DirFS(cfg.BundleDir), source.WithBundleLogger(log))
	}
	return append(providers, resilience.Provider[catalog.Source]{ID: SourceBundle, Impl: bundle}), nil
}

func openPrefs(cfg config.Prefs) (prefs.Store, error) {
	if cfg.Path == "" {
		return prefs.NewMemory(), nil
	}
	return prefs.NewFile(cfg.Path)
}

func defaultAuth(ctx context.Context, cfg config.Auth) ([]resilience.Provider[auth.Provider], error) {
	local := auth.NewMemory()
	for _, u := range cfg.Users {
		if _, err := local.Register(ctx, u.Email, u.Password, u.DisplayName); err != nil {
			return nil, errors.Wrapf(err, "register %s", u.Email)
		}
	}
	return []resilience.Provider[auth.Provider]{{ID: AuthLocal, Impl: local}}, nil
}

func (a *App) defaultStorage(cfg config.Storage) ([]resilience.Provider[storage.Provider], error) {
	var providers []resilience.Provider[storage.Provider]
	if cfg.RedisURL != "" {
		client, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "storage")
		}
		a.closers = append(a.closers, client.Close)
		providers = append(providers, resilience.Provider[storage.Provider]{ID: StorageRedis, Impl: storage.NewRedis(client)})
	}
	return append(providers, resilience.Provider[storage.Provider]{ID: StorageLocal, Impl: storage.NewMemory()}), nil
}

func (a *App) Logger() logger.Logger {
	return a.logger
}

func (a *App) Monitor() *resilience.HealthMonitor {
	return a.monitor
}

// CurrentLanguage is the language every repository is serving.
func (a *App) CurrentLanguage() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.language
}

// SetCurrentLanguage persists lang and switches every repository to it.
// The preference is written first so a failed write leaves the repositories
// untouched.
func (a *App) SetCurrentLanguage(ctx context.Context, lang string) error {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return errors.New("language is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.prefs.Set(ctx, prefs.LanguageKey, lang); err != nil {
		return errors.Wrap(err, "failed to save language preference")
	}
	prev := a.language
	a.language = lang
	var errs error
	for _, r := range a.repos {
		if err := r.SetCurrentLanguage(ctx, lang); err != nil {
			errs = errors.CombineErrors(errs, errors.Wrapf(err, "%s", r.Name()))
		}
	}
	if prev != lang {
		a.logger.Info("language changed from %s to %s", prev, lang)
	}
	return errs
}

// ClearCache drops every entry in the shared backend.
func (a *App) ClearCache(ctx context.Context) error {
	for _, r := range a.repos {
		if err := r.ClearCache(ctx); err != nil {
			return errors.Wrapf(err, "%s", r.Name())
		}
	}
	return errors.Wrap(a.backend.Clear(ctx), "clear cache")
}

// Providers lists every provider id in dispatch order: catalog sources,
// then auth, then storage.
func (a *App) Providers() []resilience.ProviderID {
	return append([]resilience.ProviderID(nil), a.providers...)
}

// Health returns the health of every provider.
func (a *App) Health() []resilience.ProviderHealth {
	return a.monitor.Snapshot(a.providers...)
}

// Metrics returns a Prometheus collector for provider health and the cache
// counters of every repository.
func (a *App) Metrics() *metrics.Collector {
	sources := make([]metrics.StatsSource, len(a.repos))
	for i, r := range a.repos {
		sources[i] = r
	}
	return metrics.NewCollector(a.monitor, a.providers, sources...)
}

// Close waits for background refreshes, then releases the backend, redis
// clients and telemetry exporters.
func (a *App) Close(ctx context.Context) error {
	for _, r := range a.repos {
		r.Wait()
	}
	err := a.closeAll()
	if a.telemetry != nil {
		err = errors.CombineErrors(err, a.telemetry.Shutdown(ctx))
	}
	return err
}

func (a *App) closeAll() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	a.closers = nil
	return errs
}

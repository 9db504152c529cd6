// Package config loads the catalog configuration from a YAML file and the
// environment.
package config

import (
	"os"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ilyakaznacheev/cleanenv"

	"github.com/agentuity/go-catalog/catalog"
	"github.com/agentuity/go-catalog/resilience"
)

// ErrInvalid matches every validation failure.
var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Language string  `yaml:"language" env:"CATALOG_LANGUAGE" env-default:"en"`
	Log      Log     `yaml:"log"`
	Health   Health  `yaml:"health"`
	Cache    Cache   `yaml:"cache"`
	Source   Source  `yaml:"source"`
	Prefs    Prefs   `yaml:"prefs"`
	Auth     Auth    `yaml:"auth"`
	Storage  Storage `yaml:"storage"`

	// Telemetry is disabled unless an endpoint is set.
	Telemetry Telemetry `yaml:"telemetry"`
}

type Log struct {
	Level  string `yaml:"level"  env:"CATALOG_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"CATALOG_LOG_FORMAT" env-default:"console"`
}

type Health struct {
	MaxFailures    int      `yaml:"max_failures"    env:"CATALOG_HEALTH_MAX_FAILURES"    env-default:"3"`
	RecoveryWindow Duration `yaml:"recovery_window" env:"CATALOG_HEALTH_RECOVERY_WINDOW" env-default:"5m"`
}

type Cache struct {
	Driver       string              `yaml:"driver"        env:"CATALOG_CACHE_DRIVER"        env-default:"memory"`
	RedisURL     string              `yaml:"redis_url"     env:"CATALOG_CACHE_REDIS_URL"`
	SQLitePath   string              `yaml:"sqlite_path"   env:"CATALOG_CACHE_SQLITE_PATH"`
	Prefix       string              `yaml:"prefix"        env:"CATALOG_CACHE_PREFIX"        env-default:"catalog"`
	QueryTimeout Duration            `yaml:"query_timeout" env:"CATALOG_CACHE_QUERY_TIMEOUT" env-default:"5s"`
	Coalesce     bool                `yaml:"coalesce"      env:"CATALOG_CACHE_COALESCE"`
	RefreshLimit int                 `yaml:"refresh_limit" env:"CATALOG_CACHE_REFRESH_LIMIT" env-default:"4"`
	TTL          map[string]Duration `yaml:"ttl"`
}

type Source struct {
	BaseURL   string   `yaml:"base_url"   env:"CATALOG_API_URL"`
	Token     string   `yaml:"token"      env:"CATALOG_API_TOKEN"`
	Timeout   Duration `yaml:"timeout"    env:"CATALOG_API_TIMEOUT"   env-default:"10s"`
	BundleDir string   `yaml:"bundle_dir" env:"CATALOG_BUNDLE_DIR"`
}

type Prefs struct {
	// Path of the YAML preferences file. Empty keeps preferences in memory.
	Path string `yaml:"path" env:"CATALOG_PREFS_PATH"`
}

type Auth struct {
	Users []User `yaml:"users"`
}

type User struct {
	Email       string `yaml:"email"`
	Password    string `yaml:"password"`
	DisplayName string `yaml:"display_name"`
}

type Storage struct {
	RedisURL string `yaml:"redis_url" env:"CATALOG_STORAGE_REDIS_URL"`
}

type Telemetry struct {
	Endpoint    string `yaml:"endpoint"     env:"CATALOG_OTLP_ENDPOINT"`
	Token       string `yaml:"token"        env:"CATALOG_OTLP_TOKEN"`
	ServiceName string `yaml:"service_name" env:"CATALOG_SERVICE_NAME" env-default:"catalog"`
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQLite = "sqlite"
)

// Load reads path, when given, then applies environment overrides and
// defaults. The result is validated.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrapf(err, "read config %q", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, errors.Wrapf(err, "read config %q", path)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, errors.Wrap(err, "read env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

func (c *Config) Validate() error {
	if c.Language == "" {
		return invalid("language is required")
	}
	if c.Health.MaxFailures < 1 {
		return invalid("health.max_failures must be at least 1, got %d", c.Health.MaxFailures)
	}
	if c.Health.RecoveryWindow <= 0 {
		return invalid("health.recovery_window must be positive")
	}
	switch c.Cache.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Cache.RedisURL == "" {
			return invalid("cache.redis_url is required for the redis driver")
		}
	case DriverSQLite:
		if c.Cache.SQLitePath == "" {
			return invalid("cache.sqlite_path is required for the sqlite driver")
		}
	default:
		return invalid("unknown cache.driver %q", c.Cache.Driver)
	}
	kinds := catalog.Kinds()
	for name, ttl := range c.Cache.TTL {
		if !slices.Contains(kinds, catalog.Kind(name)) {
			return invalid("cache.ttl: unknown kind %q", name)
		}
		if ttl <= 0 {
			return invalid("cache.ttl.%s must be positive", name)
		}
	}
	return nil
}

// HealthPolicy is the failover policy shared by every capability.
func (c *Config) HealthPolicy() resilience.HealthPolicy {
	return resilience.HealthPolicy{
		MaxFailures:    c.Health.MaxFailures,
		RecoveryWindow: c.Health.RecoveryWindow.Std(),
	}
}

// TTL returns the configured freshness window for kind, or its default.
func (c *Config) TTL(kind catalog.Kind) time.Duration {
	if d, ok := c.Cache.TTL[string(kind)]; ok {
		return d.Std()
	}
	return kind.DefaultTTL()
}

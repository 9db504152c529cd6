package source

import (
	"context"
	"embed"
	"io/fs"

	"github.com/cockroachdb/errors"

	"github.com/agentuity/go-catalog/catalog"
	"github.com/agentuity/go-catalog/logger"
)

// DefaultLanguage is the language every bundle is expected to ship.
const DefaultLanguage = "en"

//go:embed bundle/*.json
var embedded embed.FS

// Bundle serves collections from JSON files named "<key>.json", falling
// back to the default-language file when a localized one is missing.
type Bundle struct {
	fsys            fs.FS
	defaultLanguage string
	logger          logger.Logger
}

var _ catalog.Source = (*Bundle)(nil)

// BundleOption configures a Bundle.
type BundleOption func(*Bundle)

// WithDefaultLanguage sets the language used when a localized file is missing.
func WithDefaultLanguage(lang string) BundleOption {
	return func(b *Bundle) { b.defaultLanguage = lang }
}

// WithBundleLogger sets the logger used to report language fallbacks.
func WithBundleLogger(log logger.Logger) BundleOption {
	return func(b *Bundle) { b.logger = log }
}

// NewBundle returns a source reading from fsys.
func NewBundle(fsys fs.FS, opts ...BundleOption) *Bundle {
	b := &Bundle{fsys: fsys, defaultLanguage: DefaultLanguage, logger: logger.Discard()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DefaultBundle returns the bundle compiled into the binary.
func DefaultBundle(opts ...BundleOption) *Bundle {
	sub, err := fs.Sub(embedded, "bundle")
	if err != nil {
		panic(err)
	}
	return NewBundle(sub, opts...)
}

func (b *Bundle) Fetch(ctx context.Context, d catalog.Descriptor) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := d.Key() + ".json"
	data, err := fs.ReadFile(b.fsys, name)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, fs.ErrNotExist) || d.Language == b.defaultLanguage {
		return nil, errors.Wrapf(err, "bundle: read %s", name)
	}
	fallback := d.WithLanguage(b.defaultLanguage).Key() + ".json"
	b.logger.Debug("bundle: %s not found, using %s", name, fallback)
	data, err = fs.ReadFile(b.fsys, fallback)
	if err != nil {
		return nil, errors.Wrapf(err, "bundle: read %s", fallback)
	}
	return data, nil
}

package catalog

import (
	"context"
	"strings"
)

// KeySeparator joins the parts of a cache key.
const KeySeparator = "_"

// Descriptor identifies one fetchable collection: a kind narrowed by
// positional parameters and localized to a language.
type Descriptor struct {
	Kind     Kind
	Params   []string
	Language string
}

// Key composes the cache key "<kind>_<param1>_..._<language>".
func (d Descriptor) Key() string {
	parts := make([]string, 0, len(d.Params)+2)
	parts = append(parts, string(d.Kind))
	parts = append(parts, d.Params...)
	if d.Language != "" {
		parts = append(parts, d.Language)
	}
	return strings.Join(parts, KeySeparator)
}

// WithLanguage returns a copy of d localized to lang.
func (d Descriptor) WithLanguage(lang string) Descriptor {
	d.Params = append([]string(nil), d.Params...)
	d.Language = lang
	return d
}

func (d Descriptor) String() string {
	return d.Key()
}

// KeyPrefix is the prefix shared by every key of kind.
func KeyPrefix(kind Kind) string {
	return string(kind) + KeySeparator
}

// KeyHasLanguage reports whether key was composed for lang.
func KeyHasLanguage(key, lang string) bool {
	return lang != "" && strings.HasSuffix(key, KeySeparator+lang)
}

// Source fetches the raw payload of a collection. Implementations decide
// transport and format; Decode turns the payload into records.
type Source interface {
	Fetch(ctx context.Context, d Descriptor) ([]byte, error)
}

package catalog

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// Kind names a remotely sourced collection.
type Kind string

const (
	Skills      Kind = "skills"
	Countries   Kind = "countries"
	Cities      Kind = "cities"
	Occupations Kind = "occupations"
	Hobbies     Kind = "hobbies"
)

// Popularity collections change often and are kept for an hour; reference
// collections are kept for a day.
const (
	PopularityTTL = time.Hour
	ReferenceTTL  = 24 * time.Hour
)

var kinds = []Kind{Skills, Countries, Cities, Occupations, Hobbies}

// ErrUnknownKind is returned by ParseKind for names outside the catalog.
var ErrUnknownKind = errors.New("unknown resource kind")

// Kinds returns every kind in the catalog.
func Kinds() []Kind {
	return append([]Kind(nil), kinds...)
}

// ParseKind resolves a kind by name, ignoring case.
func ParseKind(s string) (Kind, error) {
	name := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range kinds {
		if k == name {
			return k, nil
		}
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

// DefaultTTL is how long a collection of kind stays fresh.
func (k Kind) DefaultTTL() time.Duration {
	switch k {
	case Skills, Hobbies:
		return PopularityTTL
	default:
		return ReferenceTTL
	}
}

func (k Kind) String() string {
	return string(k)
}

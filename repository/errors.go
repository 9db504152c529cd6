package repository

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/agentuity/go-catalog/catalog"
)

var (
	// ErrDataUnavailable matches reads that could not be served from cache
	// nor from any provider.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrInvalidPage is returned for a page or limit below one.
	ErrInvalidPage = errors.New("page and limit must be at least 1")
)

// UnavailableError wraps the dispatcher error for a collection that could not
// be fetched. The wrapped error is left untouched so the caller can inspect
// the last provider failure.
type UnavailableError struct {
	Kind catalog.Kind
	Key  string
	Err  error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Key, ErrDataUnavailable, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

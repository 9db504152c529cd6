package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrInvalidResponse matches payloads that do not decode into the expected
// collection shape.
var ErrInvalidResponse = errors.New("invalid response")

// InvalidResponseError reports a payload for Kind that failed to decode.
type InvalidResponseError struct {
	Kind Kind
	Err  error
}

func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Kind, ErrInvalidResponse, e.Err)
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

func (e *InvalidResponseError) Is(target error) bool {
	return target == ErrInvalidResponse
}

type envelope[T any] struct {
	Data *[]T `json:"data"`
}

// Decode parses payload as a collection of T. Both a bare JSON array and an
// object with a "data" array are accepted.
func Decode[T any](kind Kind, payload []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, &InvalidResponseError{Kind: kind, Err: errors.New("empty payload")}
	}
	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, &InvalidResponseError{Kind: kind, Err: err}
		}
		return nonNil(items), nil
	case '{':
		var env envelope[T]
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, &InvalidResponseError{Kind: kind, Err: err}
		}
		if env.Data == nil {
			return nil, &InvalidResponseError{Kind: kind, Err: errors.New(`missing "data" array`)}
		}
		return nonNil(*env.Data), nil
	default:
		return nil, &InvalidResponseError{Kind: kind, Err: errors.Newf("unexpected payload starting with %q", trimmed[0])}
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

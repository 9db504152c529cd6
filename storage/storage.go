// Package storage defines the object storage capability and routes it
// across redundant providers.
package storage

import (
	"context"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// ErrNotFound is returned, marked absent, for missing objects so a failover
// also asks the other providers.
var ErrNotFound = errors.New("object not found")

// Object describes a stored blob.
type Object struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	ETag        string    `json:"etag"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Provider is the storage capability.
type Provider interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (Object, error)
	Get(ctx context.Context, key string) ([]byte, Object, error)
	Delete(ctx context.Context, key string) error
	// List returns the objects whose key begins with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Object, error)
}

// ETag fingerprints data. Providers that agree on content agree on the tag.
func ETag(data []byte) string {
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

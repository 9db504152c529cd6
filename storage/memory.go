package storage

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/agentuity/go-catalog/resilience"
)

type memory struct {
	now func() time.Time

	mu      sync.RWMutex
	objects map[string]blob
}

var _ Provider = (*memory)(nil)

// NewMemory returns an in-process Provider.
func NewMemory() Provider {
	return &memory{now: time.Now, objects: make(map[string]blob)}
}

func (m *memory) Put(_ context.Context, key string, data []byte, contentType string) (Object, error) {
	if key == "" {
		return Object{}, resilience.Permanent(errors.New("storage: key is required"))
	}
	obj := Object{Key: key, Size: int64(len(data)), ContentType: contentType, ETag: ETag(data), UpdatedAt: m.now()}
	m.mu.Lock()
	m.objects[key] = blob{data: slices.Clone(data), obj: obj}
	m.mu.Unlock()
	return obj, nil
}

func (m *memory) Get(_ context.Context, key string) ([]byte, Object, error) {
	m.mu.RLock()
	b, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, Object{}, resilience.Absent(errors.Wrapf(ErrNotFound, "%s", key))
	}
	return slices.Clone(b.data), b.obj, nil
}

func (m *memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return resilience.Absent(errors.Wrapf(ErrNotFound, "%s", key))
	}
	delete(m.objects, key)
	return nil
}

func (m *memory) List(_ context.Context, prefix string) ([]Object, error) {
	m.mu.RLock()
	out := make([]Object, 0, len(m.objects))
	for key, b := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, b.obj)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

package cache

import (
	"context"
	"strings"
	"sync"
)

type inMemoryCache struct {
	cache map[string]Entry
	mutex sync.Mutex
}

var _ Backend = (*inMemoryCache)(nil)

// NewInMemory returns a new in-process Backend. Values are stored as-is (no
// copying or serialization) and are lost when the process exits.
func NewInMemory() Backend {
	return &inMemoryCache{cache: make(map[string]Entry)}
}

func (c *inMemoryCache) Load(_ context.Context, key string) (Entry, bool, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	entry, ok := c.cache[key]
	return entry, ok, nil
}

func (c *inMemoryCache) Store(_ context.Context, key string, entry Entry) error {
	c.mutex.Lock()
	c.cache[key] = entry
	c.mutex.Unlock()
	return nil
}

func (c *inMemoryCache) Delete(_ context.Context, key string) (bool, error) {
	c.mutex.Lock()
	_, ok := c.cache[key]
	if ok {
		delete(c.cache, key)
	}
	c.mutex.Unlock()
	return ok, nil
}

func (c *inMemoryCache) Keys(_ context.Context, prefix string) ([]string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	keys := make([]string, 0, len(c.cache))
	for key := range c.cache {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (c *inMemoryCache) Clear(_ context.Context) error {
	c.mutex.Lock()
	clear(c.cache)
	c.mutex.Unlock()
	return nil
}

func (c *inMemoryCache) Close() error {
	return nil
}

// Package prefs persists user preferences such as the active language.
package prefs

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// LanguageKey holds the active language code.
const LanguageKey = "language"

// Store is a persisted string key/value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

type memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory returns a Store that lives as long as the process.
func NewMemory() Store {
	return &memory{values: make(map[string]string)}
}

func (m *memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// File is a Store persisted as a flat YAML map. Every Set rewrites the whole
// file through a temporary file and a rename, so readers never observe a
// partial write.
type File struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

var _ Store = (*File)(nil)

// NewFile loads path, which may not exist yet.
func NewFile(path string) (*File, error) {
	f := &File{path: path, values: make(map[string]string)}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return f, nil
		}
		return nil, errors.Wrapf(err, "prefs: read %s", path)
	}
	if err := yaml.Unmarshal(data, &f.values); err != nil {
		return nil, errors.Wrapf(err, "prefs: parse %s", path)
	}
	if f.values == nil {
		f.values = make(map[string]string)
	}
	return f, nil
}

// Path is the file backing the store.
func (f *File) Path() string {
	return f.path
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if current, ok := f.values[key]; ok && current == value {
		return nil
	}
	next := make(map[string]string, len(f.values)+1)
	for k, v := range f.values {
		next[k] = v
	}
	next[key] = value
	if err := f.write(next); err != nil {
		return err
	}
	f.values = next
	return nil
}

func (f *File) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return errors.Wrap(err, "prefs: encode")
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "prefs: create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "prefs: create temp file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "prefs: write temp file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "prefs: close temp file")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return errors.Wrapf(err, "prefs: replace %s", f.path)
	}
	return nil
}

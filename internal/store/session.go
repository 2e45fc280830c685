package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// SessionStore is a small key-value store for credentials and user data,
// scoped to the process or persisted between runs.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Clear(keys ...string) error
}

// MemoryStore keeps values for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Clear removes the given keys, or everything when none are given.
func (m *MemoryStore) Clear(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(keys) == 0 {
		m.values = make(map[string]string)
		return nil
	}
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// FileStore persists values as YAML in a file only the user can read.
type FileStore struct {
	path string
	mem  *MemoryStore
	mu   sync.Mutex
}

// NewFileStore loads path if it exists.
func NewFileStore(path string) (*FileStore, error) {
	fs := &FileStore{path: path, mem: NewMemoryStore()}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var values map[string]string
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", path, err)
	}
	for k, v := range values {
		fs.mem.values[k] = v
	}
	return fs, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Get(key string) (string, bool) {
	return f.mem.Get(key)
}

func (f *FileStore) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem.Set(key, value)
	return f.save()
}

func (f *FileStore) Clear(keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mem.Clear(keys...)
	return f.save()
}

func (f *FileStore) save() error {
	f.mem.mu.RLock()
	data, err := yaml.Marshal(f.mem.values)
	f.mem.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	return writeFileAtomic(f.path, data, 0600)
}

// writeFileAtomic writes through a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

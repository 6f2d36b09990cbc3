package cache

import (
	"sync"

	"github.com/semmy-space/gitvault/internal/secrets"
)

// MemoryBackend is an in-process secrets.Store for daemon mode, where the
// cache is shared mutable state across connections. Reads proceed
// concurrently; writes for a key are exclusive with other writers.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]string)}
}

func (m *MemoryBackend) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.entries[key]
	if !ok {
		return "", secrets.ErrNotFound
	}
	return value, nil
}

func (m *MemoryBackend) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = value
	return nil
}

func (m *MemoryBackend) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok {
		return secrets.ErrNotFound
	}
	delete(m.entries, key)
	return nil
}

func (m *MemoryBackend) List() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys, nil
}

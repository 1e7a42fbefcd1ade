package history

import (
	"errors"
	"sync"
)

// ErrNotFound is returned by a KVStore when the key has never been written
var ErrNotFound = errors.New("key not found")

// KVStore is a synchronous string key-value store used to persist the history
type KVStore interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// MemoryKV keeps values in process memory
type MemoryKV struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{values: make(map[string]string)}
}

func (m *MemoryKV) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	return nil
}

// Package safe provides concurrency safe containers
package safe

import (
	"sync"
)

// Map is a concurrency & type safe map keyed by string
type Map[T any] struct {
	mu   sync.RWMutex
	data map[string]T
}

// NewMap returns a Map seeded with data, which may be nil
func NewMap[T any](data map[string]T) *Map[T] {
	if data == nil {
		data = map[string]T{}
	}
	return &Map[T]{
		data: data,
	}
}

// Get returns the value stored under key and whether it exists
func (m *Map[T]) Get(key string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	return value, ok
}

func (m *Map[T]) Set(key string, value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]T{}
	}
	m.data[key] = value
}

// GetOrCreate returns the value under key, storing the result of create when it is missing.
// create runs under the write lock; an error leaves the map unchanged.
func (m *Map[T]) GetOrCreate(key string, create func() (T, error)) (T, error) {
	if value, ok := m.Get(key); ok {
		return value, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	value, err := create()
	if err != nil {
		return value, err
	}
	if m.data == nil {
		m.data = map[string]T{}
	}
	m.data[key] = value
	return value, nil
}

func (m *Map[T]) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

package blobstore

import (
	"context"
	"sync"
)

// Memory is an in-process [Store] backed by a map. It is the reference
// implementation used throughout colstore's and table's test suites, and is
// safe for concurrent Get/Set on distinct keys.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements [Store].
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}

	out := make([]byte, len(v))
	copy(out, v)

	return out, true, nil
}

// Set implements [Store].
func (m *Memory) Set(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(data))
	copy(cp, data)
	m.data[key] = cp

	return nil
}

// Len reports the number of distinct keys currently stored. Test helper,
// mirroring the teacher's habit of exposing small introspection helpers on
// its in-memory test doubles.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.data)
}

// Keys returns a snapshot of all stored keys, in map iteration order (i.e.
// unordered). Test helper only.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}

	return keys
}

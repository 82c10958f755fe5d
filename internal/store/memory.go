package store

import (
	"errors"
	"fmt"
	"sync"
)

// MemoryStore is an in-process KV used by tests and by the simulated
// network backend. FailWrites makes every write return ErrUnavailable.
type MemoryStore struct {
	mu         sync.RWMutex
	data       map[string]map[string][]byte
	FailWrites bool
	FailReads  bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (m *MemoryStore) Get(namespace, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads {
		return nil, fmt.Errorf("%w: read %s/%s", ErrUnavailable, namespace, key)
	}
	v, ok := m.data[namespace][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", namespace, key, ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) GetAll(namespace string, keys ...string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads {
		return nil, fmt.Errorf("%w: read %s", ErrUnavailable, namespace)
	}
	out := make(map[string][]byte, len(keys))
	for _, k := range keys {
		if v, ok := m.data[namespace][k]; ok {
			out[k] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (m *MemoryStore) Put(namespace, key string, value []byte) error {
	return m.PutAll(namespace, map[string][]byte{key: value})
}

func (m *MemoryStore) PutAll(namespace string, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("%w: write %s", ErrUnavailable, namespace)
	}
	ns, ok := m.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		m.data[namespace] = ns
	}
	for k, v := range values {
		ns[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *MemoryStore) Delete(namespace string, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return fmt.Errorf("%w: delete %s", ErrUnavailable, namespace)
	}
	for _, k := range keys {
		delete(m.data[namespace], k)
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

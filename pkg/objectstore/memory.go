package objectstore

import (
	"context"
	"sync"

	"github.com/hideselfview/bae/pkg/musicerr"
)

// MemoryStore is a dependency-free in-memory Store used by tests and by
// cmd/baecore when no bucket is configured, alongside the real
// network-backed S3Store implementation.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(_ context.Context, chunkID string, data []byte) (string, error) {
	location := "mem://" + ChunkKey(chunkID)
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), data...)
	m.objects[location] = cp
	return location, nil
}

func (m *MemoryStore) Download(_ context.Context, location string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[location]
	if !ok {
		return nil, musicerr.NewStoreNotFound(location)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, location)
	return nil
}

func (m *MemoryStore) Exists(_ context.Context, location string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[location]
	return ok, nil
}

var _ Store = (*MemoryStore)(nil)

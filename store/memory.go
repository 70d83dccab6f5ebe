package store

import (
	"context"
	"sync"
)

// memoryDocuments keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type memoryDocuments struct {
	mu   sync.RWMutex
	maps map[string]mapDocument
}

// NewMemoryStore returns an ephemeral Store, mainly for tests.
func NewMemoryStore() Store {
	return newDocumentStore(&memoryDocuments{maps: make(map[string]mapDocument)})
}

func (m *memoryDocuments) load(_ context.Context, id string) (*mapDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.maps[id]
	if !ok {
		return nil, nil
	}
	cp := doc.clone()
	return &cp, nil
}

func (m *memoryDocuments) loadAll(_ context.Context) ([]mapDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]mapDocument, 0, len(m.maps))
	for _, doc := range m.maps {
		result = append(result, doc.clone())
	}
	return result, nil
}

func (m *memoryDocuments) save(_ context.Context, doc mapDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maps[doc.ID] = doc.clone()
	return nil
}

func (m *memoryDocuments) remove(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.maps[id]; !ok {
		return false, nil
	}
	delete(m.maps, id)
	return true, nil
}

func (m *memoryDocuments) close() error { return nil }

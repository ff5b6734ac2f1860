package cache

import (
	"context"
	"sync"
)

// AckStore holds the per-session set of acknowledged near-due sale ids.
// The set only grows for the life of a session and is dropped by Clear.
type AckStore interface {
	Members(ctx context.Context, sessionID string) (map[string]struct{}, error)
	Add(ctx context.Context, sessionID string, saleIDs ...string) error
	Clear(ctx context.Context, sessionID string) error
}

type MemoryAckStore struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

func NewMemoryAckStore() *MemoryAckStore {
	return &MemoryAckStore{sets: make(map[string]map[string]struct{})}
}

func (m *MemoryAckStore) Members(_ context.Context, sessionID string) (map[string]struct{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]struct{}, len(m.sets[sessionID]))
	for id := range m.sets[sessionID] {
		out[id] = struct{}{}
	}
	return out, nil
}

// Add inserts every id under one lock, so readers never see half a batch.
func (m *MemoryAckStore) Add(_ context.Context, sessionID string, saleIDs ...string) error {
	if len(saleIDs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.sets[sessionID]
	if !ok {
		set = make(map[string]struct{}, len(saleIDs))
		m.sets[sessionID] = set
	}
	for _, id := range saleIDs {
		set[id] = struct{}{}
	}
	return nil
}

func (m *MemoryAckStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets, sessionID)
	return nil
}

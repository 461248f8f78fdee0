package db

import (
	"context"
	"sync"

	"reco-chatbot/pkg"
)

// MemoryStore is a process-local core.MessageStore.  The simulator and the
// tests use it; the server uses Repository.
type MemoryStore struct {
	mu    sync.RWMutex
	turns map[string][]pkg.Turn
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{turns: make(map[string][]pkg.Turn)}
}

func (m *MemoryStore) Append(_ context.Context, sessionID string, turn pkg.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[sessionID] = append(m.turns[sessionID], turn)
	return nil
}

// List returns a copy of the session's turns.
func (m *MemoryStore) List(_ context.Context, sessionID string) ([]pkg.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.turns[sessionID]
	out := make([]pkg.Turn, len(src))
	copy(out, src)
	return out, nil
}

func (m *MemoryStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.turns, sessionID)
	return nil
}

// Sessions returns the IDs of every session with at least one turn.
func (m *MemoryStore) Sessions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.turns))
	for id := range m.turns {
		ids = append(ids, id)
	}
	return ids
}

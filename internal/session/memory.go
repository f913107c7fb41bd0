package session

import (
	"context"
	"sort"
	"sync"

	"github.com/kalambet/paris/internal/profile"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[Key]profile.Session
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[Key]profile.Session)}
}

func (m *MemoryStore) Get(_ context.Context, key Key) (profile.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key]
	if !ok {
		return profile.Session{}, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) Upsert(_ context.Context, key Key, s profile.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[key] = s.Clone()
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Record, 0, len(m.sessions))
	for k, s := range m.sessions {
		out = append(out, Record{Key: k, Session: s.Clone()})
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Key.Role != rs[j].Key.Role {
			return rs[i].Key.Role < rs[j].Key.Role
		}
		return rs[i].Key.ID < rs[j].Key.ID
	})
}

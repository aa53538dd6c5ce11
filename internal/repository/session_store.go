package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"quizforge/internal/domain"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemorySessionStore keeps session snapshots in process memory. Snapshots are
// stored encoded so callers never share state with the store.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySessionStore creates a store whose entries expire ttl after their
// last save. A ttl of 0 keeps entries forever.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, domain.NewSessionNotFoundError(id)
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		delete(s.entries, id)
		return nil, domain.NewSessionNotFoundError(id)
	}

	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal(entry.data, &snapshot); err != nil {
		return nil, domain.NewInternalError("corrupt session snapshot", err)
	}
	return &snapshot, nil
}

func (s *MemorySessionStore) Save(ctx context.Context, snapshot *domain.SessionSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return domain.NewInternalError("failed to encode session snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	entry := memoryEntry{data: data}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}
	s.entries[snapshot.ID] = entry
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

func (s *MemorySessionStore) Ping(ctx context.Context) error {
	return nil
}

var _ domain.SessionStore = (*MemorySessionStore)(nil)

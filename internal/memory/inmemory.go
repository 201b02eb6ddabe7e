package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore keeps conversations in process memory. Used when no
// database path is configured, and by tests.
type InMemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]Turn
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{conversations: make(map[string][]Turn)}
}

// AppendTurns commits a batch of turns. The append is atomic by
// construction: the conversation slice is only replaced after the whole
// batch is prepared.
func (s *InMemoryStore) AppendTurns(_ context.Context, conversationID string, turns []Turn) error {
	if len(turns) == 0 {
		return nil
	}

	now := time.Now()
	batch := make([]Turn, len(turns))
	for i, t := range turns {
		if t.ID == "" {
			u, _ := uuid.NewV7()
			t.ID = u.String()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		batch[i] = t
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[conversationID] = append(s.conversations[conversationID], batch...)
	return nil
}

// LoadRecent returns the trailing window of up to limit turns in
// chronological order.
func (s *InMemoryStore) LoadRecent(_ context.Context, conversationID string, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.conversations[conversationID]
	if len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error { return nil }

package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps dialogue memory per user with no durability. Used
// for tests and for running without Redis; Flush is a no-op.
type InMemoryStore struct {
	mu    sync.Mutex
	byUID map[string][]Message
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byUID: make(map[string][]Message)}
}

func (s *InMemoryStore) Load(_ context.Context, userID string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.byUID[userID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *InMemoryStore) Append(_ context.Context, userID string, msgs ...Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byUID[userID] = append(s.byUID[userID], msgs...)
	return nil
}

func (s *InMemoryStore) Flush(_ context.Context, _ string) error { return nil }

func (s *InMemoryStore) Close() error { return nil }

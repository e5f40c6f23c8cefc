package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Store is what the service needs from the conversation history backend.
type Store interface {
	Save(ctx context.Context, rec ConversationRecord) (int64, error)
	SetAnalysisReport(ctx context.Context, id int64, report string) error
	GetByID(ctx context.Context, id int64) (ConversationRecord, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]ConversationRecord, error)
	ListRecent(ctx context.Context, limit int) ([]ConversationRecord, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// MemoryStore keeps conversation records in process memory. Used when no
// DATABASE_URL is configured and in tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]ConversationRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1, recs: make(map[int64]ConversationRecord)}
}

func (s *MemoryStore) Save(_ context.Context, rec ConversationRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = s.nextID
	s.nextID++
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.recs[rec.ID] = rec
	return rec.ID, nil
}

func (s *MemoryStore) SetAnalysisReport(_ context.Context, id int64, report string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ErrNotFound
	}
	rec.AnalysisReport = report
	s.recs[id] = rec
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id int64) (ConversationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return ConversationRecord{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var recs []ConversationRecord
	for _, rec := range s.recs {
		if rec.UserID == userID {
			recs = append(recs, rec)
		}
	}
	sortNewestFirst(recs)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]ConversationRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]ConversationRecord, 0, len(s.recs))
	for _, rec := range s.recs {
		recs = append(recs, rec)
	}
	sortNewestFirst(recs)
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make(map[string]struct{})
	for _, rec := range s.recs {
		users[rec.UserID] = struct{}{}
	}
	return Stats{
		TotalConversations: int64(len(s.recs)),
		UniqueUsers:        int64(len(users)),
	}, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortNewestFirst(recs []ConversationRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].ID > recs[j].ID
		}
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const dialogueKeyPrefix = "dialogue:"

// RedisStore checkpoints dialogue memory in Redis. A working copy per user
// is kept in-process; Flush serializes it under dialogue:<user_id> with a
// TTL so stale contexts age out between sessions.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration

	mu      sync.Mutex
	working map[string][]Message
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{
		client:  client,
		ttl:     ttl,
		working: make(map[string][]Message),
	}
}

func (s *RedisStore) Load(ctx context.Context, userID string) ([]Message, error) {
	s.mu.Lock()
	if msgs, ok := s.working[userID]; ok {
		out := make([]Message, len(msgs))
		copy(out, msgs)
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	val, err := s.client.Get(ctx, dialogueKeyPrefix+userID).Result()
	if err == redis.Nil {
		s.mu.Lock()
		s.working[userID] = nil
		s.mu.Unlock()
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load dialogue memory: %w", err)
	}

	var msgs []Message
	if err := json.Unmarshal([]byte(val), &msgs); err != nil {
		return nil, fmt.Errorf("decode dialogue memory: %w", err)
	}

	s.mu.Lock()
	s.working[userID] = msgs
	out := make([]Message, len(msgs))
	copy(out, msgs)
	s.mu.Unlock()
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, userID string, msgs ...Message) error {
	// Make sure a restart-resumed context is in the working copy first.
	if _, err := s.Load(ctx, userID); err != nil {
		return err
	}
	s.mu.Lock()
	s.working[userID] = append(s.working[userID], msgs...)
	s.mu.Unlock()
	return nil
}

func (s *RedisStore) Flush(ctx context.Context, userID string) error {
	s.mu.Lock()
	msgs := make([]Message, len(s.working[userID]))
	copy(msgs, s.working[userID])
	s.mu.Unlock()

	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encode dialogue memory: %w", err)
	}
	if err := s.client.Set(ctx, dialogueKeyPrefix+userID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("flush dialogue memory: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

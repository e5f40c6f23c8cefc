package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewStore selects the dialogue memory backend: Redis when a URL is
// configured, otherwise process-local memory.
func NewStore(ctx context.Context, redisURL string, ttl time.Duration) (Store, error) {
	if redisURL == "" {
		return NewInMemoryStore(), nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewRedisStore(client, ttl), nil
}

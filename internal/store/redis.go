package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// seenTTL bounds how long a delivery id is remembered. The platform
// redelivers unacknowledged callbacks within minutes, so an hour of
// memory covers the at-least-once window.
const seenTTL = time.Hour

// RedisStore tracks ephemeral webhook state: delivery ids already
// processed, so redelivered events do not repeat side effects.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// seenKey returns the key for a processed delivery id.
func seenKey(mid string) string {
	return fmt.Sprintf("seen:%s", mid)
}

// SeenDelivery marks a delivery id as processed and reports whether it
// had been seen before. Errors degrade to "not seen": a Redis outage
// must not stop event handling, it only loses dedup.
func (s *RedisStore) SeenDelivery(ctx context.Context, mid string) bool {
	if mid == "" {
		return false
	}
	set, err := s.client.SetNX(ctx, seenKey(mid), "1", seenTTL).Result()
	if err != nil {
		return false
	}
	return !set
}

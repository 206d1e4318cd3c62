package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/syncengine/internal/domain/sync"
	"github.com/erp/syncengine/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore implements sync.IdempotencyStore using Redis.
// Suitable for multi-replica deployments where inbound events may hit
// any instance.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store
func NewRedisIdempotencyStore(cfg config.RedisConfig) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "sync:idempotency:",
	}, nil
}

// NewRedisIdempotencyStoreWithClient creates a store with an existing Redis client
func NewRedisIdempotencyStoreWithClient(client *redis.Client, keyPrefix string) *RedisIdempotencyStore {
	if keyPrefix == "" {
		keyPrefix = "sync:idempotency:"
	}
	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks a correlation ID as seen with a TTL.
// Uses SETNX so concurrent duplicates race to a single winner.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, correlationID string, ttl time.Duration) (bool, error) {
	key := s.keyPrefix + correlationID

	result, err := s.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark correlation id as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks whether a correlation ID has been seen
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, correlationID string) (bool, error) {
	key := s.keyPrefix + correlationID

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check correlation id: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

// Ensure RedisIdempotencyStore implements sync.IdempotencyStore
var _ sync.IdempotencyStore = (*RedisIdempotencyStore)(nil)

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/glasserp/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore implements IdempotencyStore using Redis. Suitable
// for distributed deployments where multiple instances share idempotency
// state.
type RedisIdempotencyStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisOptions holds Redis connection settings for the store
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisIdempotencyStore creates a new Redis-based idempotency store
func NewRedisIdempotencyStore(opts RedisOptions) (*RedisIdempotencyStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIdempotencyStore{
		client:    client,
		keyPrefix: "costing:idempotency:",
	}, nil
}

// MarkProcessed marks an identifier as processed with a TTL using SETNX,
// so concurrent duplicates resolve to exactly one winner.
func (s *RedisIdempotencyStore) MarkProcessed(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+id, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark identifier as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks whether an identifier has already been processed
func (s *RedisIdempotencyStore) IsProcessed(ctx context.Context, id string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check identifier: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisIdempotencyStore) Close() error {
	return s.client.Close()
}

var _ shared.IdempotencyStore = (*RedisIdempotencyStore)(nil)

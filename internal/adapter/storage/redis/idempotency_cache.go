package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-bridge/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

var _ ports.IdempotencyCache = (*IdempotencyCache)(nil)

// IdempotencyCache keeps the result of a payment creation so a retried
// request with the same merchant transaction id is answered from cache.
type IdempotencyCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client goredis.UniversalClient) *IdempotencyCache {
	return &IdempotencyCache{client: client, prefix: "pgb:idempotency:"}
}

// Get returns the cached result, or nil, nil when the key is absent.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}
	return val, nil
}

// Set stores value under key for ttl.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}

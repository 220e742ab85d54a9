package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payment-bridge/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

var _ ports.NonceStore = (*NonceStore)(nil)

// NonceStore implements ports.NonceStore with SET NX. Keys are grouped by
// scope so webhook replay keys never collide with other one-time keys.
type NonceStore struct {
	client goredis.UniversalClient
	prefix string
}

// NewNonceStore creates a new Redis-backed nonce store.
func NewNonceStore(client goredis.UniversalClient) *NonceStore {
	return &NonceStore{client: client, prefix: "pgb:nonce:"}
}

func (s *NonceStore) key(scope, nonce string) string {
	return s.prefix + scope + ":" + nonce
}

// CheckAndSet records nonce and reports whether it was unseen.
func (s *NonceStore) CheckAndSet(ctx context.Context, scope string, nonce string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetArgs(ctx, s.key(scope, nonce), 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis nonce check: %w", err)
	}
	return result == "OK", nil
}

// Release removes nonce so the same key can be processed again.
func (s *NonceStore) Release(ctx context.Context, scope string, nonce string) error {
	if err := s.client.Del(ctx, s.key(scope, nonce)).Err(); err != nil {
		return fmt.Errorf("redis nonce release: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyCache_SetAndGet(t *testing.T) {
	_, client := newMiniredisClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	key := "create:ORDER1"
	value := []byte(`{"order":{"merchant_transaction_id":"ORDER1","status":"PENDING"}}`)

	result, err := cache.Get(ctx, key)
	assert.NoError(t, err)
	assert.Nil(t, result)

	require.NoError(t, cache.Set(ctx, key, value, 24*time.Hour))

	result, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, value, result)
}

func TestIdempotencyCache_TTLExpiry(t *testing.T) {
	s, client := newMiniredisClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "create:ORDER2", []byte(`{}`), time.Second))
	s.FastForward(2 * time.Second)

	result, err := cache.Get(ctx, "create:ORDER2")
	assert.NoError(t, err)
	assert.Nil(t, result, "expired key should return nil")
}

func TestIdempotencyCache_Overwrite(t *testing.T) {
	_, client := newMiniredisClient(t)
	cache := NewIdempotencyCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "create:ORDER3", []byte("first"), time.Hour))
	require.NoError(t, cache.Set(ctx, "create:ORDER3", []byte("second"), time.Hour))

	result, err := cache.Get(ctx, "create:ORDER3")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), result)
}

func TestIdempotencyCache_ServerDown(t *testing.T) {
	s, client := newMiniredisClient(t)
	cache := NewIdempotencyCache(client)
	s.Close()

	_, err := cache.Get(context.Background(), "create:ORDER4")
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	s, client := newMiniredisClient(t)
	hc := NewHealthCheck(client)

	assert.Equal(t, "redis", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))

	s.Close()
	assert.Error(t, hc.Ping(context.Background()))
}

package redis

import (
	"context"
	"strconv"
	"testing"

	"payment-bridge/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfigFor(t *testing.T, mr *miniredis.Miniredis) config.RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return config.RedisConfig{
		Enabled: true,
		Host:    mr.Host(),
		Port:    port,
	}
}

func TestNewClient_Connects(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), redisConfigFor(t, mr), zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "pgb:probe", "1", 0).Err())
	assert.True(t, mr.Exists("pgb:probe"))
}

func TestNewClient_PingFails(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfigFor(t, mr)
	mr.Close()

	client, err := NewClient(context.Background(), cfg, zerolog.Nop())
	assert.Nil(t, client)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pinging redis")
}

func TestRedisConfig_Addr(t *testing.T) {
	cfg := config.RedisConfig{Host: "redis.internal", Port: 6380}
	assert.Equal(t, "redis.internal:6380", cfg.Addr())
}

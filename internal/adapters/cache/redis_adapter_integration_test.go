//go:build integration

package cache

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/caremarket/backend/pkg/config"
)

func TestRedisAdapterIntegration(t *testing.T) {
	if os.Getenv("TEST_REDIS_HOST") == "" {
		t.Skip("Skipping integration test: TEST_REDIS_HOST not set")
	}
	port, _ := strconv.Atoi(os.Getenv("TEST_REDIS_PORT"))
	if port == 0 {
		port = 6379
	}
	client, err := redis.NewClient(context.Background(), &config.RedisConfig{
		Host:     os.Getenv("TEST_REDIS_HOST"),
		Port:     port,
		Password: os.Getenv("TEST_REDIS_PASSWORD"),
	})
	require.NoError(t, err)
	defer client.Close()

	adapter := NewRedisAdapter(client)
	ctx := context.Background()
	key := "test:" + uuid.NewString()
	defer adapter.Delete(ctx, key)

	_, err = adapter.Get(ctx, key)
	assert.ErrorIs(t, err, ErrCacheMiss)

	ok, err := adapter.SetIfAbsent(ctx, key, []byte("first"), 60)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = adapter.SetIfAbsent(ctx, key, []byte("second"), 60)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := adapter.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), got)

	exists, err := adapter.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)
}

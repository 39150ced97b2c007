//go:build integration

package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/herald/pkg/cache"
	"github.com/dmitrymomot/herald/pkg/redis"
)

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()

	client, err := redis.Connect(ctx, redis.Config{URL: url, RetryAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	c := cache.NewRedis[map[string]int](client, cache.WithPrefix("herald:test:"+t.Name()))

	_, err = c.Get(ctx, "missing")
	assert.ErrorIs(t, err, cache.ErrNotFound)

	require.NoError(t, c.Set(ctx, "b1", map[string]int{"sent": 5}, time.Minute))
	v, err := c.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 5, v["sent"])

	require.NoError(t, c.Delete(ctx, "b1"))
	_, err = c.Get(ctx, "b1")
	assert.ErrorIs(t, err, cache.ErrNotFound)
}

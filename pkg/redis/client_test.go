package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sellerhub-backend/pkg/config"
)

// fakeRedis answers the cmdable surface from a map, ignoring TTLs.
type fakeRedis map[string]string

func (f fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (f fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := f[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f fakeRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f[k]; ok {
			delete(f, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestCacheLifecycle(t *testing.T) {
	ctx := context.Background()
	c := &Client{store: fakeRedis{}}
	key := c.CacheKey("product_view", "p-1")

	require.NoError(t, c.Set(ctx, key, `{"id":"p-1"}`, time.Minute))
	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"p-1"}`, got)

	require.NoError(t, c.Del(ctx, key))
	_, err = c.Get(ctx, key)
	assert.True(t, IsMiss(err))
	assert.NoError(t, c.Ping(ctx))
}

func TestSetNXClaimsOnce(t *testing.T) {
	ctx := context.Background()
	c := &Client{store: fakeRedis{}}

	won, err := c.SetNX(ctx, "k", "1", time.Minute)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = c.SetNX(ctx, "k", "2", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)
}

func TestZeroClient(t *testing.T) {
	c := &Client{}
	ctx := context.Background()

	assert.ErrorIs(t, c.Ping(ctx), errNotInitialized)
	assert.ErrorIs(t, c.Set(ctx, "k", "v", 0), errNotInitialized)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, c.Close())
}

func TestKeys(t *testing.T) {
	c := &Client{}
	assert.Equal(t, "sh:idempotency:scope:id", c.IdempotencyKey("scope", "id"))
	assert.Equal(t, "sh:cache:product_view:abc", c.CacheKey("product_view", "abc"))
	assert.Equal(t, "sh:cache:product_view", c.CacheKey("product_view", ""))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", DB: 5, PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB, "the URL's database wins")
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6380", Password: "pw", DB: 3})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)
}

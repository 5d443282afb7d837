package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryCache struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failGet bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	if m.failGet {
		return "", errors.New("connection reset")
	}
	v, ok := m.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = value.(string)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) CacheKey(parts ...string) string {
	return "test:cache:" + strings.Join(parts, ":")
}

func TestRedisViewCacheRoundTrip(t *testing.T) {
	store := newMemoryCache()
	cache := NewRedisViewCache(store, time.Minute, nil)
	ctx := context.Background()

	view := &ProductView{ID: uuid.New(), Name: "Tee", Images: []string{}, Variants: []VariantView{}}
	_, ok := cache.Get(ctx, view.ID)
	assert.False(t, ok)

	cache.Put(ctx, view)
	key := "test:cache:product_view:" + view.ID.String()
	assert.Equal(t, time.Minute, store.ttls[key])

	got, ok := cache.Get(ctx, view.ID)
	require.True(t, ok)
	assert.Equal(t, "Tee", got.Name)

	require.NoError(t, cache.Invalidate(ctx, view.ID))
	_, ok = cache.Get(ctx, view.ID)
	assert.False(t, ok)
}

func TestRedisViewCacheDegradesToMiss(t *testing.T) {
	store := newMemoryCache()
	cache := NewRedisViewCache(store, time.Minute, nil)
	ctx := context.Background()
	id := uuid.New()

	store.data["test:cache:product_view:"+id.String()] = "{not json"
	_, ok := cache.Get(ctx, id)
	assert.False(t, ok)

	store.failGet = true
	_, ok = cache.Get(ctx, id)
	assert.False(t, ok)
}

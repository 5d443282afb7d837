package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spyStore wraps memoryStore and remembers the TTL of the last claim.
type spyStore struct {
	memoryStore
	ttl    time.Duration
	failed error
}

func newSpy() *spyStore { return &spyStore{memoryStore: memoryStore{}} }

func (s *spyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s.ttl = ttl
	if s.failed != nil {
		return false, s.failed
	}
	return s.memoryStore.SetNX(ctx, key, value, ttl)
}

func processedKey(consumer string, id uuid.UUID) string {
	return "sh:idempotency:evt:processed:" + consumer + ":" + id.String()
}

func TestCheckAndMarkProcessed(t *testing.T) {
	store := newSpy()
	manager, err := NewManager(store, 12*time.Hour)
	require.NoError(t, err)
	id := uuid.New()

	seen, err := manager.CheckAndMarkProcessed(context.Background(), "catalog_cache", id)
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Contains(t, store.memoryStore, processedKey("catalog_cache", id))
	assert.Equal(t, 12*time.Hour, store.ttl)

	seen, err = manager.CheckAndMarkProcessed(context.Background(), "catalog_cache", id)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestCheckAndMarkProcessedSurfacesStoreErrors(t *testing.T) {
	store := newSpy()
	store.failed = errors.New("connection reset")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "catalog_cache", uuid.New())
	assert.ErrorIs(t, err, store.failed)
}

func TestNewManager(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	assert.Error(t, err)

	store := newSpy()
	manager, err := NewManager(store, 0)
	require.NoError(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "catalog_cache", uuid.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, store.ttl)
}

func TestDeleteDropsMark(t *testing.T) {
	store := newSpy()
	manager, _ := NewManager(store, time.Hour)
	id := uuid.New()

	_, err := manager.CheckAndMarkProcessed(context.Background(), "catalog_cache", id)
	require.NoError(t, err)
	require.NoError(t, manager.Delete(context.Background(), "catalog_cache", id))
	assert.NotContains(t, store.memoryStore, processedKey("catalog_cache", id))
}

func TestKeyInputsAreValidated(t *testing.T) {
	manager, _ := NewManager(newSpy(), time.Hour)
	ctx := context.Background()

	_, err := manager.CheckAndMarkProcessed(ctx, "catalog:cache", uuid.New())
	assert.Error(t, err, "separator in consumer name")
	_, err = manager.CheckAndMarkProcessed(ctx, "", uuid.New())
	assert.Error(t, err, "empty consumer name")
	_, err = manager.CheckAndMarkProcessed(ctx, "catalog_cache", uuid.Nil)
	assert.Error(t, err, "nil event id")
}

func TestOnceReleasesMarkWhenHandlerFails(t *testing.T) {
	store := newSpy()
	manager, _ := NewManager(store, time.Hour)
	id := uuid.New()
	boom := errors.New("redis down")

	ran, err := manager.Once(context.Background(), "catalog_cache", id, func(context.Context) error { return boom })
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.memoryStore, "a failed handler must leave the event retryable")

	calls := 0
	ran, err = manager.Once(context.Background(), "catalog_cache", id, func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, calls)
}

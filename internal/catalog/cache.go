package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/redis"
)

// ViewCache holds composed product views keyed by product id.
type ViewCache interface {
	Get(ctx context.Context, productID uuid.UUID) (*ProductView, bool)
	Put(ctx context.Context, view *ProductView)
	Invalidate(ctx context.Context, productIDs ...uuid.UUID) error
}

// RedisViewCache is a read-through cache over the shared redis client. Read
// and write failures degrade to cache misses; only invalidation reports errors.
type RedisViewCache struct {
	store redis.CacheStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewRedisViewCache(store redis.CacheStore, ttl time.Duration, logg *logger.Logger) *RedisViewCache {
	return &RedisViewCache{store: store, ttl: ttl, logg: logg}
}

func (c *RedisViewCache) key(productID uuid.UUID) string {
	return c.store.CacheKey("product_view", productID.String())
}

func (c *RedisViewCache) Get(ctx context.Context, productID uuid.UUID) (*ProductView, bool) {
	raw, err := c.store.Get(ctx, c.key(productID))
	if err != nil {
		if !redis.IsMiss(err) {
			c.warn(ctx, productID, "product view cache read failed")
		}
		return nil, false
	}
	var view ProductView
	if err := json.Unmarshal([]byte(raw), &view); err != nil {
		c.warn(ctx, productID, "product view cache entry unreadable")
		return nil, false
	}
	return &view, true
}

func (c *RedisViewCache) Put(ctx context.Context, view *ProductView) {
	if view == nil {
		return
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, c.key(view.ID), string(payload), c.ttl); err != nil {
		c.warn(ctx, view.ID, "product view cache write failed")
	}
}

func (c *RedisViewCache) Invalidate(ctx context.Context, productIDs ...uuid.UUID) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, c.key(id))
	}
	return c.store.Del(ctx, keys...)
}

func (c *RedisViewCache) warn(ctx context.Context, productID uuid.UUID, msg string) {
	if c.logg == nil {
		return
	}
	c.logg.Warn(c.logg.WithField(ctx, "product_id", productID.String()), msg)
}

// NoopViewCache disables caching.
type NoopViewCache struct{}

func (NoopViewCache) Get(context.Context, uuid.UUID) (*ProductView, bool) { return nil, false }
func (NoopViewCache) Put(context.Context, *ProductView)                   {}
func (NoopViewCache) Invalidate(context.Context, ...uuid.UUID) error      { return nil }

package catalogcache

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox/registry"
)

const consumerName = "catalog_cache"

type viewInvalidator interface {
	Invalidate(ctx context.Context, productIDs ...uuid.UUID) error
}

type idempotencyChecker interface {
	Once(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer drops cached product views when catalog events arrive, so views
// written by other API instances never outlive the rows they were built from.
type Consumer struct {
	cache   viewInvalidator
	manager idempotencyChecker
	logg    *logger.Logger
}

// NewConsumer builds a catalog cache consumer.
func NewConsumer(cache viewInvalidator, manager idempotencyChecker, logg *logger.Logger) (*Consumer, error) {
	if cache == nil {
		return nil, fmt.Errorf("view cache required")
	}
	if manager == nil {
		return nil, fmt.Errorf("idempotency manager required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{cache: cache, manager: manager, logg: logg}, nil
}

// Process invalidates the product a decoded event refers to. Events outside
// the catalog are acknowledged untouched.
func (c *Consumer) Process(ctx context.Context, event *registry.ResolvedEvent) error {
	if event == nil {
		return registry.NewNonRetryableError(fmt.Errorf("event required"))
	}
	eventType := event.Descriptor.EventType
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"event_id":   event.Envelope.EventID,
		"event_type": eventType,
	})

	if !eventType.TouchesCatalog() {
		c.logg.Debug(logCtx, "event not handled by catalog cache consumer")
		return nil
	}

	productID, ok := payloads.ProductIDOf(event.Payload)
	if !ok {
		c.logg.Info(logCtx, "catalog event without product reference")
		return nil
	}

	eventID, err := uuid.Parse(event.Envelope.EventID)
	if err != nil {
		return registry.NewNonRetryableError(fmt.Errorf("parse event id: %w", err))
	}

	ran, err := c.manager.Once(ctx, consumerName, eventID, func(ctx context.Context) error {
		return c.cache.Invalidate(ctx, productID)
	})
	if err != nil {
		c.logg.Error(logCtx, "failed to invalidate product view", err)
		return err
	}
	if !ran {
		c.logg.Info(logCtx, "event already processed")
		return nil
	}

	c.logg.Info(c.logg.WithField(logCtx, "product_id", productID.String()), "product view invalidated")
	return nil
}

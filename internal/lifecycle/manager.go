package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox/payloads"
)

const variantNotFoundMessage = "This variant don't found"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type transitionRecorder interface {
	Add(entity, action string, rows int64)
}

// Manager owns soft delete and restore across products, variants, options
// and SKUs. It also serves as the composer's Cascader.
type Manager struct {
	tx      txRunner
	repo    *catalog.Repository
	outbox  outboxPublisher
	cache   catalog.ViewCache
	metrics transitionRecorder
	logg    *logger.Logger
}

var _ catalog.Cascader = (*Manager)(nil)

func NewManager(tx txRunner, repo *catalog.Repository, publisher outboxPublisher, cache catalog.ViewCache, metrics transitionRecorder, logg *logger.Logger) (*Manager, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cache == nil {
		cache = catalog.NoopViewCache{}
	}
	return &Manager{tx: tx, repo: repo, outbox: publisher, cache: cache, metrics: metrics, logg: logg}, nil
}

// DeleteProduct flags the product deleted. Its variants and SKUs keep their
// own flags.
func (m *Manager) DeleteProduct(ctx context.Context, actor, productID uuid.UUID) error {
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := m.flipProduct(ctx, tx, actor, productID, true); err != nil {
			return err
		}
		return m.emit(ctx, tx, actor, enums.EventProductDeleted, enums.AggregateProduct, productID,
			payloads.ProductLifecycleEvent{ProductID: productID, Deleted: true})
	})
	if err != nil {
		m.warnMiss(ctx, err, "product_id", productID)
		return err
	}
	m.invalidate(ctx, productID)
	return nil
}

// RestoreProduct clears the product flag and returns the recomposed view.
func (m *Manager) RestoreProduct(ctx context.Context, actor, productID uuid.UUID) (*catalog.ProductView, error) {
	var view *catalog.ProductView
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := m.flipProduct(ctx, tx, actor, productID, false); err != nil {
			return err
		}
		if err := m.emit(ctx, tx, actor, enums.EventProductRestored, enums.AggregateProduct, productID,
			payloads.ProductLifecycleEvent{ProductID: productID, Deleted: false}); err != nil {
			return err
		}
		var err error
		view, err = catalog.LoadView(ctx, m.repo.WithTx(tx), productID)
		return err
	})
	if err != nil {
		m.warnMiss(ctx, err, "product_id", productID)
		return nil, err
	}
	m.invalidate(ctx, productID)
	return view, nil
}

func (m *Manager) flipProduct(ctx context.Context, tx *gorm.DB, actor, productID uuid.UUID, deleted bool) error {
	rows, err := m.repo.WithTx(tx).Products.UpdateFields(ctx, productID, stampFields(deleted, actor))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: flip product")
	}
	if rows == 0 {
		return catalog.ProductNotFound()
	}
	m.record(EntityProduct, deleted, rows)
	return nil
}

// DeleteVariant soft-deletes a SKU and, in the same transaction, the option
// that owns it. The option's variant is rolled up.
func (m *Manager) DeleteVariant(ctx context.Context, actor, skuID uuid.UUID) error {
	var productID *uuid.UUID
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		productID, err = m.flipSKU(ctx, tx, actor, skuID, true)
		return err
	})
	if err != nil {
		m.warnMiss(ctx, err, "sku_id", skuID)
		return err
	}
	if productID != nil {
		m.invalidate(ctx, *productID)
	}
	return nil
}

// RestoreVariant reactivates a SKU with its option and returns the owning
// product's composed view.
func (m *Manager) RestoreVariant(ctx context.Context, actor, skuID uuid.UUID) (*catalog.ProductView, error) {
	var view *catalog.ProductView
	err := m.tx.WithTx(ctx, func(tx *gorm.DB) error {
		productID, err := m.flipSKU(ctx, tx, actor, skuID, false)
		if err != nil {
			return err
		}
		if productID == nil {
			return catalog.ProductNotFound()
		}
		view, err = catalog.LoadView(ctx, m.repo.WithTx(tx), *productID)
		return err
	})
	if err != nil {
		m.warnMiss(ctx, err, "sku_id", skuID)
		return nil, err
	}
	m.invalidate(ctx, view.ID)
	return view, nil
}

func (m *Manager) flipSKU(ctx context.Context, tx *gorm.DB, actor, skuID uuid.UUID, deleted bool) (*uuid.UUID, error) {
	txRepo := m.repo.WithTx(tx)

	if _, err := txRepo.SKUs.FindByID(ctx, skuID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, variantNotFoundMessage)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load sku")
	}

	run := newCascade(txRepo, actor, deleted)
	if err := run.apply(ctx, EntitySKU, []uuid.UUID{skuID}); err != nil {
		return nil, err
	}
	m.recordRun(run)

	var productID *uuid.UUID
	id, err := txRepo.ProductIDForSKU(ctx, skuID)
	switch {
	case err == nil:
		productID = &id
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: resolve sku product")
	}

	event := payloads.VariantLifecycleEvent{SKUID: skuID, ProductID: productID, Deleted: deleted}
	if option, err := txRepo.OptionBySKU(ctx, skuID); err == nil {
		event.VariantOptionID = &option.ID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variant option")
	}

	eventType := enums.EventVariantRestored
	if deleted {
		eventType = enums.EventVariantDeleted
	}
	if err := m.emit(ctx, tx, actor, eventType, enums.AggregateSKU, skuID, event); err != nil {
		return nil, err
	}
	return productID, nil
}

// DeleteVariants soft-deletes variants with all their options and SKUs inside
// the caller's transaction.
func (m *Manager) DeleteVariants(ctx context.Context, tx *gorm.DB, actor uuid.UUID, variantIDs []uuid.UUID) error {
	return m.cascadeInTx(ctx, tx, actor, EntityVariant, variantIDs)
}

// DeleteOptions soft-deletes options with their SKUs inside the caller's
// transaction and rolls up the owning variants.
func (m *Manager) DeleteOptions(ctx context.Context, tx *gorm.DB, actor uuid.UUID, optionIDs []uuid.UUID) error {
	return m.cascadeInTx(ctx, tx, actor, EntityOption, optionIDs)
}

func (m *Manager) cascadeInTx(ctx context.Context, tx *gorm.DB, actor uuid.UUID, entity Entity, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	run := newCascade(m.repo.WithTx(tx), actor, true)
	if err := run.apply(ctx, entity, ids); err != nil {
		return err
	}
	m.recordRun(run)
	return nil
}

func (m *Manager) emit(ctx context.Context, tx *gorm.DB, actor uuid.UUID, eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, aggregateID uuid.UUID, data any) error {
	err := m.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: aggregate,
		AggregateID:   aggregateID,
		Actor:         &outbox.ActorRef{UserID: actor},
		Data:          data,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("emit %s", eventType))
	}
	return nil
}

func (m *Manager) record(entity Entity, deleted bool, rows int64) {
	if m.metrics == nil {
		return
	}
	action := "restore"
	if deleted {
		action = "delete"
	}
	m.metrics.Add(string(entity), action, rows)
}

func (m *Manager) recordRun(run *cascade) {
	if m.metrics == nil {
		return
	}
	for entity, rows := range run.flipped {
		m.metrics.Add(string(entity), run.action(), rows)
	}
}

func (m *Manager) invalidate(ctx context.Context, productID uuid.UUID) {
	if err := m.cache.Invalidate(ctx, productID); err != nil && m.logg != nil {
		m.logg.Warn(m.logg.WithField(ctx, "product_id", productID.String()), "product view invalidation failed")
	}
}

func (m *Manager) warnMiss(ctx context.Context, err error, key string, id uuid.UUID) {
	if m.logg == nil || !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return
	}
	m.logg.Warn(m.logg.WithField(ctx, key, id.String()), "lifecycle target not found")
}

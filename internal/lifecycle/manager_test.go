package lifecycle

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/catalog"
	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
)

type recordedTransitions map[string]int64

func (r recordedTransitions) Add(entity, action string, rows int64) {
	r[entity+":"+action] += rows
}

type spyCache struct {
	catalog.NoopViewCache
	invalidated []uuid.UUID
}

func (s *spyCache) Invalidate(_ context.Context, ids ...uuid.UUID) error {
	s.invalidated = append(s.invalidated, ids...)
	return nil
}

type fixture struct {
	client  *db.Client
	repo    *catalog.Repository
	manager *Manager
	catalog catalog.Service
	metrics recordedTransitions
	cache   *spyCache
	actor   catalog.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	client := dbtest.Client(t)
	repo := catalog.NewRepository(client.DB())
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	metrics := recordedTransitions{}
	cache := &spyCache{}

	manager, err := NewManager(client, repo, emitter, cache, metrics, nil)
	require.NoError(t, err)
	svc, err := catalog.NewService(client, repo, manager, emitter, nil, nil)
	require.NoError(t, err)

	return &fixture{
		client:  client,
		repo:    repo,
		manager: manager,
		catalog: svc,
		metrics: metrics,
		cache:   cache,
		actor:   catalog.Actor{UserID: uuid.New(), OrganisationID: uuid.New()},
	}
}

func (f *fixture) createSizes(t *testing.T) *catalog.ProductView {
	t.Helper()
	view, err := f.catalog.Create(context.Background(), f.actor, catalog.ProductInput{
		Name: "Tee",
		Tax:  decimal.NewFromInt(1),
		Variants: []catalog.VariantInput{{
			Name: "Size",
			Options: []catalog.OptionInput{
				{OptionName: "S", SortOrder: 1, Properties: catalog.SKUProperties{Price: decimal.NewFromInt(10), Quantity: 5}},
				{OptionName: "M", SortOrder: 2, Properties: catalog.SKUProperties{Price: decimal.NewFromInt(12), Quantity: 3}},
			},
		}},
	})
	require.NoError(t, err)
	require.Len(t, view.Variants, 1)
	require.Len(t, view.Variants[0].Options, 2)
	return view
}

func (f *fixture) countEvents(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func (f *fixture) option(t *testing.T, skuID uuid.UUID) *models.VariantOption {
	t.Helper()
	option, err := f.repo.OptionBySKU(context.Background(), skuID)
	require.NoError(t, err)
	return option
}

func (f *fixture) sku(t *testing.T, skuID uuid.UUID) *models.SKU {
	t.Helper()
	sku, err := f.repo.SKUs.FindByID(context.Background(), skuID)
	require.NoError(t, err)
	return sku
}

func (f *fixture) variant(t *testing.T, id uuid.UUID) *models.Variant {
	t.Helper()
	variant, err := f.repo.Variants.FindByID(context.Background(), id)
	require.NoError(t, err)
	return variant
}

func TestDeleteVariantFlipsOptionWithSKU(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createSizes(t)
	small := view.Variants[0].Options[0]
	medium := view.Variants[0].Options[1]

	require.NoError(t, f.manager.DeleteVariant(ctx, f.actor.UserID, small.Properties.SKUID))

	assert.True(t, f.sku(t, small.Properties.SKUID).IsDeleted)
	assert.True(t, f.option(t, small.Properties.SKUID).IsDeleted)
	assert.False(t, f.sku(t, medium.Properties.SKUID).IsDeleted)
	assert.False(t, f.variant(t, view.Variants[0].ID).IsDeleted, "variant keeps an active option")

	assert.Equal(t, int64(1), f.metrics["sku:delete"])
	assert.Equal(t, int64(1), f.metrics["variant_option:delete"])
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventVariantDeleted))
	assert.Contains(t, f.cache.invalidated, view.ID)

	got, err := f.catalog.Get(ctx, view.ID)
	require.NoError(t, err)
	require.Len(t, got.Variants, 1)
	require.Len(t, got.Variants[0].Options, 1)
	assert.Equal(t, "M", got.Variants[0].Options[0].OptionName)
}

func TestDeletingLastOptionRollsUpVariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createSizes(t)
	variantID := view.Variants[0].ID

	for _, opt := range view.Variants[0].Options {
		require.NoError(t, f.manager.DeleteVariant(ctx, f.actor.UserID, opt.Properties.SKUID))
	}
	assert.True(t, f.variant(t, variantID).IsDeleted)
	assert.Equal(t, int64(1), f.metrics["variant:delete"])

	restored, err := f.manager.RestoreVariant(ctx, f.actor.UserID, view.Variants[0].Options[1].Properties.SKUID)
	require.NoError(t, err)
	assert.False(t, f.variant(t, variantID).IsDeleted)
	require.Len(t, restored.Variants, 1)
	require.Len(t, restored.Variants[0].Options, 1)
	assert.Equal(t, "M", restored.Variants[0].Options[0].OptionName)
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventVariantRestored))
}

func TestRestoreVariantIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createSizes(t)
	skuID := view.Variants[0].Options[0].Properties.SKUID

	_, err := f.manager.RestoreVariant(ctx, f.actor.UserID, skuID)
	require.NoError(t, err)
	assert.Zero(t, f.metrics["sku:restore"])
	assert.False(t, f.option(t, skuID).IsDeleted)
}

func TestDeleteVariantUnknownSKU(t *testing.T) {
	f := newFixture(t)
	err := f.manager.DeleteVariant(context.Background(), f.actor.UserID, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Equal(t, variantNotFoundMessage, pkgerrors.As(err).Message())
}

func TestDeleteAndRestoreProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createSizes(t)

	require.NoError(t, f.manager.DeleteProduct(ctx, f.actor.UserID, view.ID))
	_, err := f.catalog.Get(ctx, view.ID)
	require.Error(t, err)
	assert.Equal(t, "This product don't found", pkgerrors.As(err).Message())

	// SKUs keep their own flags while the product is hidden.
	assert.False(t, f.sku(t, view.Variants[0].Options[0].Properties.SKUID).IsDeleted)

	restored, err := f.manager.RestoreProduct(ctx, f.actor.UserID, view.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted)
	assert.Len(t, restored.Variants[0].Options, 2)

	product, err := f.repo.Products.FindByID(ctx, view.ID)
	require.NoError(t, err)
	require.NotNil(t, product.UpdatedBy)
	assert.Equal(t, f.actor.UserID, *product.UpdatedBy)

	assert.Equal(t, int64(1), f.countEvents(t, enums.EventProductDeleted))
	assert.Equal(t, int64(1), f.countEvents(t, enums.EventProductRestored))
}

func TestDeleteProductUnknownID(t *testing.T) {
	f := newFixture(t)
	err := f.manager.DeleteProduct(context.Background(), f.actor.UserID, uuid.New())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	assert.Zero(t, f.countEvents(t, enums.EventProductDeleted))
}

func TestDeleteVariantsCascadesInsideCallerTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createSizes(t)
	variantID := view.Variants[0].ID

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		return f.manager.DeleteVariants(ctx, tx, f.actor.UserID, []uuid.UUID{variantID})
	})
	require.NoError(t, err)

	assert.True(t, f.variant(t, variantID).IsDeleted)
	for _, opt := range view.Variants[0].Options {
		assert.True(t, f.option(t, opt.Properties.SKUID).IsDeleted)
		assert.True(t, f.sku(t, opt.Properties.SKUID).IsDeleted)
	}
	assert.Equal(t, int64(2), f.metrics["sku:delete"])
}

func TestDeleteOptionsRollsBackWithCallerTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	view := f.createSizes(t)
	skuID := view.Variants[0].Options[0].Properties.SKUID
	optionID := f.option(t, skuID).ID

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := f.manager.DeleteOptions(ctx, tx, f.actor.UserID, []uuid.UUID{optionID}); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInternal, "abort")
	})
	require.Error(t, err)
	assert.False(t, f.option(t, skuID).IsDeleted)
	assert.False(t, f.sku(t, skuID).IsDeleted)
}

func TestRulesFrom(t *testing.T) {
	rules := RulesFrom(EntityOption)
	require.Len(t, rules, 2)
	kinds := map[Entity]Kind{}
	for _, r := range rules {
		kinds[r.Target] = r.Kind
	}
	assert.Equal(t, KindLockstep, kinds[EntitySKU])
	assert.Equal(t, KindRollup, kinds[EntityVariant])
	assert.Empty(t, RulesFrom(EntityProduct))
}

package checkout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
)

type checkoutEnv struct {
	client *db.Client
	store  *cart.Store
	svc    Service
	actor  uuid.UUID
}

func newCheckoutEnv(t *testing.T) *checkoutEnv {
	t.Helper()
	client := dbtest.Client(t)
	store := cart.NewStore(cart.NewRepository(client.DB()))
	emitter := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	svc, err := NewService(client, store, cart.NewPricer(decimal.Zero), nil, emitter, nil)
	require.NoError(t, err)
	return &checkoutEnv{client: client, store: store, svc: svc, actor: uuid.New()}
}

type seeded struct {
	skuID     uuid.UUID
	productID uuid.UUID
}

func (e *checkoutEnv) seed(t *testing.T, price, tax int64, stock int) seeded {
	t.Helper()
	conn := e.client.DB()
	product := models.Product{
		OrganisationID: uuid.New(),
		Name:           "Mug",
		Type:           enums.ProductTypeSimple,
		Tax:            decimal.NewFromInt(tax),
		TrackInventory: true,
		CreatedBy:      e.actor,
	}
	require.NoError(t, conn.Omit("Variants", "SKUs").Create(&product).Error)
	sku := models.SKU{Price: decimal.NewFromInt(price), Quantity: stock, CreatedBy: e.actor}
	require.NoError(t, conn.Create(&sku).Error)
	require.NoError(t, conn.Table("product_skus").Create(map[string]any{"product_id": product.ID, "sku_id": sku.ID}).Error)
	return seeded{skuID: sku.ID, productID: product.ID}
}

func (e *checkoutEnv) openCart(t *testing.T) string {
	t.Helper()
	record, _, err := e.store.Open(context.Background(), "", e.actor)
	require.NoError(t, err)
	return record.ShopUniqueKey
}

func (e *checkoutEnv) stock(t *testing.T, skuID uuid.UUID) int {
	t.Helper()
	var sku models.SKU
	require.NoError(t, e.client.DB().First(&sku, "id = ?", skuID).Error)
	return sku.Quantity
}

func (e *checkoutEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.client.DB().Model(model).Count(&n).Error)
	return n
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func line(s seeded, qty int, amount, tax int64) cart.LineItem {
	return cart.LineItem{
		SKUID:     s.skuID,
		ProductID: s.productID,
		Quantity:  qty,
		Amount:    d(amount),
		Tax:       d(tax),
		TotalAmt:  d(amount + tax),
	}
}

func TestCheckoutConvertsCart(t *testing.T) {
	env := newCheckoutEnv(t)
	ctx := context.Background()
	sku := env.seed(t, 10, 1, 5)
	key := env.openCart(t)

	result, err := env.svc.Checkout(ctx, env.actor, key, cart.Payload{
		CartProducts: []cart.LineItem{line(sku, 3, 30, 3)},
		Total:        cart.Totals{SubTotal: d(30), GST: d(3), Total: d(33)},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.OrderID)
	assert.True(t, result.Total.Total.Equal(d(33)))

	assert.Equal(t, 2, env.stock(t, sku.skuID))

	var rows []models.SellProduct
	require.NoError(t, env.client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, result.OrderID, rows[0].OrderID)
	assert.True(t, rows[0].TotalAmt.Equal(d(33)))

	var events int64
	require.NoError(t, env.client.DB().Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventCartCheckedOut).Count(&events).Error)
	assert.Equal(t, int64(1), events)

	_, err = env.svc.Checkout(ctx, env.actor, key, cart.Payload{
		CartProducts: []cart.LineItem{line(sku, 1, 10, 1)},
		Total:        cart.Totals{SubTotal: d(10), GST: d(1), Total: d(11)},
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeCartUnavailable))
}

func TestCheckoutRejectsTamperedCart(t *testing.T) {
	env := newCheckoutEnv(t)
	sku := env.seed(t, 10, 1, 5)
	key := env.openCart(t)

	_, err := env.svc.Checkout(context.Background(), env.actor, key, cart.Payload{
		CartProducts: []cart.LineItem{line(sku, 3, 999, 3)},
		Total:        cart.Totals{SubTotal: d(999), GST: d(3), Total: d(1002)},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTamperedCartData))
	assert.Equal(t, 5, env.stock(t, sku.skuID))
	assert.Zero(t, env.count(t, &models.SellProduct{}))
}

func TestCheckoutChecksCombinedStock(t *testing.T) {
	env := newCheckoutEnv(t)
	sku := env.seed(t, 10, 0, 5)
	key := env.openCart(t)

	_, err := env.svc.Checkout(context.Background(), env.actor, key, cart.Payload{
		CartProducts: []cart.LineItem{line(sku, 3, 30, 0), line(sku, 3, 30, 0)},
		Total:        cart.Totals{SubTotal: d(60), GST: d(0), Total: d(60)},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))
	assert.Equal(t, 5, env.stock(t, sku.skuID))
	assert.Zero(t, env.count(t, &models.SellProduct{}))
	assert.Zero(t, env.count(t, &models.OutboxEvent{}))
}

func TestCheckoutRequiresItems(t *testing.T) {
	env := newCheckoutEnv(t)
	_, err := env.svc.Checkout(context.Background(), env.actor, env.openCart(t), cart.Payload{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

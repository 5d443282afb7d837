package cart

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

// Repository exposes cart persistence and the catalog reads pricing needs.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByKey loads the live cart for a shop unique key.
func (r *Repository) FindByKey(ctx context.Context, key string) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Where("shop_unique_key = ? AND is_deleted = ?", key, false).
		First(&cart).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// Create inserts a new cart.
func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

// UpdateProducts overwrites the stored envelope.
func (r *Repository) UpdateProducts(ctx context.Context, cartID uuid.UUID, payload string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("cart_products", payload)
	return res.RowsAffected, res.Error
}

// HasSellProducts reports whether the cart has already been converted.
func (r *Repository) HasSellProducts(ctx context.Context, cartID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SellProduct{}).
		Where("cart_id = ?", cartID).
		Count(&count).Error
	return count > 0, err
}

// InsertSellProducts materializes converted cart lines.
func (r *Repository) InsertSellProducts(ctx context.Context, rows []models.SellProduct) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

// PricingRow is the authoritative catalog data for one SKU in a cart.
type PricingRow struct {
	SKUID                 uuid.UUID       `gorm:"column:sku_id"`
	Price                 decimal.Decimal `gorm:"column:price"`
	Stock                 int             `gorm:"column:stock"`
	ProductID             uuid.UUID       `gorm:"column:product_id"`
	OrganisationID        uuid.UUID       `gorm:"column:organisation_id"`
	ProductName           string          `gorm:"column:product_name"`
	Tax                   decimal.Decimal `gorm:"column:tax"`
	TrackInventory        bool            `gorm:"column:track_inventory"`
	AvailableIfOutOfStock bool            `gorm:"column:available_if_out_of_stock"`
}

// Tracked reports whether a sale must be backed by stock on hand.
func (p PricingRow) Tracked() bool {
	return p.TrackInventory && !p.AvailableIfOutOfStock
}

// PricingRows returns live SKUs joined with their live product, keyed by SKU
// id. Deleted or unlinked SKUs are simply absent.
func (r *Repository) PricingRows(ctx context.Context, skuIDs []uuid.UUID) (map[uuid.UUID]PricingRow, error) {
	out := make(map[uuid.UUID]PricingRow, len(skuIDs))
	if len(skuIDs) == 0 {
		return out, nil
	}
	var rows []PricingRow
	err := r.db.WithContext(ctx).
		Table("skus s").
		Select("s.id AS sku_id, s.price, s.quantity AS stock, p.id AS product_id, p.organisation_id, p.name AS product_name, p.tax, p.track_inventory, p.available_if_out_of_stock").
		Joins("JOIN product_skus ps ON ps.sku_id = s.id").
		Joins("JOIN products p ON p.id = ps.product_id").
		Where("s.id IN ?", skuIDs).
		Where("s.is_deleted = ? AND p.is_deleted = ?", false, false).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.SKUID] = row
	}
	return out, nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart holds a buyer's line items as a serialized envelope until checkout.
type Cart struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ShopUniqueKey string    `gorm:"column:shop_unique_key;not null;uniqueIndex"`
	CartProducts  string    `gorm:"column:cart_products;type:text;not null"`
	CreatedBy     uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
	IsDeleted     bool      `gorm:"column:is_deleted;not null;default:false"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Cart) TableName() string { return "carts" }

func (c *Cart) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// SellProduct is the order-linked copy of a cart line. Once any row exists
// for a cart, that cart is historical.
type SellProduct struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID         uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	SKUID          uuid.UUID       `gorm:"column:sku_id;type:uuid;not null"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	OrganisationID uuid.UUID       `gorm:"column:organisation_id;type:uuid;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	Amount         decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Tax            decimal.Decimal `gorm:"column:tax;type:numeric(12,2);not null"`
	TotalAmt       decimal.Decimal `gorm:"column:total_amt;type:numeric(12,2);not null"`
	IsDeleted      bool            `gorm:"column:is_deleted;not null;default:false"`
	CreatedBy      uuid.UUID       `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (SellProduct) TableName() string { return "sell_products" }

func (s *SellProduct) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

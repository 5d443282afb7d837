package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SKU is the price and stock record of one sellable unit.
type SKU struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Price     decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	Cost      decimal.Decimal `gorm:"column:cost;type:numeric(12,2);not null;default:0"`
	Barcode   *string         `gorm:"column:barcode"`
	SKUCode   *string         `gorm:"column:sku_code"`
	Quantity  int             `gorm:"column:quantity;not null;default:0"`
	IsDeleted bool            `gorm:"column:is_deleted;not null;default:false"`
	CreatedBy uuid.UUID       `gorm:"column:created_by;type:uuid;not null"`
	UpdatedBy *uuid.UUID      `gorm:"column:updated_by;type:uuid"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (SKU) TableName() string { return "skus" }

func (s *SKU) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

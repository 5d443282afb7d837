package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Variant is a named axis of differentiation ("Color") owned by one product.
type Variant struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name      string          `gorm:"column:name;not null"`
	IsDeleted bool            `gorm:"column:is_deleted;not null;default:false"`
	CreatedBy uuid.UUID       `gorm:"column:created_by;type:uuid;not null"`
	UpdatedBy *uuid.UUID      `gorm:"column:updated_by;type:uuid"`
	Options   []VariantOption `gorm:"many2many:variant_option_links;"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Variant) TableName() string { return "variants" }

func (v *Variant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// VariantOption is one value along a variant axis ("Red"). It owns exactly
// one SKU and must share that SKU's is_deleted flag.
type VariantOption struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Name      string     `gorm:"column:name;not null"`
	SortOrder int        `gorm:"column:sort_order;not null;default:0"`
	SKUID     uuid.UUID  `gorm:"column:sku_id;type:uuid;not null;uniqueIndex"`
	IsDeleted bool       `gorm:"column:is_deleted;not null;default:false"`
	CreatedBy uuid.UUID  `gorm:"column:created_by;type:uuid;not null"`
	UpdatedBy *uuid.UUID `gorm:"column:updated_by;type:uuid"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (VariantOption) TableName() string { return "variant_options" }

func (o *VariantOption) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

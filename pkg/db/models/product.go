package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/sellerhub-backend/pkg/db/types"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
)

// Product is the catalog root. Its sellable surface lives on SKUs linked
// through product_skus, either one base SKU or one SKU per variant option.
type Product struct {
	ID                    uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	OrganisationID        uuid.UUID          `gorm:"column:organisation_id;type:uuid;not null;index"`
	Name                  string             `gorm:"column:name;not null"`
	Description           *string            `gorm:"column:description"`
	Type                  enums.ProductType  `gorm:"column:type;not null"`
	Images                dbtypes.StringList `gorm:"column:images;type:jsonb;not null"`
	Tax                   decimal.Decimal    `gorm:"column:tax;type:numeric(12,2);not null;default:0"`
	TrackInventory        bool               `gorm:"column:track_inventory;not null"`
	AvailableIfOutOfStock bool               `gorm:"column:available_if_out_of_stock;not null;default:false"`
	Weight                *decimal.Decimal   `gorm:"column:weight;type:numeric(12,3)"`
	Length                *decimal.Decimal   `gorm:"column:length;type:numeric(12,2)"`
	Width                 *decimal.Decimal   `gorm:"column:width;type:numeric(12,2)"`
	Height                *decimal.Decimal   `gorm:"column:height;type:numeric(12,2)"`
	IsDeleted             bool               `gorm:"column:is_deleted;not null;default:false"`
	CreatedBy             uuid.UUID          `gorm:"column:created_by;type:uuid;not null"`
	UpdatedBy             *uuid.UUID         `gorm:"column:updated_by;type:uuid"`
	Variants              []Variant          `gorm:"many2many:product_variants;"`
	SKUs                  []SKU              `gorm:"many2many:product_skus;joinForeignKey:ProductID;joinReferences:SkuID"`
	CreatedAt             time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Images == nil {
		p.Images = dbtypes.StringList{}
	}
	return nil
}

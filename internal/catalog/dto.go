package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
)

// Actor identifies who is composing or mutating catalog rows.
type Actor struct {
	UserID         uuid.UUID
	OrganisationID uuid.UUID
}

// SKUProperties is the price and stock block attached to a base product or a
// variant option. A non-nil ID addresses an already persisted SKU.
type SKUProperties struct {
	ID       *uuid.UUID      `json:"id,omitempty"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Cost     decimal.Decimal `json:"cost" validate:"gte=0"`
	SKUCode  *string         `json:"skuCode,omitempty" validate:"omitempty,max=64"`
	Barcode  *string         `json:"barcode,omitempty" validate:"omitempty,max=64"`
	Quantity int             `json:"quantity" validate:"gte=0"`
}

// OptionInput is one submitted value of a variant axis.
type OptionInput struct {
	ID         *uuid.UUID    `json:"id,omitempty"`
	VariantID  *uuid.UUID    `json:"variantId,omitempty"`
	OptionName string        `json:"optionName" validate:"required,max=255"`
	SortOrder  int           `json:"sortOrder"`
	Properties SKUProperties `json:"properties"`
}

// VariantInput is one submitted variant axis with its options.
type VariantInput struct {
	ID      *uuid.UUID    `json:"id,omitempty"`
	Name    string        `json:"name" validate:"required,max=255"`
	Options []OptionInput `json:"options" validate:"dive"`
}

// Dimensions carries the optional shipping measurements of a product.
type Dimensions struct {
	Weight *decimal.Decimal `json:"weight,omitempty"`
	Length *decimal.Decimal `json:"length,omitempty"`
	Width  *decimal.Decimal `json:"width,omitempty"`
	Height *decimal.Decimal `json:"height,omitempty"`
}

// ProductInput is the nested write shape accepted by Create and Update.
// Properties describes the base SKU and is only read when Variants is empty.
type ProductInput struct {
	Name                  string            `json:"name" validate:"required,max=255"`
	Description           *string           `json:"description,omitempty"`
	Type                  enums.ProductType `json:"type,omitempty"`
	Images                []string          `json:"images" validate:"omitempty,dive,required"`
	Tax                   decimal.Decimal   `json:"tax" validate:"gte=0"`
	TrackInventory        bool              `json:"trackInventory"`
	AvailableIfOutOfStock bool              `json:"availableIfOutOfStock"`
	Dimensions            Dimensions        `json:"dimensions"`
	Properties            *SKUProperties    `json:"properties,omitempty"`
	Variants              []VariantInput    `json:"variants" validate:"dive"`
}

// SKUView is the read shape of a SKU. On a product it is the hoisted base SKU.
type SKUView struct {
	SKUID    uuid.UUID       `json:"skuId"`
	Price    decimal.Decimal `json:"price" validate:"gte=0"`
	Cost     decimal.Decimal `json:"cost" validate:"gte=0"`
	SKUCode  *string         `json:"skuCode,omitempty"`
	Barcode  *string         `json:"barcode,omitempty"`
	Quantity int             `json:"quantity"`
}

type OptionView struct {
	ID         uuid.UUID `json:"id"`
	OptionName string    `json:"optionName"`
	SortOrder  int       `json:"sortOrder"`
	Properties SKUView   `json:"properties"`
}

type VariantView struct {
	ID      uuid.UUID    `json:"id"`
	Name    string       `json:"name"`
	Options []OptionView `json:"options"`
}

// ProductView is the client-facing composed product. The embedded SKUView is
// present only for products sold through a base SKU.
type ProductView struct {
	ID                    uuid.UUID         `json:"id"`
	OrganisationID        uuid.UUID         `json:"organisationId"`
	Name                  string            `json:"name"`
	Description           *string           `json:"description,omitempty"`
	Type                  enums.ProductType `json:"type"`
	Images                []string          `json:"images"`
	Tax                   decimal.Decimal   `json:"tax" validate:"gte=0"`
	TrackInventory        bool              `json:"trackInventory"`
	AvailableIfOutOfStock bool              `json:"availableIfOutOfStock"`
	Dimensions            Dimensions        `json:"dimensions"`
	IsDeleted             bool              `json:"isDeleted"`
	*SKUView
	Variants  []VariantView `json:"variants"`
	CreatedAt time.Time     `json:"createdOn"`
	UpdatedAt time.Time     `json:"updatedOn"`
}

// ProductSummary is one row of an organisation's product list.
type ProductSummary struct {
	ID        uuid.UUID         `json:"id"`
	Name      string            `json:"name"`
	Type      enums.ProductType `json:"type"`
	Images    []string          `json:"images"`
	Tax       decimal.Decimal   `json:"tax"`
	CreatedAt time.Time         `json:"createdOn"`
	UpdatedAt time.Time         `json:"updatedOn"`
}

// ProductListResult is a cursor page of product summaries.
type ProductListResult struct {
	Products   []ProductSummary `json:"products"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

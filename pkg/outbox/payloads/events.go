package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSavedEvent is emitted after a product tree is composed or updated.
type ProductSavedEvent struct {
	ProductID      uuid.UUID   `json:"product_id"`
	OrganisationID uuid.UUID   `json:"organisation_id"`
	VariantIDs     []uuid.UUID `json:"variant_ids"`
	SKUIDs         []uuid.UUID `json:"sku_ids"`
	Created        bool        `json:"created"`
}

// ProductLifecycleEvent reports a product soft delete or restore.
type ProductLifecycleEvent struct {
	ProductID uuid.UUID `json:"product_id"`
	Deleted   bool      `json:"deleted"`
}

// VariantLifecycleEvent reports a SKU and its option flipping together.
type VariantLifecycleEvent struct {
	SKUID           uuid.UUID  `json:"sku_id"`
	VariantOptionID *uuid.UUID `json:"variant_option_id,omitempty"`
	ProductID       *uuid.UUID `json:"product_id,omitempty"`
	Deleted         bool       `json:"deleted"`
}

// CartCheckedOutEvent is emitted once a cart has been converted into sell products.
type CartCheckedOutEvent struct {
	CartID        uuid.UUID       `json:"cart_id"`
	OrderID       uuid.UUID       `json:"order_id"`
	ShopUniqueKey string          `json:"shop_unique_key"`
	LineCount     int             `json:"line_count"`
	Total         decimal.Decimal `json:"total"`
}

// ProductIDOf returns the product a catalog payload refers to, if any.
func ProductIDOf(payload interface{}) (uuid.UUID, bool) {
	switch p := payload.(type) {
	case *ProductSavedEvent:
		return p.ProductID, true
	case *ProductLifecycleEvent:
		return p.ProductID, true
	case *VariantLifecycleEvent:
		if p.ProductID != nil {
			return *p.ProductID, true
		}
	}
	return uuid.Nil, false
}

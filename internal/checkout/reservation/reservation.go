package reservation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// StockRequest asks for qty units of a SKU.
type StockRequest struct {
	SKUID uuid.UUID
	Qty   int
}

// StockResult reports whether a request was reserved and, if not, why.
type StockResult struct {
	SKUID    uuid.UUID
	Qty      int
	Reserved bool
	Reason   string
}

// ReserveStock decrements SKU quantities with a conditional update so that
// concurrent checkouts can never drive stock negative. Requests are applied in
// order; a request that finds too little stock is reported, not retried.
func ReserveStock(ctx context.Context, tx *gorm.DB, requests []StockRequest) ([]StockResult, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	results := make([]StockResult, 0, len(requests))
	for _, req := range requests {
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
		}
		res := tx.WithContext(ctx).
			Model(&models.SKU{}).
			Where("id = ? AND is_deleted = ? AND quantity >= ?", req.SKUID, false, req.Qty).
			Update("quantity", gorm.Expr("quantity - ?", req.Qty))
		if res.Error != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "db: decrement sku stock")
		}
		result := StockResult{SKUID: req.SKUID, Qty: req.Qty, Reserved: res.RowsAffected == 1}
		if !result.Reserved {
			result.Reason = "insufficient stock"
		}
		results = append(results, result)
	}
	return results, nil
}

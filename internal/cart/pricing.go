package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// Mode selects what the pricer does with client figures that disagree with
// the catalog.
type Mode string

const (
	// ModeEdit overwrites client figures with the recomputed ones.
	ModeEdit Mode = "edit"
	// ModePrePayment rejects any disagreement as tampering.
	ModePrePayment Mode = "pre_payment"
)

const tamperedMessage = "Incorrect product data"

func tampered() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeTamperedCartData, tamperedMessage)
}

// SKUSource resolves the authoritative pricing rows for a set of SKUs.
type SKUSource interface {
	PricingRows(ctx context.Context, skuIDs []uuid.UUID) (map[uuid.UUID]PricingRow, error)
}

// Pricer recomputes cart lines and totals. ceiling caps the target value a
// cart may total; zero leaves the cap to the submitted target.
type Pricer struct {
	ceiling decimal.Decimal
}

func NewPricer(ceiling decimal.Decimal) *Pricer {
	return &Pricer{ceiling: ceiling}
}

// Price reconciles env against source. In edit mode the returned envelope
// carries recomputed lines and fresh totals; in pre-payment mode it is only
// returned when the client figures already matched.
func (p *Pricer) Price(ctx context.Context, source SKUSource, mode Mode, env Envelope) (*Envelope, error) {
	if mode != ModeEdit && mode != ModePrePayment {
		return nil, fmt.Errorf("unknown pricing mode %q", mode)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(env.Items))
	for _, item := range env.Items {
		ids = append(ids, item.SKUID)
	}
	rows, err := source.PricingRows(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart skus")
	}
	return p.reconcile(mode, env, rows)
}

func (p *Pricer) reconcile(mode Mode, env Envelope, rows map[uuid.UUID]PricingRow) (*Envelope, error) {
	out := &Envelope{Items: make([]LineItem, 0, len(env.Items))}
	subTotal := decimal.Zero
	gst := decimal.Zero

	for _, item := range env.Items {
		row, ok := rows[item.SKUID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "This product don't found")
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeEmptyQuantity, "quantity must be greater than zero")
		}
		if row.Tracked() && item.Quantity > row.Stock {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("only %d left in stock", row.Stock)).
				WithDetails(map[string]any{"skuId": item.SKUID, "available": row.Stock})
		}

		qty := decimal.NewFromInt(int64(item.Quantity))
		line := item
		line.Tax = qty.Mul(row.Tax)
		line.Amount = qty.Mul(row.Price)
		line.TotalAmt = line.Tax.Add(line.Amount)
		line.ProductID = row.ProductID
		line.OrganisationID = row.OrganisationID
		if line.Name == "" {
			line.Name = row.ProductName
		}

		if mode == ModePrePayment && !sameFigures(item, line) {
			return nil, tampered()
		}

		subTotal = subTotal.Add(line.Amount)
		gst = gst.Add(line.Tax)
		out.Items = append(out.Items, line)
	}

	target := p.targetValue(env.Total.TargetValue)
	if mode == ModePrePayment {
		if err := checkTotals(env.Total, subTotal, gst, target); err != nil {
			return nil, err
		}
	}
	out.Total = Totals{
		SubTotal:    subTotal,
		GST:         gst,
		Total:       subTotal.Add(gst),
		TargetValue: target,
	}
	return out, nil
}

func sameFigures(submitted, computed LineItem) bool {
	return submitted.ProductID == computed.ProductID &&
		submitted.Amount.Equal(computed.Amount) &&
		submitted.Tax.Equal(computed.Tax) &&
		submitted.TotalAmt.Equal(computed.TotalAmt)
}

// checkTotals runs the pre-payment cross-check in order; the first failure wins.
func checkTotals(submitted Totals, subTotal, gst, target decimal.Decimal) error {
	switch {
	case !submitted.SubTotal.Equal(subTotal):
		return tampered()
	case !submitted.GST.Equal(gst):
		return tampered()
	case !submitted.GST.Add(submitted.SubTotal).Equal(submitted.Total):
		return tampered()
	case target.IsPositive() && submitted.GST.Add(submitted.SubTotal).GreaterThan(target):
		return tampered()
	}
	return nil
}

func (p *Pricer) targetValue(submitted decimal.Decimal) decimal.Decimal {
	if !p.ceiling.IsPositive() {
		return submitted
	}
	if !submitted.IsPositive() || submitted.GreaterThan(p.ceiling) {
		return p.ceiling
	}
	return submitted
}

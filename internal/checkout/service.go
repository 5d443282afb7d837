package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/cart"
	"github.com/angelmondragon/sellerhub-backend/internal/checkout/reservation"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) ([]reservation.StockResult, error)
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockRequest) ([]reservation.StockResult, error) {
	return reservation.ReserveStock(ctx, tx, requests)
}

// Result describes a converted cart.
type Result struct {
	OrderID       uuid.UUID       `json:"orderId"`
	ShopUniqueKey string          `json:"shopUniqueKey"`
	CartProducts  []cart.LineItem `json:"cartProducts"`
	Total         cart.Totals     `json:"total"`
}

// Service converts validated carts into sell products.
type Service interface {
	Checkout(ctx context.Context, actor uuid.UUID, key string, input cart.Payload) (*Result, error)
}

type service struct {
	tx          txRunner
	store       *cart.Store
	pricer      *cart.Pricer
	reservation stockReserver
	outbox      outboxPublisher
	logg        *logger.Logger
}

// NewService builds the checkout service. A nil reserver uses the SKU stock
// columns directly.
func NewService(tx txRunner, store *cart.Store, pricer *cart.Pricer, reserver stockReserver, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if reserver == nil {
		reserver = reservationEngine{}
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          tx,
		store:       store,
		pricer:      pricer,
		reservation: reserver,
		outbox:      publisher,
		logg:        logg,
	}, nil
}

func (s *service) Checkout(ctx context.Context, actor uuid.UUID, key string, input cart.Payload) (*Result, error) {
	if actor == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user is required")
	}
	if len(input.CartProducts) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart contains no items")
	}

	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		repo := store.Repository()

		record, _, err := store.Load(ctx, key)
		if err != nil {
			return err
		}

		env := cart.Envelope{Items: input.CartProducts, Total: input.Total}
		priced, err := s.pricer.Price(ctx, repo, cart.ModePrePayment, env)
		if err != nil {
			return err
		}

		if err := s.reserveStock(ctx, tx, repo, priced.Items); err != nil {
			return err
		}

		orderID := uuid.New()
		rows := make([]models.SellProduct, 0, len(priced.Items))
		for _, line := range priced.Items {
			rows = append(rows, models.SellProduct{
				CartID:         record.ID,
				OrderID:        orderID,
				SKUID:          line.SKUID,
				ProductID:      line.ProductID,
				OrganisationID: line.OrganisationID,
				Quantity:       line.Quantity,
				Amount:         line.Amount,
				Tax:            line.Tax,
				TotalAmt:       line.TotalAmt,
				CreatedBy:      actor,
			})
		}
		if err := repo.InsertSellProducts(ctx, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert sell products")
		}
		if err := store.Save(ctx, record, priced); err != nil {
			return err
		}

		if err := s.emit(ctx, tx, actor, record, orderID, priced); err != nil {
			return err
		}

		result = &Result{
			OrderID:       orderID,
			ShopUniqueKey: record.ShopUniqueKey,
			CartProducts:  priced.Items,
			Total:         priced.Total,
		}
		return nil
	})
	if err != nil {
		if s.logg != nil && pkgerrors.As(err) != nil && !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			s.logg.Warn(s.logg.WithShopKey(ctx, key), "checkout rejected")
		}
		return nil, err
	}
	return result, nil
}

// reserveStock aggregates quantities per tracked SKU before decrementing, so a
// cart listing one SKU twice is checked against its combined quantity.
func (s *service) reserveStock(ctx context.Context, tx *gorm.DB, repo *cart.Repository, lines []cart.LineItem) error {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.SKUID)
	}
	catalogRows, err := repo.PricingRows(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart skus")
	}

	totals := map[uuid.UUID]int{}
	var order []uuid.UUID
	for _, line := range lines {
		if !catalogRows[line.SKUID].Tracked() {
			continue
		}
		if _, seen := totals[line.SKUID]; !seen {
			order = append(order, line.SKUID)
		}
		totals[line.SKUID] += line.Quantity
	}
	if len(order) == 0 {
		return nil
	}

	requests := make([]reservation.StockRequest, 0, len(order))
	for _, id := range order {
		requests = append(requests, reservation.StockRequest{SKUID: id, Qty: totals[id]})
	}
	results, err := s.reservation.Reserve(ctx, tx, requests)
	if err != nil {
		return err
	}
	for _, r := range results {
		if !r.Reserved {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock for checkout").
				WithDetails(map[string]any{"skuId": r.SKUID, "requested": r.Qty})
		}
	}
	return nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, actor uuid.UUID, record *models.Cart, orderID uuid.UUID, priced *cart.Envelope) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventCartCheckedOut,
		AggregateType: enums.AggregateCart,
		AggregateID:   record.ID,
		Actor:         &outbox.ActorRef{UserID: actor},
		Data: payloads.CartCheckedOutEvent{
			CartID:        record.ID,
			OrderID:       orderID,
			ShopUniqueKey: record.ShopUniqueKey,
			LineCount:     len(priced.Items),
			Total:         priced.Total.Total,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit cart_checked_out")
	}
	return nil
}

package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type pricingRecorder interface {
	Observe(mode, result string, elapsed time.Duration)
}

// Payload is the cart as exchanged with clients.
type Payload struct {
	ShopUniqueKey string     `json:"shopUniqueKey"`
	CartProducts  []LineItem `json:"cartProducts" validate:"dive"`
	Total         Totals     `json:"total"`
}

func (p Payload) envelope() Envelope {
	return Envelope{Items: p.CartProducts, Total: p.Total}
}

func payloadFrom(key string, env *Envelope) *Payload {
	items := env.Items
	if items == nil {
		items = []LineItem{}
	}
	return &Payload{ShopUniqueKey: key, CartProducts: items, Total: env.Total}
}

// Service exposes the cart flows.
type Service interface {
	Open(ctx context.Context, actor uuid.UUID, key string) (*Payload, error)
	Edit(ctx context.Context, key string, input Payload) (*Payload, error)
	Validate(ctx context.Context, key string, input Payload) (*Payload, error)
}

type service struct {
	tx      txRunner
	store   *Store
	pricer  *Pricer
	metrics pricingRecorder
	logg    *logger.Logger
}

// NewService builds the cart service. metrics may be nil.
func NewService(tx txRunner, store *Store, pricer *Pricer, metrics pricingRecorder, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	return &service{tx: tx, store: store, pricer: pricer, metrics: metrics, logg: logg}, nil
}

func (s *service) Open(ctx context.Context, actor uuid.UUID, key string) (*Payload, error) {
	if actor == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user is required")
	}
	var out *Payload
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cart, env, err := s.store.WithTx(tx).Open(ctx, key, actor)
		if err != nil {
			return err
		}
		out = payloadFrom(cart.ShopUniqueKey, env)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Edit recomputes the submitted lines and stores the corrected cart.
func (s *service) Edit(ctx context.Context, key string, input Payload) (*Payload, error) {
	return s.price(ctx, ModeEdit, key, input)
}

// Validate rejects carts whose figures differ from the catalog and stores the
// verified cart otherwise.
func (s *service) Validate(ctx context.Context, key string, input Payload) (*Payload, error) {
	return s.price(ctx, ModePrePayment, key, input)
}

func (s *service) price(ctx context.Context, mode Mode, key string, input Payload) (*Payload, error) {
	start := time.Now()
	var out *Payload
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		store := s.store.WithTx(tx)
		cart, _, err := store.Load(ctx, key)
		if err != nil {
			return err
		}
		priced, err := s.pricer.Price(ctx, store.Repository(), mode, input.envelope())
		if err != nil {
			return err
		}
		if err := store.Save(ctx, cart, priced); err != nil {
			return err
		}
		out = payloadFrom(cart.ShopUniqueKey, priced)
		return nil
	})
	s.observe(ctx, mode, key, start, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) observe(ctx context.Context, mode Mode, key string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if typed := pkgerrors.As(err); typed != nil {
			result = strings.ToLower(string(typed.Code()))
		}
		if s.logg != nil && !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			ctx = s.logg.WithFields(s.logg.WithShopKey(ctx, key), map[string]any{"mode": string(mode), "reason": result})
			s.logg.Warn(ctx, "cart pricing rejected")
		}
	}
	if s.metrics != nil {
		s.metrics.Observe(string(mode), result, time.Since(start))
	}
}

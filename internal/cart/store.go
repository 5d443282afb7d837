package cart

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

const (
	cartUnavailableMessage = "This cart is no longer available"

	shopKeyIndex      = "idx_carts_shop_unique_key"
	maxCreateAttempts = 3
)

// Store keeps carts as serialized envelopes keyed by shop unique key. A cart
// with sell products is historical and refuses further mutation.
type Store struct {
	repo *Repository
}

func NewStore(repo *Repository) *Store {
	return &Store{repo: repo}
}

// WithTx binds the store to a transaction.
func (s *Store) WithTx(tx *gorm.DB) *Store {
	return &Store{repo: s.repo.WithTx(tx)}
}

// Repository exposes the underlying repository, bound to the same connection.
func (s *Store) Repository() *Repository {
	return s.repo
}

// Open fetches the cart for key or creates a fresh one when key is blank,
// unknown or already converted.
func (s *Store) Open(ctx context.Context, key string, actor uuid.UUID) (*models.Cart, *Envelope, error) {
	key = strings.TrimSpace(key)
	if key != "" {
		cart, err := s.repo.FindByKey(ctx, key)
		switch {
		case err == nil:
			converted, err := s.repo.HasSellProducts(ctx, cart.ID)
			if err != nil {
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check sell products")
			}
			if !converted {
				env, err := DecodeEnvelope(cart.CartProducts)
				if err != nil {
					return nil, nil, err
				}
				return cart, env, nil
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
		}
	}
	return s.create(ctx, actor)
}

func (s *Store) create(ctx context.Context, actor uuid.UUID) (*models.Cart, *Envelope, error) {
	env := &Envelope{Items: []LineItem{}}
	payload, err := EncodeEnvelope(env)
	if err != nil {
		return nil, nil, err
	}
	for attempt := 1; ; attempt++ {
		cart := &models.Cart{
			ShopUniqueKey: uuid.NewString(),
			CartProducts:  payload,
			CreatedBy:     actor,
		}
		err := s.repo.Create(ctx, cart)
		if err == nil {
			return cart, env, nil
		}
		// A colliding shop key is regenerated rather than surfaced.
		if attempt < maxCreateAttempts && db.IsUniqueViolation(err, shopKeyIndex) {
			continue
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert cart")
	}
}

// Load returns a cart that may still be mutated. Unknown or converted carts
// are CartUnavailable.
func (s *Store) Load(ctx context.Context, key string) (*models.Cart, *Envelope, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeCartUnavailable, cartUnavailableMessage)
	}
	cart, err := s.repo.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeCartUnavailable, cartUnavailableMessage)
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load cart")
	}
	converted, err := s.repo.HasSellProducts(ctx, cart.ID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: check sell products")
	}
	if converted {
		return nil, nil, pkgerrors.New(pkgerrors.CodeCartUnavailable, cartUnavailableMessage)
	}
	env, err := DecodeEnvelope(cart.CartProducts)
	if err != nil {
		return nil, nil, err
	}
	return cart, env, nil
}

// Save overwrites the cart envelope. Concurrent writers race; the last one wins.
func (s *Store) Save(ctx context.Context, cart *models.Cart, env *Envelope) error {
	payload, err := EncodeEnvelope(env)
	if err != nil {
		return err
	}
	rows, err := s.repo.UpdateProducts(ctx, cart.ID, payload)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update cart")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeCartUnavailable, cartUnavailableMessage)
	}
	cart.CartProducts = payload
	return nil
}

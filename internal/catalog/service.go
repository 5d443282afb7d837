package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/sellerhub-backend/pkg/db/types"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/sellerhub-backend/pkg/pagination"
)

const productNotFoundMessage = "This product don't found"

// ProductNotFound is the error returned whenever a product id does not
// resolve to a live row.
func ProductNotFound() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, productNotFoundMessage)
}

// Service composes and flattens catalog products.
type Service interface {
	Create(ctx context.Context, actor Actor, input ProductInput) (*ProductView, error)
	Update(ctx context.Context, actor Actor, productID uuid.UUID, input ProductInput) (*ProductView, error)
	Get(ctx context.Context, productID uuid.UUID) (*ProductView, error)
	List(ctx context.Context, organisationID uuid.UUID, params pagination.Params) (*ProductListResult, error)
}

// Cascader soft-deletes variants or options together with the rows the
// lifecycle rules bind to them, inside the caller's transaction.
type Cascader interface {
	DeleteVariants(ctx context.Context, tx *gorm.DB, actor uuid.UUID, variantIDs []uuid.UUID) error
	DeleteOptions(ctx context.Context, tx *gorm.DB, actor uuid.UUID, optionIDs []uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	tx      txRunner
	repo    *Repository
	cascade Cascader
	outbox  outboxPublisher
	cache   ViewCache
	logg    *logger.Logger
}

// NewService wires the composer. A nil cache disables view caching.
func NewService(tx txRunner, repo *Repository, cascade Cascader, publisher outboxPublisher, cache ViewCache, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if cascade == nil {
		return nil, fmt.Errorf("cascader required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if cache == nil {
		cache = NoopViewCache{}
	}
	return &service{
		tx:      tx,
		repo:    repo,
		cascade: cascade,
		outbox:  publisher,
		cache:   cache,
		logg:    logg,
	}, nil
}

func (s *service) Create(ctx context.Context, actor Actor, input ProductInput) (*ProductView, error) {
	productType, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	var view *ProductView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product := &models.Product{
			OrganisationID: actor.OrganisationID,
			CreatedBy:      actor.UserID,
		}
		applyProductFields(product, input, productType)
		if err := txRepo.Products.Create(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert product")
		}

		c := &composition{repo: txRepo, tx: tx, cascade: s.cascade, actor: actor.UserID, product: product}
		if err := c.run(ctx, input); err != nil {
			return err
		}
		if err := s.emitSaved(ctx, tx, actor, c, true); err != nil {
			return err
		}

		view, err = LoadView(ctx, txRepo, product.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) Update(ctx context.Context, actor Actor, productID uuid.UUID, input ProductInput) (*ProductView, error) {
	productType, err := validateInput(input)
	if err != nil {
		return nil, err
	}

	var view *ProductView
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		product, err := txRepo.Products.FindByID(ctx, productID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ProductNotFound()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
		}
		if product.IsDeleted || product.OrganisationID != actor.OrganisationID {
			return ProductNotFound()
		}

		applyProductFields(product, input, productType)
		rows, err := txRepo.Products.UpdateFields(ctx, product.ID, productUpdateFields(product, actor.UserID))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update product")
		}
		if rows == 0 {
			return ProductNotFound()
		}

		c := &composition{repo: txRepo, tx: tx, cascade: s.cascade, actor: actor.UserID, product: product}
		if err := c.run(ctx, input); err != nil {
			return err
		}
		if err := s.emitSaved(ctx, tx, actor, c, false); err != nil {
			return err
		}

		view, err = LoadView(ctx, txRepo, product.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, productID); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "product_id", productID.String()), "product view invalidation failed")
	}
	return view, nil
}

func (s *service) Get(ctx context.Context, productID uuid.UUID) (*ProductView, error) {
	if view, ok := s.cache.Get(ctx, productID); ok {
		return view, nil
	}
	view, err := LoadView(ctx, s.repo, productID)
	if err != nil {
		return nil, err
	}
	if view.IsDeleted {
		return nil, ProductNotFound()
	}
	s.cache.Put(ctx, view)
	return view, nil
}

func (s *service) List(ctx context.Context, organisationID uuid.UUID, params pagination.Params) (*ProductListResult, error) {
	if organisationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organisation is required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	result, err := s.repo.ListProductSummaries(ctx, productListQuery{OrganisationID: organisationID, Pagination: params})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list products")
	}
	return result, nil
}

func (s *service) emitSaved(ctx context.Context, tx *gorm.DB, actor Actor, c *composition, created bool) error {
	org := actor.OrganisationID
	event := outbox.DomainEvent{
		EventType:     enums.EventProductSaved,
		AggregateType: enums.AggregateProduct,
		AggregateID:   c.product.ID,
		Actor:         &outbox.ActorRef{UserID: actor.UserID, OrganisationID: &org},
		Data: payloads.ProductSavedEvent{
			ProductID:      c.product.ID,
			OrganisationID: c.product.OrganisationID,
			VariantIDs:     c.variantIDs,
			SKUIDs:         c.skuIDs,
			Created:        created,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit product_saved")
	}
	return nil
}

// LoadView reads a product and its live SKU rows and flattens them. Deleted
// products are returned with IsDeleted set; callers decide whether that is a miss.
func LoadView(ctx context.Context, repo *Repository, productID uuid.UUID) (*ProductView, error) {
	product, err := repo.Products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ProductNotFound()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product")
	}
	rows, err := repo.LoadSKURows(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load product skus")
	}
	return Flatten(*product, rows), nil
}

func validateInput(input ProductInput) (enums.ProductType, error) {
	if strings.TrimSpace(input.Name) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if input.Tax.IsNegative() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "tax must not be negative")
	}
	for _, img := range input.Images {
		if strings.TrimSpace(img) == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "images must not contain blank entries")
		}
	}

	productType := input.Type
	if productType == "" {
		productType = enums.ProductTypeSimple
		if len(input.Variants) > 0 {
			productType = enums.ProductTypeVariable
		}
	}
	if !productType.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid product type %q", input.Type))
	}
	if productType == enums.ProductTypeSimple && len(input.Variants) > 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "simple products cannot carry variants")
	}
	if productType == enums.ProductTypeVariable && len(input.Variants) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "variable products need at least one variant")
	}

	if len(input.Variants) == 0 {
		if input.Properties == nil {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "properties are required for products without variants")
		}
		if err := validateProperties(*input.Properties); err != nil {
			return "", err
		}
	}
	for _, v := range input.Variants {
		if strings.TrimSpace(v.Name) == "" {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "variant name is required")
		}
		for _, opt := range v.Options {
			if strings.TrimSpace(opt.OptionName) == "" {
				return "", pkgerrors.New(pkgerrors.CodeValidation, "option name is required")
			}
			if err := validateProperties(opt.Properties); err != nil {
				return "", err
			}
		}
	}
	return productType, nil
}

func validateProperties(p SKUProperties) error {
	switch {
	case p.Price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	case p.Cost.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "cost must not be negative")
	case p.Quantity < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}
	return nil
}

func applyProductFields(p *models.Product, input ProductInput, productType enums.ProductType) {
	p.Name = strings.TrimSpace(input.Name)
	p.Description = input.Description
	p.Type = productType
	p.Images = dbtypes.StringList(input.Images)
	if p.Images == nil {
		p.Images = dbtypes.StringList{}
	}
	p.Tax = input.Tax
	p.TrackInventory = input.TrackInventory
	p.AvailableIfOutOfStock = input.AvailableIfOutOfStock
	p.Weight = input.Dimensions.Weight
	p.Length = input.Dimensions.Length
	p.Width = input.Dimensions.Width
	p.Height = input.Dimensions.Height
}

func productUpdateFields(p *models.Product, actor uuid.UUID) map[string]any {
	return map[string]any{
		"name":                      p.Name,
		"description":               p.Description,
		"type":                      p.Type,
		"images":                    p.Images,
		"tax":                       p.Tax,
		"track_inventory":           p.TrackInventory,
		"available_if_out_of_stock": p.AvailableIfOutOfStock,
		"weight":                    p.Weight,
		"length":                    p.Length,
		"width":                     p.Width,
		"height":                    p.Height,
		"updated_by":                actor,
		"updated_at":                time.Now().UTC(),
	}
}

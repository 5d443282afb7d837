package catalog

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/internal/repo"
	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/sellerhub-backend/pkg/db/types"
	"github.com/angelmondragon/sellerhub-backend/pkg/enums"
	"github.com/angelmondragon/sellerhub-backend/pkg/pagination"
)

// Repository is the catalog data-access layer. Each table gets its own
// repo.Entity; the association helpers and the flattened SKU read sit on top.
type Repository struct {
	db       *gorm.DB
	Products repo.Entity[models.Product]
	Variants repo.Entity[models.Variant]
	Options  repo.Entity[models.VariantOption]
	SKUs     repo.Entity[models.SKU]
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:       db,
		Products: repo.NewEntity[models.Product](db),
		Variants: repo.NewEntity[models.Variant](db),
		Options:  repo.NewEntity[models.VariantOption](db),
		SKUs:     repo.NewEntity[models.SKU](db),
	}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

func (r *Repository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// SKURow is one joined product_skus row: the SKU plus, for variant SKUs, its
// option and the variant the option hangs off.
type SKURow struct {
	SKUID       uuid.UUID       `gorm:"column:sku_id"`
	Price       decimal.Decimal `gorm:"column:price"`
	Cost        decimal.Decimal `gorm:"column:cost"`
	SKUCode     *string         `gorm:"column:sku_code"`
	Barcode     *string         `gorm:"column:barcode"`
	Quantity    int             `gorm:"column:quantity"`
	OptionID    *uuid.UUID      `gorm:"column:option_id"`
	OptionName  *string         `gorm:"column:option_name"`
	SortOrder   *int            `gorm:"column:sort_order"`
	VariantID   *uuid.UUID      `gorm:"column:variant_id"`
	VariantName *string         `gorm:"column:variant_name"`
}

// LoadSKURows returns the product's active SKU rows ordered by variant
// creation, then option sort order. Deleted SKUs, options and variants are
// left out, as are options whose variant link is missing.
func (r *Repository) LoadSKURows(ctx context.Context, productID uuid.UUID) ([]SKURow, error) {
	var rows []SKURow
	err := r.conn(ctx).
		Table("product_skus ps").
		Select(strings.Join([]string{
			"s.id AS sku_id",
			"s.price",
			"s.cost",
			"s.sku_code",
			"s.barcode",
			"s.quantity",
			"vo.id AS option_id",
			"vo.name AS option_name",
			"vo.sort_order",
			"v.id AS variant_id",
			"v.name AS variant_name",
		}, ", ")).
		Joins("JOIN skus s ON s.id = ps.sku_id").
		Joins("LEFT JOIN variant_options vo ON vo.sku_id = s.id").
		Joins("LEFT JOIN variant_option_links vol ON vol.variant_option_id = vo.id").
		Joins("LEFT JOIN variants v ON v.id = vol.variant_id").
		Where("ps.product_id = ?", productID).
		Where("s.is_deleted = ?", false).
		Where("(vo.id IS NULL OR (vo.is_deleted = ? AND v.id IS NOT NULL AND v.is_deleted = ?))", false, false).
		Order("v.created_at").
		Order("v.id").
		Order("vo.sort_order").
		Order("s.created_at").
		Scan(&rows).Error
	return rows, err
}

// LinkedVariants returns every variant ever linked to the product, deleted
// ones included.
func (r *Repository) LinkedVariants(ctx context.Context, product *models.Product) ([]models.Variant, error) {
	var variants []models.Variant
	err := r.conn(ctx).Model(product).Association("Variants").Find(&variants)
	return variants, err
}

// LinkedOptions returns every option linked to the variant, deleted ones included.
func (r *Repository) LinkedOptions(ctx context.Context, variant *models.Variant) ([]models.VariantOption, error) {
	var options []models.VariantOption
	err := r.conn(ctx).Model(variant).Association("Options").Find(&options)
	return options, err
}

// BaseSKUs returns the product's SKUs that are not owned by a variant option.
func (r *Repository) BaseSKUs(ctx context.Context, productID uuid.UUID) ([]models.SKU, error) {
	var skus []models.SKU
	err := r.conn(ctx).
		Table("skus").
		Select("skus.*").
		Joins("JOIN product_skus ps ON ps.sku_id = skus.id").
		Joins("LEFT JOIN variant_options vo ON vo.sku_id = skus.id").
		Where("ps.product_id = ?", productID).
		Where("vo.id IS NULL").
		Order("skus.created_at").
		Find(&skus).Error
	return skus, err
}

// OptionBySKU returns the option that owns skuID, or gorm.ErrRecordNotFound.
func (r *Repository) OptionBySKU(ctx context.Context, skuID uuid.UUID) (*models.VariantOption, error) {
	var option models.VariantOption
	if err := r.conn(ctx).Where("sku_id = ?", skuID).First(&option).Error; err != nil {
		return nil, err
	}
	return &option, nil
}

// OptionsBySKUs returns the options owning any of the SKUs.
func (r *Repository) OptionsBySKUs(ctx context.Context, skuIDs []uuid.UUID) ([]models.VariantOption, error) {
	var options []models.VariantOption
	if len(skuIDs) == 0 {
		return options, nil
	}
	err := r.conn(ctx).Where("sku_id IN ?", skuIDs).Find(&options).Error
	return options, err
}

// ProductIDForSKU walks product_skus back to the owning product.
func (r *Repository) ProductIDForSKU(ctx context.Context, skuID uuid.UUID) (uuid.UUID, error) {
	var link struct {
		ProductID uuid.UUID
	}
	err := r.conn(ctx).
		Table("product_skus").
		Select("product_id").
		Where("sku_id = ?", skuID).
		Take(&link).Error
	return link.ProductID, err
}

// OptionsForVariants returns the options linked to any of the variants.
func (r *Repository) OptionsForVariants(ctx context.Context, variantIDs []uuid.UUID) ([]models.VariantOption, error) {
	var options []models.VariantOption
	if len(variantIDs) == 0 {
		return options, nil
	}
	err := r.conn(ctx).
		Table("variant_options").
		Select("variant_options.*").
		Joins("JOIN variant_option_links vol ON vol.variant_option_id = variant_options.id").
		Where("vol.variant_id IN ?", variantIDs).
		Find(&options).Error
	return options, err
}

// VariantsForOptions returns the ids of variants linked to any of the options.
func (r *Repository) VariantsForOptions(ctx context.Context, optionIDs []uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if len(optionIDs) == 0 {
		return ids, nil
	}
	err := r.conn(ctx).
		Table("variant_option_links").
		Distinct("variant_id").
		Where("variant_option_id IN ?", optionIDs).
		Pluck("variant_id", &ids).Error
	return ids, err
}

// CountActiveOptions reports how many non-deleted options the variant has.
func (r *Repository) CountActiveOptions(ctx context.Context, variantID uuid.UUID) (int64, error) {
	var count int64
	err := r.conn(ctx).
		Table("variant_options").
		Joins("JOIN variant_option_links vol ON vol.variant_option_id = variant_options.id").
		Where("vol.variant_id = ?", variantID).
		Where("variant_options.is_deleted = ?", false).
		Count(&count).Error
	return count, err
}

// LinkVariant, LinkOption and LinkSKU write one association row through gorm's
// association mode. The owner is passed as an id-only shell so nothing but
// the join row is written on its side.
func (r *Repository) LinkVariant(ctx context.Context, product *models.Product, variant *models.Variant) error {
	clone := *variant
	clone.Options = nil
	return r.conn(ctx).Model(&models.Product{ID: product.ID}).Association("Variants").Append(&clone)
}

func (r *Repository) LinkOption(ctx context.Context, variant *models.Variant, option *models.VariantOption) error {
	return r.conn(ctx).Model(&models.Variant{ID: variant.ID}).Association("Options").Append(option)
}

func (r *Repository) LinkSKU(ctx context.Context, product *models.Product, sku *models.SKU) error {
	return r.conn(ctx).Model(&models.Product{ID: product.ID}).Association("SKUs").Append(sku)
}

type productListQuery struct {
	OrganisationID uuid.UUID
	Pagination     pagination.Params
}

type productSummaryRecord struct {
	ID        uuid.UUID
	Name      string
	Type      enums.ProductType
	Images    dbtypes.StringList
	Tax       decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ListProductSummaries pages an organisation's non-deleted products newest first.
func (r *Repository) ListProductSummaries(ctx context.Context, query productListQuery) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(query.Pagination.Cursor)
	if err != nil {
		return nil, err
	}

	qb := r.conn(ctx).
		Table("products p").
		Select("p.id, p.name, p.type, p.images, p.tax, p.created_at, p.updated_at").
		Where("p.organisation_id = ?", query.OrganisationID).
		Where("p.is_deleted = ?", false).
		Scopes(pagination.After(cursor, "p.created_at", "p.id"))

	var records []productSummaryRecord
	err = qb.Order("p.created_at DESC").
		Order("p.id DESC").
		Limit(pagination.LimitWithBuffer(query.Pagination.Limit)).
		Scan(&records).Error
	if err != nil {
		return nil, err
	}

	page, next := pagination.SplitPage(records, query.Pagination.Limit, func(rec productSummaryRecord) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rec.CreatedAt, ID: rec.ID}
	})

	summaries := make([]ProductSummary, 0, len(page))
	for _, rec := range page {
		images := []string(rec.Images)
		if images == nil {
			images = []string{}
		}
		summaries = append(summaries, ProductSummary{
			ID:        rec.ID,
			Name:      rec.Name,
			Type:      rec.Type,
			Images:    images,
			Tax:       rec.Tax,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
		})
	}
	return &ProductListResult{Products: summaries, NextCursor: next}, nil
}

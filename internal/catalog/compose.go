package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/sellerhub-backend/pkg/errors"
)

// composition writes one submitted product tree inside a single transaction.
// It records the variant and SKU ids it touched for the outbox payload.
type composition struct {
	repo    *Repository
	tx      *gorm.DB
	cascade Cascader
	actor   uuid.UUID
	product *models.Product

	variantIDs []uuid.UUID
	skuIDs     []uuid.UUID
}

func (c *composition) run(ctx context.Context, input ProductInput) error {
	linked, err := c.repo.LinkedVariants(ctx, c.product)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load linked variants")
	}
	linkedByID := make(map[uuid.UUID]models.Variant, len(linked))
	for _, v := range linked {
		linkedByID[v.ID] = v
	}

	if err := checkVariantRefs(input.Variants, linkedByID); err != nil {
		return err
	}

	if len(input.Variants) == 0 {
		return c.composeSimple(ctx, *input.Properties, linked)
	}
	return c.composeVariants(ctx, input.Variants, linked, linkedByID)
}

// checkVariantRefs rejects submissions whose ids cannot belong to this product:
// an option pointing at a variant other than the one it is nested under, a
// variant id the product is not linked to, or the same variant twice.
func checkVariantRefs(variants []VariantInput, linked map[uuid.UUID]models.Variant) error {
	seen := make(map[uuid.UUID]struct{}, len(variants))
	for _, v := range variants {
		if v.ID != nil {
			if _, ok := linked[*v.ID]; !ok {
				return inconsistent("variant %s is not linked to this product", *v.ID)
			}
			if _, dup := seen[*v.ID]; dup {
				return inconsistent("variant %s submitted twice", *v.ID)
			}
			seen[*v.ID] = struct{}{}
		}
		for _, opt := range v.Options {
			if opt.VariantID == nil {
				continue
			}
			if v.ID == nil || *v.ID != *opt.VariantID {
				return inconsistent("option %q references variant %s which is not in the submission", opt.OptionName, *opt.VariantID)
			}
		}
	}
	return nil
}

func (c *composition) composeVariants(ctx context.Context, variants []VariantInput, linked []models.Variant, linkedByID map[uuid.UUID]models.Variant) error {
	submitted := make(map[uuid.UUID]struct{}, len(variants))

	for _, in := range variants {
		variant, existingOptions, err := c.saveVariant(ctx, in, linkedByID)
		if err != nil {
			return err
		}
		submitted[variant.ID] = struct{}{}
		c.variantIDs = append(c.variantIDs, variant.ID)

		byID := make(map[uuid.UUID]*models.VariantOption, len(existingOptions))
		bySKU := make(map[uuid.UUID]*models.VariantOption, len(existingOptions))
		for i := range existingOptions {
			byID[existingOptions[i].ID] = &existingOptions[i]
			bySKU[existingOptions[i].SKUID] = &existingOptions[i]
		}

		kept := make(map[uuid.UUID]struct{}, len(in.Options))
		for _, opt := range in.Options {
			option, err := c.saveOption(ctx, variant, opt, byID, bySKU)
			if err != nil {
				return err
			}
			if _, dup := kept[option.ID]; dup {
				return inconsistent("option %s submitted twice", option.ID)
			}
			kept[option.ID] = struct{}{}
		}

		var absent []uuid.UUID
		for _, o := range existingOptions {
			if _, ok := kept[o.ID]; !ok && !o.IsDeleted {
				absent = append(absent, o.ID)
			}
		}
		if err := c.cascade.DeleteOptions(ctx, c.tx, c.actor, absent); err != nil {
			return err
		}
	}

	var absentVariants []uuid.UUID
	for _, v := range linked {
		if _, ok := submitted[v.ID]; !ok && !v.IsDeleted {
			absentVariants = append(absentVariants, v.ID)
		}
	}
	if err := c.cascade.DeleteVariants(ctx, c.tx, c.actor, absentVariants); err != nil {
		return err
	}

	bases, err := c.repo.BaseSKUs(ctx, c.product.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load base skus")
	}
	var activeBases []uuid.UUID
	for _, b := range bases {
		if !b.IsDeleted {
			activeBases = append(activeBases, b.ID)
		}
	}
	if _, err := c.repo.SKUs.SetDeleted(ctx, activeBases, true, c.actor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: retire base sku")
	}
	return nil
}

// saveVariant creates or renames a variant. A variant ends up active only when
// it was submitted with at least one option.
func (c *composition) saveVariant(ctx context.Context, in VariantInput, linkedByID map[uuid.UUID]models.Variant) (*models.Variant, []models.VariantOption, error) {
	deleted := len(in.Options) == 0

	if in.ID == nil {
		variant := &models.Variant{Name: in.Name, IsDeleted: deleted, CreatedBy: c.actor}
		if err := c.repo.Variants.Create(ctx, variant); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert variant")
		}
		if err := c.repo.LinkVariant(ctx, c.product, variant); err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: link product variant")
		}
		return variant, nil, nil
	}

	variant := linkedByID[*in.ID]
	rows, err := c.repo.Variants.UpdateFields(ctx, variant.ID, map[string]any{
		"name":       in.Name,
		"is_deleted": deleted,
		"updated_by": c.actor,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update variant")
	}
	if rows == 0 {
		return nil, nil, inconsistent("variant %s no longer exists", variant.ID)
	}
	variant.Name = in.Name
	variant.IsDeleted = deleted

	options, err := c.repo.LinkedOptions(ctx, &variant)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load variant options")
	}
	return &variant, options, nil
}

// saveOption runs the option-save routine. A persisted SKU id (or option id)
// updates the SKU and option in place and reactivates both; otherwise a new
// SKU and option are created and linked.
func (c *composition) saveOption(ctx context.Context, variant *models.Variant, in OptionInput, byID, bySKU map[uuid.UUID]*models.VariantOption) (*models.VariantOption, error) {
	var existing *models.VariantOption
	if in.Properties.ID != nil {
		o, ok := bySKU[*in.Properties.ID]
		if !ok {
			return nil, inconsistent("sku %s does not belong to variant %q", *in.Properties.ID, variant.Name)
		}
		existing = o
	}
	if in.ID != nil {
		o, ok := byID[*in.ID]
		if !ok || (existing != nil && existing.ID != o.ID) {
			return nil, inconsistent("option %s does not belong to variant %q", *in.ID, variant.Name)
		}
		existing = o
	}

	if existing == nil {
		sku, err := c.createSKU(ctx, in.Properties)
		if err != nil {
			return nil, err
		}
		option := &models.VariantOption{
			Name:      in.OptionName,
			SortOrder: in.SortOrder,
			SKUID:     sku.ID,
			CreatedBy: c.actor,
		}
		if err := c.repo.Options.Create(ctx, option); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert variant option")
		}
		if err := c.repo.LinkOption(ctx, variant, option); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: link variant option")
		}
		return option, nil
	}

	if err := c.updateSKU(ctx, existing.SKUID, in.Properties); err != nil {
		return nil, err
	}
	rows, err := c.repo.Options.UpdateFields(ctx, existing.ID, map[string]any{
		"name":       in.OptionName,
		"sort_order": in.SortOrder,
		"is_deleted": false,
		"updated_by": c.actor,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update variant option")
	}
	if rows == 0 {
		return nil, inconsistent("option %s no longer exists", existing.ID)
	}
	return existing, nil
}

func (c *composition) composeSimple(ctx context.Context, props SKUProperties, linked []models.Variant) error {
	var active []uuid.UUID
	for _, v := range linked {
		if !v.IsDeleted {
			active = append(active, v.ID)
		}
	}
	if err := c.cascade.DeleteVariants(ctx, c.tx, c.actor, active); err != nil {
		return err
	}

	bases, err := c.repo.BaseSKUs(ctx, c.product.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: load base skus")
	}

	var keep uuid.UUID
	if props.ID != nil {
		found := false
		for _, b := range bases {
			if b.ID == *props.ID {
				found = true
				break
			}
		}
		if !found {
			return inconsistent("sku %s is not a base sku of this product", *props.ID)
		}
		if err := c.updateSKU(ctx, *props.ID, props); err != nil {
			return err
		}
		keep = *props.ID
	} else {
		sku, err := c.createSKU(ctx, props)
		if err != nil {
			return err
		}
		keep = sku.ID
	}

	var retired []uuid.UUID
	for _, b := range bases {
		if b.ID != keep && !b.IsDeleted {
			retired = append(retired, b.ID)
		}
	}
	if _, err := c.repo.SKUs.SetDeleted(ctx, retired, true, c.actor); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: retire base sku")
	}
	return nil
}

func (c *composition) createSKU(ctx context.Context, props SKUProperties) (*models.SKU, error) {
	sku := &models.SKU{
		Price:     props.Price,
		Cost:      props.Cost,
		SKUCode:   props.SKUCode,
		Barcode:   props.Barcode,
		Quantity:  props.Quantity,
		CreatedBy: c.actor,
	}
	if err := c.repo.SKUs.Create(ctx, sku); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert sku")
	}
	if err := c.repo.LinkSKU(ctx, c.product, sku); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: link product sku")
	}
	c.skuIDs = append(c.skuIDs, sku.ID)
	return sku, nil
}

func (c *composition) updateSKU(ctx context.Context, skuID uuid.UUID, props SKUProperties) error {
	rows, err := c.repo.SKUs.UpdateFields(ctx, skuID, map[string]any{
		"price":      props.Price,
		"cost":       props.Cost,
		"sku_code":   props.SKUCode,
		"barcode":    props.Barcode,
		"quantity":   props.Quantity,
		"is_deleted": false,
		"updated_by": c.actor,
		"updated_at": time.Now().UTC(),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: update sku")
	}
	if rows == 0 {
		return inconsistent("sku %s no longer exists", skuID)
	}
	c.skuIDs = append(c.skuIDs, skuID)
	return nil
}

func inconsistent(format string, args ...any) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInconsistentVariantData, fmt.Sprintf(format, args...))
}

package catalog

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/sellerhub-backend/pkg/db/models"
)

// maxVariantDimensions caps how many variant axes a composed product exposes.
// Only the most recently added groups survive flattening.
const maxVariantDimensions = 1

// Flatten turns a product row and its joined SKU rows into the nested view.
// Rows without an option are the base SKU and are hoisted onto the product;
// rows with an option are grouped by variant in first-seen order.
func Flatten(product models.Product, rows []SKURow) *ProductView {
	view := productView(product)

	var groups []*VariantView
	index := make(map[uuid.UUID]int)

	for _, row := range rows {
		props := SKUView{
			SKUID:    row.SKUID,
			Price:    row.Price,
			Cost:     row.Cost,
			SKUCode:  row.SKUCode,
			Barcode:  row.Barcode,
			Quantity: row.Quantity,
		}

		if row.OptionID == nil || row.VariantID == nil {
			base := props
			view.SKUView = &base
			continue
		}

		option := OptionView{
			ID:         *row.OptionID,
			OptionName: deref(row.OptionName),
			SortOrder:  derefInt(row.SortOrder),
			Properties: props,
		}

		if i, ok := index[*row.VariantID]; ok {
			groups[i].Options = append(groups[i].Options, option)
			continue
		}
		index[*row.VariantID] = len(groups)
		groups = append(groups, &VariantView{
			ID:      *row.VariantID,
			Name:    deref(row.VariantName),
			Options: []OptionView{option},
		})
	}

	if len(groups) > maxVariantDimensions {
		groups = groups[len(groups)-maxVariantDimensions:]
	}
	for _, g := range groups {
		view.Variants = append(view.Variants, *g)
	}
	return view
}

func productView(p models.Product) *ProductView {
	images := []string(p.Images)
	if images == nil {
		images = []string{}
	}
	return &ProductView{
		ID:                    p.ID,
		OrganisationID:        p.OrganisationID,
		Name:                  p.Name,
		Description:           p.Description,
		Type:                  p.Type,
		Images:                images,
		Tax:                   p.Tax,
		TrackInventory:        p.TrackInventory,
		AvailableIfOutOfStock: p.AvailableIfOutOfStock,
		Dimensions: Dimensions{
			Weight: p.Weight,
			Length: p.Length,
			Width:  p.Width,
			Height: p.Height,
		},
		IsDeleted: p.IsDeleted,
		Variants:  []VariantView{},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(i *int) int {
	if i == nil {
		return 0
	}
	return *i
}

package pipeline

import (
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/validation"
)

// ProductLookup resolves a product by ID. A miss returns a
// *models.NotFoundError.
type ProductLookup func(id string) (models.Product, error)

// ProductIndex builds a ProductLookup over an in-memory catalog.
func ProductIndex(products []models.Product) ProductLookup {
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return func(id string) (models.Product, error) {
		p, ok := byID[id]
		if !ok {
			return models.Product{}, &models.NotFoundError{Kind: "product", ID: id}
		}
		return p, nil
	}
}

// UnitPriceFor picks the bulk tier with the highest minimum quantity not
// above qty, falling back to the base price.
func UnitPriceFor(p models.Product, qty int) models.Money {
	price := p.BasePrice
	best := 0
	for _, t := range p.BulkTiers {
		if t.MinQuantity <= qty && t.MinQuantity > best {
			best = t.MinQuantity
			price = t.UnitPrice
		}
	}
	return price
}

// ItemFromProduct builds a proposal line priced from the catalog. A blank
// productID is an *models.InvalidEntityError; lookup errors, including
// misses, are returned unchanged.
func ItemFromProduct(lookup ProductLookup, productID string, qty int, discount models.Money) (models.ProposalItem, error) {
	var v validation.Violations
	validation.Required("product_id", productID, &v)
	if err := models.FromViolations("proposal_item", "", v); err != nil {
		return models.ProposalItem{}, err
	}
	p, err := lookup(productID)
	if err != nil {
		return models.ProposalItem{}, err
	}
	return models.NewProposalItem(models.ProposalItem{
		ProductID:   p.ID,
		Description: p.Name,
		Quantity:    qty,
		UnitPrice:   UnitPriceFor(p, qty),
		Discount:    discount,
	})
}

// NeedsReorder reports whether stock is at or below the reorder point.
func NeedsReorder(p models.Product) bool {
	return p.InStock <= p.ReorderPoint
}

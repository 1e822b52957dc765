package query

import (
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
)

// ProductQuery filters the catalog.
type ProductQuery struct {
	// SearchText matches name or SKU.
	SearchText string `json:"search_text,omitempty"`
	Category   string `json:"category,omitempty"`
	// LowStock keeps only products at or below their reorder point.
	LowStock  bool           `json:"low_stock,omitempty"`
	SortField string         `json:"sort_field,omitempty"`
	SortOrder pipeline.Order `json:"sort_order,omitempty"`
}

// Products filters products by q and sorts the survivors.
func (qr Querier) Products(products []models.Product, q ProductQuery) ([]models.Product, error) {
	cat, byCategory, err := enumFilter("product_query", "category", q.Category, models.ProductCategory.Valid)
	if err != nil {
		return nil, err
	}
	m := newMatcher(q.SearchText)

	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if byCategory && p.Category != cat {
			continue
		}
		if q.LowStock && !pipeline.NeedsReorder(p) {
			continue
		}
		if !m.any(p.Name, p.SKU) {
			continue
		}
		out = append(out, p)
	}

	if q.SortField == "" {
		return out, nil
	}
	return qr.Sorter.SortProducts(out, q.SortField, orderOrDefault(q.SortOrder))
}

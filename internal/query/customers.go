package query

import (
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
)

// CustomerQuery filters customers by search text, type and segment.
type CustomerQuery struct {
	// SearchText matches name, email, phone or city.
	SearchText string         `json:"search_text,omitempty"`
	Type       string         `json:"type,omitempty"`
	Segment    string         `json:"segment,omitempty"`
	SortField  string         `json:"sort_field,omitempty"`
	SortOrder  pipeline.Order `json:"sort_order,omitempty"`
}

// Customers filters customers by q and sorts the survivors.
func (qr Querier) Customers(customers []models.Customer, q CustomerQuery) ([]models.Customer, error) {
	typ, byType, err := enumFilter("customer_query", "type", q.Type, models.CustomerType.Valid)
	if err != nil {
		return nil, err
	}
	seg, bySegment, err := enumFilter("customer_query", "segment", q.Segment, models.Segment.Valid)
	if err != nil {
		return nil, err
	}
	m := newMatcher(q.SearchText)

	out := make([]models.Customer, 0, len(customers))
	for _, c := range customers {
		if byType && c.Type != typ {
			continue
		}
		if bySegment && c.Segment != seg {
			continue
		}
		if !m.any(c.Name, c.Email, c.Phone, c.City) {
			continue
		}
		out = append(out, c)
	}

	if q.SortField == "" {
		return out, nil
	}
	return qr.Sorter.SortCustomers(out, q.SortField, orderOrDefault(q.SortOrder))
}

package query

import (
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
)

// DealQuery filters deals by search text and stage, then sorts them.
type DealQuery struct {
	// SearchText matches the deal title or the resolved customer name.
	SearchText string `json:"search_text,omitempty"`
	// Stage is a models.Stage, All or empty.
	Stage string `json:"stage,omitempty"`
	// SortField is one of pipeline.DealSortFields. Empty keeps the
	// filtered input order.
	SortField string         `json:"sort_field,omitempty"`
	SortOrder pipeline.Order `json:"sort_order,omitempty"`
	// Orphans defaults to OrphanExclude.
	Orphans OrphanPolicy `json:"orphans,omitempty"`
}

// Deals filters deals by q and sorts the survivors.
//
// When lookup is non-nil every deal passing the stage filter has its
// customer resolved, so orphaned deals are handled by q.Orphans even when
// no search text is given. A nil lookup matches search text on titles only.
func (qr Querier) Deals(deals []models.Deal, q DealQuery, lookup CustomerLookup) ([]models.Deal, error) {
	stage, byStage, err := enumFilter("deal_query", "stage", q.Stage, models.Stage.Valid)
	if err != nil {
		return nil, err
	}
	orphans, err := ParseOrphanPolicy(string(q.Orphans))
	if err != nil {
		return nil, &models.InvalidEntityError{Entity: "deal_query", Field: "orphans", Rule: "enum"}
	}
	m := newMatcher(q.SearchText)

	out := make([]models.Deal, 0, len(deals))
	for _, d := range deals {
		if byStage && d.Stage != stage {
			continue
		}
		customerName := ""
		if lookup != nil {
			c, err := lookup(d.CustomerID)
			switch {
			case err == nil:
				customerName = c.Name
			case !models.IsNotFound(err):
				return nil, err
			case orphans == OrphanFail:
				return nil, err
			case orphans == OrphanExclude:
				continue
			}
		}
		if !m.any(d.Title, customerName) {
			continue
		}
		out = append(out, d)
	}

	if q.SortField == "" {
		return out, nil
	}
	return qr.Sorter.SortDeals(out, q.SortField, orderOrDefault(q.SortOrder))
}

// Package query filters and sorts customers, deals and products.
//
// Every query filters first and sorts the survivors, so a sorted result is
// always a reordering of the filtered one. Inputs are never mutated and an
// empty result is not an error.
package query

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
)

// All is the filter sentinel that disables a stage, type, segment or
// category filter. An empty filter means the same.
const All = "all"

// OrphanPolicy decides what a deal query does with a deal whose customer
// lookup reports NotFound. Any other lookup error always aborts the query.
type OrphanPolicy string

const (
	// OrphanExclude drops the deal from the result.
	OrphanExclude OrphanPolicy = "exclude"
	// OrphanFail aborts the query with the NotFound error.
	OrphanFail OrphanPolicy = "fail"
	// OrphanKeep keeps the deal and matches search text on its title only.
	OrphanKeep OrphanPolicy = "keep"
)

// ParseOrphanPolicy maps "" to OrphanExclude.
func ParseOrphanPolicy(s string) (OrphanPolicy, error) {
	switch p := OrphanPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return OrphanExclude, nil
	case OrphanExclude, OrphanFail, OrphanKeep:
		return p, nil
	}
	return "", fmt.Errorf("unknown orphan policy %q", s)
}

// CustomerLookup resolves a customer by ID. A miss must return an error
// matching models.ErrNotFound.
type CustomerLookup func(id string) (models.Customer, error)

// CustomerIndex builds a CustomerLookup over an in-memory slice.
func CustomerIndex(customers []models.Customer) CustomerLookup {
	byID := make(map[string]models.Customer, len(customers))
	for _, c := range customers {
		byID[c.ID] = c
	}
	return func(id string) (models.Customer, error) {
		c, ok := byID[id]
		if !ok {
			return models.Customer{}, &models.NotFoundError{Kind: "customer", ID: id}
		}
		return c, nil
	}
}

// Querier runs queries with one collation locale. The zero value uses the
// root locale; use New or the package-level functions for English. A
// Querier may be shared by concurrent callers.
type Querier struct {
	Sorter pipeline.Sorter
}

// New returns a Querier that sorts with s.
func New(s pipeline.Sorter) Querier {
	return Querier{Sorter: s}
}

var std = New(pipeline.DefaultSorter)

// QueryDeals runs q over deals with English collation.
func QueryDeals(deals []models.Deal, q DealQuery, lookup CustomerLookup) ([]models.Deal, error) {
	return std.Deals(deals, q, lookup)
}

// QueryCustomers runs q over customers with English collation.
func QueryCustomers(customers []models.Customer, q CustomerQuery) ([]models.Customer, error) {
	return std.Customers(customers, q)
}

// QueryProducts runs q over products with English collation.
func QueryProducts(products []models.Product, q ProductQuery) ([]models.Product, error) {
	return std.Products(products, q)
}

// matcher is a case-insensitive substring test. A nil matcher matches
// everything.
type matcher struct {
	needle string
	fold   cases.Caser
}

func newMatcher(text string) *matcher {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	fold := cases.Fold()
	return &matcher{needle: fold.String(text), fold: fold}
}

func (m *matcher) any(fields ...string) bool {
	if m == nil {
		return true
	}
	for _, f := range fields {
		if f != "" && strings.Contains(m.fold.String(f), m.needle) {
			return true
		}
	}
	return false
}

// enumFilter parses a filter value. It returns ok=false when the filter is
// off. An unknown value is an InvalidEntityError on the query.
func enumFilter[T ~string](entity, field, value string, valid func(T) bool) (T, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, All) {
		return "", false, nil
	}
	v := T(value)
	if !valid(v) {
		return "", false, &models.InvalidEntityError{Entity: entity, Field: field, Rule: "enum"}
	}
	return v, true, nil
}

func orderOrDefault(o pipeline.Order) pipeline.Order {
	if o == "" {
		return pipeline.Asc
	}
	return o
}

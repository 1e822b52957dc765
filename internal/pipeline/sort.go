package pipeline

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/diewo77/medcrm/internal/models"
)

// Order is the sort direction.
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ParseOrder accepts "asc", "desc" (any case) or "" which means asc.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return "", &UnsupportedSortOrderError{Order: s}
}

// Sort field names accepted by the Sort* functions.
var (
	DealSortFields     = []string{"title", "value", "probability", "stage", "expected_close_date", "owner"}
	CustomerSortFields = []string{"name", "type", "segment", "health_score", "total_revenue", "active_deals", "last_contact"}
	ProductSortFields  = []string{"name", "sku", "category", "base_price", "in_stock"}
)

// Sorter orders records with locale-aware string collation. The zero value
// collates with the root locale. A Sorter holds no collator between calls,
// so one value can be shared by concurrent callers.
type Sorter struct {
	Locale language.Tag
}

// NewSorter parses a BCP 47 locale such as "en" or "fr-FR".
func NewSorter(locale string) (Sorter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return Sorter{}, err
	}
	return Sorter{Locale: tag}, nil
}

// DefaultSorter collates with English rules.
var DefaultSorter = Sorter{Locale: language.English}

// SortDeals sorts with English collation. See Sorter.SortDeals.
func SortDeals(deals []models.Deal, field string, order Order) ([]models.Deal, error) {
	return DefaultSorter.SortDeals(deals, field, order)
}

// SortCustomers sorts with English collation. See Sorter.SortCustomers.
func SortCustomers(customers []models.Customer, field string, order Order) ([]models.Customer, error) {
	return DefaultSorter.SortCustomers(customers, field, order)
}

// SortProducts sorts with English collation. See Sorter.SortProducts.
func SortProducts(products []models.Product, field string, order Order) ([]models.Product, error) {
	return DefaultSorter.SortProducts(products, field, order)
}

// SortDeals returns a sorted copy of deals. The sort is stable: records that
// compare equal keep their input order, in both directions. Stages compare
// by pipeline position, amounts numerically, dates chronologically.
func (s Sorter) SortDeals(deals []models.Deal, field string, order Order) ([]models.Deal, error) {
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	var fn func(a, b models.Deal) int
	switch field {
	case "title":
		col := s.collator()
		fn = func(a, b models.Deal) int { return col.CompareString(a.Title, b.Title) }
	case "owner":
		col := s.collator()
		fn = func(a, b models.Deal) int { return col.CompareString(a.Owner, b.Owner) }
	case "value":
		fn = func(a, b models.Deal) int { return a.Value.Cmp(b.Value) }
	case "probability":
		fn = func(a, b models.Deal) int { return cmp.Compare(a.Probability, b.Probability) }
	case "stage":
		fn = func(a, b models.Deal) int { return cmp.Compare(a.Stage.Ordinal(), b.Stage.Ordinal()) }
	case "expected_close_date":
		fn = func(a, b models.Deal) int { return a.ExpectedCloseDate.Compare(b.ExpectedCloseDate) }
	default:
		return nil, &UnsupportedSortFieldError{Entity: "deal", Field: field, Supported: DealSortFields}
	}
	return sortStable(deals, fn, order), nil
}

// SortCustomers returns a sorted copy of customers. Type and segment compare
// by their declared order.
func (s Sorter) SortCustomers(customers []models.Customer, field string, order Order) ([]models.Customer, error) {
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	var fn func(a, b models.Customer) int
	switch field {
	case "name":
		col := s.collator()
		fn = func(a, b models.Customer) int { return col.CompareString(a.Name, b.Name) }
	case "type":
		fn = func(a, b models.Customer) int {
			return cmp.Compare(slices.Index(models.CustomerTypes, a.Type), slices.Index(models.CustomerTypes, b.Type))
		}
	case "segment":
		fn = func(a, b models.Customer) int {
			return cmp.Compare(slices.Index(models.Segments, a.Segment), slices.Index(models.Segments, b.Segment))
		}
	case "health_score":
		fn = func(a, b models.Customer) int { return cmp.Compare(a.HealthScore, b.HealthScore) }
	case "total_revenue":
		fn = func(a, b models.Customer) int { return a.TotalRevenue.Cmp(b.TotalRevenue) }
	case "active_deals":
		fn = func(a, b models.Customer) int { return cmp.Compare(a.ActiveDeals, b.ActiveDeals) }
	case "last_contact":
		fn = func(a, b models.Customer) int { return a.LastContact.Compare(b.LastContact) }
	default:
		return nil, &UnsupportedSortFieldError{Entity: "customer", Field: field, Supported: CustomerSortFields}
	}
	return sortStable(customers, fn, order), nil
}

// SortProducts returns a sorted copy of products.
func (s Sorter) SortProducts(products []models.Product, field string, order Order) ([]models.Product, error) {
	if err := checkOrder(order); err != nil {
		return nil, err
	}
	var fn func(a, b models.Product) int
	switch field {
	case "name":
		col := s.collator()
		fn = func(a, b models.Product) int { return col.CompareString(a.Name, b.Name) }
	case "sku":
		col := s.collator()
		fn = func(a, b models.Product) int { return col.CompareString(a.SKU, b.SKU) }
	case "category":
		col := s.collator()
		fn = func(a, b models.Product) int { return col.CompareString(string(a.Category), string(b.Category)) }
	case "base_price":
		fn = func(a, b models.Product) int { return a.BasePrice.Cmp(b.BasePrice) }
	case "in_stock":
		fn = func(a, b models.Product) int { return cmp.Compare(a.InStock, b.InStock) }
	default:
		return nil, &UnsupportedSortFieldError{Entity: "product", Field: field, Supported: ProductSortFields}
	}
	return sortStable(products, fn, order), nil
}

// collator is built per call: a collate.Collator is not safe for
// concurrent use.
func (s Sorter) collator() *collate.Collator {
	return collate.New(s.Locale)
}

func checkOrder(o Order) error {
	if o != Asc && o != Desc {
		return &UnsupportedSortOrderError{Order: string(o)}
	}
	return nil
}

// sortStable copies in and stable-sorts the copy. Descending order flips the
// comparator, so ties still keep their original relative order.
func sortStable[T any](in []T, fn func(a, b T) int, order Order) []T {
	out := make([]T, len(in))
	copy(out, in)
	if order == Desc {
		slices.SortStableFunc(out, func(a, b T) int { return fn(b, a) })
	} else {
		slices.SortStableFunc(out, fn)
	}
	return out
}

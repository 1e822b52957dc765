// Package pipeline computes derived values over deals, proposals and
// products: stage summaries, proposal totals, forecasts and sorted views.
//
// Every function is pure. Inputs are never mutated and nothing is retained
// between calls, so the package is safe for concurrent use.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/diewo77/medcrm/internal/models"
)

// NegativeSubtotalError is returned when the proposal-level discount
// exceeds the line-item subtotal.
type NegativeSubtotalError struct {
	Subtotal models.Money
	Discount models.Money
}

func (e *NegativeSubtotalError) Error() string {
	return fmt.Sprintf("discount %s exceeds subtotal %s", e.Discount.StringFixed(2), e.Subtotal.StringFixed(2))
}

// UnsupportedSortFieldError is returned for a sort key the engine does not know.
type UnsupportedSortFieldError struct {
	Entity    string
	Field     string
	Supported []string
}

func (e *UnsupportedSortFieldError) Error() string {
	return fmt.Sprintf("cannot sort %s by %q (supported: %s)", e.Entity, e.Field, strings.Join(e.Supported, ", "))
}

// UnsupportedSortOrderError is returned for an order other than asc or desc.
type UnsupportedSortOrderError struct {
	Order string
}

func (e *UnsupportedSortOrderError) Error() string {
	return fmt.Sprintf("unsupported sort order %q (want asc or desc)", e.Order)
}

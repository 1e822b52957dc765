package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/validation"
)

// DefaultTaxRate is the illustrative flat rate applied to proposals.
var DefaultTaxRate = decimal.RequireFromString("0.18")

// Totals are the derived amounts of a proposal.
type Totals struct {
	Subtotal models.Money `json:"subtotal"`
	Discount models.Money `json:"discount"`
	Tax      models.Money `json:"tax"`
	Total    models.Money `json:"total"`
}

// LineTotal returns quantity × unit price − line discount.
func LineTotal(it models.ProposalItem) models.Money {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).Sub(it.Discount)
}

// ComputeProposalTotals derives subtotal, discount, tax and total:
//
//	subtotal = Σ(quantity × unitPrice − itemDiscount)
//	discount = additionalDiscount
//	tax      = round(taxRate × (subtotal − discount)), half away from zero
//	total    = subtotal − discount + tax
//
// Line-item and proposal-level discounts are independent and both apply.
// A discount larger than the subtotal is a *NegativeSubtotalError.
func ComputeProposalTotals(items []models.ProposalItem, taxRate decimal.Decimal, additionalDiscount models.Money) (Totals, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return Totals{}, &models.InvalidEntityError{Entity: "proposal", Field: "tax_rate", Rule: "out_of_range"}
	}
	var v validation.Violations
	validation.NonNegative("additional_discount", additionalDiscount, &v)
	if err := models.FromViolations("proposal", "", v); err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	for _, it := range items {
		if err := models.ValidateProposalItem(it); err != nil {
			return Totals{}, err
		}
		subtotal = subtotal.Add(LineTotal(it))
	}

	net := subtotal.Sub(additionalDiscount)
	if net.IsNegative() {
		return Totals{}, &NegativeSubtotalError{Subtotal: subtotal, Discount: additionalDiscount}
	}
	tax := taxRate.Mul(net).Round(0)

	return Totals{
		Subtotal: subtotal,
		Discount: additionalDiscount,
		Tax:      tax,
		Total:    net.Add(tax),
	}, nil
}

// ProposalTotals is ComputeProposalTotals over a proposal's own items and discount.
func ProposalTotals(p models.Proposal, taxRate decimal.Decimal) (Totals, error) {
	return ComputeProposalTotals(p.Items, taxRate, p.AdditionalDiscount)
}

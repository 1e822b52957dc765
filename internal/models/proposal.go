package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ProposalStatus represents the lifecycle state of a proposal.
type ProposalStatus string

const (
	ProposalDraft            ProposalStatus = "Draft"
	ProposalPendingReview    ProposalStatus = "Pending Review"
	ProposalSent             ProposalStatus = "Sent"
	ProposalUnderNegotiation ProposalStatus = "Under Negotiation"
	ProposalAccepted         ProposalStatus = "Accepted"
	ProposalRejected         ProposalStatus = "Rejected"
	ProposalExpired          ProposalStatus = "Expired"
)

// ProposalStatuses lists every status.
var ProposalStatuses = []ProposalStatus{
	ProposalDraft,
	ProposalPendingReview,
	ProposalSent,
	ProposalUnderNegotiation,
	ProposalAccepted,
	ProposalRejected,
	ProposalExpired,
}

func (s ProposalStatus) Valid() bool {
	for _, st := range ProposalStatuses {
		if st == s {
			return true
		}
	}
	return false
}

// Final reports whether no further edits are allowed.
func (s ProposalStatus) Final() bool {
	return s == ProposalAccepted || s == ProposalRejected || s == ProposalExpired
}

// Proposal is a priced offer built from line items. Subtotal, tax and total
// are not stored: pipeline.ComputeProposalTotals derives them.
type Proposal struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Parent references; at least one is set.
	DealID     string `gorm:"size:36;index" json:"deal_id,omitempty" validate:"required_without=CustomerID"`
	CustomerID string `gorm:"size:36;index" json:"customer_id,omitempty"`

	Title  string         `gorm:"size:255" json:"title"`
	Status ProposalStatus `gorm:"size:20;not null;default:'Draft'" json:"status" validate:"enum"`

	// Items are owned by the proposal; insertion order is display order.
	Items []ProposalItem `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"items" validate:"dive"`

	// AdditionalDiscount is the proposal-level discount, independent of
	// line-item discounts.
	AdditionalDiscount Money     `gorm:"type:decimal(15,2);not null;default:0" json:"additional_discount" validate:"gte=0"`
	ValidUntil         time.Time `json:"valid_until"`

	// History is append-only.
	History []ProposalEvent `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"history"`
}

// NewProposal assigns IDs, starts the proposal as Draft unless a status is
// given, and validates it.
func NewProposal(p Proposal) (Proposal, error) {
	ensureID(&p.ID)
	if p.Status == "" {
		p.Status = ProposalDraft
	}
	for i := range p.Items {
		ensureID(&p.Items[i].ID)
		p.Items[i].ProposalID = p.ID
		p.Items[i].Position = i
	}
	if err := ValidateProposal(p); err != nil {
		return Proposal{}, err
	}
	return p, nil
}

// ValidateProposal checks the proposal and each of its items.
func ValidateProposal(p Proposal) error {
	if err := check("proposal", p.ID, p); err != nil {
		return err
	}
	for i, it := range p.Items {
		if err := ValidateProposalItem(it); err != nil {
			var ie *InvalidEntityError
			if errors.As(err, &ie) {
				return &InvalidEntityError{
					Entity: "proposal",
					ID:     p.ID,
					Field:  fmt.Sprintf("items[%d].%s", i, ie.Field),
					Rule:   ie.Rule,
				}
			}
			return err
		}
	}
	return nil
}

// ProposalItem is one line of a proposal: a quantity of one product.
type ProposalItem struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	ProposalID string `gorm:"size:36;index;not null" json:"-"`

	ProductID   string `gorm:"size:36;index;not null" json:"product_id" validate:"required"`
	Description string `gorm:"size:500" json:"description,omitempty"`
	Quantity    int    `gorm:"not null" json:"quantity" validate:"gt=0"`
	UnitPrice   Money  `gorm:"type:decimal(15,2);not null" json:"unit_price" validate:"gte=0"`
	Discount    Money  `gorm:"type:decimal(15,2);not null;default:0" json:"discount" validate:"gte=0"`

	Position int `gorm:"default:0" json:"position"`
}

// NewProposalItem assigns an ID when missing and validates it.
func NewProposalItem(it ProposalItem) (ProposalItem, error) {
	ensureID(&it.ID)
	if err := ValidateProposalItem(it); err != nil {
		return ProposalItem{}, err
	}
	return it, nil
}

// ValidateProposalItem checks item invariants, including that the line
// discount never exceeds quantity × unit price.
func ValidateProposalItem(it ProposalItem) error {
	if err := check("proposal_item", it.ID, it); err != nil {
		return err
	}
	gross := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	if it.Discount.GreaterThan(gross) {
		return &InvalidEntityError{Entity: "proposal_item", ID: it.ID, Field: "discount", Rule: "lte_line_amount"}
	}
	return nil
}

// ProposalEvent is one immutable history entry.
type ProposalEvent struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	ProposalID  string    `gorm:"size:36;index;not null" json:"-"`
	Action      string    `gorm:"size:50;not null" json:"action"`
	Description string    `gorm:"size:500" json:"description"`
	Actor       string    `gorm:"size:255" json:"actor"`
	At          time.Time `gorm:"column:occurred_at;not null" json:"at"`
}

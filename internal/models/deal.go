package models

import "time"

// Stage is the position of a deal in the sales pipeline.
// Any stage may be reached from any other by an explicit user action.
type Stage string

const (
	StageLead        Stage = "Lead"
	StageQualified   Stage = "Qualified"
	StageProposal    Stage = "Proposal"
	StageNegotiation Stage = "Negotiation"
	StageClosedWon   Stage = "Closed Won"
	StageClosedLost  Stage = "Closed Lost"
)

// Stages lists every stage in pipeline order.
var Stages = []Stage{
	StageLead,
	StageQualified,
	StageProposal,
	StageNegotiation,
	StageClosedWon,
	StageClosedLost,
}

func (s Stage) Valid() bool {
	return s.Ordinal() >= 0
}

// Ordinal returns the pipeline position of s, or -1 when s is unknown.
func (s Stage) Ordinal() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Closed reports whether the deal has been won or lost.
func (s Stage) Closed() bool {
	return s == StageClosedWon || s == StageClosedLost
}

// Deal is a sales opportunity with one customer.
type Deal struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// CustomerID is a weak reference; deleting the customer is governed by
	// the customer service's delete policy.
	CustomerID string `gorm:"size:36;index;not null" json:"customer_id" validate:"required"`

	Title             string    `gorm:"size:255;not null" json:"title" validate:"required"`
	Value             Money     `gorm:"type:decimal(15,2);not null;default:0" json:"value" validate:"gte=0"`
	Stage             Stage     `gorm:"size:20;not null;index;default:'Lead'" json:"stage" validate:"enum"`
	Probability       int       `gorm:"not null;default:0" json:"probability" validate:"gte=0,lte=100"`
	ExpectedCloseDate time.Time `json:"expected_close_date"`
	Owner             string    `gorm:"size:255" json:"owner"`
}

// NewDeal assigns an ID when missing, starts the deal in Lead unless a
// stage is given, and validates it.
func NewDeal(d Deal) (Deal, error) {
	ensureID(&d.ID)
	if d.Stage == "" {
		d.Stage = StageLead
	}
	if err := ValidateDeal(d); err != nil {
		return Deal{}, err
	}
	return d, nil
}

// ValidateDeal checks every deal invariant.
func ValidateDeal(d Deal) error {
	return check("deal", d.ID, d)
}

// DealStageChange records one explicit stage move.
type DealStageChange struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	DealID    string    `gorm:"size:36;index;not null" json:"deal_id"`
	From      Stage     `gorm:"size:20" json:"from"`
	To        Stage     `gorm:"size:20;not null" json:"to"`
	Actor     string    `gorm:"size:255" json:"actor"`
	ChangedAt time.Time `gorm:"not null" json:"changed_at"`
}

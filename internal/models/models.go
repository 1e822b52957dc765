// Package models holds the CRM entities: customers, deals, proposals and
// products. Entities are plain data; derived values (proposal totals, stage
// summaries) are computed by the pipeline package.
package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/diewo77/medcrm/validation"
)

// Money is a non-negative monetary amount in the distributor's currency.
type Money = decimal.Decimal

// NewID returns a fresh stable identifier.
func NewID() string {
	return uuid.NewString()
}

// ensureID assigns a new identifier when id is blank.
func ensureID(id *string) {
	if *id == "" {
		*id = NewID()
	}
}

// check converts struct-tag violations into an InvalidEntityError.
func check(entity, id string, s any) error {
	return FromViolations(entity, id, validation.Struct(s))
}

// Tables lists every persisted model, parents before children.
func Tables() []any {
	return []any{
		&Customer{},
		&Deal{},
		&DealStageChange{},
		&Product{},
		&PriceTier{},
		&Proposal{},
		&ProposalItem{},
		&ProposalEvent{},
	}
}

package models

import (
	"fmt"
	"time"
)

// DetailKind tags the variant carried by a Detail.
type DetailKind string

const (
	DetailCustomer DetailKind = "customer"
	DetailDeal     DetailKind = "deal"
	DetailProposal DetailKind = "proposal"
)

// Detail is the subject of an activity entry. The set of variants is closed:
// CustomerDetail, DealDetail and ProposalDetail.
type Detail interface {
	Kind() DetailKind
	detail()
}

// CustomerDetail is a Detail about a customer record.
type CustomerDetail struct {
	Customer Customer `json:"customer"`
}

// DealDetail is a Detail about a deal. Customer is nil when the referenced
// customer no longer exists.
type DealDetail struct {
	Deal     Deal      `json:"deal"`
	Customer *Customer `json:"customer,omitempty"`
}

// ProposalDetail is a Detail about a proposal.
type ProposalDetail struct {
	Proposal Proposal `json:"proposal"`
	Total    Money    `json:"total"`
}

func (CustomerDetail) Kind() DetailKind { return DetailCustomer }
func (DealDetail) Kind() DetailKind     { return DetailDeal }
func (ProposalDetail) Kind() DetailKind { return DetailProposal }

func (CustomerDetail) detail() {}
func (DealDetail) detail()     {}
func (ProposalDetail) detail() {}

// Activity is one entry of the dashboard feed.
type Activity struct {
	At      time.Time  `json:"at"`
	Actor   string     `json:"actor"`
	Action  string     `json:"action"`
	Kind    DetailKind `json:"kind"`
	Summary string     `json:"summary"`
	Subject Detail     `json:"subject"`
}

// NewActivity fills Kind and Summary from the subject. A nil subject leaves
// Kind empty.
func NewActivity(at time.Time, actor, action string, subject Detail) Activity {
	var kind DetailKind
	if subject != nil {
		kind = subject.Kind()
	}
	return Activity{
		At:      at,
		Actor:   actor,
		Action:  action,
		Kind:    kind,
		Summary: Describe(subject),
		Subject: subject,
	}
}

// Describe renders a one-line summary of d.
func Describe(d Detail) string {
	switch v := d.(type) {
	case CustomerDetail:
		return fmt.Sprintf("%s (%s, %s)", v.Customer.Name, v.Customer.Type, v.Customer.Segment)
	case DealDetail:
		customer := "unknown customer"
		if v.Customer != nil {
			customer = v.Customer.Name
		}
		return fmt.Sprintf("%s for %s: %s at %s", v.Deal.Title, customer, v.Deal.Value.StringFixed(2), v.Deal.Stage)
	case ProposalDetail:
		title := v.Proposal.Title
		if title == "" {
			title = v.Proposal.ID
		}
		return fmt.Sprintf("Proposal %s (%s): %s", title, v.Proposal.Status, v.Total.StringFixed(2))
	default:
		return "unknown subject"
	}
}

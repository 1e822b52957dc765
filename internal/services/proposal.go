package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/repository"
	"github.com/diewo77/medcrm/validation"
)

// ErrInvalidTransition rejects a status action the proposal's current
// status does not allow.
var ErrInvalidTransition = errors.New("invalid proposal transition")

// Proposal actions, as recorded in the history.
const (
	ActionCreated     = "created"
	ActionItemAdded   = "item_added"
	ActionItemRemoved = "item_removed"
	ActionDiscount    = "discount_set"
	ActionSubmit      = "submitted"
	ActionSend        = "sent"
	ActionNegotiate   = "negotiation_started"
	ActionAccept      = "accepted"
	ActionReject      = "rejected"
	ActionExpire      = "expired"
)

type transition struct {
	to   models.ProposalStatus
	from []models.ProposalStatus
}

var transitions = map[string]transition{
	ActionSubmit:    {to: models.ProposalPendingReview, from: []models.ProposalStatus{models.ProposalDraft}},
	ActionSend:      {to: models.ProposalSent, from: []models.ProposalStatus{models.ProposalDraft, models.ProposalPendingReview, models.ProposalUnderNegotiation}},
	ActionNegotiate: {to: models.ProposalUnderNegotiation, from: []models.ProposalStatus{models.ProposalSent}},
	ActionAccept:    {to: models.ProposalAccepted, from: []models.ProposalStatus{models.ProposalSent, models.ProposalUnderNegotiation}},
	ActionReject:    {to: models.ProposalRejected, from: []models.ProposalStatus{models.ProposalSent, models.ProposalUnderNegotiation}},
	ActionExpire:    {to: models.ProposalExpired, from: []models.ProposalStatus{models.ProposalDraft, models.ProposalPendingReview, models.ProposalSent, models.ProposalUnderNegotiation}},
}

// Editable reports whether items and discount of a proposal in status s may
// still change.
func Editable(s models.ProposalStatus) bool {
	switch s {
	case models.ProposalDraft, models.ProposalPendingReview, models.ProposalUnderNegotiation:
		return true
	}
	return false
}

// ItemInput asks for a quantity of a catalog product. The unit price comes
// from the catalog.
type ItemInput struct {
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Discount  models.Money `json:"discount"`
}

// ProposalInput is the data needed to open a proposal.
type ProposalInput struct {
	DealID             string       `json:"deal_id"`
	CustomerID         string       `json:"customer_id"`
	Title              string       `json:"title"`
	ValidUntil         time.Time    `json:"valid_until"`
	AdditionalDiscount models.Money `json:"additional_discount"`
	Items              []ItemInput  `json:"items"`
}

// LineTotal is the derived amount of one proposal item.
type LineTotal struct {
	ItemID string       `json:"item_id"`
	Total  models.Money `json:"total"`
}

// ProposalView is a proposal with its derived totals. LineTotals follows
// the order of Items.
type ProposalView struct {
	models.Proposal
	LineTotals []LineTotal     `json:"line_totals"`
	Totals     pipeline.Totals `json:"totals"`
}

type ProposalService struct {
	store   repository.Store
	taxRate decimal.Decimal
	log     *zap.Logger
	now     func() time.Time
}

func (s *ProposalService) catalog(ctx context.Context) pipeline.ProductLookup {
	return func(id string) (models.Product, error) {
		return s.store.Products.Get(ctx, id)
	}
}

func (s *ProposalService) event(action, description, actor string) models.ProposalEvent {
	return models.ProposalEvent{
		ID:          models.NewID(),
		Action:      action,
		Description: description,
		Actor:       actor,
		At:          s.now().UTC(),
	}
}

func (s *ProposalService) view(p models.Proposal) (ProposalView, error) {
	totals, err := pipeline.ProposalTotals(p, s.taxRate)
	if err != nil {
		return ProposalView{}, err
	}
	lines := make([]LineTotal, len(p.Items))
	for i, it := range p.Items {
		lines[i] = LineTotal{ItemID: it.ID, Total: pipeline.LineTotal(it)}
	}
	return ProposalView{Proposal: p, LineTotals: lines, Totals: totals}, nil
}

// Create opens a Draft proposal. When only DealID is given the customer is
// taken from the deal. Items are priced from the catalog.
func (s *ProposalService) Create(ctx context.Context, in ProposalInput, actor string) (ProposalView, error) {
	customerID := in.CustomerID
	if in.DealID != "" {
		d, err := s.store.Deals.Get(ctx, in.DealID)
		if err != nil {
			return ProposalView{}, err
		}
		if customerID == "" {
			customerID = d.CustomerID
		}
	}
	if customerID != "" {
		if _, err := s.store.Customers.Get(ctx, customerID); err != nil {
			return ProposalView{}, err
		}
	}

	lookup := s.catalog(ctx)
	items := make([]models.ProposalItem, 0, len(in.Items))
	for _, ii := range in.Items {
		it, err := pipeline.ItemFromProduct(lookup, ii.ProductID, ii.Quantity, ii.Discount)
		if err != nil {
			return ProposalView{}, err
		}
		items = append(items, it)
	}

	p, err := models.NewProposal(models.Proposal{
		DealID:             in.DealID,
		CustomerID:         customerID,
		Title:              in.Title,
		Status:             models.ProposalDraft,
		Items:              items,
		AdditionalDiscount: in.AdditionalDiscount,
		ValidUntil:         in.ValidUntil,
	})
	if err != nil {
		return ProposalView{}, err
	}
	if _, err := pipeline.ProposalTotals(p, s.taxRate); err != nil {
		return ProposalView{}, err
	}
	p.History = []models.ProposalEvent{s.event(ActionCreated, "Proposal created", actor)}

	saved, err := s.store.Proposals.Save(ctx, p)
	if err != nil {
		return ProposalView{}, err
	}
	s.log.Info("proposal created",
		zap.String("proposal_id", saved.ID),
		zap.String("deal_id", saved.DealID),
		zap.Int("items", len(saved.Items)))
	return s.view(saved)
}

// Get returns the proposal with its totals.
func (s *ProposalService) Get(ctx context.Context, id string) (ProposalView, error) {
	p, err := s.store.Proposals.Get(ctx, id)
	if err != nil {
		return ProposalView{}, err
	}
	return s.view(p)
}

// List returns every proposal, or the proposals of one deal when dealID is
// set.
func (s *ProposalService) List(ctx context.Context, dealID string) ([]ProposalView, error) {
	var (
		proposals []models.Proposal
		err       error
	)
	if dealID != "" {
		proposals, err = s.store.Proposals.ListByDeal(ctx, dealID)
	} else {
		proposals, err = s.store.Proposals.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	out := make([]ProposalView, 0, len(proposals))
	for _, p := range proposals {
		v, err := s.view(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Delete removes a proposal with its items and history.
func (s *ProposalService) Delete(ctx context.Context, id string) error {
	if err := s.store.Proposals.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("proposal deleted", zap.String("proposal_id", id))
	return nil
}

// AddItem appends a catalog line priced for qty.
func (s *ProposalService) AddItem(ctx context.Context, id string, in ItemInput, actor string) (ProposalView, error) {
	return s.mutate(ctx, id, actor, ActionItemAdded, func(p *models.Proposal) (string, error) {
		if err := editable(p); err != nil {
			return "", err
		}
		it, err := pipeline.ItemFromProduct(s.catalog(ctx), in.ProductID, in.Quantity, in.Discount)
		if err != nil {
			return "", err
		}
		p.Items = append(p.Items, it)
		return fmt.Sprintf("Added %d x %s at %s", it.Quantity, it.Description, it.UnitPrice.StringFixed(2)), nil
	})
}

// RemoveItem drops one line. Removing a line the additional discount
// depends on fails with *pipeline.NegativeSubtotalError.
func (s *ProposalService) RemoveItem(ctx context.Context, id, itemID, actor string) (ProposalView, error) {
	return s.mutate(ctx, id, actor, ActionItemRemoved, func(p *models.Proposal) (string, error) {
		if err := editable(p); err != nil {
			return "", err
		}
		for i, it := range p.Items {
			if it.ID == itemID {
				p.Items = append(p.Items[:i:i], p.Items[i+1:]...)
				return fmt.Sprintf("Removed %s", it.Description), nil
			}
		}
		return "", &models.NotFoundError{Kind: "proposal_item", ID: itemID}
	})
}

// SetDiscount replaces the proposal-level discount.
func (s *ProposalService) SetDiscount(ctx context.Context, id string, amount models.Money, actor string) (ProposalView, error) {
	return s.mutate(ctx, id, actor, ActionDiscount, func(p *models.Proposal) (string, error) {
		if err := editable(p); err != nil {
			return "", err
		}
		var v validation.Violations
		validation.NonNegative("additional_discount", amount, &v)
		if err := models.FromViolations("proposal", p.ID, v); err != nil {
			return "", err
		}
		p.AdditionalDiscount = amount
		return fmt.Sprintf("Additional discount set to %s", amount.StringFixed(2)), nil
	})
}

func (s *ProposalService) Submit(ctx context.Context, id, actor string) (ProposalView, error) {
	return s.transition(ctx, id, ActionSubmit, actor)
}

// Send marks the proposal as sent to the customer. It needs at least one
// item.
func (s *ProposalService) Send(ctx context.Context, id, actor string) (ProposalView, error) {
	return s.transition(ctx, id, ActionSend, actor)
}

func (s *ProposalService) Negotiate(ctx context.Context, id, actor string) (ProposalView, error) {
	return s.transition(ctx, id, ActionNegotiate, actor)
}

func (s *ProposalService) Accept(ctx context.Context, id, actor string) (ProposalView, error) {
	return s.transition(ctx, id, ActionAccept, actor)
}

func (s *ProposalService) Reject(ctx context.Context, id, actor string) (ProposalView, error) {
	return s.transition(ctx, id, ActionReject, actor)
}

func (s *ProposalService) Expire(ctx context.Context, id, actor string) (ProposalView, error) {
	return s.transition(ctx, id, ActionExpire, actor)
}

// Apply runs the status action named by action.
func (s *ProposalService) Apply(ctx context.Context, id, action, actor string) (ProposalView, error) {
	if _, ok := transitions[action]; !ok {
		return ProposalView{}, &models.InvalidEntityError{Entity: "proposal", ID: id, Field: "action", Rule: "enum"}
	}
	return s.transition(ctx, id, action, actor)
}

// ExpireOverdue expires every open proposal whose ValidUntil has passed and
// returns the IDs it expired.
func (s *ProposalService) ExpireOverdue(ctx context.Context, actor string) ([]string, error) {
	proposals, err := s.store.Proposals.List(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	var expired []string
	for _, p := range proposals {
		if p.Status.Final() || p.ValidUntil.IsZero() || !p.ValidUntil.Before(now) {
			continue
		}
		if _, err := s.transition(ctx, p.ID, ActionExpire, actor); err != nil {
			return expired, err
		}
		expired = append(expired, p.ID)
	}
	return expired, nil
}

func (s *ProposalService) transition(ctx context.Context, id, action, actor string) (ProposalView, error) {
	tr := transitions[action]
	return s.mutate(ctx, id, actor, action, func(p *models.Proposal) (string, error) {
		if p.Status.Final() {
			return "", fmt.Errorf("proposal %s is %s: %w", p.ID, p.Status, ErrProposalLocked)
		}
		allowed := false
		for _, st := range tr.from {
			if st == p.Status {
				allowed = true
				break
			}
		}
		if !allowed {
			return "", fmt.Errorf("cannot %s proposal %s in status %s: %w", action, p.ID, p.Status, ErrInvalidTransition)
		}
		if tr.to == models.ProposalSent && len(p.Items) == 0 {
			return "", &models.InvalidEntityError{Entity: "proposal", ID: p.ID, Field: "items", Rule: "required"}
		}
		from := p.Status
		p.Status = tr.to
		return fmt.Sprintf("Status changed from %s to %s", from, tr.to), nil
	})
}

// mutate loads the proposal, applies fn, checks the totals still hold and
// saves it with a new history entry.
func (s *ProposalService) mutate(ctx context.Context, id, actor, action string, fn func(p *models.Proposal) (string, error)) (ProposalView, error) {
	p, err := s.store.Proposals.Get(ctx, id)
	if err != nil {
		return ProposalView{}, err
	}
	description, err := fn(&p)
	if err != nil {
		return ProposalView{}, err
	}
	if _, err := pipeline.ProposalTotals(p, s.taxRate); err != nil {
		return ProposalView{}, err
	}
	p.History = append(p.History, s.event(action, description, actor))
	saved, err := s.store.Proposals.Save(ctx, p)
	if err != nil {
		return ProposalView{}, err
	}
	s.log.Info("proposal updated",
		zap.String("proposal_id", id),
		zap.String("action", action),
		zap.String("status", string(saved.Status)),
		zap.String("actor", actor))
	return s.view(saved)
}

func editable(p *models.Proposal) error {
	if !Editable(p.Status) {
		return fmt.Errorf("proposal %s is %s: %w", p.ID, p.Status, ErrProposalLocked)
	}
	return nil
}

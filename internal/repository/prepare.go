package repository

import (
	"github.com/diewo77/medcrm/internal/models"
)

// The prepare functions assign missing IDs, point owned rows at their
// parent and validate. Both stores call them before writing.

func prepareCustomer(c *models.Customer) error {
	if c.ID == "" {
		c.ID = models.NewID()
	}
	return models.ValidateCustomer(*c)
}

func prepareDeal(d *models.Deal) error {
	if d.ID == "" {
		d.ID = models.NewID()
	}
	return models.ValidateDeal(*d)
}

func prepareStageChange(ch *models.DealStageChange) {
	if ch.ID == "" {
		ch.ID = models.NewID()
	}
}

func prepareProposal(p *models.Proposal) error {
	if p.ID == "" {
		p.ID = models.NewID()
	}
	for i := range p.Items {
		if p.Items[i].ID == "" {
			p.Items[i].ID = models.NewID()
		}
		p.Items[i].ProposalID = p.ID
		p.Items[i].Position = i
	}
	for i := range p.History {
		if p.History[i].ID == "" {
			p.History[i].ID = models.NewID()
		}
		p.History[i].ProposalID = p.ID
	}
	return models.ValidateProposal(*p)
}

func prepareProduct(p *models.Product) error {
	if p.ID == "" {
		p.ID = models.NewID()
	}
	for i := range p.BulkTiers {
		p.BulkTiers[i].ProductID = p.ID
	}
	return models.ValidateProduct(*p)
}

func cloneProposal(p models.Proposal) models.Proposal {
	p.Items = append([]models.ProposalItem(nil), p.Items...)
	p.History = append([]models.ProposalEvent(nil), p.History...)
	return p
}

func cloneProduct(p models.Product) models.Product {
	p.BulkTiers = append([]models.PriceTier(nil), p.BulkTiers...)
	return p
}

// mergeHistory appends the entries of next not already in stored.
func mergeHistory(stored, next []models.ProposalEvent) []models.ProposalEvent {
	seen := make(map[string]struct{}, len(stored))
	out := append([]models.ProposalEvent(nil), stored...)
	for _, e := range stored {
		seen[e.ID] = struct{}{}
	}
	for _, e := range next {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}

package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/query"
	"github.com/diewo77/medcrm/internal/repository"
)

type CustomerService struct {
	store   repository.Store
	querier query.Querier
	policy  DeletePolicy
	log     *zap.Logger
}

// Create validates c and stores it with a fresh ID.
func (s *CustomerService) Create(ctx context.Context, c models.Customer) (models.Customer, error) {
	c.ID = ""
	c, err := models.NewCustomer(c)
	if err != nil {
		return models.Customer{}, err
	}
	saved, err := s.store.Customers.Save(ctx, c)
	if err != nil {
		return models.Customer{}, err
	}
	s.log.Info("customer created", zap.String("customer_id", saved.ID), zap.String("name", saved.Name))
	return saved, nil
}

// Update replaces the editable fields of an existing customer.
func (s *CustomerService) Update(ctx context.Context, id string, c models.Customer) (models.Customer, error) {
	existing, err := s.store.Customers.Get(ctx, id)
	if err != nil {
		return models.Customer{}, err
	}
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	if err := models.ValidateCustomer(c); err != nil {
		return models.Customer{}, err
	}
	saved, err := s.store.Customers.Save(ctx, c)
	if err != nil {
		return models.Customer{}, err
	}
	s.log.Info("customer updated", zap.String("customer_id", id))
	return s.rollupOne(ctx, saved)
}

// Get returns the customer with ActiveDeals and TotalRevenue derived from
// its deals.
func (s *CustomerService) Get(ctx context.Context, id string) (models.Customer, error) {
	c, err := s.store.Customers.Get(ctx, id)
	if err != nil {
		return models.Customer{}, err
	}
	return s.rollupOne(ctx, c)
}

// List returns every customer, rolled up from the deal list.
func (s *CustomerService) List(ctx context.Context) ([]models.Customer, error) {
	customers, err := s.store.Customers.List(ctx)
	if err != nil {
		return nil, err
	}
	deals, err := s.store.Deals.List(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.RollupCustomers(customers, deals), nil
}

// Query filters and sorts the rolled-up customer list.
func (s *CustomerService) Query(ctx context.Context, q query.CustomerQuery) ([]models.Customer, error) {
	customers, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.querier.Customers(customers, q)
}

// Delete removes a customer. Under DeleteReject a customer with deals is
// kept and ErrCustomerHasDeals returned; under DeleteCascade its deals and
// their proposals go with it, in one transaction.
func (s *CustomerService) Delete(ctx context.Context, id string) error {
	if _, err := s.store.Customers.Get(ctx, id); err != nil {
		return err
	}
	deals, err := s.store.Deals.ListByCustomer(ctx, id)
	if err != nil {
		return err
	}
	if len(deals) > 0 && s.policy != DeleteCascade {
		return fmt.Errorf("delete customer %s with %d deals: %w", id, len(deals), ErrCustomerHasDeals)
	}

	proposals := 0
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		for _, d := range deals {
			n, err := cascadeDeal(ctx, tx, d.ID)
			if err != nil {
				return fmt.Errorf("cascade delete deal %s: %w", d.ID, err)
			}
			proposals += n
		}
		return tx.Customers.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.log.Info("customer deleted",
		zap.String("customer_id", id),
		zap.Int("cascaded_deals", len(deals)),
		zap.Int("cascaded_proposals", proposals))
	return nil
}

// cascadeDeal deletes a deal and its proposals and returns how many
// proposals went with it.
func cascadeDeal(ctx context.Context, tx repository.Store, dealID string) (int, error) {
	proposals, err := tx.Proposals.ListByDeal(ctx, dealID)
	if err != nil {
		return 0, err
	}
	for _, p := range proposals {
		if err := tx.Proposals.Delete(ctx, p.ID); err != nil {
			return 0, err
		}
	}
	if err := tx.Deals.Delete(ctx, dealID); err != nil {
		return 0, err
	}
	return len(proposals), nil
}

func (s *CustomerService) rollupOne(ctx context.Context, c models.Customer) (models.Customer, error) {
	deals, err := s.store.Deals.ListByCustomer(ctx, c.ID)
	if err != nil {
		return models.Customer{}, err
	}
	return pipeline.RollupCustomers([]models.Customer{c}, deals)[0], nil
}

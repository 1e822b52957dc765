// Package repository stores CRM entities behind small interfaces.
//
// Two implementations exist: an in-memory store guarded by a RWMutex and a
// gorm store for postgres or sqlite. Both validate records before writing,
// return copies, and report a missing id as *models.NotFoundError.
package repository

import (
	"context"

	"github.com/diewo77/medcrm/internal/models"
)

type CustomerRepository interface {
	List(ctx context.Context) ([]models.Customer, error)
	Get(ctx context.Context, id string) (models.Customer, error)
	// Save creates the customer or replaces the stored one with the same ID.
	Save(ctx context.Context, c models.Customer) (models.Customer, error)
	Delete(ctx context.Context, id string) error
}

type DealRepository interface {
	List(ctx context.Context) ([]models.Deal, error)
	ListByCustomer(ctx context.Context, customerID string) ([]models.Deal, error)
	Get(ctx context.Context, id string) (models.Deal, error)
	Save(ctx context.Context, d models.Deal) (models.Deal, error)
	Delete(ctx context.Context, id string) error

	AppendStageChange(ctx context.Context, ch models.DealStageChange) error
	// StageChanges returns the moves of one deal, oldest first.
	StageChanges(ctx context.Context, dealID string) ([]models.DealStageChange, error)
}

type ProposalRepository interface {
	List(ctx context.Context) ([]models.Proposal, error)
	ListByDeal(ctx context.Context, dealID string) ([]models.Proposal, error)
	Get(ctx context.Context, id string) (models.Proposal, error)
	// Save replaces the stored items with p.Items. History entries are only
	// ever added: entries already stored are left untouched.
	Save(ctx context.Context, p models.Proposal) (models.Proposal, error)
	Delete(ctx context.Context, id string) error
}

type ProductRepository interface {
	List(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id string) (models.Product, error)
	Save(ctx context.Context, p models.Product) (models.Product, error)
	Delete(ctx context.Context, id string) error
}

// Transactor runs fn so that either all of its writes land or none do.
// fn receives the store to write through; it may differ from s.
type Transactor interface {
	InTx(ctx context.Context, s Store, fn func(tx Store) error) error
}

// Store bundles one repository per entity.
type Store struct {
	Customers CustomerRepository
	Deals     DealRepository
	Proposals ProposalRepository
	Products  ProductRepository

	// Tx is nil for stores without transactions; Atomic then runs fn
	// directly.
	Tx Transactor
}

// Atomic runs fn inside a transaction when the store supports one.
func (s Store) Atomic(ctx context.Context, fn func(tx Store) error) error {
	if s.Tx == nil {
		return fn(s)
	}
	return s.Tx.InTx(ctx, s, fn)
}

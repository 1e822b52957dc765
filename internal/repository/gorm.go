package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/diewo77/medcrm/internal/models"
)

// NewGormStore returns a Store backed by db. The schema must already be
// migrated (see db.Migrate).
func NewGormStore(db *gorm.DB) Store {
	return Store{
		Customers: &GormCustomers{DB: db},
		Deals:     &GormDeals{DB: db},
		Proposals: &GormProposals{DB: db},
		Products:  &GormProducts{DB: db},
		Tx:        gormTx{db: db},
	}
}

// gormTx hands fn a store bound to one database transaction. Repository
// methods that open their own transaction nest as savepoints.
type gormTx struct{ db *gorm.DB }

func (g gormTx) InTx(ctx context.Context, _ Store, fn func(tx Store) error) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}

// notFound maps gorm.ErrRecordNotFound to a typed NotFoundError.
func notFound(err error, kind, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.NotFoundError{Kind: kind, ID: id}
	}
	return err
}

func duplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

// upsert inserts row, or updates every column except created_at when a row
// with the same id exists. Associations are written by the caller.
func upsert(tx *gorm.DB, model any, row any, id string) error {
	var n int64
	if err := tx.Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return tx.Omit(clause.Associations).Create(row).Error
	}
	return tx.Model(row).Select("*").Omit("created_at", clause.Associations).Updates(row).Error
}

// deleteByID removes one row and reports a miss as NotFoundError.
func deleteByID(tx *gorm.DB, model any, kind, id string) error {
	res := tx.Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &models.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

// GormCustomers is a CustomerRepository on gorm.
type GormCustomers struct{ DB *gorm.DB }

func (r *GormCustomers) List(ctx context.Context) ([]models.Customer, error) {
	var out []models.Customer
	if err := r.DB.WithContext(ctx).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	return out, nil
}

func (r *GormCustomers) Get(ctx context.Context, id string) (models.Customer, error) {
	var c models.Customer
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return models.Customer{}, notFound(err, "customer", id)
	}
	return c, nil
}

func (r *GormCustomers) Save(ctx context.Context, c models.Customer) (models.Customer, error) {
	if err := prepareCustomer(&c); err != nil {
		return models.Customer{}, err
	}
	if err := upsert(r.DB.WithContext(ctx), &models.Customer{}, &c, c.ID); err != nil {
		return models.Customer{}, fmt.Errorf("save customer %s: %w", c.ID, err)
	}
	return r.Get(ctx, c.ID)
}

func (r *GormCustomers) Delete(ctx context.Context, id string) error {
	return deleteByID(r.DB.WithContext(ctx), &models.Customer{}, "customer", id)
}

// GormDeals is a DealRepository on gorm.
type GormDeals struct{ DB *gorm.DB }

func (r *GormDeals) List(ctx context.Context) ([]models.Deal, error) {
	var out []models.Deal
	if err := r.DB.WithContext(ctx).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	return out, nil
}

func (r *GormDeals) ListByCustomer(ctx context.Context, customerID string) ([]models.Deal, error) {
	var out []models.Deal
	if err := r.DB.WithContext(ctx).Where("customer_id = ?", customerID).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list deals of customer %s: %w", customerID, err)
	}
	return out, nil
}

func (r *GormDeals) Get(ctx context.Context, id string) (models.Deal, error) {
	var d models.Deal
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&d).Error; err != nil {
		return models.Deal{}, notFound(err, "deal", id)
	}
	return d, nil
}

func (r *GormDeals) Save(ctx context.Context, d models.Deal) (models.Deal, error) {
	if err := prepareDeal(&d); err != nil {
		return models.Deal{}, err
	}
	if err := upsert(r.DB.WithContext(ctx), &models.Deal{}, &d, d.ID); err != nil {
		return models.Deal{}, fmt.Errorf("save deal %s: %w", d.ID, err)
	}
	return r.Get(ctx, d.ID)
}

// Delete removes the deal and its stage history in one transaction.
func (r *GormDeals) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deal_id = ?", id).Delete(&models.DealStageChange{}).Error; err != nil {
			return err
		}
		return deleteByID(tx, &models.Deal{}, "deal", id)
	})
}

func (r *GormDeals) AppendStageChange(ctx context.Context, ch models.DealStageChange) error {
	if _, err := r.Get(ctx, ch.DealID); err != nil {
		return err
	}
	prepareStageChange(&ch)
	if err := r.DB.WithContext(ctx).Create(&ch).Error; err != nil {
		return fmt.Errorf("append stage change of deal %s: %w", ch.DealID, err)
	}
	return nil
}

func (r *GormDeals) StageChanges(ctx context.Context, dealID string) ([]models.DealStageChange, error) {
	out := []models.DealStageChange{}
	if err := r.DB.WithContext(ctx).Where("deal_id = ?", dealID).Order("changed_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list stage changes of deal %s: %w", dealID, err)
	}
	return out, nil
}

// GormProposals is a ProposalRepository on gorm.
type GormProposals struct{ DB *gorm.DB }

func (r *GormProposals) preload(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("occurred_at, id") })
}

func (r *GormProposals) List(ctx context.Context) ([]models.Proposal, error) {
	var out []models.Proposal
	if err := r.preload(r.DB.WithContext(ctx)).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	return out, nil
}

func (r *GormProposals) ListByDeal(ctx context.Context, dealID string) ([]models.Proposal, error) {
	var out []models.Proposal
	if err := r.preload(r.DB.WithContext(ctx)).Where("deal_id = ?", dealID).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list proposals of deal %s: %w", dealID, err)
	}
	return out, nil
}

func (r *GormProposals) Get(ctx context.Context, id string) (models.Proposal, error) {
	var p models.Proposal
	if err := r.preload(r.DB.WithContext(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		return models.Proposal{}, notFound(err, "proposal", id)
	}
	return p, nil
}

// Save writes the proposal row, replaces its items and inserts any history
// entries not yet stored, all in one transaction.
func (r *GormProposals) Save(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	p = cloneProposal(p)
	if err := prepareProposal(&p); err != nil {
		return models.Proposal{}, err
	}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsert(tx, &models.Proposal{}, &p, p.ID); err != nil {
			return err
		}
		if err := tx.Where("proposal_id = ?", p.ID).Delete(&models.ProposalItem{}).Error; err != nil {
			return err
		}
		if len(p.Items) > 0 {
			if err := tx.Create(&p.Items).Error; err != nil {
				return err
			}
		}
		if len(p.History) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&p.History).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Proposal{}, fmt.Errorf("save proposal %s: %w", p.ID, err)
	}
	return r.Get(ctx, p.ID)
}

func (r *GormProposals) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("proposal_id = ?", id).Delete(&models.ProposalItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("proposal_id = ?", id).Delete(&models.ProposalEvent{}).Error; err != nil {
			return err
		}
		return deleteByID(tx, &models.Proposal{}, "proposal", id)
	})
}

// GormProducts is a ProductRepository on gorm.
type GormProducts struct{ DB *gorm.DB }

func (r *GormProducts) preload(tx *gorm.DB) *gorm.DB {
	return tx.Preload("BulkTiers", func(db *gorm.DB) *gorm.DB { return db.Order("min_quantity") })
}

func (r *GormProducts) List(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := r.preload(r.DB.WithContext(ctx)).Order("created_at, id").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (r *GormProducts) Get(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	if err := r.preload(r.DB.WithContext(ctx)).Where("id = ?", id).First(&p).Error; err != nil {
		return models.Product{}, notFound(err, "product", id)
	}
	return p, nil
}

// Save writes the product and replaces its bulk tiers. A taken SKU is
// reported as ErrDuplicate.
func (r *GormProducts) Save(ctx context.Context, p models.Product) (models.Product, error) {
	p = cloneProduct(p)
	if err := prepareProduct(&p); err != nil {
		return models.Product{}, err
	}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := tx.Model(&models.Product{}).Where("sku = ? AND id <> ?", p.SKU, p.ID).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return fmt.Errorf("product sku %q: %w", p.SKU, ErrDuplicate)
		}
		if err := upsert(tx, &models.Product{}, &p, p.ID); err != nil {
			if duplicate(err) {
				return fmt.Errorf("product sku %q: %w", p.SKU, ErrDuplicate)
			}
			return err
		}
		if err := tx.Where("product_id = ?", p.ID).Delete(&models.PriceTier{}).Error; err != nil {
			return err
		}
		if len(p.BulkTiers) > 0 {
			tiers := make([]models.PriceTier, len(p.BulkTiers))
			for i, t := range p.BulkTiers {
				tiers[i] = models.PriceTier{ProductID: p.ID, MinQuantity: t.MinQuantity, UnitPrice: t.UnitPrice}
			}
			if err := tx.Create(&tiers).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return models.Product{}, err
		}
		return models.Product{}, fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return r.Get(ctx, p.ID)
}

func (r *GormProducts) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.PriceTier{}).Error; err != nil {
			return err
		}
		return deleteByID(tx, &models.Product{}, "product", id)
	})
}

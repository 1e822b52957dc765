package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/diewo77/medcrm/internal/logging"
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/repository"
)

//go:embed seed.yaml
var seedYAML []byte

// Fixtures is the decoded seed file.
type Fixtures struct {
	Customers []customerFixture `yaml:"customers"`
	Products  []productFixture  `yaml:"products"`
	Deals     []dealFixture     `yaml:"deals"`
	Proposals []proposalFixture `yaml:"proposals"`
}

type customerFixture struct {
	ID          string    `yaml:"id"`
	Name        string    `yaml:"name"`
	Type        string    `yaml:"type"`
	Segment     string    `yaml:"segment"`
	Email       string    `yaml:"email"`
	Phone       string    `yaml:"phone"`
	City        string    `yaml:"city"`
	HealthScore int       `yaml:"health_score"`
	LastContact time.Time `yaml:"last_contact"`
}

type tierFixture struct {
	MinQuantity int             `yaml:"min_quantity"`
	UnitPrice   decimal.Decimal `yaml:"unit_price"`
}

type productFixture struct {
	ID           string          `yaml:"id"`
	SKU          string          `yaml:"sku"`
	Name         string          `yaml:"name"`
	Category     string          `yaml:"category"`
	Description  string          `yaml:"description"`
	BasePrice    decimal.Decimal `yaml:"base_price"`
	InStock      int             `yaml:"in_stock"`
	ReorderPoint int             `yaml:"reorder_point"`
	BulkTiers    []tierFixture   `yaml:"bulk_tiers"`
}

type dealFixture struct {
	ID                string          `yaml:"id"`
	CustomerID        string          `yaml:"customer_id"`
	Title             string          `yaml:"title"`
	Value             decimal.Decimal `yaml:"value"`
	Stage             string          `yaml:"stage"`
	Probability       int             `yaml:"probability"`
	ExpectedCloseDate time.Time       `yaml:"expected_close_date"`
	Owner             string          `yaml:"owner"`
}

type itemFixture struct {
	ProductID   string          `yaml:"product_id"`
	Description string          `yaml:"description"`
	Quantity    int             `yaml:"quantity"`
	UnitPrice   decimal.Decimal `yaml:"unit_price"`
	Discount    decimal.Decimal `yaml:"discount"`
}

type eventFixture struct {
	Action      string    `yaml:"action"`
	Description string    `yaml:"description"`
	Actor       string    `yaml:"actor"`
	At          time.Time `yaml:"at"`
}

type proposalFixture struct {
	ID                 string          `yaml:"id"`
	DealID             string          `yaml:"deal_id"`
	CustomerID         string          `yaml:"customer_id"`
	Title              string          `yaml:"title"`
	Status             string          `yaml:"status"`
	AdditionalDiscount decimal.Decimal `yaml:"additional_discount"`
	ValidUntil         time.Time       `yaml:"valid_until"`
	Items              []itemFixture   `yaml:"items"`
	History            []eventFixture  `yaml:"history"`
}

// LoadFixtures decodes a seed file. Passing nil decodes the embedded one.
func LoadFixtures(data []byte) (Fixtures, error) {
	if data == nil {
		data = seedYAML
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("decode seed fixtures: %w", err)
	}
	return f, nil
}

// SeedReport counts the records a Seed call created.
type SeedReport struct {
	Customers int
	Products  int
	Deals     int
	Proposals int
}

// Seed stores the embedded fixtures. Records whose ID already exists are
// left untouched, so Seed may run on every start.
func Seed(ctx context.Context, store repository.Store, log *zap.Logger) (SeedReport, error) {
	f, err := LoadFixtures(nil)
	if err != nil {
		return SeedReport{}, err
	}
	return SeedFixtures(ctx, store, f, logging.OrNop(log))
}

// SeedFixtures stores f the same way Seed stores the embedded fixtures.
func SeedFixtures(ctx context.Context, store repository.Store, f Fixtures, log *zap.Logger) (SeedReport, error) {
	log = logging.OrNop(log)
	var rep SeedReport

	for _, c := range f.Customers {
		created, err := seedOne(ctx, "customer", c.ID, store.Customers.Get, func() error {
			_, err := store.Customers.Save(ctx, models.Customer{
				ID:          c.ID,
				Name:        c.Name,
				Type:        models.CustomerType(c.Type),
				Segment:     models.Segment(c.Segment),
				Email:       c.Email,
				Phone:       c.Phone,
				City:        c.City,
				HealthScore: c.HealthScore,
				LastContact: c.LastContact,
			})
			return err
		})
		if err != nil {
			return rep, err
		}
		rep.Customers += created
	}

	for _, p := range f.Products {
		created, err := seedOne(ctx, "product", p.ID, store.Products.Get, func() error {
			tiers := make([]models.PriceTier, 0, len(p.BulkTiers))
			for _, t := range p.BulkTiers {
				tiers = append(tiers, models.PriceTier{MinQuantity: t.MinQuantity, UnitPrice: t.UnitPrice})
			}
			_, err := store.Products.Save(ctx, models.Product{
				ID:           p.ID,
				SKU:          p.SKU,
				Name:         p.Name,
				Category:     models.ProductCategory(p.Category),
				Description:  p.Description,
				BasePrice:    p.BasePrice,
				BulkTiers:    tiers,
				InStock:      p.InStock,
				ReorderPoint: p.ReorderPoint,
			})
			return err
		})
		if err != nil {
			return rep, err
		}
		rep.Products += created
	}

	for _, d := range f.Deals {
		created, err := seedOne(ctx, "deal", d.ID, store.Deals.Get, func() error {
			_, err := store.Deals.Save(ctx, models.Deal{
				ID:                d.ID,
				CustomerID:        d.CustomerID,
				Title:             d.Title,
				Value:             d.Value,
				Stage:             models.Stage(d.Stage),
				Probability:       d.Probability,
				ExpectedCloseDate: d.ExpectedCloseDate,
				Owner:             d.Owner,
			})
			return err
		})
		if err != nil {
			return rep, err
		}
		rep.Deals += created
	}

	for _, p := range f.Proposals {
		created, err := seedOne(ctx, "proposal", p.ID, store.Proposals.Get, func() error {
			items := make([]models.ProposalItem, 0, len(p.Items))
			for i, it := range p.Items {
				items = append(items, models.ProposalItem{
					ID:          fmt.Sprintf("%s-i%d", p.ID, i),
					ProductID:   it.ProductID,
					Description: it.Description,
					Quantity:    it.Quantity,
					UnitPrice:   it.UnitPrice,
					Discount:    it.Discount,
				})
			}
			history := make([]models.ProposalEvent, 0, len(p.History))
			for i, e := range p.History {
				history = append(history, models.ProposalEvent{
					ID:          fmt.Sprintf("%s-h%d", p.ID, i),
					Action:      e.Action,
					Description: e.Description,
					Actor:       e.Actor,
					At:          e.At,
				})
			}
			_, err := store.Proposals.Save(ctx, models.Proposal{
				ID:                 p.ID,
				DealID:             p.DealID,
				CustomerID:         p.CustomerID,
				Title:              p.Title,
				Status:             models.ProposalStatus(p.Status),
				Items:              items,
				AdditionalDiscount: p.AdditionalDiscount,
				ValidUntil:         p.ValidUntil,
				History:            history,
			})
			return err
		})
		if err != nil {
			return rep, err
		}
		rep.Proposals += created
	}

	log.Info("seed complete",
		zap.Int("customers", rep.Customers),
		zap.Int("products", rep.Products),
		zap.Int("deals", rep.Deals),
		zap.Int("proposals", rep.Proposals))
	return rep, nil
}

// seedOne saves a record unless get finds it. It returns 1 when created.
func seedOne[T any](ctx context.Context, kind, id string, get func(context.Context, string) (T, error), save func() error) (int, error) {
	_, err := get(ctx, id)
	switch {
	case err == nil:
		return 0, nil
	case !models.IsNotFound(err):
		return 0, fmt.Errorf("seed %s %s: %w", kind, id, err)
	}
	if err := save(); err != nil {
		return 0, fmt.Errorf("seed %s %s: %w", kind, id, err)
	}
	return 1, nil
}

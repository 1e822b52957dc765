package db

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/diewo77/medcrm/internal/config"
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/repository"
)

func mustMoney(s string) models.Money { return decimal.RequireFromString(s) }

func openTestDB(t *testing.T) repository.Store {
	t.Helper()
	d, err := Open(config.DatabaseConfig{Driver: "sqlite", SQLitePath: "file:" + t.Name() + "?mode=memory&cache=shared"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(d); err != nil {
		t.Fatal(err)
	}
	return repository.NewGormStore(d)
}

func TestSeedIdempotent(t *testing.T) {
	stores := map[string]repository.Store{
		"memory": repository.NewMemoryStore(),
		"gorm":   openTestDB(t),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := Seed(ctx, store, nil)
			if err != nil {
				t.Fatalf("seed: %v", err)
			}
			if first.Customers < 2 || first.Deals < 3 || first.Products < 2 || first.Proposals < 1 {
				t.Fatalf("expected baseline fixtures, got %+v", first)
			}
			second, err := Seed(ctx, store, nil)
			if err != nil {
				t.Fatalf("reseed: %v", err)
			}
			if second != (SeedReport{}) {
				t.Fatalf("reseed created records: %+v", second)
			}

			customers, _ := store.Customers.List(ctx)
			deals, _ := store.Deals.List(ctx)
			if len(customers) != first.Customers || len(deals) != first.Deals {
				t.Fatalf("records duplicated: customers=%d deals=%d", len(customers), len(deals))
			}
			p, err := store.Proposals.Get(ctx, "prp-scan")
			if err != nil {
				t.Fatalf("get proposal: %v", err)
			}
			if len(p.History) != 2 {
				t.Fatalf("expected 2 history entries got %d", len(p.History))
			}
		})
	}
}

func TestSeedFixturesAreConsistent(t *testing.T) {
	f, err := LoadFixtures(nil)
	if err != nil {
		t.Fatal(err)
	}
	customers := map[string]bool{}
	for _, c := range f.Customers {
		customers[c.ID] = true
	}
	deals := make([]models.Deal, 0, len(f.Deals))
	for _, d := range f.Deals {
		if !customers[d.CustomerID] {
			t.Fatalf("deal %s references unknown customer %s", d.ID, d.CustomerID)
		}
		deals = append(deals, models.Deal{ID: d.ID, CustomerID: d.CustomerID, Title: d.Title, Value: d.Value, Stage: models.Stage(d.Stage), Probability: d.Probability})
	}

	summary, err := pipeline.GroupByStage(deals)
	if err != nil {
		t.Fatalf("fixtures must be valid deals: %v", err)
	}
	if got := summary[models.StageLead]; got.Count != 2 || !got.TotalValue.Equal(mustMoney("3000")) {
		t.Fatalf("lead stage = %+v", got)
	}

	store := repository.NewMemoryStore()
	if _, err := Seed(context.Background(), store, nil); err != nil {
		t.Fatal(err)
	}
	p, err := store.Proposals.Get(context.Background(), "prp-scan")
	if err != nil {
		t.Fatal(err)
	}
	totals, err := pipeline.ProposalTotals(p, pipeline.DefaultTaxRate)
	if err != nil {
		t.Fatal(err)
	}
	if !totals.Total.Equal(mustMoney("260")) || !totals.Tax.Equal(mustMoney("40")) {
		t.Fatalf("unexpected totals %+v", totals)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(config.DatabaseConfig{Driver: "oracle"}, nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/medcrm/internal/models"
)

func money(s string) models.Money { return decimal.RequireFromString(s) }

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid cross-test collisions.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.Tables()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// eachStore runs fn against the memory store and a fresh sqlite store.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Helper()
	gormStore := NewGormStore(setupTestDB(t))
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("gorm", func(t *testing.T) { fn(t, gormStore) })
}

func TestCustomers(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		apollo, err := s.Customers.Save(ctx, models.Customer{Name: "Apollo Hospitals", Type: models.CustomerTypeHospital, Segment: models.SegmentEnterprise, HealthScore: 82, TotalRevenue: money("125000.50")})
		require.NoError(t, err)
		require.NotEmpty(t, apollo.ID)
		require.False(t, apollo.CreatedAt.IsZero())

		_, err = s.Customers.Save(ctx, models.Customer{Name: "Fortis", Type: models.CustomerTypeClinic, Segment: models.SegmentMidMarket})
		require.NoError(t, err)

		got, err := s.Customers.Get(ctx, apollo.ID)
		require.NoError(t, err)
		assert.Equal(t, "Apollo Hospitals", got.Name)
		assert.True(t, money("125000.50").Equal(got.TotalRevenue), "revenue %s", got.TotalRevenue)

		got.HealthScore = 40
		updated, err := s.Customers.Save(ctx, got)
		require.NoError(t, err)
		assert.Equal(t, 40, updated.HealthScore)
		assert.True(t, apollo.CreatedAt.Equal(updated.CreatedAt), "created_at must survive updates")

		list, err := s.Customers.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Apollo Hospitals", list[0].Name)
		assert.Equal(t, "Fortis", list[1].Name)

		_, err = s.Customers.Save(ctx, models.Customer{Name: "Bad", Type: "Spa", Segment: models.SegmentEnterprise})
		var ie *models.InvalidEntityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "type", ie.Field)
		list, err = s.Customers.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2, "invalid records never reach storage")

		require.NoError(t, s.Customers.Delete(ctx, apollo.ID))
		_, err = s.Customers.Get(ctx, apollo.ID)
		assert.True(t, models.IsNotFound(err), "got %v", err)
		err = s.Customers.Delete(ctx, apollo.ID)
		var nf *models.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "customer", nf.Kind)
	})
}

func TestDeals(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		echo, err := s.Deals.Save(ctx, models.Deal{CustomerID: "c1", Title: "Echo", Stage: models.StageLead, Value: money("1000")})
		require.NoError(t, err)
		_, err = s.Deals.Save(ctx, models.Deal{CustomerID: "c2", Title: "Scan", Stage: models.StageProposal, Value: money("5000")})
		require.NoError(t, err)
		_, err = s.Deals.Save(ctx, models.Deal{CustomerID: "c1", Title: "Valve", Stage: models.StageLead, Value: money("2000")})
		require.NoError(t, err)

		mine, err := s.Deals.ListByCustomer(ctx, "c1")
		require.NoError(t, err)
		require.Len(t, mine, 2)
		assert.Equal(t, "Echo", mine[0].Title)
		assert.Equal(t, "Valve", mine[1].Title)

		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		require.NoError(t, s.Deals.AppendStageChange(ctx, models.DealStageChange{DealID: echo.ID, From: models.StageLead, To: models.StageQualified, Actor: "sam", ChangedAt: base}))
		require.NoError(t, s.Deals.AppendStageChange(ctx, models.DealStageChange{DealID: echo.ID, From: models.StageQualified, To: models.StageClosedLost, Actor: "sam", ChangedAt: base.Add(time.Hour)}))
		changes, err := s.Deals.StageChanges(ctx, echo.ID)
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, models.StageQualified, changes[0].To)
		assert.Equal(t, models.StageClosedLost, changes[1].To)

		err = s.Deals.AppendStageChange(ctx, models.DealStageChange{DealID: "missing", To: models.StageLead})
		assert.True(t, models.IsNotFound(err))

		_, err = s.Deals.Save(ctx, models.Deal{CustomerID: "c1", Title: "Bad", Stage: models.StageLead, Probability: 101})
		assert.ErrorAs(t, err, new(*models.InvalidEntityError))

		require.NoError(t, s.Deals.Delete(ctx, echo.ID))
		changes, err = s.Deals.StageChanges(ctx, echo.ID)
		require.NoError(t, err)
		assert.Empty(t, changes)
		all, err := s.Deals.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestAtomic(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		deal, err := s.Deals.Save(ctx, models.Deal{CustomerID: "c1", Title: "Echo", Stage: models.StageLead})
		require.NoError(t, err)
		require.NoError(t, s.Deals.AppendStageChange(ctx, models.DealStageChange{DealID: deal.ID, From: models.StageLead, To: models.StageQualified}))

		boom := errors.New("boom")
		err = s.Atomic(ctx, func(tx Store) error {
			if err := tx.Deals.Delete(ctx, deal.ID); err != nil {
				return err
			}
			if _, err := tx.Customers.Save(ctx, models.Customer{ID: "c9", Name: "Orion Labs", Type: models.CustomerTypeLaboratory, Segment: models.SegmentSmallBusiness}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = s.Deals.Get(ctx, deal.ID)
		require.NoError(t, err, "deal delete rolled back")
		changes, err := s.Deals.StageChanges(ctx, deal.ID)
		require.NoError(t, err)
		assert.Len(t, changes, 1)
		_, err = s.Customers.Get(ctx, "c9")
		assert.True(t, models.IsNotFound(err), "customer insert rolled back")

		require.NoError(t, s.Atomic(ctx, func(tx Store) error {
			return tx.Deals.Delete(ctx, deal.ID)
		}))
		_, err = s.Deals.Get(ctx, deal.ID)
		assert.True(t, models.IsNotFound(err))
	})
}

func TestProposals_ItemsReplacedHistoryAppended(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

		p, err := s.Proposals.Save(ctx, models.Proposal{
			DealID: "d1",
			Title:  "Cath lab refresh",
			Status: models.ProposalDraft,
			Items: []models.ProposalItem{
				{ProductID: "p1", Quantity: 2, UnitPrice: money("100"), Discount: money("10")},
				{ProductID: "p2", Quantity: 1, UnitPrice: money("50")},
			},
			AdditionalDiscount: money("20"),
			History:            []models.ProposalEvent{{Action: "created", Actor: "sam", At: at}},
		})
		require.NoError(t, err)
		require.Len(t, p.Items, 2)
		assert.Equal(t, "p1", p.Items[0].ProductID)
		assert.Equal(t, 1, p.Items[1].Position)
		require.Len(t, p.History, 1)

		// Drop the first item, add one, and send only the new history entry.
		p.Items = append(p.Items[1:], models.ProposalItem{ProductID: "p3", Quantity: 5, UnitPrice: money("9.99")})
		p.History = []models.ProposalEvent{{Action: "item_added", Actor: "sam", At: at.Add(time.Minute)}}
		p.Status = models.ProposalPendingReview
		p, err = s.Proposals.Save(ctx, p)
		require.NoError(t, err)

		got, err := s.Proposals.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ProposalPendingReview, got.Status)
		require.Len(t, got.Items, 2)
		assert.Equal(t, "p2", got.Items[0].ProductID)
		assert.Equal(t, "p3", got.Items[1].ProductID)
		assert.Equal(t, 0, got.Items[0].Position)
		require.Len(t, got.History, 2, "history is append-only")
		assert.Equal(t, "created", got.History[0].Action)
		assert.Equal(t, "item_added", got.History[1].Action)

		// Re-sending stored history does not duplicate it.
		_, err = s.Proposals.Save(ctx, got)
		require.NoError(t, err)
		got, err = s.Proposals.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Len(t, got.History, 2)

		byDeal, err := s.Proposals.ListByDeal(ctx, "d1")
		require.NoError(t, err)
		assert.Len(t, byDeal, 1)

		_, err = s.Proposals.Save(ctx, models.Proposal{Title: "orphan"})
		var ie *models.InvalidEntityError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "deal_id", ie.Field)

		require.NoError(t, s.Proposals.Delete(ctx, p.ID))
		_, err = s.Proposals.Get(ctx, p.ID)
		assert.True(t, models.IsNotFound(err))
	})
}

func TestProducts(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		pump, err := s.Products.Save(ctx, models.Product{
			SKU: "INF-200", Name: "Infusion pump", Category: models.CategoryPatientMonitoring,
			BasePrice: money("1500"), InStock: 12, ReorderPoint: 4,
			BulkTiers: []models.PriceTier{{MinQuantity: 50, UnitPrice: money("1300")}, {MinQuantity: 10, UnitPrice: money("1400")}},
		})
		require.NoError(t, err)
		require.Len(t, pump.BulkTiers, 2)

		pump.BulkTiers = []models.PriceTier{{MinQuantity: 20, UnitPrice: money("1350")}}
		pump, err = s.Products.Save(ctx, pump)
		require.NoError(t, err)
		got, err := s.Products.Get(ctx, pump.ID)
		require.NoError(t, err)
		require.Len(t, got.BulkTiers, 1)
		assert.Equal(t, 20, got.BulkTiers[0].MinQuantity)

		_, err = s.Products.Save(ctx, models.Product{SKU: "INF-200", Name: "Clone", Category: models.CategoryConsumables, BasePrice: money("1")})
		assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

		_, err = s.Products.Save(ctx, models.Product{SKU: "X", Name: "Dup tiers", Category: models.CategoryConsumables,
			BulkTiers: []models.PriceTier{{MinQuantity: 5, UnitPrice: money("1")}, {MinQuantity: 5, UnitPrice: money("2")}}})
		assert.ErrorAs(t, err, new(*models.InvalidEntityError))

		list, err := s.Products.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, s.Products.Delete(ctx, pump.ID))
		assert.True(t, models.IsNotFound(s.Products.Delete(ctx, pump.ID)))
	})
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryProducts()
	p, err := repo.Save(ctx, models.Product{SKU: "S", Name: "Stent", Category: models.CategoryConsumables,
		BulkTiers: []models.PriceTier{{MinQuantity: 10, UnitPrice: money("5")}}})
	require.NoError(t, err)

	p.BulkTiers[0].MinQuantity = 999
	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, got.BulkTiers[0].MinQuantity)
}

func TestMemory_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryCustomers().Save(ctx, models.Customer{Name: "x", Type: models.CustomerTypeClinic, Segment: models.SegmentEnterprise})
	assert.ErrorIs(t, err, context.Canceled)
}

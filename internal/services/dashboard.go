package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/repository"
)

// DefaultActivityLimit caps the activity feed.
const DefaultActivityLimit = 10

type DashboardService struct {
	store   repository.Store
	taxRate decimal.Decimal
	now     func() time.Time
}

type Counts struct {
	Customers int `json:"customers"`
	Deals     int `json:"deals"`
	Proposals int `json:"proposals"`
	Products  int `json:"products"`
}

type StatusRow struct {
	Status models.ProposalStatus `json:"status"`
	pipeline.StatusTotal
}

// Dashboard is the overview page.
type Dashboard struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Counts      Counts              `json:"counts"`
	Stages      []pipeline.StageRow `json:"stages"`
	Forecast    pipeline.Forecast   `json:"forecast"`
	Proposals   []StatusRow         `json:"proposals"`
	LowStock    []models.Product    `json:"low_stock"`
	Activity    []models.Activity   `json:"activity"`
}

// Build assembles the dashboard from the whole store. limit caps the
// activity feed; zero or less means DefaultActivityLimit.
func (s *DashboardService) Build(ctx context.Context, limit int) (Dashboard, error) {
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	customers, err := s.store.Customers.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	deals, err := s.store.Deals.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	proposals, err := s.store.Proposals.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	products, err := s.store.Products.List(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	summary, err := pipeline.GroupByStage(deals)
	if err != nil {
		return Dashboard{}, err
	}
	forecast, err := pipeline.ComputeForecast(deals)
	if err != nil {
		return Dashboard{}, err
	}
	byStatus, err := pipeline.GroupProposalsByStatus(proposals, s.taxRate)
	if err != nil {
		return Dashboard{}, err
	}
	statusRows := make([]StatusRow, 0, len(models.ProposalStatuses))
	for _, st := range models.ProposalStatuses {
		statusRows = append(statusRows, StatusRow{Status: st, StatusTotal: byStatus[st]})
	}

	lowStock := []models.Product{}
	for _, p := range products {
		if pipeline.NeedsReorder(p) {
			lowStock = append(lowStock, p)
		}
	}

	customers = pipeline.RollupCustomers(customers, deals)
	activity, err := s.activity(ctx, customers, deals, proposals, limit)
	if err != nil {
		return Dashboard{}, err
	}

	return Dashboard{
		GeneratedAt: s.now().UTC(),
		Counts: Counts{
			Customers: len(customers),
			Deals:     len(deals),
			Proposals: len(proposals),
			Products:  len(products),
		},
		Stages:    summary.Rows(),
		Forecast:  forecast,
		Proposals: statusRows,
		LowStock:  lowStock,
		Activity:  activity,
	}, nil
}

// activity merges customer contacts, deal stage moves and proposal history
// into one feed, newest first.
func (s *DashboardService) activity(ctx context.Context, customers []models.Customer, deals []models.Deal, proposals []models.Proposal, limit int) ([]models.Activity, error) {
	byID := make(map[string]*models.Customer, len(customers))
	for i := range customers {
		byID[customers[i].ID] = &customers[i]
	}

	feed := []models.Activity{}
	for _, c := range customers {
		if !c.LastContact.IsZero() {
			feed = append(feed, models.NewActivity(c.LastContact, "", "contacted", models.CustomerDetail{Customer: c}))
		}
	}
	for _, d := range deals {
		changes, err := s.store.Deals.StageChanges(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		detail := models.DealDetail{Deal: d, Customer: byID[d.CustomerID]}
		for _, ch := range changes {
			feed = append(feed, models.NewActivity(ch.ChangedAt, ch.Actor, "moved to "+string(ch.To), detail))
		}
	}
	for _, p := range proposals {
		totals, err := pipeline.ProposalTotals(p, s.taxRate)
		if err != nil {
			return nil, err
		}
		detail := models.ProposalDetail{Proposal: p, Total: totals.Total}
		for _, e := range p.History {
			feed = append(feed, models.NewActivity(e.At, e.Actor, e.Action, detail))
		}
	}

	sort.SliceStable(feed, func(i, j int) bool { return feed[i].At.After(feed[j].At) })
	if len(feed) > limit {
		feed = feed[:limit]
	}
	return feed, nil
}

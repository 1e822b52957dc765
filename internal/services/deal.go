package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/query"
	"github.com/diewo77/medcrm/internal/repository"
)

type DealService struct {
	store   repository.Store
	querier query.Querier
	orphans query.OrphanPolicy
	log     *zap.Logger
	now     func() time.Time
}

// Create stores a new deal for an existing customer. The deal starts in
// Lead unless d.Stage is set.
func (s *DealService) Create(ctx context.Context, d models.Deal) (models.Deal, error) {
	if _, err := s.store.Customers.Get(ctx, d.CustomerID); err != nil {
		return models.Deal{}, err
	}
	d.ID = ""
	d, err := models.NewDeal(d)
	if err != nil {
		return models.Deal{}, err
	}
	saved, err := s.store.Deals.Save(ctx, d)
	if err != nil {
		return models.Deal{}, err
	}
	s.log.Info("deal created",
		zap.String("deal_id", saved.ID),
		zap.String("customer_id", saved.CustomerID),
		zap.String("stage", string(saved.Stage)),
		zap.String("value", saved.Value.String()))
	return saved, nil
}

// Update replaces the editable fields of a deal. A stage change is recorded
// the same way MoveStage records it.
func (s *DealService) Update(ctx context.Context, id string, d models.Deal, actor string) (models.Deal, error) {
	existing, err := s.store.Deals.Get(ctx, id)
	if err != nil {
		return models.Deal{}, err
	}
	if d.CustomerID != existing.CustomerID {
		if _, err := s.store.Customers.Get(ctx, d.CustomerID); err != nil {
			return models.Deal{}, err
		}
	}
	d.ID = existing.ID
	d.CreatedAt = existing.CreatedAt
	if d.Stage == "" {
		d.Stage = existing.Stage
	}
	if err := models.ValidateDeal(d); err != nil {
		return models.Deal{}, err
	}
	saved, err := s.store.Deals.Save(ctx, d)
	if err != nil {
		return models.Deal{}, err
	}
	if saved.Stage != existing.Stage {
		if err := s.recordMove(ctx, saved.ID, existing.Stage, saved.Stage, actor); err != nil {
			return models.Deal{}, err
		}
	}
	return saved, nil
}

// MoveStage sets the deal's stage. Any stage may follow any other.
func (s *DealService) MoveStage(ctx context.Context, id string, to models.Stage, actor string) (models.Deal, error) {
	if !to.Valid() {
		return models.Deal{}, &models.InvalidEntityError{Entity: "deal", ID: id, Field: "stage", Rule: "enum"}
	}
	d, err := s.store.Deals.Get(ctx, id)
	if err != nil {
		return models.Deal{}, err
	}
	if d.Stage == to {
		return d, nil
	}
	from := d.Stage
	d.Stage = to
	saved, err := s.store.Deals.Save(ctx, d)
	if err != nil {
		return models.Deal{}, err
	}
	if err := s.recordMove(ctx, id, from, to, actor); err != nil {
		return models.Deal{}, err
	}
	return saved, nil
}

func (s *DealService) recordMove(ctx context.Context, id string, from, to models.Stage, actor string) error {
	err := s.store.Deals.AppendStageChange(ctx, models.DealStageChange{
		DealID:    id,
		From:      from,
		To:        to,
		Actor:     actor,
		ChangedAt: s.now().UTC(),
	})
	if err != nil {
		return err
	}
	s.log.Info("deal stage moved",
		zap.String("deal_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor", actor))
	return nil
}

// Delete removes the deal immediately.
func (s *DealService) Delete(ctx context.Context, id string) error {
	if err := s.store.Deals.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("deal deleted", zap.String("deal_id", id))
	return nil
}

// Get returns the deal with its customer. Customer is nil when the
// referenced customer no longer exists.
func (s *DealService) Get(ctx context.Context, id string) (models.DealDetail, error) {
	d, err := s.store.Deals.Get(ctx, id)
	if err != nil {
		return models.DealDetail{}, err
	}
	detail := models.DealDetail{Deal: d}
	c, err := s.store.Customers.Get(ctx, d.CustomerID)
	switch {
	case err == nil:
		detail.Customer = &c
	case !models.IsNotFound(err):
		return models.DealDetail{}, err
	}
	return detail, nil
}

// StageHistory lists the stage moves of a deal, oldest first.
func (s *DealService) StageHistory(ctx context.Context, id string) ([]models.DealStageChange, error) {
	if _, err := s.store.Deals.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.Deals.StageChanges(ctx, id)
}

// List returns every deal in storage order.
func (s *DealService) List(ctx context.Context) ([]models.Deal, error) {
	return s.store.Deals.List(ctx)
}

// Query filters and sorts deals, resolving customer names from the
// customer repository. An empty q.Orphans uses the service policy.
func (s *DealService) Query(ctx context.Context, q query.DealQuery) ([]models.Deal, error) {
	deals, err := s.store.Deals.List(ctx)
	if err != nil {
		return nil, err
	}
	customers, err := s.store.Customers.List(ctx)
	if err != nil {
		return nil, err
	}
	if q.Orphans == "" {
		q.Orphans = s.orphans
	}
	return s.querier.Deals(deals, q, query.CustomerIndex(customers))
}

// PipelineView is the stage board with its forecast.
type PipelineView struct {
	Stages   []pipeline.StageRow `json:"stages"`
	Forecast pipeline.Forecast   `json:"forecast"`
}

// Pipeline groups every deal by stage and forecasts the open ones.
func (s *DealService) Pipeline(ctx context.Context) (PipelineView, error) {
	deals, err := s.store.Deals.List(ctx)
	if err != nil {
		return PipelineView{}, err
	}
	summary, err := pipeline.GroupByStage(deals)
	if err != nil {
		return PipelineView{}, err
	}
	forecast, err := pipeline.ComputeForecast(deals)
	if err != nil {
		return PipelineView{}, err
	}
	return PipelineView{Stages: summary.Rows(), Forecast: forecast}, nil
}

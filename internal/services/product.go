package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/query"
	"github.com/diewo77/medcrm/internal/repository"
)

type ProductService struct {
	store   repository.Store
	querier query.Querier
	log     *zap.Logger
}

func (s *ProductService) Create(ctx context.Context, p models.Product) (models.Product, error) {
	p.ID = ""
	p, err := models.NewProduct(p)
	if err != nil {
		return models.Product{}, err
	}
	saved, err := s.store.Products.Save(ctx, p)
	if err != nil {
		return models.Product{}, err
	}
	s.log.Info("product created", zap.String("product_id", saved.ID), zap.String("sku", saved.SKU))
	return saved, nil
}

// Update replaces a product, including its bulk tiers.
func (s *ProductService) Update(ctx context.Context, id string, p models.Product) (models.Product, error) {
	existing, err := s.store.Products.Get(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	saved, err := s.store.Products.Save(ctx, p)
	if err != nil {
		return models.Product{}, err
	}
	s.log.Info("product updated", zap.String("product_id", id))
	return saved, nil
}

func (s *ProductService) Get(ctx context.Context, id string) (models.Product, error) {
	return s.store.Products.Get(ctx, id)
}

func (s *ProductService) List(ctx context.Context) ([]models.Product, error) {
	return s.store.Products.List(ctx)
}

func (s *ProductService) Query(ctx context.Context, q query.ProductQuery) ([]models.Product, error) {
	products, err := s.store.Products.List(ctx)
	if err != nil {
		return nil, err
	}
	return s.querier.Products(products, q)
}

func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.store.Products.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.String("product_id", id))
	return nil
}

// Quote is the catalog price of a quantity of one product.
type Quote struct {
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice models.Money `json:"unit_price"`
	Amount    models.Money `json:"amount"`
}

// Quote prices qty units using the product's bulk tiers.
func (s *ProductService) Quote(ctx context.Context, id string, qty int) (Quote, error) {
	lookup := func(id string) (models.Product, error) { return s.store.Products.Get(ctx, id) }
	it, err := pipeline.ItemFromProduct(lookup, id, qty, models.Money{})
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		ProductID: it.ProductID,
		Quantity:  it.Quantity,
		UnitPrice: it.UnitPrice,
		Amount:    pipeline.LineTotal(it),
	}, nil
}

// Package services applies explicit user actions to the CRM records and
// derives the views the HTTP layer returns.
package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/diewo77/medcrm/internal/config"
	"github.com/diewo77/medcrm/internal/logging"
	"github.com/diewo77/medcrm/internal/pipeline"
	"github.com/diewo77/medcrm/internal/query"
	"github.com/diewo77/medcrm/internal/repository"
)

var (
	// ErrCustomerHasDeals rejects deleting a customer that still has deals
	// under the reject policy.
	ErrCustomerHasDeals = errors.New("customer has deals")
	// ErrProposalLocked rejects editing a proposal whose status no longer
	// allows it.
	ErrProposalLocked = errors.New("proposal is locked")
)

// DeletePolicy decides what deleting a customer does to its deals.
type DeletePolicy string

const (
	DeleteReject  DeletePolicy = "reject"
	DeleteCascade DeletePolicy = "cascade"
)

// ParseDeletePolicy maps "" to DeleteReject.
func ParseDeletePolicy(s string) (DeletePolicy, error) {
	switch p := DeletePolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DeleteReject, nil
	case DeleteReject, DeleteCascade:
		return p, nil
	}
	return "", fmt.Errorf("unknown customer delete policy %q", s)
}

// Options are the business settings shared by every service.
type Options struct {
	TaxRate      decimal.Decimal
	Sorter       pipeline.Sorter
	DeletePolicy DeletePolicy
	Orphans      query.OrphanPolicy
}

// DefaultOptions uses the 18% rate, English collation, reject-on-delete
// and orphan exclusion.
func DefaultOptions() Options {
	return Options{
		TaxRate:      pipeline.DefaultTaxRate,
		Sorter:       pipeline.DefaultSorter,
		DeletePolicy: DeleteReject,
		Orphans:      query.OrphanExclude,
	}
}

// OptionsFromConfig parses the pipeline settings loaded from the environment.
func OptionsFromConfig(pc config.PipelineConfig) (Options, error) {
	sorter, err := pipeline.NewSorter(pc.Locale)
	if err != nil {
		return Options{}, err
	}
	policy, err := ParseDeletePolicy(pc.CustomerDeletePolicy)
	if err != nil {
		return Options{}, err
	}
	orphans, err := query.ParseOrphanPolicy(pc.QueryOrphans)
	if err != nil {
		return Options{}, err
	}
	return Options{TaxRate: pc.TaxRate, Sorter: sorter, DeletePolicy: policy, Orphans: orphans}, nil
}

// Services bundles one service per resource over a shared store.
type Services struct {
	Customers *CustomerService
	Deals     *DealService
	Proposals *ProposalService
	Products  *ProductService
	Dashboard *DashboardService
}

// New wires every service to store.
func New(store repository.Store, opts Options, log *zap.Logger) *Services {
	log = logging.OrNop(log)
	if opts.DeletePolicy == "" {
		opts.DeletePolicy = DeleteReject
	}
	if opts.Orphans == "" {
		opts.Orphans = query.OrphanExclude
	}
	q := query.New(opts.Sorter)
	return &Services{
		Customers: &CustomerService{store: store, querier: q, policy: opts.DeletePolicy, log: log.Named("customers")},
		Deals:     &DealService{store: store, querier: q, orphans: opts.Orphans, log: log.Named("deals"), now: time.Now},
		Proposals: &ProposalService{store: store, taxRate: opts.TaxRate, log: log.Named("proposals"), now: time.Now},
		Products:  &ProductService{store: store, querier: q, log: log.Named("products")},
		Dashboard: &DashboardService{store: store, taxRate: opts.TaxRate, now: time.Now},
	}
}

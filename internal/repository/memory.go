package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/diewo77/medcrm/internal/models"
)

// ErrDuplicate is returned when a unique key such as a product SKU is taken.
var ErrDuplicate = errors.New("duplicate key")

// NewMemoryStore returns an empty in-memory Store.
func NewMemoryStore() Store {
	customers, deals := NewMemoryCustomers(), NewMemoryDeals()
	proposals, products := NewMemoryProposals(), NewMemoryProducts()
	return Store{
		Customers: customers,
		Deals:     deals,
		Proposals: proposals,
		Products:  products,
		Tx:        &memoryTx{tables: []snapshotter{customers, deals, proposals, products}},
	}
}

type snapshotter interface {
	// snapshot copies the current contents and returns a func restoring them.
	snapshot() (restore func())
}

// memoryTx serializes transactions and rolls every table back when fn
// fails. Writes made outside a transaction while one is rolled back are
// lost with it.
type memoryTx struct {
	mu     sync.Mutex
	tables []snapshotter
}

func (m *memoryTx) InTx(ctx context.Context, s Store, fn func(tx Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	restores := make([]func(), len(m.tables))
	for i, t := range m.tables {
		restores[i] = t.snapshot()
	}
	if err := fn(s); err != nil {
		for _, restore := range restores {
			restore()
		}
		return err
	}
	return nil
}

// table is an insertion-ordered map safe for concurrent use. Values are
// copied in and out through clone.
type table[T any] struct {
	kind  string
	clone func(T) T

	mu    sync.RWMutex
	rows  map[string]T
	order []string
}

func newTable[T any](kind string, clone func(T) T) *table[T] {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	return &table[T]{kind: kind, clone: clone, rows: make(map[string]T)}
}

func (t *table[T]) list(keep func(T) bool) []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		v := t.rows[id]
		if keep == nil || keep(v) {
			out = append(out, t.clone(v))
		}
	}
	return out
}

func (t *table[T]) get(id string) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.rows[id]
	if !ok {
		var zero T
		return zero, &models.NotFoundError{Kind: t.kind, ID: id}
	}
	return t.clone(v), nil
}

// put stores v under id. merge receives the previous value, if any, and
// may adjust v before it is stored; a non-nil error aborts the write.
func (t *table[T]) put(id string, v T, merge func(v *T, prev *T) error) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, exists := t.rows[id]
	var p *T
	if exists {
		p = &prev
	}
	if merge != nil {
		if err := merge(&v, p); err != nil {
			var zero T
			return zero, err
		}
	}
	if !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = t.clone(v)
	return t.clone(v), nil
}

func (t *table[T]) snapshot() func() {
	t.mu.RLock()
	rows := make(map[string]T, len(t.rows))
	for id, v := range t.rows {
		rows[id] = t.clone(v)
	}
	order := append([]string(nil), t.order...)
	t.mu.RUnlock()
	return func() {
		t.mu.Lock()
		t.rows, t.order = rows, order
		t.mu.Unlock()
	}
}

func (t *table[T]) delete(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return &models.NotFoundError{Kind: t.kind, ID: id}
	}
	delete(t.rows, id)
	for i, o := range t.order {
		if o == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return nil
}

func stamp(created, updated *time.Time, prevCreated *time.Time) {
	now := time.Now().UTC()
	switch {
	case prevCreated != nil:
		*created = *prevCreated
	case created.IsZero():
		*created = now
	}
	*updated = now
}

// MemoryCustomers is an in-memory CustomerRepository.
type MemoryCustomers struct{ t *table[models.Customer] }

func NewMemoryCustomers() *MemoryCustomers {
	return &MemoryCustomers{t: newTable[models.Customer]("customer", nil)}
}

func (r *MemoryCustomers) List(ctx context.Context) ([]models.Customer, error) {
	return r.t.list(nil), ctx.Err()
}

func (r *MemoryCustomers) Get(ctx context.Context, id string) (models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return models.Customer{}, err
	}
	return r.t.get(id)
}

func (r *MemoryCustomers) Save(ctx context.Context, c models.Customer) (models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return models.Customer{}, err
	}
	if err := prepareCustomer(&c); err != nil {
		return models.Customer{}, err
	}
	return r.t.put(c.ID, c, func(v, prev *models.Customer) error {
		var pc *time.Time
		if prev != nil {
			pc = &prev.CreatedAt
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, pc)
		return nil
	})
}

func (r *MemoryCustomers) snapshot() func() { return r.t.snapshot() }

func (r *MemoryCustomers) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.t.delete(id)
}

// MemoryDeals is an in-memory DealRepository.
type MemoryDeals struct {
	t *table[models.Deal]

	mu      sync.RWMutex
	changes map[string][]models.DealStageChange
}

func NewMemoryDeals() *MemoryDeals {
	return &MemoryDeals{
		t:       newTable[models.Deal]("deal", nil),
		changes: make(map[string][]models.DealStageChange),
	}
}

func (r *MemoryDeals) List(ctx context.Context) ([]models.Deal, error) {
	return r.t.list(nil), ctx.Err()
}

func (r *MemoryDeals) ListByCustomer(ctx context.Context, customerID string) ([]models.Deal, error) {
	return r.t.list(func(d models.Deal) bool { return d.CustomerID == customerID }), ctx.Err()
}

func (r *MemoryDeals) Get(ctx context.Context, id string) (models.Deal, error) {
	if err := ctx.Err(); err != nil {
		return models.Deal{}, err
	}
	return r.t.get(id)
}

func (r *MemoryDeals) Save(ctx context.Context, d models.Deal) (models.Deal, error) {
	if err := ctx.Err(); err != nil {
		return models.Deal{}, err
	}
	if err := prepareDeal(&d); err != nil {
		return models.Deal{}, err
	}
	return r.t.put(d.ID, d, func(v, prev *models.Deal) error {
		var pc *time.Time
		if prev != nil {
			pc = &prev.CreatedAt
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, pc)
		return nil
	})
}

// Delete removes the deal and its stage history.
func (r *MemoryDeals) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.t.delete(id); err != nil {
		return err
	}
	r.mu.Lock()
	delete(r.changes, id)
	r.mu.Unlock()
	return nil
}

func (r *MemoryDeals) snapshot() func() {
	restoreDeals := r.t.snapshot()
	r.mu.RLock()
	changes := make(map[string][]models.DealStageChange, len(r.changes))
	for id, ch := range r.changes {
		changes[id] = append([]models.DealStageChange(nil), ch...)
	}
	r.mu.RUnlock()
	return func() {
		restoreDeals()
		r.mu.Lock()
		r.changes = changes
		r.mu.Unlock()
	}
}

func (r *MemoryDeals) AppendStageChange(ctx context.Context, ch models.DealStageChange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := r.t.get(ch.DealID); err != nil {
		return err
	}
	prepareStageChange(&ch)
	if ch.ChangedAt.IsZero() {
		ch.ChangedAt = time.Now().UTC()
	}
	r.mu.Lock()
	r.changes[ch.DealID] = append(r.changes[ch.DealID], ch)
	r.mu.Unlock()
	return nil
}

func (r *MemoryDeals) StageChanges(ctx context.Context, dealID string) ([]models.DealStageChange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.DealStageChange{}, r.changes[dealID]...), nil
}

// MemoryProposals is an in-memory ProposalRepository.
type MemoryProposals struct{ t *table[models.Proposal] }

func NewMemoryProposals() *MemoryProposals {
	return &MemoryProposals{t: newTable("proposal", cloneProposal)}
}

func (r *MemoryProposals) List(ctx context.Context) ([]models.Proposal, error) {
	return r.t.list(nil), ctx.Err()
}

func (r *MemoryProposals) ListByDeal(ctx context.Context, dealID string) ([]models.Proposal, error) {
	return r.t.list(func(p models.Proposal) bool { return p.DealID == dealID }), ctx.Err()
}

func (r *MemoryProposals) Get(ctx context.Context, id string) (models.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return models.Proposal{}, err
	}
	return r.t.get(id)
}

func (r *MemoryProposals) Save(ctx context.Context, p models.Proposal) (models.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return models.Proposal{}, err
	}
	p = cloneProposal(p)
	if err := prepareProposal(&p); err != nil {
		return models.Proposal{}, err
	}
	return r.t.put(p.ID, p, func(v, prev *models.Proposal) error {
		var pc *time.Time
		if prev != nil {
			pc = &prev.CreatedAt
			v.History = mergeHistory(prev.History, v.History)
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, pc)
		return nil
	})
}

func (r *MemoryProposals) snapshot() func() { return r.t.snapshot() }

func (r *MemoryProposals) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.t.delete(id)
}

// MemoryProducts is an in-memory ProductRepository. SKUs are unique.
type MemoryProducts struct{ t *table[models.Product] }

func NewMemoryProducts() *MemoryProducts {
	return &MemoryProducts{t: newTable("product", cloneProduct)}
}

func (r *MemoryProducts) List(ctx context.Context) ([]models.Product, error) {
	return r.t.list(nil), ctx.Err()
}

func (r *MemoryProducts) Get(ctx context.Context, id string) (models.Product, error) {
	if err := ctx.Err(); err != nil {
		return models.Product{}, err
	}
	return r.t.get(id)
}

func (r *MemoryProducts) Save(ctx context.Context, p models.Product) (models.Product, error) {
	if err := ctx.Err(); err != nil {
		return models.Product{}, err
	}
	p = cloneProduct(p)
	if err := prepareProduct(&p); err != nil {
		return models.Product{}, err
	}
	return r.t.put(p.ID, p, func(v, prev *models.Product) error {
		for _, id := range r.t.order {
			if other := r.t.rows[id]; other.ID != v.ID && other.SKU == v.SKU {
				return fmt.Errorf("product sku %q: %w", v.SKU, ErrDuplicate)
			}
		}
		var pc *time.Time
		if prev != nil {
			pc = &prev.CreatedAt
		}
		stamp(&v.CreatedAt, &v.UpdatedAt, pc)
		return nil
	})
}

func (r *MemoryProducts) snapshot() func() { return r.t.snapshot() }

func (r *MemoryProducts) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.t.delete(id)
}

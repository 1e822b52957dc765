package query

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/pipeline"
)

func money(s string) models.Money { return decimal.RequireFromString(s) }

func fixtures() ([]models.Customer, []models.Deal) {
	customers := []models.Customer{
		{ID: "c1", Name: "Apollo Hospitals", Type: models.CustomerTypeHospital, Segment: models.SegmentEnterprise, Email: "buyer@apollo.example", Phone: "+91 44 2829 3333", City: "Chennai"},
		{ID: "c2", Name: "Fortis Healthcare", Type: models.CustomerTypeHospital, Segment: models.SegmentMidMarket, Email: "ops@fortis.example", City: "Gurugram"},
		{ID: "c3", Name: "Metro Diagnostics Lab", Type: models.CustomerTypeLaboratory, Segment: models.SegmentSmallBusiness, Phone: "+91 22 5555 0100", City: "Mumbai"},
	}
	deals := []models.Deal{
		{ID: "d1", CustomerID: "c1", Title: "Echo", Stage: models.StageLead, Value: money("1000")},
		{ID: "d2", CustomerID: "c2", Title: "Scan", Stage: models.StageProposal, Value: money("5000")},
		{ID: "d3", CustomerID: "c1", Title: "Valve", Stage: models.StageLead, Value: money("2000")},
	}
	return customers, deals
}

func titles(deals []models.Deal) []string {
	out := make([]string, len(deals))
	for i, d := range deals {
		out[i] = d.Title
	}
	return out
}

func TestQueryDeals_SearchByCustomerSortedByValue(t *testing.T) {
	customers, deals := fixtures()
	got, err := QueryDeals(deals, DealQuery{SearchText: "apollo", SortField: "value", SortOrder: pipeline.Desc}, CustomerIndex(customers))
	require.NoError(t, err)
	assert.Equal(t, []string{"Valve", "Echo"}, titles(got))
	assert.Equal(t, []string{"Echo", "Scan", "Valve"}, titles(deals), "input must not be mutated")
}

func TestQueryDeals_Filters(t *testing.T) {
	customers, deals := fixtures()
	lookup := CustomerIndex(customers)
	tests := []struct {
		name string
		q    DealQuery
		want []string
	}{
		{"no filters keeps input order", DealQuery{}, []string{"Echo", "Scan", "Valve"}},
		{"all sentinel", DealQuery{Stage: All}, []string{"Echo", "Scan", "Valve"}},
		{"all sentinel any case", DealQuery{Stage: "ALL"}, []string{"Echo", "Scan", "Valve"}},
		{"stage", DealQuery{Stage: "Lead"}, []string{"Echo", "Valve"}},
		{"stage without matches", DealQuery{Stage: "Closed Won"}, []string{}},
		{"title match", DealQuery{SearchText: "sCaN"}, []string{"Scan"}},
		{"customer match", DealQuery{SearchText: "fortis"}, []string{"Scan"}},
		{"search trims spaces", DealQuery{SearchText: "  valve "}, []string{"Valve"}},
		{"search and stage", DealQuery{SearchText: "apollo", Stage: "Proposal"}, []string{}},
		{"no match", DealQuery{SearchText: "mri"}, []string{}},
		{"sort by title desc", DealQuery{SortField: "title", SortOrder: pipeline.Desc}, []string{"Valve", "Scan", "Echo"}},
		{"sort order defaults to asc", DealQuery{SortField: "value"}, []string{"Echo", "Valve", "Scan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QueryDeals(deals, tt.q, lookup)
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(got))
		})
	}
}

func TestQueryDeals_FilterThenSortComposes(t *testing.T) {
	customers, deals := fixtures()
	deals = append(deals,
		models.Deal{ID: "d4", CustomerID: "c3", Title: "Apollo analyser", Stage: models.StageQualified, Value: money("750")},
		models.Deal{ID: "d5", CustomerID: "c1", Title: "Stent", Stage: models.StageClosedWon, Value: money("2000")},
		models.Deal{ID: "d6", CustomerID: "c2", Title: "Monitor", Stage: models.StageLead, Value: money("300")},
	)
	lookup := CustomerIndex(customers)

	for _, field := range pipeline.DealSortFields {
		for _, order := range []pipeline.Order{pipeline.Asc, pipeline.Desc} {
			filtered, err := QueryDeals(deals, DealQuery{SearchText: "apollo"}, lookup)
			require.NoError(t, err)
			sorted, err := QueryDeals(deals, DealQuery{SearchText: "apollo", SortField: field, SortOrder: order}, lookup)
			require.NoError(t, err)

			// Same records, possibly reordered.
			byID := func(a, b models.Deal) int {
				switch {
				case a.ID < b.ID:
					return -1
				case a.ID > b.ID:
					return 1
				}
				return 0
			}
			a, b := slices.Clone(filtered), slices.Clone(sorted)
			slices.SortFunc(a, byID)
			slices.SortFunc(b, byID)
			if diff := cmp.Diff(a, b); diff != "" {
				t.Fatalf("%s %s: sorted result is not a permutation of the filtered one:\n%s", field, order, diff)
			}

			// And sorting the filtered result directly agrees.
			want, err := pipeline.SortDeals(filtered, field, order)
			require.NoError(t, err)
			assert.Equal(t, titles(want), titles(sorted), "%s %s", field, order)
		}
	}
}

func TestQueryDeals_Orphans(t *testing.T) {
	customers, deals := fixtures()
	deals = append(deals, models.Deal{ID: "d9", CustomerID: "gone", Title: "Orphan echo", Stage: models.StageLead, Value: money("10")})
	lookup := CustomerIndex(customers)

	got, err := QueryDeals(deals, DealQuery{SearchText: "echo"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"Echo"}, titles(got), "default policy excludes orphans")

	got, err = QueryDeals(deals, DealQuery{SearchText: "echo", Orphans: OrphanKeep}, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"Echo", "Orphan echo"}, titles(got))

	_, err = QueryDeals(deals, DealQuery{Orphans: OrphanFail}, lookup)
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
	var nf *models.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "gone", nf.ID)

	got, err = QueryDeals(deals, DealQuery{SearchText: "echo"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Echo", "Orphan echo"}, titles(got), "nil lookup searches titles only")

	_, err = QueryDeals(deals, DealQuery{Orphans: "ignore"}, lookup)
	var ie *models.InvalidEntityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "orphans", ie.Field)
}

func TestQueryDeals_LookupFailurePropagates(t *testing.T) {
	_, deals := fixtures()
	boom := errors.New("customer store unavailable")
	lookup := func(string) (models.Customer, error) { return models.Customer{}, boom }
	for _, policy := range []OrphanPolicy{OrphanExclude, OrphanKeep, OrphanFail} {
		_, err := QueryDeals(deals, DealQuery{SearchText: "x", Orphans: policy}, lookup)
		assert.ErrorIs(t, err, boom, policy)
	}
}

func TestQueryDeals_Errors(t *testing.T) {
	customers, deals := fixtures()
	lookup := CustomerIndex(customers)

	_, err := QueryDeals(deals, DealQuery{Stage: "Won"}, lookup)
	var ie *models.InvalidEntityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "stage", ie.Field)

	_, err = QueryDeals(deals, DealQuery{SortField: "colour"}, lookup)
	assert.ErrorAs(t, err, new(*pipeline.UnsupportedSortFieldError))

	_, err = QueryDeals(deals, DealQuery{SortField: "value", SortOrder: "up"}, lookup)
	assert.ErrorAs(t, err, new(*pipeline.UnsupportedSortOrderError))
}

func TestQueryDeals_EmptyInput(t *testing.T) {
	got, err := QueryDeals(nil, DealQuery{SearchText: "x", SortField: "value"}, CustomerIndex(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryCustomers(t *testing.T) {
	customers, _ := fixtures()
	names := func(cs []models.Customer) []string {
		out := make([]string, len(cs))
		for i, c := range cs {
			out[i] = c.Name
		}
		return out
	}
	tests := []struct {
		name string
		q    CustomerQuery
		want []string
	}{
		{"all", CustomerQuery{Type: All, Segment: All}, []string{"Apollo Hospitals", "Fortis Healthcare", "Metro Diagnostics Lab"}},
		{"by name", CustomerQuery{SearchText: "METRO"}, []string{"Metro Diagnostics Lab"}},
		{"by email", CustomerQuery{SearchText: "ops@"}, []string{"Fortis Healthcare"}},
		{"by phone", CustomerQuery{SearchText: "5555"}, []string{"Metro Diagnostics Lab"}},
		{"by type", CustomerQuery{Type: "Hospital"}, []string{"Apollo Hospitals", "Fortis Healthcare"}},
		{"by segment", CustomerQuery{Segment: "Mid-Market"}, []string{"Fortis Healthcare"}},
		{"type and segment", CustomerQuery{Type: "Laboratory", Segment: "Enterprise"}, []string{}},
		{"sorted by segment desc", CustomerQuery{SortField: "segment", SortOrder: pipeline.Desc}, []string{"Metro Diagnostics Lab", "Fortis Healthcare", "Apollo Hospitals"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := QueryCustomers(customers, tt.q)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}

	_, err := QueryCustomers(customers, CustomerQuery{Segment: "Huge"})
	assert.ErrorAs(t, err, new(*models.InvalidEntityError))
}

func TestQueryProducts(t *testing.T) {
	products := []models.Product{
		{ID: "p1", SKU: "ECHO-100", Name: "Échographe portable", Category: models.CategoryDiagnosticImaging, BasePrice: money("12000"), InStock: 2, ReorderPoint: 3},
		{ID: "p2", SKU: "MON-7", Name: "Bedside monitor", Category: models.CategoryPatientMonitoring, BasePrice: money("900"), InStock: 40, ReorderPoint: 10},
		{ID: "p3", SKU: "GLV-M", Name: "Nitrile gloves", Category: models.CategoryConsumables, BasePrice: money("8"), InStock: 10, ReorderPoint: 10},
	}
	skus := func(ps []models.Product) []string {
		out := make([]string, len(ps))
		for i, p := range ps {
			out[i] = p.SKU
		}
		return out
	}

	got, err := QueryProducts(products, ProductQuery{SearchText: "ÉCHO"})
	require.NoError(t, err)
	assert.Equal(t, []string{"ECHO-100"}, skus(got))

	got, err = QueryProducts(products, ProductQuery{SearchText: "mon-"})
	require.NoError(t, err)
	assert.Equal(t, []string{"MON-7"}, skus(got))

	got, err = QueryProducts(products, ProductQuery{Category: "Consumables"})
	require.NoError(t, err)
	assert.Equal(t, []string{"GLV-M"}, skus(got))

	got, err = QueryProducts(products, ProductQuery{LowStock: true, SortField: "base_price", SortOrder: pipeline.Desc})
	require.NoError(t, err)
	assert.Equal(t, []string{"ECHO-100", "GLV-M"}, skus(got))

	_, err = QueryProducts(products, ProductQuery{Category: "Robots"})
	assert.ErrorAs(t, err, new(*models.InvalidEntityError))
}

func TestQuerier_Locale(t *testing.T) {
	deals := []models.Deal{{Title: "zèbre"}, {Title: "öl"}, {Title: "ost"}}
	sv := New(pipeline.Sorter{Locale: language.Swedish})
	got, err := sv.Deals(deals, DealQuery{SortField: "title"}, nil)
	require.NoError(t, err)
	// Swedish collates ö after z.
	assert.Equal(t, []string{"ost", "zèbre", "öl"}, titles(got))

	got, err = QueryDeals(deals, DealQuery{SortField: "title"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"öl", "ost", "zèbre"}, titles(got))
}

func TestQuerier_SharedAcrossGoroutines(t *testing.T) {
	customers, deals := fixtures()
	lookup := CustomerIndex(customers)
	q := New(pipeline.DefaultSorter)
	want, err := q.Deals(deals, DealQuery{SearchText: "APOLLO", SortField: "title", SortOrder: pipeline.Desc}, lookup)
	require.NoError(t, err)
	require.Equal(t, []string{"Valve", "Echo"}, titles(want))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := q.Deals(deals, DealQuery{SearchText: "APOLLO", SortField: "title", SortOrder: pipeline.Desc}, lookup)
			if err != nil {
				t.Errorf("query: %v", err)
				return
			}
			if diff := cmp.Diff(titles(want), titles(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if _, err := q.Customers(customers, CustomerQuery{SearchText: "chennai"}); err != nil {
				t.Errorf("customers: %v", err)
			}
		}()
	}
	wg.Wait()
}

func TestParseOrphanPolicy(t *testing.T) {
	for in, want := range map[string]OrphanPolicy{"": OrphanExclude, "keep": OrphanKeep, " FAIL ": OrphanFail, "exclude": OrphanExclude} {
		got, err := ParseOrphanPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOrphanPolicy("drop")
	assert.Error(t, err)
}

package models

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func money(s string) Money { return decimal.RequireFromString(s) }

func TestNewDeal_DefaultsToLead(t *testing.T) {
	d, err := NewDeal(Deal{CustomerID: "c1", Title: "Echo", Value: money("1000")})
	if err != nil {
		t.Fatalf("NewDeal() error = %v", err)
	}
	if d.Stage != StageLead {
		t.Errorf("Stage = %q, want %q", d.Stage, StageLead)
	}
	if d.ID == "" {
		t.Error("expected an ID to be assigned")
	}
}

func TestNewDeal_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		deal  Deal
		field string
	}{
		{"negative value", Deal{CustomerID: "c1", Title: "x", Value: money("-1")}, "value"},
		{"probability above 100", Deal{CustomerID: "c1", Title: "x", Probability: 101}, "probability"},
		{"probability below 0", Deal{CustomerID: "c1", Title: "x", Probability: -5}, "probability"},
		{"unknown stage", Deal{CustomerID: "c1", Title: "x", Stage: "Won"}, "stage"},
		{"missing customer", Deal{Title: "x"}, "customer_id"},
		{"missing title", Deal{CustomerID: "c1"}, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDeal(tt.deal)
			var ie *InvalidEntityError
			if !errors.As(err, &ie) {
				t.Fatalf("expected InvalidEntityError, got %v", err)
			}
			if ie.Field != tt.field {
				t.Errorf("Field = %q, want %q", ie.Field, tt.field)
			}
			if ie.Entity != "deal" {
				t.Errorf("Entity = %q, want deal", ie.Entity)
			}
		})
	}
}

func TestStage_Ordinal(t *testing.T) {
	if len(Stages) != 6 {
		t.Fatalf("expected 6 stages, got %d", len(Stages))
	}
	for i, s := range Stages {
		if s.Ordinal() != i {
			t.Errorf("%s.Ordinal() = %d, want %d", s, s.Ordinal(), i)
		}
	}
	if Stage("Won").Ordinal() != -1 {
		t.Error("unknown stage should have ordinal -1")
	}
	if !StageClosedLost.Closed() || StageNegotiation.Closed() {
		t.Error("Closed() mismatch")
	}
}

func TestNewCustomer_Invalid(t *testing.T) {
	base := Customer{Name: "Apollo", Type: CustomerTypeHospital, Segment: SegmentEnterprise}
	tests := []struct {
		name   string
		mutate func(*Customer)
		field  string
	}{
		{"health score above range", func(c *Customer) { c.HealthScore = 150 }, "health_score"},
		{"negative revenue", func(c *Customer) { c.TotalRevenue = money("-10") }, "total_revenue"},
		{"negative active deals", func(c *Customer) { c.ActiveDeals = -1 }, "active_deals"},
		{"bad type", func(c *Customer) { c.Type = "Pharmacy" }, "type"},
		{"bad segment", func(c *Customer) { c.Segment = "Huge" }, "segment"},
		{"bad email", func(c *Customer) { c.Email = "not-an-email" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			_, err := NewCustomer(c)
			var ie *InvalidEntityError
			if !errors.As(err, &ie) {
				t.Fatalf("expected InvalidEntityError, got %v", err)
			}
			if ie.Field != tt.field {
				t.Errorf("Field = %q, want %q", ie.Field, tt.field)
			}
		})
	}

	if _, err := NewCustomer(base); err != nil {
		t.Fatalf("valid customer rejected: %v", err)
	}
}

func TestNewProposalItem(t *testing.T) {
	tests := []struct {
		name    string
		item    ProposalItem
		field   string
		wantErr bool
	}{
		{"valid", ProposalItem{ProductID: "p1", Quantity: 2, UnitPrice: money("100"), Discount: money("10")}, "", false},
		{"discount equals line amount", ProposalItem{ProductID: "p1", Quantity: 1, UnitPrice: money("50"), Discount: money("50")}, "", false},
		{"zero quantity", ProposalItem{ProductID: "p1", Quantity: 0, UnitPrice: money("1")}, "quantity", true},
		{"negative price", ProposalItem{ProductID: "p1", Quantity: 1, UnitPrice: money("-1")}, "unit_price", true},
		{"discount above line amount", ProposalItem{ProductID: "p1", Quantity: 2, UnitPrice: money("10"), Discount: money("21")}, "discount", true},
		{"missing product", ProposalItem{Quantity: 1, UnitPrice: money("1")}, "product_id", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProposalItem(tt.item)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var ie *InvalidEntityError
			if !errors.As(err, &ie) {
				t.Fatalf("expected InvalidEntityError, got %v", err)
			}
			if ie.Field != tt.field {
				t.Errorf("Field = %q, want %q", ie.Field, tt.field)
			}
		})
	}
}

func TestNewProposal(t *testing.T) {
	p, err := NewProposal(Proposal{
		DealID: "d1",
		Items: []ProposalItem{
			{ProductID: "p1", Quantity: 1, UnitPrice: money("10")},
			{ProductID: "p2", Quantity: 3, UnitPrice: money("5")},
		},
	})
	if err != nil {
		t.Fatalf("NewProposal() error = %v", err)
	}
	if p.Status != ProposalDraft {
		t.Errorf("Status = %q, want Draft", p.Status)
	}
	for i, it := range p.Items {
		if it.ID == "" || it.ProposalID != p.ID || it.Position != i {
			t.Errorf("item %d not attached: %+v", i, it)
		}
	}

	_, err = NewProposal(Proposal{})
	var ie *InvalidEntityError
	if !errors.As(err, &ie) || ie.Field != "deal_id" {
		t.Fatalf("expected deal_id violation, got %v", err)
	}

	_, err = NewProposal(Proposal{CustomerID: "c1", Items: []ProposalItem{{ProductID: "p1", Quantity: -1}}})
	if !errors.As(err, &ie) || !strings.HasPrefix(ie.Field, "items[0]") {
		t.Fatalf("expected items[0] violation, got %v", err)
	}
}

func TestProposalStatus(t *testing.T) {
	tests := []struct {
		status ProposalStatus
		final  bool
	}{
		{ProposalDraft, false},
		{ProposalPendingReview, false},
		{ProposalSent, false},
		{ProposalUnderNegotiation, false},
		{ProposalAccepted, true},
		{ProposalRejected, true},
		{ProposalExpired, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if !tt.status.Valid() {
				t.Errorf("%q should be valid", tt.status)
			}
			if got := tt.status.Final(); got != tt.final {
				t.Errorf("Final() = %v, want %v", got, tt.final)
			}
		})
	}
	if ProposalStatus("Closed").Valid() {
		t.Error("unknown status reported valid")
	}
}

func TestNewProduct_DuplicateTiers(t *testing.T) {
	_, err := NewProduct(Product{
		SKU: "US-100", Name: "Ultrasound", Category: CategoryDiagnosticImaging, BasePrice: money("100"),
		BulkTiers: []PriceTier{
			{MinQuantity: 10, UnitPrice: money("90")},
			{MinQuantity: 10, UnitPrice: money("80")},
		},
	})
	var ie *InvalidEntityError
	if !errors.As(err, &ie) || ie.Field != "bulk_tiers" {
		t.Fatalf("expected bulk_tiers violation, got %v", err)
	}
}

func TestNotFoundError(t *testing.T) {
	err := error(&NotFoundError{Kind: "customer", ID: "c9"})
	if !errors.Is(err, ErrNotFound) || !IsNotFound(err) {
		t.Fatal("NotFoundError should match ErrNotFound")
	}
	if got := err.Error(); got != "customer c9 not found" {
		t.Errorf("Error() = %q", got)
	}
}

func TestDescribe(t *testing.T) {
	c := Customer{Name: "Apollo", Type: CustomerTypeHospital, Segment: SegmentEnterprise}
	tests := []struct {
		name string
		d    Detail
		want string
	}{
		{"customer", CustomerDetail{Customer: c}, "Apollo (Hospital, Enterprise)"},
		{"deal", DealDetail{Deal: Deal{Title: "Echo", Value: money("1000"), Stage: StageLead}, Customer: &c}, "Echo for Apollo: 1000.00 at Lead"},
		{"orphan deal", DealDetail{Deal: Deal{Title: "Echo", Value: money("1"), Stage: StageLead}}, "Echo for unknown customer: 1.00 at Lead"},
		{"proposal", ProposalDetail{Proposal: Proposal{Title: "Q1", Status: ProposalSent}, Total: money("260")}, "Proposal Q1 (Sent): 260.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.d); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
			a := NewActivity(c.LastContact, "ana", "created", tt.d)
			if a.Kind != tt.d.Kind() || a.Summary != tt.want {
				t.Errorf("NewActivity() = %+v", a)
			}
		})
	}
}

func TestDescribeNilSubject(t *testing.T) {
	if got := Describe(nil); got != "unknown subject" {
		t.Fatalf("Describe(nil) = %q", got)
	}
	a := NewActivity(Customer{}.LastContact, "ana", "created", nil)
	if a.Kind != "" || a.Summary != "unknown subject" {
		t.Fatalf("NewActivity(nil) = %+v", a)
	}
}

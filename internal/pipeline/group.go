package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/diewo77/medcrm/internal/models"
)

// StageTotal is the count and summed value of the deals in one stage.
type StageTotal struct {
	Count      int          `json:"count"`
	TotalValue models.Money `json:"total_value"`
}

// StageSummary always holds exactly one entry per stage.
type StageSummary map[models.Stage]StageTotal

// StageRow is a StageSummary entry in pipeline order.
type StageRow struct {
	Stage models.Stage `json:"stage"`
	StageTotal
}

// Rows returns the summary in pipeline order.
func (s StageSummary) Rows() []StageRow {
	rows := make([]StageRow, 0, len(models.Stages))
	for _, st := range models.Stages {
		rows = append(rows, StageRow{Stage: st, StageTotal: s[st]})
	}
	return rows
}

// GroupByStage counts deals and sums their value per stage. Stages without
// deals are present with zero count and value. The result does not depend
// on the order of deals.
func GroupByStage(deals []models.Deal) (StageSummary, error) {
	out := make(StageSummary, len(models.Stages))
	for _, st := range models.Stages {
		out[st] = StageTotal{TotalValue: decimal.Zero}
	}
	for _, d := range deals {
		if err := models.ValidateDeal(d); err != nil {
			return nil, err
		}
		t := out[d.Stage]
		t.Count++
		t.TotalValue = t.TotalValue.Add(d.Value)
		out[d.Stage] = t
	}
	return out, nil
}

// Forecast summarises the pipeline for the dashboard.
type Forecast struct {
	OpenDeals     int          `json:"open_deals"`
	OpenValue     models.Money `json:"open_value"`
	WeightedValue models.Money `json:"weighted_value"`
	WonValue      models.Money `json:"won_value"`
	LostValue     models.Money `json:"lost_value"`
	// WinRate is won / (won + lost) by count; zero when nothing has closed.
	WinRate float64 `json:"win_rate"`
}

// ComputeForecast weighs every open deal by its probability.
func ComputeForecast(deals []models.Deal) (Forecast, error) {
	f := Forecast{
		OpenValue:     decimal.Zero,
		WeightedValue: decimal.Zero,
		WonValue:      decimal.Zero,
		LostValue:     decimal.Zero,
	}
	hundred := decimal.NewFromInt(100)
	var won, lost int
	for _, d := range deals {
		if err := models.ValidateDeal(d); err != nil {
			return Forecast{}, err
		}
		switch d.Stage {
		case models.StageClosedWon:
			won++
			f.WonValue = f.WonValue.Add(d.Value)
		case models.StageClosedLost:
			lost++
			f.LostValue = f.LostValue.Add(d.Value)
		default:
			f.OpenDeals++
			f.OpenValue = f.OpenValue.Add(d.Value)
			f.WeightedValue = f.WeightedValue.Add(d.Value.Mul(decimal.NewFromInt(int64(d.Probability))).Div(hundred))
		}
	}
	f.WeightedValue = f.WeightedValue.Round(2)
	if won+lost > 0 {
		f.WinRate = float64(won) / float64(won+lost)
	}
	return f, nil
}

// StatusTotal is the count and summed grand total of proposals in one status.
type StatusTotal struct {
	Count int          `json:"count"`
	Total models.Money `json:"total"`
}

// GroupProposalsByStatus totals proposals per status; every status is present.
func GroupProposalsByStatus(proposals []models.Proposal, taxRate decimal.Decimal) (map[models.ProposalStatus]StatusTotal, error) {
	out := make(map[models.ProposalStatus]StatusTotal, len(models.ProposalStatuses))
	for _, st := range models.ProposalStatuses {
		out[st] = StatusTotal{Total: decimal.Zero}
	}
	for _, p := range proposals {
		if !p.Status.Valid() {
			return nil, &models.InvalidEntityError{Entity: "proposal", ID: p.ID, Field: "status", Rule: "enum"}
		}
		totals, err := ProposalTotals(p, taxRate)
		if err != nil {
			return nil, err
		}
		t := out[p.Status]
		t.Count++
		t.Total = t.Total.Add(totals.Total)
		out[p.Status] = t
	}
	return out, nil
}

// CustomerRollup aggregates one customer's deals.
type CustomerRollup struct {
	OpenDeals int          `json:"open_deals"`
	OpenValue models.Money `json:"open_value"`
	WonValue  models.Money `json:"won_value"`
}

// RollupByCustomer groups deals by customer ID. Customers without deals
// are absent from the result.
func RollupByCustomer(deals []models.Deal) map[string]CustomerRollup {
	out := make(map[string]CustomerRollup)
	for _, d := range deals {
		r, ok := out[d.CustomerID]
		if !ok {
			r = CustomerRollup{OpenValue: decimal.Zero, WonValue: decimal.Zero}
		}
		switch {
		case d.Stage == models.StageClosedWon:
			r.WonValue = r.WonValue.Add(d.Value)
		case !d.Stage.Closed():
			r.OpenDeals++
			r.OpenValue = r.OpenValue.Add(d.Value)
		}
		out[d.CustomerID] = r
	}
	return out
}

// RollupCustomers returns copies of customers with ActiveDeals set to their
// open deal count and TotalRevenue to their Closed Won value.
func RollupCustomers(customers []models.Customer, deals []models.Deal) []models.Customer {
	byCustomer := RollupByCustomer(deals)
	out := make([]models.Customer, len(customers))
	for i, c := range customers {
		r, ok := byCustomer[c.ID]
		if !ok {
			r = CustomerRollup{WonValue: decimal.Zero}
		}
		c.ActiveDeals = r.OpenDeals
		c.TotalRevenue = r.WonValue
		out[i] = c
	}
	return out
}

package workflow

import (
	"testing"

	"github.com/mmindustry/forge_backend/ledger"
	"github.com/shopspring/decimal"
)

func TestCostMatchedPair_ApportionsOverFullJobRun(t *testing.T) {
	// One job of 10 units (materials 1000, install 200), 6 sold at 300,
	// 3.6% sales tax.
	job := jobLot(1, 10, day(1))
	job.MaterialCostMarket = decimal.NewFromInt(1000)
	job.JobInstallCost = decimal.NewFromInt(200)
	sale := saleLot(1, 6, 300, day(2))

	pair := MatchedPair{Job: job, Sale: sale, Quantity: decimal.NewFromInt(6)}
	taxRate := decimal.RequireFromString("0.036")

	c := CostMatchedPair(pair, taxRate, ledger.CostBasisMarket)

	expect := map[string][2]decimal.Decimal{
		"revenue":          {c.Revenue, decimal.NewFromInt(1800)},
		"material cost":    {c.MaterialCost, decimal.NewFromInt(600)},
		"job install cost": {c.JobInstallCost, decimal.NewFromInt(120)},
		"tax amount":       {c.TaxAmount, decimal.RequireFromString("64.8")},
		"profit":           {c.Profit, decimal.RequireFromString("1015.2")},
		"margin percent":   {c.MarginPercent, decimal.RequireFromString("56.4")},
	}
	for name, pair := range expect {
		if !pair[0].Equal(pair[1]) {
			t.Errorf("%s: got %s, want %s", name, pair[0], pair[1])
		}
	}
}

func TestCostMatchedPair_ProfitIdentityHoldsExactly(t *testing.T) {
	job := jobLot(1, 7, day(1))
	job.MaterialCostMarket = decimal.RequireFromString("1234.5678")
	job.JobInstallCost = decimal.RequireFromString("99.99")
	sale := saleLot(1, 7, 0, day(2))
	sale.UnitPrice = decimal.RequireFromString("333.33")

	pair := MatchedPair{Job: job, Sale: sale, Quantity: decimal.NewFromInt(5)}
	c := CostMatchedPair(pair, decimal.RequireFromString("0.036"), ledger.CostBasisMarket)

	identity := c.Revenue.Sub(c.MaterialCost).Sub(c.JobInstallCost).Sub(c.TaxAmount)
	if !c.Profit.Equal(identity) {
		t.Fatalf("profit identity broken: profit=%s, revenue-costs-tax=%s", c.Profit, identity)
	}
}

func TestCostMatchedPair_ZeroRevenueHasZeroMargin(t *testing.T) {
	job := jobLot(1, 10, day(1))
	job.MaterialCostMarket = decimal.NewFromInt(1000)
	sale := saleLot(1, 6, 0, day(2))

	pair := MatchedPair{Job: job, Sale: sale, Quantity: decimal.NewFromInt(6)}
	c := CostMatchedPair(pair, decimal.RequireFromString("0.036"), ledger.CostBasisMarket)

	if !c.Revenue.IsZero() {
		t.Fatalf("expected zero revenue, got %s", c.Revenue)
	}
	if !c.MarginPercent.IsZero() {
		t.Fatalf("expected zero margin on zero revenue, got %s", c.MarginPercent)
	}
	if !c.Profit.Equal(decimal.NewFromInt(-600)) {
		t.Fatalf("expected profit -600 (pure cost), got %s", c.Profit)
	}
}

func TestCostMatchedPair_FallsBackToMarketWhenBasisEmpty(t *testing.T) {
	job := jobLot(1, 10, day(1))
	job.MaterialCostMarket = decimal.NewFromInt(1000)
	// project basis never populated upstream
	sale := saleLot(1, 10, 150, day(2))

	pair := MatchedPair{Job: job, Sale: sale, Quantity: decimal.NewFromInt(10)}
	c := CostMatchedPair(pair, decimal.Zero, ledger.CostBasisProject)

	if !c.MaterialCost.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected market fallback material cost 1000, got %s", c.MaterialCost)
	}
}

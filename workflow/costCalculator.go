package workflow

import (
	"github.com/mmindustry/forge_backend/ledger"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// MatchCosting is the money side of one matched pair. The identity
// profit = revenue - materialCost - jobInstallCost - taxAmount holds exactly;
// all arithmetic stays in decimals.
type MatchCosting struct {
	Revenue        decimal.Decimal
	MaterialCost   decimal.Decimal
	JobInstallCost decimal.Decimal
	TaxAmount      decimal.Decimal
	Profit         decimal.Decimal
	MarginPercent  decimal.Decimal
}

// CostMatchedPair apportions the job's costs over its entire output run, so a
// sale covering part of a job carries its proportional share. Tax applies to
// revenue at the user's configured rate. Margin is zero when revenue is zero
// rather than a division error.
func CostMatchedPair(pair MatchedPair, taxRate decimal.Decimal, basis ledger.CostBasis) MatchCosting {
	var c MatchCosting

	c.Revenue = pair.Quantity.Mul(pair.Sale.UnitPrice)

	if pair.Job.Quantity.IsPositive() {
		unitMaterial := pair.Job.MaterialCost(basis).Div(pair.Job.Quantity)
		unitInstall := pair.Job.JobInstallCost.Div(pair.Job.Quantity)
		c.MaterialCost = unitMaterial.Mul(pair.Quantity)
		c.JobInstallCost = unitInstall.Mul(pair.Quantity)
	}

	c.TaxAmount = c.Revenue.Mul(taxRate)
	c.Profit = c.Revenue.Sub(c.MaterialCost).Sub(c.JobInstallCost).Sub(c.TaxAmount)

	if c.Revenue.IsZero() {
		c.MarginPercent = decimal.Zero
	} else {
		c.MarginPercent = c.Profit.Div(c.Revenue).Mul(hundred)
	}

	return c
}

package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostBasis names which upstream cost figure a job lot should be valued at.
// The sync service populates all three; reconciliation picks one per the
// user's settings.
type CostBasis string

const (
	CostBasisMarket  CostBasis = "market"
	CostBasisProject CostBasis = "project"
	CostBasisManual  CostBasis = "manual"
)

// JobLot is a delivered industry job projected for matching. Quantity fields
// are decimals because partial-unit outputs exist (reactions, refined goods).
type JobLot struct {
	JobId               int64           `json:"job_id"`
	TypeId              int64           `json:"type_id"`
	Quantity            decimal.Decimal `json:"quantity"`
	QuantityRemaining   decimal.Decimal `json:"quantity_remaining"`
	MaterialCostMarket  decimal.Decimal `json:"material_cost_market"`
	MaterialCostProject decimal.Decimal `json:"material_cost_project"`
	MaterialCostManual  decimal.Decimal `json:"material_cost_manual"`
	JobInstallCost      decimal.Decimal `json:"job_install_cost"`
	CompletedAt         time.Time       `json:"completed_at"`
}

// MaterialCost returns the job's material cost under the given basis,
// falling back to the market figure when the chosen basis was never
// populated upstream.
func (j *JobLot) MaterialCost(basis CostBasis) decimal.Decimal {
	var c decimal.Decimal
	switch basis {
	case CostBasisProject:
		c = j.MaterialCostProject
	case CostBasisManual:
		c = j.MaterialCostManual
	default:
		c = j.MaterialCostMarket
	}
	if c.IsZero() && basis != CostBasisMarket {
		return j.MaterialCostMarket
	}
	return c
}

// SaleLot is a sell-side wallet transaction projected for matching.
type SaleLot struct {
	TransactionId     int64           `json:"transaction_id"`
	TypeId            int64           `json:"type_id"`
	Quantity          decimal.Decimal `json:"quantity"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	SaleDate          time.Time       `json:"sale_date"`
}

func (s *SaleLot) Revenue() decimal.Decimal {
	return s.Quantity.Mul(s.UnitPrice)
}

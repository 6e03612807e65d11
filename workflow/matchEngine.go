package workflow

import (
	"sort"

	"github.com/mmindustry/forge_backend/ledger"
	"github.com/shopspring/decimal"
)

// MatchedPair is one FIFO pairing between a job lot and a sale lot for
// Quantity units. Pointers reference the engine's working copies.
type MatchedPair struct {
	Job      *ledger.JobLot
	Sale     *ledger.SaleLot
	Quantity decimal.Decimal
}

// TypeMatchResult is the outcome of matching one product type.
type TypeMatchResult struct {
	TypeId         int64
	Pairs          []MatchedPair
	UnmatchedJobs  []*ledger.JobLot
	UnmatchedSales []*ledger.SaleLot
}

// GroupJobsByType buckets job lots per product type, copying so the caller's
// slices stay untouched across runs.
func GroupJobsByType(jobs []ledger.JobLot) map[int64][]*ledger.JobLot {
	grouped := make(map[int64][]*ledger.JobLot)
	for i := range jobs {
		j := jobs[i]
		grouped[j.TypeId] = append(grouped[j.TypeId], &j)
	}
	return grouped
}

func GroupSalesByType(sales []ledger.SaleLot) map[int64][]*ledger.SaleLot {
	grouped := make(map[int64][]*ledger.SaleLot)
	for i := range sales {
		s := sales[i]
		grouped[s.TypeId] = append(grouped[s.TypeId], &s)
	}
	return grouped
}

// MatchType pairs one type's job lots against its sale lots, oldest first on
// both sides. Date ties break on job id / transaction id so the walk is
// deterministic for any input order. Each pair consumes
// min(job remainder, sale remainder); whichever side is exhausted advances.
// Lots with remainder left over come back as unmatched.
func MatchType(typeId int64, jobs []*ledger.JobLot, sales []*ledger.SaleLot) TypeMatchResult {
	sort.SliceStable(jobs, func(a, b int) bool {
		if !jobs[a].CompletedAt.Equal(jobs[b].CompletedAt) {
			return jobs[a].CompletedAt.Before(jobs[b].CompletedAt)
		}
		return jobs[a].JobId < jobs[b].JobId
	})
	sort.SliceStable(sales, func(a, b int) bool {
		if !sales[a].SaleDate.Equal(sales[b].SaleDate) {
			return sales[a].SaleDate.Before(sales[b].SaleDate)
		}
		return sales[a].TransactionId < sales[b].TransactionId
	})

	result := TypeMatchResult{TypeId: typeId}

	ji, si := 0, 0
	for ji < len(jobs) && si < len(sales) {
		job := jobs[ji]
		sale := sales[si]

		q := job.QuantityRemaining
		if sale.QuantityRemaining.LessThan(q) {
			q = sale.QuantityRemaining
		}
		if q.IsPositive() {
			result.Pairs = append(result.Pairs, MatchedPair{Job: job, Sale: sale, Quantity: q})
			job.QuantityRemaining = job.QuantityRemaining.Sub(q)
			sale.QuantityRemaining = sale.QuantityRemaining.Sub(q)
		}

		if !job.QuantityRemaining.IsPositive() {
			ji++
		}
		if !sale.QuantityRemaining.IsPositive() {
			si++
		}
	}

	for ; ji < len(jobs); ji++ {
		if jobs[ji].QuantityRemaining.IsPositive() {
			result.UnmatchedJobs = append(result.UnmatchedJobs, jobs[ji])
		}
	}
	for ; si < len(sales); si++ {
		if sales[si].QuantityRemaining.IsPositive() {
			result.UnmatchedSales = append(result.UnmatchedSales, sales[si])
		}
	}

	return result
}

package workflow

import (
	"testing"
	"time"

	"github.com/mmindustry/forge_backend/ledger"
	"github.com/shopspring/decimal"
)

func day(n int) time.Time {
	return time.Date(2026, 8, n, 0, 0, 0, 0, time.UTC)
}

func jobLot(jobId int64, qty int64, completed time.Time) *ledger.JobLot {
	q := decimal.NewFromInt(qty)
	return &ledger.JobLot{
		JobId:             jobId,
		TypeId:            100,
		Quantity:          q,
		QuantityRemaining: q,
		CompletedAt:       completed,
	}
}

func saleLot(txId int64, qty int64, price int64, date time.Time) *ledger.SaleLot {
	q := decimal.NewFromInt(qty)
	return &ledger.SaleLot{
		TransactionId:     txId,
		TypeId:            100,
		Quantity:          q,
		QuantityRemaining: q,
		UnitPrice:         decimal.NewFromInt(price),
		SaleDate:          date,
	}
}

func TestMatchType_PartialSale_LeavesJobRemainder(t *testing.T) {
	jobs := []*ledger.JobLot{jobLot(1, 10, day(1))}
	sales := []*ledger.SaleLot{saleLot(1, 6, 300, day(2))}

	result := MatchType(100, jobs, sales)

	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(result.Pairs))
	}
	if !result.Pairs[0].Quantity.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected matched quantity 6, got %s", result.Pairs[0].Quantity)
	}
	if len(result.UnmatchedJobs) != 1 {
		t.Fatalf("expected 1 unmatched job, got %d", len(result.UnmatchedJobs))
	}
	if !result.UnmatchedJobs[0].QuantityRemaining.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("expected 4 units remaining, got %s", result.UnmatchedJobs[0].QuantityRemaining)
	}
	if len(result.UnmatchedSales) != 0 {
		t.Fatalf("expected no unmatched sales, got %d", len(result.UnmatchedSales))
	}
}

func TestMatchType_OneJobTwoSales_SplitsExactly(t *testing.T) {
	jobs := []*ledger.JobLot{jobLot(1, 10, day(1))}
	sales := []*ledger.SaleLot{
		saleLot(1, 3, 300, day(2)),
		saleLot(2, 7, 310, day(3)),
	}

	result := MatchType(100, jobs, sales)

	if len(result.Pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(result.Pairs))
	}
	total := result.Pairs[0].Quantity.Add(result.Pairs[1].Quantity)
	if !total.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected matched total 10, got %s", total)
	}
	if len(result.UnmatchedJobs) != 0 || len(result.UnmatchedSales) != 0 {
		t.Fatalf("expected zero remainders, got jobs=%d sales=%d",
			len(result.UnmatchedJobs), len(result.UnmatchedSales))
	}
}

func TestMatchType_SaleWithoutJob_IsUnmatchedSale(t *testing.T) {
	sales := []*ledger.SaleLot{saleLot(1, 5, 200, day(2))}

	result := MatchType(100, nil, sales)

	if len(result.Pairs) != 0 {
		t.Fatalf("expected no pairs, got %d", len(result.Pairs))
	}
	if len(result.UnmatchedSales) != 1 {
		t.Fatalf("expected 1 unmatched sale, got %d", len(result.UnmatchedSales))
	}
	if !result.UnmatchedSales[0].QuantityRemaining.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected full 5 unmatched, got %s", result.UnmatchedSales[0].QuantityRemaining)
	}
}

func TestMatchType_ConsumesOldestJobFirst(t *testing.T) {
	// Deliberately out of order: the engine must sort before walking.
	jobs := []*ledger.JobLot{
		jobLot(2, 5, day(3)),
		jobLot(1, 5, day(1)),
	}
	sales := []*ledger.SaleLot{saleLot(1, 5, 100, day(4))}

	result := MatchType(100, jobs, sales)

	if len(result.Pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(result.Pairs))
	}
	if result.Pairs[0].Job.JobId != 1 {
		t.Fatalf("expected oldest job (1) consumed first, got job %d", result.Pairs[0].Job.JobId)
	}
	if result.UnmatchedJobs[0].JobId != 2 {
		t.Fatalf("expected job 2 left unmatched, got job %d", result.UnmatchedJobs[0].JobId)
	}
}

func TestMatchType_SameDateTieBreaksOnId(t *testing.T) {
	jobs := []*ledger.JobLot{
		jobLot(7, 2, day(1)),
		jobLot(3, 2, day(1)),
	}
	sales := []*ledger.SaleLot{saleLot(1, 2, 100, day(2))}

	result := MatchType(100, jobs, sales)

	if result.Pairs[0].Job.JobId != 3 {
		t.Fatalf("expected lower job id first on date tie, got job %d", result.Pairs[0].Job.JobId)
	}
}

func TestMatchType_Conservation(t *testing.T) {
	jobs := []*ledger.JobLot{
		jobLot(1, 7, day(1)),
		jobLot(2, 5, day(2)),
		jobLot(3, 11, day(3)),
	}
	sales := []*ledger.SaleLot{
		saleLot(1, 4, 100, day(2)),
		saleLot(2, 9, 100, day(4)),
		saleLot(3, 2, 100, day(5)),
	}

	produced := decimal.Zero
	for _, j := range jobs {
		produced = produced.Add(j.Quantity)
	}
	sold := decimal.Zero
	for _, s := range sales {
		sold = sold.Add(s.Quantity)
	}

	result := MatchType(100, jobs, sales)

	matched := decimal.Zero
	for _, p := range result.Pairs {
		matched = matched.Add(p.Quantity)
	}
	jobRemainder := decimal.Zero
	for _, j := range result.UnmatchedJobs {
		jobRemainder = jobRemainder.Add(j.QuantityRemaining)
	}
	saleRemainder := decimal.Zero
	for _, s := range result.UnmatchedSales {
		saleRemainder = saleRemainder.Add(s.QuantityRemaining)
	}

	if !matched.Add(jobRemainder).Equal(produced) {
		t.Fatalf("job conservation broken: matched %s + remainder %s != produced %s",
			matched, jobRemainder, produced)
	}
	if !matched.Add(saleRemainder).Equal(sold) {
		t.Fatalf("sale conservation broken: matched %s + remainder %s != sold %s",
			matched, saleRemainder, sold)
	}
}

func TestMatchType_DeterministicAcrossInputOrders(t *testing.T) {
	build := func(jobOrder, saleOrder []int) TypeMatchResult {
		jobTemplates := []*ledger.JobLot{
			jobLot(1, 7, day(1)),
			jobLot(2, 5, day(2)),
			jobLot(3, 11, day(2)),
		}
		saleTemplates := []*ledger.SaleLot{
			saleLot(1, 4, 100, day(2)),
			saleLot(2, 9, 110, day(4)),
			saleLot(3, 6, 120, day(4)),
		}
		var jobs []*ledger.JobLot
		for _, i := range jobOrder {
			j := *jobTemplates[i]
			jobs = append(jobs, &j)
		}
		var sales []*ledger.SaleLot
		for _, i := range saleOrder {
			s := *saleTemplates[i]
			sales = append(sales, &s)
		}
		return MatchType(100, jobs, sales)
	}

	baseline := build([]int{0, 1, 2}, []int{0, 1, 2})
	permutations := [][2][]int{
		{{2, 1, 0}, {0, 1, 2}},
		{{1, 0, 2}, {2, 1, 0}},
		{{2, 0, 1}, {1, 2, 0}},
	}

	for run, perm := range permutations {
		got := build(perm[0], perm[1])
		if len(got.Pairs) != len(baseline.Pairs) {
			t.Fatalf("run=%d pair count differs: %d vs %d", run, len(got.Pairs), len(baseline.Pairs))
		}
		for i := range got.Pairs {
			if got.Pairs[i].Job.JobId != baseline.Pairs[i].Job.JobId ||
				got.Pairs[i].Sale.TransactionId != baseline.Pairs[i].Sale.TransactionId ||
				!got.Pairs[i].Quantity.Equal(baseline.Pairs[i].Quantity) {
				t.Fatalf("run=%d pair %d differs from baseline", run, i)
			}
		}
	}
}

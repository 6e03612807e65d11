package workflow

import (
	"testing"
	"time"

	"github.com/mmindustry/forge_backend/models"
	"github.com/shopspring/decimal"
)

func match(typeId int64, revenue, profit string, saleDate time.Time) *models.ProfitMatch {
	return &models.ProfitMatch{
		UserId:        "u1",
		TypeId:        typeId,
		TypeName:      "Type",
		Quantity:      decimal.NewFromInt(1),
		Revenue:       decimal.RequireFromString(revenue),
		Profit:        decimal.RequireFromString(profit),
		MaterialCost:  decimal.Zero,
		TaxAmount:     decimal.Zero,
		SaleDate:      saleDate,
		MatchedAt:     saleDate,
	}
}

func TestBuildItemSummaries_RevenueWeightedMargin(t *testing.T) {
	// Two matches: 10% margin on 1000 revenue, 50% margin on 100 revenue.
	// A plain average of margins would be 30%; revenue weighting gives
	// (100+50)/1100*100.
	matches := []*models.ProfitMatch{
		match(100, "1000", "100", day(1)),
		match(100, "100", "50", day(2)),
	}

	summaries := BuildItemSummaries("u1", 1, matches)
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	s := summaries[0]

	want := decimal.RequireFromString("150").
		Div(decimal.RequireFromString("1100")).
		Mul(decimal.NewFromInt(100))
	if !s.AvgMarginPercent.Equal(want) {
		t.Fatalf("expected revenue-weighted margin %s, got %s", want, s.AvgMarginPercent)
	}
	if !s.TotalProfit.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected total profit 150, got %s", s.TotalProfit)
	}
	if s.MatchCount != 2 {
		t.Fatalf("expected 2 matches counted, got %d", s.MatchCount)
	}
	if !s.LastSaleDate.Equal(day(2)) {
		t.Fatalf("expected last sale date %s, got %s", day(2), s.LastSaleDate)
	}
}

func TestBuildItemSummaries_ZeroRevenueZeroMargin(t *testing.T) {
	matches := []*models.ProfitMatch{match(100, "0", "-50", day(1))}

	summaries := BuildItemSummaries("u1", 1, matches)
	if !summaries[0].AvgMarginPercent.IsZero() {
		t.Fatalf("expected zero margin on zero revenue, got %s", summaries[0].AvgMarginPercent)
	}
}

func TestBuildDailyMargins_ChronologicalBuckets(t *testing.T) {
	matches := []*models.ProfitMatch{
		match(100, "300", "30", day(5)),
		match(100, "100", "10", day(1)),
		match(100, "200", "20", day(5)),
	}

	margins := BuildDailyMargins("u1", 1, matches)
	if len(margins) != 2 {
		t.Fatalf("expected 2 day buckets, got %d", len(margins))
	}
	if !margins[0].Day.Before(margins[1].Day) {
		t.Fatalf("expected chronological order, got %s then %s", margins[0].Day, margins[1].Day)
	}
	if !margins[1].Revenue.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("expected day-5 revenue 500, got %s", margins[1].Revenue)
	}
	if !margins[1].Profit.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected day-5 profit 50, got %s", margins[1].Profit)
	}
	if !margins[1].MarginPercent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected day-5 margin 10, got %s", margins[1].MarginPercent)
	}
}

func TestBuildDailyMargins_SubDayTimestampsCollapse(t *testing.T) {
	morning := time.Date(2026, 8, 3, 9, 15, 0, 0, time.UTC)
	evening := time.Date(2026, 8, 3, 22, 40, 0, 0, time.UTC)
	matches := []*models.ProfitMatch{
		match(100, "100", "10", morning),
		match(100, "100", "10", evening),
	}

	margins := BuildDailyMargins("u1", 1, matches)
	if len(margins) != 1 {
		t.Fatalf("expected one bucket for same calendar day, got %d", len(margins))
	}
	if !margins[0].Revenue.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected combined revenue 200, got %s", margins[0].Revenue)
	}
}

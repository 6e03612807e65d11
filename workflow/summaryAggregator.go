package workflow

import (
	"sort"

	"github.com/mmindustry/forge_backend/models"
	"github.com/mmindustry/forge_backend/utils"
	"github.com/shopspring/decimal"
)

// BuildItemSummaries rolls match rows up per product type. Margin is revenue
// weighted: totalProfit / totalRevenue * 100, zero when nothing was sold for
// money. Output is sorted by type id so snapshot inserts are deterministic.
func BuildItemSummaries(userId string, runId uint, matches []*models.ProfitMatch) []*models.ProfitItemSummary {
	byType := make(map[int64]*models.ProfitItemSummary)

	for _, m := range matches {
		s, ok := byType[m.TypeId]
		if !ok {
			s = &models.ProfitItemSummary{
				UserId:        userId,
				RunId:         runId,
				TypeId:        m.TypeId,
				TypeName:      m.TypeName,
				QuantitySold:  decimal.Zero,
				TotalRevenue:  decimal.Zero,
				TotalMaterial: decimal.Zero,
				TotalInstall:  decimal.Zero,
				TotalTax:      decimal.Zero,
				TotalProfit:   decimal.Zero,
			}
			byType[m.TypeId] = s
		}
		s.QuantitySold = s.QuantitySold.Add(m.Quantity)
		s.TotalRevenue = s.TotalRevenue.Add(m.Revenue)
		s.TotalMaterial = s.TotalMaterial.Add(m.MaterialCost)
		s.TotalInstall = s.TotalInstall.Add(m.JobInstallCost)
		s.TotalTax = s.TotalTax.Add(m.TaxAmount)
		s.TotalProfit = s.TotalProfit.Add(m.Profit)
		s.MatchCount++
		if m.SaleDate.After(s.LastSaleDate) {
			s.LastSaleDate = m.SaleDate
		}
	}

	summaries := make([]*models.ProfitItemSummary, 0, len(byType))
	for _, s := range byType {
		if !s.TotalRevenue.IsZero() {
			s.AvgMarginPercent = s.TotalProfit.Div(s.TotalRevenue).Mul(hundred)
		}
		summaries = append(summaries, s)
	}
	sort.Slice(summaries, func(a, b int) bool {
		return summaries[a].TypeId < summaries[b].TypeId
	})
	return summaries
}

// BuildDailyMargins buckets match rows by (type, sale day), chronologically
// ascending within each type.
func BuildDailyMargins(userId string, runId uint, matches []*models.ProfitMatch) []*models.ProfitDailyMargin {
	type bucketKey struct {
		typeId int64
		day    int64
	}
	buckets := make(map[bucketKey]*models.ProfitDailyMargin)

	for _, m := range matches {
		day := utils.DayKey(m.SaleDate)
		key := bucketKey{typeId: m.TypeId, day: day.Unix()}
		b, ok := buckets[key]
		if !ok {
			b = &models.ProfitDailyMargin{
				UserId:  userId,
				RunId:   runId,
				TypeId:  m.TypeId,
				Day:     day,
				Revenue: decimal.Zero,
				Profit:  decimal.Zero,
			}
			buckets[key] = b
		}
		b.Revenue = b.Revenue.Add(m.Revenue)
		b.Profit = b.Profit.Add(m.Profit)
	}

	margins := make([]*models.ProfitDailyMargin, 0, len(buckets))
	for _, b := range buckets {
		if !b.Revenue.IsZero() {
			b.MarginPercent = b.Profit.Div(b.Revenue).Mul(hundred)
		}
		margins = append(margins, b)
	}
	sort.Slice(margins, func(a, b int) bool {
		if margins[a].TypeId != margins[b].TypeId {
			return margins[a].TypeId < margins[b].TypeId
		}
		return margins[a].Day.Before(margins[b].Day)
	})
	return margins
}

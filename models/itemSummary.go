package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmindustry/forge_backend/config"
	"github.com/mmindustry/forge_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ProfitItemSummary is the per-type rollup of a user's matches, persisted at
// snapshot commit so list reads never re-scan match rows.
type ProfitItemSummary struct {
	ID               uint            `gorm:"primary_key" json:"id"`
	UserId           string          `gorm:"uniqueIndex:idx_item_summary_user_type,priority:1;size:64;not null" json:"user_id"`
	RunId            uint            `gorm:"index;not null" json:"run_id"`
	TypeId           int64           `gorm:"uniqueIndex:idx_item_summary_user_type,priority:2;not null" json:"type_id"`
	TypeName         string          `gorm:"size:255" json:"type_name"`
	QuantitySold     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_sold"`
	TotalRevenue     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_revenue"`
	TotalMaterial    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_material_cost"`
	TotalInstall     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_job_install_cost"`
	TotalTax         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_tax_amount"`
	TotalProfit      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_profit"`
	AvgMarginPercent decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"avg_margin_percent"`
	MatchCount       int             `gorm:"default:0" json:"match_count"`
	LastSaleDate     time.Time       `json:"last_sale_date"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProfitDailyMargin buckets a user's matches by sale day per type. Portfolio
// trend reads sum across types for each day.
type ProfitDailyMargin struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	UserId        string          `gorm:"uniqueIndex:idx_daily_margin,priority:1;size:64;not null" json:"user_id"`
	RunId         uint            `gorm:"index;not null" json:"run_id"`
	TypeId        int64           `gorm:"uniqueIndex:idx_daily_margin,priority:2;not null" json:"type_id"`
	Day           time.Time       `gorm:"uniqueIndex:idx_daily_margin,priority:3;not null" json:"day"`
	Revenue       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"revenue"`
	Profit        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"profit"`
	MarginPercent decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"margin_percent"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func ReplaceProfitItemSummaries(tx *gorm.DB, userId string, summaries []*ProfitItemSummary) error {
	if err := tx.Where("user_id = ?", userId).Delete(&ProfitItemSummary{}).Error; err != nil {
		return err
	}
	if len(summaries) == 0 {
		return nil
	}
	return tx.CreateInBatches(summaries, 500).Error
}

func ReplaceProfitDailyMargins(tx *gorm.DB, userId string, margins []*ProfitDailyMargin) error {
	if err := tx.Where("user_id = ?", userId).Delete(&ProfitDailyMargin{}).Error; err != nil {
		return err
	}
	if len(margins) == 0 {
		return nil
	}
	return tx.CreateInBatches(margins, 500).Error
}

// item list sort keys accepted by GetProfitItemSummaries.
var itemSortColumns = map[string]string{
	"profit":    "total_profit",
	"revenue":   "total_revenue",
	"margin":    "avg_margin_percent",
	"quantity":  "quantity_sold",
	"name":      "type_name",
	"last_sale": "last_sale_date",
}

func GetProfitItemSummaries(ctx context.Context, sort string, order string, nameFilter string) ([]*ProfitItemSummary, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	column, ok := itemSortColumns[sort]
	if !ok {
		column = "total_profit"
	}
	direction := "DESC"
	if order == "asc" {
		direction = "ASC"
	}

	var results []*ProfitItemSummary
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).Where("user_id = ?", userId)
	if nameFilter != "" {
		dbCtx = dbCtx.Where("type_name LIKE ?", "%"+nameFilter+"%")
	}
	// secondary order keeps pagination stable when the sort column ties
	err := dbCtx.Order(column + " " + direction + ", type_id ASC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetProfitItemSummary(ctx context.Context, typeId int64) (*ProfitItemSummary, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	var result ProfitItemSummary
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("user_id = ? AND type_id = ?", userId, typeId).
		First(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

// GetProfitDailyMargins returns day buckets, oldest first. With typeId nil the
// buckets are summed across types and margin is recomputed from the summed
// revenue and profit.
func GetProfitDailyMargins(ctx context.Context, days int, typeId *int64) ([]*ProfitDailyMargin, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	since := utils.DayKey(time.Now().UTC().AddDate(0, 0, -days))

	db := config.GetDB()
	var results []*ProfitDailyMargin
	if typeId != nil {
		err := db.WithContext(ctx).
			Where("user_id = ? AND type_id = ? AND day >= ?", userId, *typeId, since).
			Order("day ASC").
			Find(&results).Error
		if err != nil {
			return nil, err
		}
		return results, nil
	}

	err := db.WithContext(ctx).Model(&ProfitDailyMargin{}).
		Select("user_id, day, SUM(revenue) AS revenue, SUM(profit) AS profit").
		Where("user_id = ? AND day >= ?", userId, since).
		Group("user_id, day").
		Order("day ASC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		if r.Revenue.IsZero() {
			r.MarginPercent = decimal.Zero
			continue
		}
		r.MarginPercent = r.Profit.Div(r.Revenue).Mul(decimal.NewFromInt(100))
	}
	return results, nil
}

// ProfitSummary is the portfolio view over the committed snapshot.
type ProfitSummary struct {
	TotalRevenue     decimal.Decimal    `json:"total_revenue"`
	TotalMaterial    decimal.Decimal    `json:"total_material_cost"`
	TotalInstall     decimal.Decimal    `json:"total_job_install_cost"`
	TotalTax         decimal.Decimal    `json:"total_tax_amount"`
	TotalProfit      decimal.Decimal    `json:"total_profit"`
	AvgMarginPercent decimal.Decimal    `json:"avg_margin_percent"`
	ItemCount        int                `json:"item_count"`
	MatchCount       int                `json:"match_count"`
	BestItem         *ProfitItemSummary `json:"best_item"`
	WorstItem        *ProfitItemSummary `json:"worst_item"`
}

const summaryCacheTTL = time.Minute

func summaryCacheKey(userId string) string {
	return "profit:summary:" + userId
}

// GetProfitSummary folds the item summaries into portfolio totals. Average
// margin is revenue weighted, not a mean of per-item margins. Best and worst
// rank by total profit with total revenue breaking ties. Cached briefly in
// redis; snapshot commits invalidate the key.
func GetProfitSummary(ctx context.Context) (*ProfitSummary, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	var cached ProfitSummary
	if hit, err := config.GetRedisObject(summaryCacheKey(userId), &cached); err == nil && hit {
		return &cached, nil
	}

	var items []*ProfitItemSummary
	db := config.GetDB()
	err := db.WithContext(ctx).Where("user_id = ?", userId).Find(&items).Error
	if err != nil {
		return nil, err
	}

	summary := &ProfitSummary{
		TotalRevenue:     decimal.Zero,
		TotalMaterial:    decimal.Zero,
		TotalInstall:     decimal.Zero,
		TotalTax:         decimal.Zero,
		TotalProfit:      decimal.Zero,
		AvgMarginPercent: decimal.Zero,
		ItemCount:        len(items),
	}

	for _, item := range items {
		summary.TotalRevenue = summary.TotalRevenue.Add(item.TotalRevenue)
		summary.TotalMaterial = summary.TotalMaterial.Add(item.TotalMaterial)
		summary.TotalInstall = summary.TotalInstall.Add(item.TotalInstall)
		summary.TotalTax = summary.TotalTax.Add(item.TotalTax)
		summary.TotalProfit = summary.TotalProfit.Add(item.TotalProfit)
		summary.MatchCount += item.MatchCount

		if summary.BestItem == nil || rankAbove(item, summary.BestItem) {
			summary.BestItem = item
		}
		if summary.WorstItem == nil || rankBelow(item, summary.WorstItem) {
			summary.WorstItem = item
		}
	}

	if !summary.TotalRevenue.IsZero() {
		summary.AvgMarginPercent = summary.TotalProfit.Div(summary.TotalRevenue).Mul(decimal.NewFromInt(100))
	}

	_ = config.SetRedisObject(summaryCacheKey(userId), summary, summaryCacheTTL)
	return summary, nil
}

// InvalidateProfitSummaryCache drops the cached portfolio summary after a
// snapshot commit. The key is exact per user; no pattern matching.
func InvalidateProfitSummaryCache(userId string) error {
	return config.RemoveRedisKey(summaryCacheKey(userId))
}

func rankAbove(a, b *ProfitItemSummary) bool {
	if !a.TotalProfit.Equal(b.TotalProfit) {
		return a.TotalProfit.GreaterThan(b.TotalProfit)
	}
	return a.TotalRevenue.GreaterThan(b.TotalRevenue)
}

func rankBelow(a, b *ProfitItemSummary) bool {
	if !a.TotalProfit.Equal(b.TotalProfit) {
		return a.TotalProfit.LessThan(b.TotalProfit)
	}
	return a.TotalRevenue.LessThan(b.TotalRevenue)
}

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

// ProfitMatch is one FIFO pairing between a produced lot and a sold lot.
// A job that feeds several sales (or a sale drawing on several jobs) yields
// one row per pairing; Quantity is the units that pairing covers.
type ProfitMatch struct {
	ID             uint            `gorm:"primary_key" json:"id"`
	UserId         string          `gorm:"index:idx_profit_matches_user_sale,priority:1;size:64;not null" json:"user_id"`
	RunId          uint            `gorm:"index;not null" json:"run_id"`
	TypeId         int64           `gorm:"index;not null" json:"type_id"`
	TypeName       string          `gorm:"size:255" json:"type_name"`
	JobId          int64           `gorm:"not null" json:"job_id"`
	TransactionId  int64           `gorm:"not null" json:"transaction_id"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitPrice      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	Revenue        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"revenue"`
	MaterialCost   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"material_cost"`
	JobInstallCost decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"job_install_cost"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	Profit         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"profit"`
	MarginPercent  decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"margin_percent"`
	JobDate        time.Time       `gorm:"not null" json:"job_date"`
	SaleDate       time.Time       `gorm:"index:idx_profit_matches_user_sale,priority:2;not null" json:"sale_date"`
	MatchedAt      time.Time       `gorm:"not null" json:"matched_at"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// ReplaceProfitMatches swaps the user's match rows for the given set inside
// the caller's transaction. Readers on the old snapshot are unaffected until
// the transaction commits.
func ReplaceProfitMatches(tx *gorm.DB, userId string, matches []*ProfitMatch) error {
	if err := tx.Where("user_id = ?", userId).Delete(&ProfitMatch{}).Error; err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}
	return tx.CreateInBatches(matches, 500).Error
}

func GetProfitMatches(ctx context.Context, days int, typeId *int64) ([]*ProfitMatch, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	since := utils.DayKey(time.Now().UTC().AddDate(0, 0, -days))

	var results []*ProfitMatch
	db := config.GetDB()
	dbCtx := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Where("sale_date >= ?", since)
	if typeId != nil {
		dbCtx = dbCtx.Where("type_id = ?", *typeId)
	}
	// db query
	err := dbCtx.Order("sale_date DESC, id DESC").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

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

// UnmatchedJobLot is produced output that no sale has consumed yet.
// QuantityRemaining is what is left after FIFO matching; Quantity is the
// job's full output for reference.
type UnmatchedJobLot struct {
	ID                uint            `gorm:"primary_key" json:"id"`
	UserId            string          `gorm:"index;size:64;not null" json:"user_id"`
	RunId             uint            `gorm:"index;not null" json:"run_id"`
	JobId             int64           `gorm:"not null" json:"job_id"`
	TypeId            int64           `gorm:"index;not null" json:"type_id"`
	TypeName          string          `gorm:"size:255" json:"type_name"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_remaining"`
	MaterialCost      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"material_cost"`
	JobInstallCost    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"job_install_cost"`
	JobDate           time.Time       `gorm:"not null" json:"job_date"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// UnmatchedSaleLot is sold quantity with no produced lot to absorb it, e.g.
// stock sold from pre-existing inventory or bought on market.
type UnmatchedSaleLot struct {
	ID                uint            `gorm:"primary_key" json:"id"`
	UserId            string          `gorm:"index;size:64;not null" json:"user_id"`
	RunId             uint            `gorm:"index;not null" json:"run_id"`
	TransactionId     int64           `gorm:"not null" json:"transaction_id"`
	TypeId            int64           `gorm:"index;not null" json:"type_id"`
	TypeName          string          `gorm:"size:255" json:"type_name"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity_remaining"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
	SaleDate          time.Time       `gorm:"not null" json:"sale_date"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func ReplaceUnmatchedJobLots(tx *gorm.DB, userId string, lots []*UnmatchedJobLot) error {
	if err := tx.Where("user_id = ?", userId).Delete(&UnmatchedJobLot{}).Error; err != nil {
		return err
	}
	if len(lots) == 0 {
		return nil
	}
	return tx.CreateInBatches(lots, 500).Error
}

func ReplaceUnmatchedSaleLots(tx *gorm.DB, userId string, lots []*UnmatchedSaleLot) error {
	if err := tx.Where("user_id = ?", userId).Delete(&UnmatchedSaleLot{}).Error; err != nil {
		return err
	}
	if len(lots) == 0 {
		return nil
	}
	return tx.CreateInBatches(lots, 500).Error
}

func GetUnmatchedJobLots(ctx context.Context, days int) ([]*UnmatchedJobLot, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	since := utils.DayKey(time.Now().UTC().AddDate(0, 0, -days))

	var results []*UnmatchedJobLot
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Where("job_date >= ?", since).
		Order("job_date DESC, job_id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func GetUnmatchedSaleLots(ctx context.Context, days int) ([]*UnmatchedSaleLot, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	since := utils.DayKey(time.Now().UTC().AddDate(0, 0, -days))

	var results []*UnmatchedSaleLot
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Where("sale_date >= ?", since).
		Order("sale_date DESC, transaction_id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmindustry/forge_backend/config"
	"github.com/mmindustry/forge_backend/utils"
	"github.com/shopspring/decimal"
)

type CostSource string

const (
	CostSourceMarket  CostSource = "market"
	CostSourceProject CostSource = "project"
	CostSourceManual  CostSource = "manual"
)

const (
	DefaultLookbackDays = 30
	MinLookbackDays     = 1
	MaxLookbackDays     = 365
)

// DefaultTaxRate is the broker/sales tax applied when a user has never saved
// settings. 3.6% is the rate with maxed trade skills.
var DefaultTaxRate = decimal.NewFromFloat(0.036)

const settingsCacheTTL = 10 * time.Minute

func settingsCacheKey(userId string) string {
	return fmt.Sprintf("profit:settings:%s", userId)
}

type ProfitSettings struct {
	UserId       string          `gorm:"primaryKey;size:64" json:"user_id"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(20,4);default:0.036" json:"sales_tax_rate"`
	CostSource   CostSource      `gorm:"type:enum('market','project','manual');default:'market'" json:"default_cost_source"`
	LookbackDays int             `gorm:"default:30" json:"lookback_days"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// ProfitSettingsPatch updates only the fields present. Binding rules reject
// bad enum values and window bounds at bind time; tax rate is a decimal so
// its range check lives in validate().
type ProfitSettingsPatch struct {
	TaxRate      *decimal.Decimal `json:"sales_tax_rate"`
	CostSource   *CostSource      `json:"default_cost_source" binding:"omitempty,oneof=market project manual"`
	LookbackDays *int             `json:"lookback_days" binding:"omitempty,min=1,max=365"`
}

func DefaultProfitSettings(userId string) ProfitSettings {
	return ProfitSettings{
		UserId:       userId,
		TaxRate:      DefaultTaxRate,
		CostSource:   CostSourceMarket,
		LookbackDays: DefaultLookbackDays,
	}
}

// validate rejects the patch without mutation when any present field is out
// of bounds.
func (input *ProfitSettingsPatch) validate() error {
	if input.TaxRate != nil {
		if input.TaxRate.IsNegative() || input.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
			return errors.New("sales tax rate must be between 0 and 1")
		}
	}
	if input.CostSource != nil {
		switch *input.CostSource {
		case CostSourceMarket, CostSourceProject, CostSourceManual:
		default:
			return errors.New("cost source must be one of market, project, manual")
		}
	}
	if input.LookbackDays != nil {
		if *input.LookbackDays < MinLookbackDays || *input.LookbackDays > MaxLookbackDays {
			return errors.New("lookback days must be between 1 and 365")
		}
	}
	return nil
}

// applyPatch mutates the struct in place and returns the column map for the
// UPDATE. The update timestamp is stamped on both so the response carries the
// same value the row gets.
func (s *ProfitSettings) applyPatch(input *ProfitSettingsPatch, now time.Time) map[string]interface{} {
	updates := map[string]interface{}{}
	if input.TaxRate != nil {
		s.TaxRate = *input.TaxRate
		updates["tax_rate"] = *input.TaxRate
	}
	if input.CostSource != nil {
		s.CostSource = *input.CostSource
		updates["cost_source"] = *input.CostSource
	}
	if input.LookbackDays != nil {
		s.LookbackDays = *input.LookbackDays
		updates["lookback_days"] = *input.LookbackDays
	}
	if len(updates) > 0 {
		s.UpdatedAt = now
		updates["updated_at"] = now
	}
	return updates
}

// GetOrCreateProfitSettings returns the user's settings, lazily persisting
// the defaults on first read.
func GetOrCreateProfitSettings(ctx context.Context) (*ProfitSettings, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	var cached ProfitSettings
	if hit, err := config.GetRedisObject(settingsCacheKey(userId), &cached); err == nil && hit {
		return &cached, nil
	}

	settings := DefaultProfitSettings(userId)
	db := config.GetDB()
	err := db.WithContext(ctx).Where("user_id = ?", userId).FirstOrCreate(&settings).Error
	if err != nil {
		return nil, err
	}

	_ = config.SetRedisObject(settingsCacheKey(userId), settings, settingsCacheTTL)
	return &settings, nil
}

func UpdateProfitSettings(ctx context.Context, input *ProfitSettingsPatch) (*ProfitSettings, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}

	if err := input.validate(); err != nil {
		return nil, err
	}

	settings, err := GetOrCreateProfitSettings(ctx)
	if err != nil {
		return nil, err
	}

	updates := settings.applyPatch(input, time.Now().UTC())
	if len(updates) == 0 {
		return settings, nil
	}

	db := config.GetDB()
	// db action
	err = db.WithContext(ctx).Model(&ProfitSettings{}).
		Where("user_id = ?", userId).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}

	_ = config.RemoveRedisKey(settingsCacheKey(userId))
	return settings, nil
}

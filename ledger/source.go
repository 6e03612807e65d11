package ledger

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// JobSource yields delivered production runs for one user since a cutoff.
type JobSource interface {
	FetchCompletedJobs(ctx context.Context, userId string, since time.Time) ([]JobLot, error)
}

// SaleSource yields sell-side wallet transactions for one user since a cutoff.
type SaleSource interface {
	FetchSales(ctx context.Context, userId string, since time.Time) ([]SaleLot, error)
}

// TypeResolver maps a type id to its display name.
type TypeResolver interface {
	ResolveTypeName(ctx context.Context, typeId int64) (string, error)
}

// DBSource reads the externally-synced ledger tables. This service never
// writes them; the queries stay raw SQL so schema drift in the sync service
// surfaces as a query error instead of a silent gorm remap.
type DBSource struct {
	DB *gorm.DB
}

func NewDBSource(db *gorm.DB) *DBSource {
	return &DBSource{DB: db}
}

func (s *DBSource) FetchCompletedJobs(ctx context.Context, userId string, since time.Time) ([]JobLot, error) {
	var lots []JobLot
	err := s.DB.WithContext(ctx).Raw(`
		SELECT job_id, product_type_id AS type_id, output_quantity AS quantity,
		       material_cost_market, material_cost_project, material_cost_manual,
		       job_install_cost, completed_at
		FROM industry_jobs
		WHERE user_id = ? AND status = 'delivered' AND completed_at >= ?
		ORDER BY completed_at ASC, job_id ASC
	`, userId, since).Scan(&lots).Error
	if err != nil {
		return nil, err
	}
	for i := range lots {
		lots[i].QuantityRemaining = lots[i].Quantity
	}
	return lots, nil
}

func (s *DBSource) FetchSales(ctx context.Context, userId string, since time.Time) ([]SaleLot, error) {
	var lots []SaleLot
	err := s.DB.WithContext(ctx).Raw(`
		SELECT transaction_id, type_id, quantity, unit_price, transaction_date AS sale_date
		FROM wallet_transactions
		WHERE user_id = ? AND is_buy = 0 AND transaction_date >= ?
		ORDER BY transaction_date ASC, transaction_id ASC
	`, userId, since).Scan(&lots).Error
	if err != nil {
		return nil, err
	}
	for i := range lots {
		lots[i].QuantityRemaining = lots[i].Quantity
	}
	return lots, nil
}

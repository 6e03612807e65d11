package models

import (
	"github.com/mmindustry/forge_backend/config"
)

// MigrateTable auto-migrates the tables this service owns. The externally
// synced ledger tables (industry_jobs, wallet_transactions, inv_types) are
// managed by the sync service and deliberately excluded.
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ProfitSettings{},
		&ProfitMatch{},
		&UnmatchedJobLot{}, &UnmatchedSaleLot{},
		&ProfitItemSummary{}, &ProfitDailyMargin{},
		&ProfitRecomputeRun{},
	)
	if err != nil {
		panic(err)
	}
}

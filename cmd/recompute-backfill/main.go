package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/mmindustry/forge_backend/config"
	"github.com/mmindustry/forge_backend/ledger"
	"github.com/mmindustry/forge_backend/models"
	"github.com/mmindustry/forge_backend/utils"
	"github.com/mmindustry/forge_backend/workflow"
)

// Rebuilds profit snapshots from the command line. With -user-id it recomputes
// one user; otherwise it walks every user that has saved settings.
func main() {
	userID := flag.String("user-id", "", "Optional: recompute only one user. If empty, recomputes all users with settings.")
	lookbackDays := flag.Int("lookback-days", 0, "Optional: override lookback window (1-365). 0 uses each user's settings.")
	flag.Parse()

	ctx := context.Background()
	// Explicit DB connect (config no longer connects DB in init()).
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	// Ensure schema is up-to-date.
	models.MigrateTable()

	ctx = utils.SetActorInContext(ctx, "cli")

	var userIds []string
	if strings.TrimSpace(*userID) != "" {
		userIds = []string{strings.TrimSpace(*userID)}
	} else {
		if err := db.WithContext(ctx).Model(&models.ProfitSettings{}).
			Pluck("user_id", &userIds).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list users: %v\n", err)
			os.Exit(1)
		}
	}
	if len(userIds) == 0 {
		fmt.Fprintln(os.Stderr, "no users found to recompute")
		return
	}

	source := ledger.NewDBSource(db)
	engine := workflow.NewRecomputeEngine(db, config.GetLogger(), source, source, ledger.NewDBTypeResolver(db))

	failures := 0
	for _, uid := range userIds {
		run, err := engine.Run(ctx, uid, *lookbackDays, "cli", uuid.NewString())
		if err != nil {
			failures++
			fmt.Fprintf(os.Stderr, "user %s: recompute failed: %v\n", uid, err)
			continue
		}
		fmt.Printf("user %s: run %d matched=%d unmatched_jobs=%d unmatched_sales=%d\n",
			uid, run.ID, run.MatchCount, run.UnmatchedJobCount, run.UnmatchedSaleCount)
	}

	if failures > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d users failed\n", failures, len(userIds))
		os.Exit(1)
	}
	fmt.Printf("recomputed %d users\n", len(userIds))
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mmindustry/forge_backend/config"
	"github.com/mmindustry/forge_backend/ledger"
	"github.com/mmindustry/forge_backend/models"
	"github.com/mmindustry/forge_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const moduleName = "workflow"

// RecomputeEngine rebuilds one user's profit snapshot from the synced
// ledgers. A run replaces the whole snapshot in a single transaction; a
// failed run rolls back and leaves the previous snapshot authoritative.
type RecomputeEngine struct {
	DB     *gorm.DB
	Logger *logrus.Logger
	Jobs   ledger.JobSource
	Sales  ledger.SaleSource
	Types  ledger.TypeResolver
}

func NewRecomputeEngine(db *gorm.DB, logger *logrus.Logger, jobs ledger.JobSource, sales ledger.SaleSource, types ledger.TypeResolver) *RecomputeEngine {
	return &RecomputeEngine{DB: db, Logger: logger, Jobs: jobs, Sales: sales, Types: types}
}

// ProcessRecompute adapts a queued message to a run; the dispatcher and the
// pubsub handler both deliver through here.
func (e *RecomputeEngine) ProcessRecompute(ctx context.Context, msg config.RecomputeMessage) error {
	triggeredBy := msg.Reason
	if triggeredBy == "" {
		triggeredBy = "api"
	}
	_, err := e.Run(ctx, msg.UserId, msg.LookbackDays, triggeredBy, msg.CorrelationId)
	return err
}

// snapshot is everything one run produces, staged before the commit.
type snapshot struct {
	matches        []*models.ProfitMatch
	unmatchedJobs  []*models.UnmatchedJobLot
	unmatchedSales []*models.UnmatchedSaleLot
	summaries      []*models.ProfitItemSummary
	margins        []*models.ProfitDailyMargin
	skippedTypes   []int64
}

func (e *RecomputeEngine) Run(ctx context.Context, userId string, lookbackDays int, triggeredBy string, correlationId string) (*models.ProfitRecomputeRun, error) {
	if userId == "" {
		return nil, errors.New("user id is required")
	}
	ctx = utils.SetUserIdInContext(ctx, userId)

	settings, err := models.GetOrCreateProfitSettings(ctx)
	if err != nil {
		return nil, err
	}

	if lookbackDays <= 0 {
		lookbackDays = settings.LookbackDays
	}
	lookbackDays = utils.ClampInt(lookbackDays, models.MinLookbackDays, models.MaxLookbackDays)

	run, err := models.StartRecomputeRun(ctx, userId, triggeredBy, lookbackDays, correlationId)
	if err != nil {
		return nil, err
	}

	snap, err := e.buildSnapshot(ctx, userId, run, lookbackDays, settings)
	if err != nil {
		e.failRun(ctx, run, err)
		return run, err
	}

	if err := e.commitSnapshot(ctx, userId, run, snap); err != nil {
		e.failRun(ctx, run, err)
		return run, err
	}

	// Committed snapshot invalidates this user's cached summary.
	_ = models.InvalidateProfitSummaryCache(userId)

	return run, nil
}

func (e *RecomputeEngine) failRun(ctx context.Context, run *models.ProfitRecomputeRun, runErr error) {
	config.LogError(e.Logger, moduleName, "Run", "recompute failed", map[string]interface{}{
		"user_id": run.UserId,
		"run_id":  run.ID,
	}, runErr)
	if err := models.FinishRecomputeRunFailed(ctx, run, runErr); err != nil {
		config.LogError(e.Logger, moduleName, "Run", "mark run failed", run.ID, err)
	}
}

func (e *RecomputeEngine) buildSnapshot(ctx context.Context, userId string, run *models.ProfitRecomputeRun, lookbackDays int, settings *models.ProfitSettings) (*snapshot, error) {
	since := utils.DayKey(time.Now().UTC().AddDate(0, 0, -lookbackDays))
	matchedAt := time.Now().UTC()
	if run.StartedAt != nil {
		matchedAt = *run.StartedAt
	}
	basis := ledger.CostBasis(settings.CostSource)

	jobs, err := e.Jobs.FetchCompletedJobs(ctx, userId, since)
	if err != nil {
		return nil, fmt.Errorf("fetch completed jobs: %w", err)
	}
	sales, err := e.Sales.FetchSales(ctx, userId, since)
	if err != nil {
		return nil, fmt.Errorf("fetch sales: %w", err)
	}

	jobsByType := GroupJobsByType(jobs)
	salesByType := GroupSalesByType(sales)

	typeIds := make([]int64, 0, len(jobsByType)+len(salesByType))
	for typeId := range jobsByType {
		typeIds = append(typeIds, typeId)
	}
	for typeId := range salesByType {
		if _, dup := jobsByType[typeId]; !dup {
			typeIds = append(typeIds, typeId)
		}
	}
	sort.Slice(typeIds, func(a, b int) bool { return typeIds[a] < typeIds[b] })

	snap := &snapshot{}

	for _, typeId := range typeIds {
		typeName, err := e.Types.ResolveTypeName(ctx, typeId)
		if err != nil {
			// One unresolvable type must not sink the whole run. Its lots
			// are dropped from this snapshot and the skip is recorded.
			config.LogError(e.Logger, moduleName, "buildSnapshot", "type resolution failed; skipping type", map[string]interface{}{
				"user_id": userId,
				"type_id": typeId,
			}, err)
			snap.skippedTypes = append(snap.skippedTypes, typeId)
			continue
		}

		result := MatchType(typeId, jobsByType[typeId], salesByType[typeId])

		for _, pair := range result.Pairs {
			costing := CostMatchedPair(pair, settings.TaxRate, basis)
			snap.matches = append(snap.matches, &models.ProfitMatch{
				UserId:         userId,
				RunId:          run.ID,
				TypeId:         typeId,
				TypeName:       typeName,
				JobId:          pair.Job.JobId,
				TransactionId:  pair.Sale.TransactionId,
				Quantity:       pair.Quantity,
				UnitPrice:      pair.Sale.UnitPrice,
				Revenue:        costing.Revenue,
				MaterialCost:   costing.MaterialCost,
				JobInstallCost: costing.JobInstallCost,
				TaxAmount:      costing.TaxAmount,
				Profit:         costing.Profit,
				MarginPercent:  costing.MarginPercent,
				JobDate:        pair.Job.CompletedAt,
				SaleDate:       pair.Sale.SaleDate,
				MatchedAt:      matchedAt,
			})
		}

		for _, lot := range result.UnmatchedJobs {
			snap.unmatchedJobs = append(snap.unmatchedJobs, &models.UnmatchedJobLot{
				UserId:            userId,
				RunId:             run.ID,
				JobId:             lot.JobId,
				TypeId:            typeId,
				TypeName:          typeName,
				Quantity:          lot.Quantity,
				QuantityRemaining: lot.QuantityRemaining,
				MaterialCost:      lot.MaterialCost(basis),
				JobInstallCost:    lot.JobInstallCost,
				JobDate:           lot.CompletedAt,
			})
		}
		for _, lot := range result.UnmatchedSales {
			snap.unmatchedSales = append(snap.unmatchedSales, &models.UnmatchedSaleLot{
				UserId:            userId,
				RunId:             run.ID,
				TransactionId:     lot.TransactionId,
				TypeId:            typeId,
				TypeName:          typeName,
				Quantity:          lot.Quantity,
				QuantityRemaining: lot.QuantityRemaining,
				UnitPrice:         lot.UnitPrice,
				SaleDate:          lot.SaleDate,
			})
		}
	}

	snap.summaries = BuildItemSummaries(userId, run.ID, snap.matches)
	snap.margins = BuildDailyMargins(userId, run.ID, snap.matches)

	return snap, nil
}

// commitSnapshot wholesale-replaces the user's snapshot tables and stamps the
// run row, all in one transaction under the per-user advisory lock. Readers
// keep seeing the previous snapshot until the commit lands.
func (e *RecomputeEngine) commitSnapshot(ctx context.Context, userId string, run *models.ProfitRecomputeRun, snap *snapshot) error {
	return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := AcquireUserRecomputeLock(tx, userId); err != nil {
			return err
		}
		defer ReleaseUserRecomputeLock(tx, userId)

		if err := models.ReplaceProfitMatches(tx, userId, snap.matches); err != nil {
			return err
		}
		if err := models.ReplaceUnmatchedJobLots(tx, userId, snap.unmatchedJobs); err != nil {
			return err
		}
		if err := models.ReplaceUnmatchedSaleLots(tx, userId, snap.unmatchedSales); err != nil {
			return err
		}
		if err := models.ReplaceProfitItemSummaries(tx, userId, snap.summaries); err != nil {
			return err
		}
		if err := models.ReplaceProfitDailyMargins(tx, userId, snap.margins); err != nil {
			return err
		}

		return models.FinishRecomputeRunSuccess(tx, run, models.RunStats{
			MatchCount:         len(snap.matches),
			UnmatchedJobCount:  len(snap.unmatchedJobs),
			UnmatchedSaleCount: len(snap.unmatchedSales),
			SkippedTypes:       snap.skippedTypes,
		})
	})
}

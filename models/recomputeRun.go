package models

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mmindustry/forge_backend/config"
	"github.com/mmindustry/forge_backend/utils"
	"gorm.io/gorm"
)

const (
	RunStatusRunning = "running"
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// ProfitRecomputeRun records one snapshot rebuild attempt. A failed run keeps
// the previous snapshot untouched; the row is the only trace of the failure.
type ProfitRecomputeRun struct {
	ID                 uint       `gorm:"primary_key" json:"id"`
	UserId             string     `gorm:"index;size:64;not null" json:"user_id"`
	Status             string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy        string     `gorm:"size:20" json:"triggered_by"`
	LookbackDays       int        `json:"lookback_days"`
	CorrelationId      string     `gorm:"size:64" json:"correlation_id"`
	MatchCount         int        `json:"match_count"`
	UnmatchedJobCount  int        `json:"unmatched_job_count"`
	UnmatchedSaleCount int        `json:"unmatched_sale_count"`
	SkippedTypesJSON   []byte     `gorm:"type:json" json:"skipped_types"`
	LastError          string     `gorm:"size:1024" json:"last_error"`
	StartedAt          *time.Time `json:"started_at"`
	FinishedAt         *time.Time `json:"finished_at"`
	DurationMs         int64      `json:"duration_ms"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// RunStats carries the counters a finished run reports.
type RunStats struct {
	MatchCount         int
	UnmatchedJobCount  int
	UnmatchedSaleCount int
	SkippedTypes       []int64
}

func StartRecomputeRun(ctx context.Context, userId string, triggeredBy string, lookbackDays int, correlationId string) (*ProfitRecomputeRun, error) {
	now := time.Now().UTC()
	run := ProfitRecomputeRun{
		UserId:        userId,
		Status:        RunStatusRunning,
		TriggeredBy:   triggeredBy,
		LookbackDays:  lookbackDays,
		CorrelationId: correlationId,
		StartedAt:     &now,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// FinishRecomputeRunSuccess stamps the run inside the snapshot transaction so
// the run row and the snapshot it describes commit together.
func FinishRecomputeRunSuccess(tx *gorm.DB, run *ProfitRecomputeRun, stats RunStats) error {
	now := time.Now().UTC()
	skipped, err := json.Marshal(stats.SkippedTypes)
	if err != nil {
		return err
	}

	updates := map[string]interface{}{
		"status":               RunStatusSuccess,
		"match_count":          stats.MatchCount,
		"unmatched_job_count":  stats.UnmatchedJobCount,
		"unmatched_sale_count": stats.UnmatchedSaleCount,
		"skipped_types_json":   skipped,
		"finished_at":          now,
	}
	if run.StartedAt != nil {
		updates["duration_ms"] = now.Sub(*run.StartedAt).Milliseconds()
	}
	if err := tx.Model(&ProfitRecomputeRun{}).Where("id = ?", run.ID).Updates(updates).Error; err != nil {
		return err
	}

	run.Status = RunStatusSuccess
	run.MatchCount = stats.MatchCount
	run.UnmatchedJobCount = stats.UnmatchedJobCount
	run.UnmatchedSaleCount = stats.UnmatchedSaleCount
	run.SkippedTypesJSON = skipped
	run.FinishedAt = &now
	if run.StartedAt != nil {
		run.DurationMs = now.Sub(*run.StartedAt).Milliseconds()
	}
	return nil
}

// FinishRecomputeRunFailed runs outside any snapshot transaction; the failure
// must be visible even though the snapshot rolled back.
func FinishRecomputeRunFailed(ctx context.Context, run *ProfitRecomputeRun, runErr error) error {
	now := time.Now().UTC()
	msg := runErr.Error()
	if len(msg) > 1024 {
		msg = msg[:1024]
	}

	updates := map[string]interface{}{
		"status":      RunStatusFailed,
		"last_error":  msg,
		"finished_at": now,
	}
	if run.StartedAt != nil {
		updates["duration_ms"] = now.Sub(*run.StartedAt).Milliseconds()
	}
	db := config.GetDB()
	return db.WithContext(ctx).Model(&ProfitRecomputeRun{}).Where("id = ?", run.ID).Updates(updates).Error
}

func GetRecomputeRuns(ctx context.Context, limit int) ([]*ProfitRecomputeRun, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId == "" {
		return nil, errors.New("user id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var results []*ProfitRecomputeRun
	db := config.GetDB()
	err := db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("id DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

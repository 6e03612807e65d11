package main

import (
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mmindustry/forge_backend/config"
	"github.com/mmindustry/forge_backend/models"
	"github.com/mmindustry/forge_backend/utils"
)

func daysParam(c *gin.Context) int {
	days := utils.IntQueryParam(c.Query("days"), models.DefaultLookbackDays)
	return utils.ClampInt(days, models.MinLookbackDays, models.MaxLookbackDays)
}

type recomputeTriggerRequest struct {
	LookbackDays int `json:"lookback_days" binding:"omitempty,min=1,max=365"`
}

// recomputeTriggerHandler queues a snapshot rebuild. With a Pub/Sub topic
// configured the trigger is published for cross-instance dispatch; otherwise
// it goes straight onto this instance's worker pool.
func recomputeTriggerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())

		var req recomputeTriggerRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				if fields := utils.ProcessValidationErrors(err); fields != nil {
					c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
					return
				}
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
				return
			}
		}

		msg := config.RecomputeMessage{
			UserId:        userId,
			LookbackDays:  req.LookbackDays,
			Reason:        "api",
			CorrelationId: cid,
		}

		if os.Getenv("PUBSUB_RECOMPUTE_TOPIC") != "" {
			if _, err := config.PublishRecomputeWorkflowWithResult(c.Request.Context(), userId, msg); err != nil {
				config.LogError(config.GetLogger(), "profitHandlers.go", "recomputeTriggerHandler", "publish", msg, err)
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not queue recompute"})
				return
			}
			c.JSON(http.StatusAccepted, gin.H{
				"queued":         true,
				"user_id":        userId,
				"lookback_days":  req.LookbackDays,
				"correlation_id": cid,
			})
			return
		}

		if recomputeDispatcher == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "recompute worker not ready"})
			return
		}
		queued, err := recomputeDispatcher.Enqueue(msg)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"queued":         queued,
			"user_id":        userId,
			"lookback_days":  req.LookbackDays,
			"correlation_id": cid,
		})
	}
}

func getSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		settings, err := models.GetOrCreateProfitSettings(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}

func updateSettingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch models.ProfitSettingsPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			if fields := utils.ProcessValidationErrors(err); fields != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		settings, err := models.UpdateProfitSettings(c.Request.Context(), &patch)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, settings)
	}
}

// itemRow adds the derived total cost to a summary row.
type itemRow struct {
	*models.ProfitItemSummary
	TotalCost string `json:"total_cost"`
}

func listItemsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := models.GetProfitItemSummaries(c.Request.Context(), c.Query("sort"), c.Query("order"), c.Query("filter"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		rows := make([]itemRow, 0, len(items))
		for _, item := range items {
			rows = append(rows, itemRow{
				ProfitItemSummary: item,
				TotalCost:         item.TotalMaterial.Add(item.TotalInstall).Add(item.TotalTax).String(),
			})
		}
		c.JSON(http.StatusOK, gin.H{"items": rows})
	}
}

func getItemHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		typeId, err := strconv.ParseInt(c.Param("typeId"), 10, 64)
		if err != nil || typeId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type id"})
			return
		}
		days := daysParam(c)

		summary, err := models.GetProfitItemSummary(c.Request.Context(), typeId)
		if err != nil {
			if err == utils.ErrorRecordNotFound {
				c.JSON(http.StatusNotFound, gin.H{"error": "no profit data for type"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		matches, err := models.GetProfitMatches(c.Request.Context(), days, &typeId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		trend, err := models.GetProfitDailyMargins(c.Request.Context(), days, &typeId)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"cost_breakdown": itemRow{
				ProfitItemSummary: summary,
				TotalCost:         summary.TotalMaterial.Add(summary.TotalInstall).Add(summary.TotalTax).String(),
			},
			"matches":      matches,
			"margin_trend": trend,
		})
	}
}

func listUnmatchedHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		days := daysParam(c)

		jobs, err := models.GetUnmatchedJobLots(c.Request.Context(), days)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sales, err := models.GetUnmatchedSaleLots(c.Request.Context(), days)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"unmatched_jobs":  jobs,
			"unmatched_sales": sales,
		})
	}
}

func getSummaryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := models.GetProfitSummary(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		trend, err := models.GetProfitDailyMargins(c.Request.Context(), daysParam(c), nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"summary":      summary,
			"margin_trend": trend,
		})
	}
}

func listRunsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := utils.IntQueryParam(c.Query("limit"), 20)
		runs, err := models.GetRecomputeRuns(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs})
	}
}

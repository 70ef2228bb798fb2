package sync

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ethanbaker/clubsync/internal/drift"
	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/scheduler"
	"github.com/ethanbaker/clubsync/internal/stores/syncop"
	"github.com/ethanbaker/clubsync/pkg/sdk"
	"github.com/gin-gonic/gin"
)

// Controller exposes operator-facing sync actions: manual bulk sync runs,
// on-demand drift sampling, and the audit trail
type Controller struct {
	runner   *scheduler.Runner
	detector *drift.Detector
	ops      syncop.Store
}

var controller *Controller

type syncRequest struct {
	Scope string `json:"scope"`
}

type driftRequest struct {
	Platform   string `json:"platform"`
	SampleSize int    `json:"sample_size"`
}

// triggerSync handles POST requests to run one platform's bulk sync now
func triggerSync(c *gin.Context) {
	platform, err := platforms.Parse(c.Param("platform"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusNotFound, "Unknown platform", err).AsGinResponse())
		return
	}

	// Body is optional; an empty scope syncs the configured default
	var req syncRequest
	_ = c.ShouldBindJSON(&req)

	result, err := controller.runner.BulkSync(c.Request.Context(), platform, req.Scope, syncop.KindManual)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Bulk sync failed", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Bulk sync completed", result).AsGinResponse())
}

// triggerDrift handles POST requests to run a drift sampling cycle
func triggerDrift(c *gin.Context) {
	var req driftRequest
	_ = c.ShouldBindJSON(&req)

	targets := controller.runner.Registry().Platforms()
	if req.Platform != "" {
		platform, err := platforms.Parse(req.Platform)
		if err != nil {
			c.JSON(sdk.NewErrorResponse(http.StatusNotFound, "Unknown platform", err).AsGinResponse())
			return
		}
		targets = []platforms.Platform{platform}
	}

	reports := make([]*drift.Report, 0, len(targets))
	for _, platform := range targets {
		report, err := controller.detector.Run(c.Request.Context(), platform, req.SampleSize)
		if err != nil {
			c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Drift detection failed", err).AsGinResponse())
			return
		}
		reports = append(reports, report)
	}

	c.JSON(sdk.NewSuccessResponse("Drift detection completed", reports).AsGinResponse())
}

// listOperations handles GET requests against the sync audit trail
func listOperations(c *gin.Context) {
	filter := syncop.Filter{
		Platform: c.Query("platform"),
		Status:   c.Query("status"),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid 'since' timestamp, expected RFC3339", err).AsGinResponse())
			return
		}
		filter.Since = t
	}

	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Invalid 'limit' value", err).AsGinResponse())
			return
		}
		filter.Limit = n
	}

	ops, err := controller.ops.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to list operations", err).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Operations retrieved successfully", ops).AsGinResponse())
}

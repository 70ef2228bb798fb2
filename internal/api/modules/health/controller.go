package health

import (
	"github.com/ethanbaker/clubsync/internal/queue"
	"github.com/ethanbaker/clubsync/pkg/sdk"
	"github.com/gin-gonic/gin"
)

var webhookQueue *queue.Queue

// getStatus handles GET requests for the service health check
func getStatus(c *gin.Context) {
	data := gin.H{"status": "operational"}
	if webhookQueue != nil {
		data["queued_webhooks"] = webhookQueue.Len()
	}

	c.JSON(sdk.NewSuccessResponse("Service is healthy", data).AsGinResponse())
}

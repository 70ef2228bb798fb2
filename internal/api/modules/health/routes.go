package health

import (
	"github.com/ethanbaker/clubsync/internal/queue"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the routes for the health module
func RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/health", getStatus)
}

// Init wires the health module's dependencies
func Init(q *queue.Queue) {
	webhookQueue = q
}

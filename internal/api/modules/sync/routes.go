package sync

import (
	"github.com/ethanbaker/clubsync/internal/drift"
	"github.com/ethanbaker/clubsync/internal/scheduler"
	"github.com/ethanbaker/clubsync/internal/stores/syncop"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the routes for the sync module
func RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/sync/:platform", triggerSync)
	g.POST("/drift", triggerDrift)
	g.GET("/operations", listOperations)
}

// Init wires the sync module's dependencies. Must be called before the
// engine starts serving.
func Init(runner *scheduler.Runner, detector *drift.Detector, ops syncop.Store) {
	controller = &Controller{
		runner:   runner,
		detector: detector,
		ops:      ops,
	}
}

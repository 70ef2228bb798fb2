package webhook

import (
	"github.com/ethanbaker/clubsync/internal/queue"
	"github.com/ethanbaker/clubsync/internal/stores/syncop"
	"github.com/ethanbaker/clubsync/pkg/signature"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the routes for the webhook module
func RegisterRoutes(g *gin.RouterGroup) {
	group := g.Group("/webhooks")

	group.POST("/:platform", handleWebhook)
}

// Init wires the webhook module's dependencies. Must be called before the
// engine starts serving.
func Init(verifiers *signature.Registry, q *queue.Queue, ops syncop.Store) {
	controller = &Controller{
		verifiers: verifiers,
		queue:     q,
		ops:       ops,
	}
}

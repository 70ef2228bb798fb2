package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/queue"
	"github.com/ethanbaker/clubsync/internal/stores/syncop"
	"github.com/ethanbaker/clubsync/pkg/sdk"
	"github.com/ethanbaker/clubsync/pkg/signature"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// eventTypeHeaders maps platforms to the header their webhooks carry the
// trigger name in. Platforms absent here embed the event type in the payload.
var eventTypeHeaders = map[platforms.Platform]string{
	platforms.PlatformPatronage: "X-Patronage-Event",
}

// Controller handles webhook ingestion: verify, record, enqueue, return.
// Processing happens on the queue's worker pool so slow platform API calls
// never hold the delivering platform's connection open.
type Controller struct {
	verifiers *signature.Registry
	queue     *queue.Queue
	ops       syncop.Store
}

var controller *Controller

// handleWebhook handles POST requests delivering one platform webhook
func handleWebhook(c *gin.Context) {
	platform, err := platforms.Parse(c.Param("platform"))
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusNotFound, "Unknown platform", err).AsGinResponse())
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusBadRequest, "Could not read request body", err).AsGinResponse())
		return
	}

	// Authenticate before any payload inspection
	if _, err := controller.verifiers.Verify(string(platform), body, c.Request.Header); err != nil {
		log.Printf("[WEBHOOK]: Rejected %s delivery: %v", platform, err)
		c.JSON(sdk.NewErrorResponse(http.StatusUnauthorized, "Signature verification failed", err).AsGinResponse())
		return
	}

	// Ticketing's webhook subscription handshake expects the challenge
	// echoed back and delivers no member data
	if platform == platforms.PlatformTicketing {
		if challenge := extractChallenge(body); challenge != "" {
			c.JSON(http.StatusOK, gin.H{"challenge": challenge})
			return
		}
	}

	eventType := ""
	if header, ok := eventTypeHeaders[platform]; ok {
		eventType = c.GetHeader(header)
	}

	// The operation is durably pending before the queue sees the job, so a
	// crash between here and processing leaves a visible stuck record
	op, err := controller.ops.Create(c.Request.Context(), string(platform), syncop.KindWebhook, eventType, "", body)
	if err != nil {
		c.JSON(sdk.NewErrorResponse(http.StatusInternalServerError, "Failed to record operation", err).AsGinResponse())
		return
	}

	job := queue.Job{
		ID:          uuid.NewString(),
		Platform:    string(platform),
		EventType:   eventType,
		OperationID: op.ID,
		Payload:     body,
	}

	if !controller.queue.TryEnqueue(job) {
		if err := controller.ops.Complete(c.Request.Context(), op.ID, syncop.StatusFailed, "webhook queue full", nil); err != nil {
			log.Printf("[WEBHOOK]: Failed to fail operation %d after queue rejection: %v", op.ID, err)
		}

		c.JSON(sdk.NewErrorResponse(http.StatusServiceUnavailable, "Webhook queue is full", nil).AsGinResponse())
		return
	}

	c.JSON(sdk.NewSuccessResponse("Webhook accepted", gin.H{
		"operation_id":   op.ID,
		"correlation_id": job.ID,
	}).AsGinResponse())
}

// extractChallenge pulls the handshake token out of a subscription
// verification payload, returning "" for regular event deliveries
func extractChallenge(body []byte) string {
	var probe struct {
		Challenge string `json:"challenge"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	return probe.Challenge
}

// Processor builds the queue handler that drains webhook jobs: dispatch to
// the platform adapter, then complete the pending operation exactly once
func Processor(registry *platforms.Registry, ops syncop.Store) queue.Handler {
	return func(ctx context.Context, job queue.Job) {
		adapter, err := registry.Get(platforms.Platform(job.Platform))
		if err != nil {
			completeFailed(ctx, ops, job, err)
			return
		}

		result, err := adapter.HandleWebhook(ctx, job.EventType, job.Payload)
		if err != nil {
			completeFailed(ctx, ops, job, err)
			return
		}

		var memberID *uint
		if result.MemberID != 0 {
			memberID = &result.MemberID
		}
		if err := ops.Complete(ctx, job.OperationID, syncop.StatusSuccess, result.Action, memberID); err != nil {
			log.Printf("[WEBHOOK]: Job '%s' failed to complete operation %d: %v", job.ID, job.OperationID, err)
		}
	}
}

func completeFailed(ctx context.Context, ops syncop.Store, job queue.Job, cause error) {
	log.Printf("[WEBHOOK]: Job '%s' (%s) failed: %v", job.ID, job.Platform, cause)
	if err := ops.Complete(ctx, job.OperationID, syncop.StatusFailed, cause.Error(), nil); err != nil {
		log.Printf("[WEBHOOK]: Job '%s' failed to complete operation %d: %v", job.ID, job.OperationID, err)
	}
}

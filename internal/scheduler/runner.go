package scheduler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/syncop"
)

// Runner executes bulk syncs with full audit-trail bookkeeping. Both the
// cron schedule and the manual HTTP trigger go through it, so every run is
// durably recorded whatever started it.
type Runner struct {
	registry *platforms.Registry
	ops      syncop.Store
}

// NewRunner creates a runner over the adapter registry and the operation
// tracker
func NewRunner(registry *platforms.Registry, ops syncop.Store) *Runner {
	return &Runner{registry: registry, ops: ops}
}

// Registry exposes the adapter registry for callers that dispatch directly
func (r *Runner) Registry() *platforms.Registry {
	return r.registry
}

// BulkSync records a pending operation, runs the platform's bulk sync, and
// completes the operation with the outcome. kind distinguishes scheduled
// runs (bulk_sync) from operator-triggered ones (manual).
func (r *Runner) BulkSync(ctx context.Context, platform platforms.Platform, scope, kind string) (*platforms.BulkResult, error) {
	adapter, err := r.registry.Get(platform)
	if err != nil {
		return nil, err
	}

	payload, _ := json.Marshal(map[string]string{"scope": scope})
	op, err := r.ops.Create(ctx, string(platform), kind, "", "", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to record sync operation: %w", err)
	}

	result, err := adapter.BulkSync(ctx, scope)
	if err != nil {
		if completeErr := r.ops.Complete(ctx, op.ID, syncop.StatusFailed, err.Error(), nil); completeErr != nil {
			return result, fmt.Errorf("%w (also failed to complete operation: %v)", err, completeErr)
		}
		return result, err
	}

	message := fmt.Sprintf("synced=%d errors=%d", result.Synced, result.Errors)
	if err := r.ops.Complete(ctx, op.ID, syncop.StatusSuccess, message, nil); err != nil {
		return result, fmt.Errorf("failed to complete sync operation: %w", err)
	}

	return result, nil
}

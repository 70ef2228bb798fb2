package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethanbaker/clubsync/internal/drift"
	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/integration"
	"github.com/ethanbaker/clubsync/internal/stores/member"
	"github.com/ethanbaker/clubsync/internal/stores/syncop"
	"github.com/ethanbaker/clubsync/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a scriptable adapter for scheduler tests
type fakeAdapter struct {
	platform    platforms.Platform
	bulkResult  *platforms.BulkResult
	bulkErr     error
	bulkCalls   int
	webhookErr  error
	webhookHits []string
}

func (f *fakeAdapter) Platform() platforms.Platform { return f.platform }

func (f *fakeAdapter) HandleWebhook(_ context.Context, eventType string, _ []byte) (*platforms.SyncResult, error) {
	f.webhookHits = append(f.webhookHits, eventType)
	if f.webhookErr != nil {
		return nil, f.webhookErr
	}
	return &platforms.SyncResult{MemberID: 7, Action: "synced"}, nil
}

func (f *fakeAdapter) SyncOne(_ context.Context, _ *platforms.ExternalRecord) (*member.Member, error) {
	return nil, nil
}

func (f *fakeAdapter) BulkSync(_ context.Context, _ string) (*platforms.BulkResult, error) {
	f.bulkCalls++
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	return f.bulkResult, nil
}

func (f *fakeAdapter) FetchRecord(_ context.Context, externalID string) (*platforms.ExternalRecord, error) {
	return &platforms.ExternalRecord{ExternalID: externalID}, nil
}

func TestRunnerBulkSync(t *testing.T) {
	t.Run("SuccessfulRunIsRecorded", func(t *testing.T) {
		adapter := &fakeAdapter{
			platform:   platforms.PlatformTicketing,
			bulkResult: &platforms.BulkResult{Synced: 12, Errors: 2},
		}
		ops := syncop.NewInMemoryStore()
		runner := NewRunner(platforms.NewRegistry(adapter), ops)

		result, err := runner.BulkSync(context.Background(), platforms.PlatformTicketing, "", syncop.KindBulkSync)
		require.NoError(t, err)
		assert.Equal(t, 12, result.Synced)
		assert.Equal(t, 2, result.Errors)

		op, exists := ops.Get(1)
		require.True(t, exists)
		assert.Equal(t, syncop.StatusSuccess, op.Status)
		assert.Equal(t, syncop.KindBulkSync, op.Kind)
		assert.Equal(t, "synced=12 errors=2", op.ErrorMessage)
		assert.NotNil(t, op.ProcessedAt)
	})

	t.Run("FailedRunIsRecordedAsFailed", func(t *testing.T) {
		adapter := &fakeAdapter{
			platform: platforms.PlatformPatronage,
			bulkErr:  fmt.Errorf("upstream unavailable"),
		}
		ops := syncop.NewInMemoryStore()
		runner := NewRunner(platforms.NewRegistry(adapter), ops)

		_, err := runner.BulkSync(context.Background(), platforms.PlatformPatronage, "", syncop.KindManual)
		require.Error(t, err)

		op, exists := ops.Get(1)
		require.True(t, exists)
		assert.Equal(t, syncop.StatusFailed, op.Status)
		assert.Equal(t, syncop.KindManual, op.Kind)
		assert.Contains(t, op.ErrorMessage, "upstream unavailable")
	})

	t.Run("UnknownPlatformCreatesNoOperation", func(t *testing.T) {
		ops := syncop.NewInMemoryStore()
		runner := NewRunner(platforms.NewRegistry(), ops)

		_, err := runner.BulkSync(context.Background(), platforms.PlatformTicketing, "", syncop.KindBulkSync)
		require.Error(t, err)
		assert.Equal(t, 0, ops.Count())
	})
}

func TestSchedulerRunWithRetry(t *testing.T) {
	newScheduler := func(cfg *utils.Config) *Scheduler {
		ops := syncop.NewInMemoryStore()
		runner := NewRunner(platforms.NewRegistry(), ops)
		return NewScheduler(cfg, runner, nil, ops)
	}

	t.Run("SucceedsWithoutRetry", func(t *testing.T) {
		s := newScheduler(utils.NewConfig(map[string]string{"SCHEDULER_BASE_DELAY": "1ms"}))

		calls := 0
		s.runWithRetry("test", func(_ context.Context) error {
			calls++
			return nil
		})

		assert.Equal(t, 1, calls)
	})

	t.Run("RetriesUntilSuccess", func(t *testing.T) {
		s := newScheduler(utils.NewConfig(map[string]string{"SCHEDULER_BASE_DELAY": "1ms"}))

		calls := 0
		s.runWithRetry("test", func(_ context.Context) error {
			calls++
			if calls < 3 {
				return fmt.Errorf("transient")
			}
			return nil
		})

		assert.Equal(t, 3, calls)
	})

	t.Run("GivesUpAfterRetryBudget", func(t *testing.T) {
		s := newScheduler(utils.NewConfig(map[string]string{
			"SCHEDULER_BASE_DELAY": "1ms",
			"MAX_RETRY_ATTEMPTS":   "2",
		}))

		calls := 0
		s.runWithRetry("test", func(_ context.Context) error {
			calls++
			return fmt.Errorf("permanent")
		})

		// Initial attempt plus two retries
		assert.Equal(t, 3, calls)
	})

	t.Run("StopsRetryingWhenCancelled", func(t *testing.T) {
		s := newScheduler(utils.NewConfig(map[string]string{"SCHEDULER_BASE_DELAY": "1h"}))
		s.cancel()

		calls := 0
		s.runWithRetry("test", func(_ context.Context) error {
			calls++
			return fmt.Errorf("transient")
		})

		assert.Equal(t, 1, calls)
	})
}

func TestSchedulerPlatformSpec(t *testing.T) {
	newScheduler := func(cfg *utils.Config, adapters ...platforms.Adapter) *Scheduler {
		ops := syncop.NewInMemoryStore()
		runner := NewRunner(platforms.NewRegistry(adapters...), ops)
		return NewScheduler(cfg, runner, nil, ops)
	}

	t.Run("DefaultIntervals", func(t *testing.T) {
		s := newScheduler(utils.NewConfig(nil))

		assert.Equal(t, "@every 1h0m0s", s.platformSpec(platforms.PlatformTicketing, &ScheduleConfig{}))
		assert.Equal(t, "@every 30m0s", s.platformSpec(platforms.PlatformChatCommunity, &ScheduleConfig{}))
	})

	t.Run("EnvironmentOverride", func(t *testing.T) {
		s := newScheduler(utils.NewConfig(map[string]string{
			"SYNC_INTERVAL_EMAIL_MARKETING": "2h",
		}))

		assert.Equal(t, "@every 2h0m0s", s.platformSpec(platforms.PlatformEmailMarketing, &ScheduleConfig{}))
	})

	t.Run("YamlOverrideWinsOverEnvironment", func(t *testing.T) {
		s := newScheduler(utils.NewConfig(map[string]string{
			"SYNC_INTERVAL_TICKETING": "2h",
		}))
		overrides := &ScheduleConfig{Platforms: map[string]string{"ticketing": "@every 15m"}}

		assert.Equal(t, "@every 15m", s.platformSpec(platforms.PlatformTicketing, overrides))
	})

	t.Run("LoadsScheduleFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schedule.yml")
		content := "platforms:\n  patronage: \"@every 3h\"\ndrift: \"@every 48h\"\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		s := newScheduler(utils.NewConfig(map[string]string{"SYNC_SCHEDULE_PATH": path}))
		overrides := s.loadScheduleConfig()

		assert.Equal(t, "@every 3h", overrides.Platforms["patronage"])
		assert.Equal(t, "@every 48h", overrides.Drift)
	})

	t.Run("MissingScheduleFileFallsBackToDefaults", func(t *testing.T) {
		s := newScheduler(utils.NewConfig(map[string]string{"SYNC_SCHEDULE_PATH": "/nonexistent/schedule.yml"}))
		overrides := s.loadScheduleConfig()

		assert.Empty(t, overrides.Platforms)
		assert.Empty(t, overrides.Drift)
	})
}

func TestSchedulerStaleSweep(t *testing.T) {
	cfg := utils.NewConfig(map[string]string{"STALE_PENDING_AFTER": "0s"})

	t.Run("ReprocessesStaleWebhookOperations", func(t *testing.T) {
		adapter := &fakeAdapter{platform: platforms.PlatformPatronage}
		ops := syncop.NewInMemoryStore()
		runner := NewRunner(platforms.NewRegistry(adapter), ops)
		s := NewScheduler(cfg, runner, nil, ops)

		payload, _ := json.Marshal(map[string]string{"id": "patron-1"})
		op, err := ops.Create(context.Background(), string(platforms.PlatformPatronage),
			syncop.KindWebhook, "members:update", "patron-1", payload)
		require.NoError(t, err)

		// Make sure the operation is older than the zero threshold
		time.Sleep(5 * time.Millisecond)

		require.NoError(t, s.runStaleSweep(context.Background()))

		assert.Equal(t, []string{"members:update"}, adapter.webhookHits)

		updated, exists := ops.Get(op.ID)
		require.True(t, exists)
		assert.Equal(t, syncop.StatusSuccess, updated.Status)
		require.NotNil(t, updated.MemberID)
		assert.Equal(t, uint(7), *updated.MemberID)
	})

	t.Run("FailsStaleNonWebhookOperations", func(t *testing.T) {
		adapter := &fakeAdapter{platform: platforms.PlatformPatronage}
		ops := syncop.NewInMemoryStore()
		runner := NewRunner(platforms.NewRegistry(adapter), ops)
		s := NewScheduler(cfg, runner, nil, ops)

		op, err := ops.Create(context.Background(), string(platforms.PlatformPatronage),
			syncop.KindBulkSync, "", "", []byte(`{}`))
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		require.NoError(t, s.runStaleSweep(context.Background()))

		updated, exists := ops.Get(op.ID)
		require.True(t, exists)
		assert.Equal(t, syncop.StatusFailed, updated.Status)
		assert.Zero(t, adapter.webhookHits)
	})

	t.Run("FailsWebhookOperationWhenHandlerErrors", func(t *testing.T) {
		adapter := &fakeAdapter{
			platform:   platforms.PlatformPatronage,
			webhookErr: fmt.Errorf("payload no longer valid"),
		}
		ops := syncop.NewInMemoryStore()
		runner := NewRunner(platforms.NewRegistry(adapter), ops)
		s := NewScheduler(cfg, runner, nil, ops)

		op, err := ops.Create(context.Background(), string(platforms.PlatformPatronage),
			syncop.KindWebhook, "members:update", "patron-1", []byte(`{"id":"patron-1"}`))
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		require.NoError(t, s.runStaleSweep(context.Background()))

		updated, exists := ops.Get(op.ID)
		require.True(t, exists)
		assert.Equal(t, syncop.StatusFailed, updated.Status)
		assert.Contains(t, updated.ErrorMessage, "payload no longer valid")
	})
}

func TestSchedulerStartAndStop(t *testing.T) {
	adapter := &fakeAdapter{
		platform:   platforms.PlatformTicketing,
		bulkResult: &platforms.BulkResult{},
	}
	ops := syncop.NewInMemoryStore()
	runner := NewRunner(platforms.NewRegistry(adapter), ops)
	detector := drift.NewDetector(integration.NewInMemoryStore(), runner.Registry())
	cfg := utils.NewConfig(map[string]string{"SHUTDOWN_TIMEOUT": "1s"})

	s := NewScheduler(cfg, runner, detector, ops)
	require.NoError(t, s.Start())
	s.Stop()
}

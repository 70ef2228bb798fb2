// Package scheduler owns every recurring trigger of the sync engine:
// per-platform bulk syncs, drift sampling, and the stale-pending sweep.
// Tasks run on a cron instance with bounded retries and a cooperative drain
// on shutdown.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ethanbaker/clubsync/internal/drift"
	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/syncop"
	"github.com/ethanbaker/clubsync/pkg/utils"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Default bulk-sync intervals per platform: faster for high-churn
// platforms, slower for low-churn ones
var defaultIntervals = map[platforms.Platform]time.Duration{
	platforms.PlatformTicketing:      time.Hour,
	platforms.PlatformPatronage:      6 * time.Hour,
	platforms.PlatformEmailMarketing: 12 * time.Hour,
	platforms.PlatformChatCommunity:  30 * time.Minute,
}

// ScheduleConfig optionally overrides cron specs from a YAML file
type ScheduleConfig struct {
	Platforms  map[string]string `yaml:"platforms"`
	Drift      string            `yaml:"drift"`
	StaleSweep string            `yaml:"stale_sweep"`
}

// Scheduler runs the recurring sync and drift jobs
type Scheduler struct {
	cron     *cron.Cron
	runner   *Runner
	detector *drift.Detector
	ops      syncop.Store
	cfg      *utils.Config

	ctx    context.Context
	cancel context.CancelFunc

	maxRetries int
	baseDelay  time.Duration

	inflight sync.WaitGroup
}

// NewScheduler creates a scheduler; Start registers the entries and begins
// ticking
func NewScheduler(cfg *utils.Config, runner *Runner, detector *drift.Detector, ops syncop.Store) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:       cron.New(),
		runner:     runner,
		detector:   detector,
		ops:        ops,
		cfg:        cfg,
		ctx:        ctx,
		cancel:     cancel,
		maxRetries: cfg.GetIntWithDefault("MAX_RETRY_ATTEMPTS", 3),
		baseDelay:  cfg.GetDurationWithDefault("SCHEDULER_BASE_DELAY", 30*time.Second),
	}
}

// Start registers every recurring entry and starts the cron instance
func (s *Scheduler) Start() error {
	overrides := s.loadScheduleConfig()

	// Per-platform bulk sync
	for _, platform := range s.runner.Registry().Platforms() {
		platform := platform

		spec := s.platformSpec(platform, overrides)
		name := fmt.Sprintf("bulk-sync-%s", platform)

		if _, err := s.cron.AddFunc(spec, func() {
			s.runWithRetry(name, func(ctx context.Context) error {
				_, err := s.runner.BulkSync(ctx, platform, "", syncop.KindBulkSync)
				return err
			})
		}); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}

		log.Printf("[SCHEDULER]: Registered %s (%s)", name, spec)
	}

	// Drift sampling across all platforms
	driftSpec := overrides.Drift
	if driftSpec == "" {
		driftSpec = "@every " + s.cfg.GetDurationWithDefault("DRIFT_INTERVAL", 24*time.Hour).String()
	}
	if _, err := s.cron.AddFunc(driftSpec, func() {
		s.runWithRetry("drift-sampling", s.runDriftSampling)
	}); err != nil {
		return fmt.Errorf("failed to schedule drift sampling: %w", err)
	}
	log.Printf("[SCHEDULER]: Registered drift-sampling (%s)", driftSpec)

	// Stale pending sweep
	sweepSpec := overrides.StaleSweep
	if sweepSpec == "" {
		sweepSpec = "@every 10m"
	}
	if _, err := s.cron.AddFunc(sweepSpec, func() {
		s.runWithRetry("stale-sweep", s.runStaleSweep)
	}); err != nil {
		return fmt.Errorf("failed to schedule stale sweep: %w", err)
	}

	s.cron.Start()
	return nil
}

// Stop performs a cooperative drain: no new triggers fire, in-flight tasks
// finish up to the shutdown timeout, then the scheduler returns
func (s *Scheduler) Stop() {
	cronCtx := s.cron.Stop()
	<-cronCtx.Done()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	timeout := s.cfg.GetDurationWithDefault("SHUTDOWN_TIMEOUT", 30*time.Second)
	select {
	case <-done:
	case <-time.After(timeout):
		log.Printf("[SCHEDULER]: Shutdown timeout reached with tasks still in flight")
	}

	s.cancel()
}

// platformSpec resolves the cron spec for a platform's bulk sync
func (s *Scheduler) platformSpec(platform platforms.Platform, overrides *ScheduleConfig) string {
	if overrides.Platforms != nil {
		if spec, ok := overrides.Platforms[string(platform)]; ok && spec != "" {
			return spec
		}
	}

	key := "SYNC_INTERVAL_" + strings.ToUpper(strings.ReplaceAll(string(platform), "-", "_"))
	return "@every " + s.cfg.GetDurationWithDefault(key, defaultIntervals[platform]).String()
}

// loadScheduleConfig reads the optional YAML schedule override file
func (s *Scheduler) loadScheduleConfig() *ScheduleConfig {
	overrides := &ScheduleConfig{}

	path := s.cfg.Get("SYNC_SCHEDULE_PATH")
	if path == "" {
		return overrides
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("[SCHEDULER]: Warning, could not read schedule file %s: %v", path, err)
		return overrides
	}

	if err := yaml.Unmarshal(data, overrides); err != nil {
		log.Printf("[SCHEDULER]: Warning, could not parse schedule file %s: %v", path, err)
		return &ScheduleConfig{}
	}

	return overrides
}

// runWithRetry executes a task with exponential backoff up to the retry
// budget. An exhausted budget is logged as a failed run and left for the
// next scheduled occurrence, never retried indefinitely.
func (s *Scheduler) runWithRetry(name string, task func(ctx context.Context) error) {
	s.inflight.Add(1)
	defer s.inflight.Done()

	delay := s.baseDelay
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		err := task(s.ctx)
		if err == nil {
			return
		}

		if attempt == s.maxRetries {
			log.Printf("[SCHEDULER]: Task '%s' failed after %d attempts: %v", name, attempt+1, err)
			return
		}

		log.Printf("[SCHEDULER]: Task '%s' attempt %d failed, retrying in %s: %v", name, attempt+1, delay, err)

		select {
		case <-s.ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// runDriftSampling runs one drift detection cycle per platform
func (s *Scheduler) runDriftSampling(ctx context.Context) error {
	sampleSize := s.cfg.GetIntWithDefault("DRIFT_SAMPLE_SIZE", drift.DefaultSampleSize)

	var firstErr error
	for _, platform := range s.runner.Registry().Platforms() {
		report, err := s.detector.Run(ctx, platform, sampleSize)
		if err != nil {
			log.Printf("[SCHEDULER]: Drift sampling for %s failed: %v", platform, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		log.Printf("[SCHEDULER]: Drift sampling for %s: checked=%d drifted=%d",
			platform, report.TotalChecked, report.DriftedCount)
	}

	return firstErr
}

// runStaleSweep reprocesses webhook operations stuck pending past the
// staleness threshold (crash or store outage mid-sync) and fails the rest
func (s *Scheduler) runStaleSweep(ctx context.Context) error {
	threshold := s.cfg.GetDurationWithDefault("STALE_PENDING_AFTER", time.Hour)

	stale, err := s.ops.FindStalePending(ctx, threshold)
	if err != nil {
		return err
	}

	for _, op := range stale {
		if op.Kind != syncop.KindWebhook || op.Payload == "" {
			if err := s.ops.Complete(ctx, op.ID, syncop.StatusFailed, "stale pending operation", nil); err != nil {
				log.Printf("[SCHEDULER]: Failed to fail stale operation %d: %v", op.ID, err)
			}
			continue
		}

		adapter, err := s.runner.Registry().Get(platforms.Platform(op.Platform))
		if err != nil {
			_ = s.ops.Complete(ctx, op.ID, syncop.StatusFailed, err.Error(), nil)
			continue
		}

		result, err := adapter.HandleWebhook(ctx, op.EventType, []byte(op.Payload))
		if err != nil {
			if completeErr := s.ops.Complete(ctx, op.ID, syncop.StatusFailed, err.Error(), nil); completeErr != nil {
				log.Printf("[SCHEDULER]: Failed to complete stale operation %d: %v", op.ID, completeErr)
			}
			continue
		}

		var memberID *uint
		if result.MemberID != 0 {
			memberID = &result.MemberID
		}
		if err := s.ops.Complete(ctx, op.ID, syncop.StatusSuccess, "reprocessed by stale sweep", memberID); err != nil {
			log.Printf("[SCHEDULER]: Failed to complete stale operation %d: %v", op.ID, err)
		}
	}

	return nil
}

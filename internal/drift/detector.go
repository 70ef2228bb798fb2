// Package drift catches external changes that never produced a webhook:
// missed deliveries, unsubscribed webhook feeds, or platform outages during
// the change. It samples stored integrations, re-fetches current external
// state, and compares canonical content hashes. Detection never mutates
// member data; drifted records are only reported for follow-up.
package drift

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ethanbaker/clubsync/internal/platforms"
	"github.com/ethanbaker/clubsync/internal/stores/integration"
	"github.com/ethanbaker/clubsync/pkg/datahash"
	"github.com/google/uuid"
)

// State tracks where a detector run is in its cycle
type State string

const (
	StateIdle      State = "idle"
	StateSampling  State = "sampling"
	StateChecking  State = "checking"
	StateReporting State = "reporting"
)

// DefaultSampleSize when no size is configured or requested
const DefaultSampleSize = 25

// checkWorkers bounds simultaneous external fetches during one run, kept
// separate from bulk-sync concurrency to avoid compounding rate-limit
// pressure
const checkWorkers = 3

// Sample is the drift check result for one integration
type Sample struct {
	IntegrationID uint      `json:"integration_id"`
	ExternalID    string    `json:"external_id"`
	OldHash       string    `json:"old_hash"`
	NewHash       string    `json:"new_hash,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
	Drifted       bool      `json:"drifted"`
}

// Report aggregates one drift sampling run for a platform
type Report struct {
	ID              string    `json:"id"`
	Platform        string    `json:"platform"`
	TotalChecked    int       `json:"total_checked"`
	DriftedCount    int       `json:"drifted_count"`
	DriftPercentage float64   `json:"drift_percentage"`
	Drifted         []Sample  `json:"drifted,omitempty"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Detector samples integrations and flags hash divergence
type Detector struct {
	integrations integration.Store
	registry     *platforms.Registry

	mutex sync.RWMutex
	state State
}

// NewDetector creates a drift detector over the integration store and the
// adapter registry
func NewDetector(integrations integration.Store, registry *platforms.Registry) *Detector {
	return &Detector{
		integrations: integrations,
		registry:     registry,
		state:        StateIdle,
	}
}

// State reports the current run phase
func (d *Detector) State() State {
	d.mutex.RLock()
	defer d.mutex.RUnlock()
	return d.state
}

func (d *Detector) setState(s State) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.state = s
}

// Run performs one sampling cycle for a platform: select the sampleSize
// least-recently-checked active integrations, re-fetch each through the
// adapter (rate-limited), and compare canonical hashes. A single record's
// failure is logged and skipped, never aborting the batch.
func (d *Detector) Run(ctx context.Context, platform platforms.Platform, sampleSize int) (*Report, error) {
	adapter, err := d.registry.Get(platform)
	if err != nil {
		return nil, err
	}

	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}

	defer d.setState(StateIdle)

	d.setState(StateSampling)
	rows, err := d.integrations.ListLeastRecentlyChecked(ctx, string(platform), sampleSize)
	if err != nil {
		return nil, err
	}

	d.setState(StateChecking)
	samples := d.checkAll(ctx, adapter, rows)

	d.setState(StateReporting)
	report := &Report{
		ID:          uuid.NewString(),
		Platform:    string(platform),
		GeneratedAt: time.Now(),
	}

	for _, s := range samples {
		report.TotalChecked++
		if s.Drifted {
			report.DriftedCount++
			report.Drifted = append(report.Drifted, s)
		}
	}
	if report.TotalChecked > 0 {
		report.DriftPercentage = 100 * float64(report.DriftedCount) / float64(report.TotalChecked)
	}

	if report.DriftedCount > 0 {
		log.Printf("[DRIFT]: %s: %d of %d sampled integrations drifted (%.1f%%)",
			platform, report.DriftedCount, report.TotalChecked, report.DriftPercentage)
	}

	return report, nil
}

// checkAll fans the sampled rows out over a small worker pool
func (d *Detector) checkAll(ctx context.Context, adapter platforms.Adapter, rows []*integration.Integration) []Sample {
	work := make(chan *integration.Integration)
	results := make(chan Sample, len(rows))

	var wg sync.WaitGroup
	for i := 0; i < checkWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for row := range work {
				if sample, ok := d.checkOne(ctx, adapter, row); ok {
					results <- sample
				}
			}
		}()
	}

	for _, row := range rows {
		select {
		case <-ctx.Done():
			// Stop issuing new checks; in-flight ones complete
		case work <- row:
			continue
		}
		break
	}
	close(work)
	wg.Wait()
	close(results)

	samples := make([]Sample, 0, len(rows))
	for s := range results {
		samples = append(samples, s)
	}
	return samples
}

// checkOne re-fetches one integration's external state and compares hashes.
// The fresh record is hashed with the same canonicalization used at sync
// time, so only genuine content changes count as drift.
func (d *Detector) checkOne(ctx context.Context, adapter platforms.Adapter, row *integration.Integration) (Sample, bool) {
	rec, err := adapter.FetchRecord(ctx, row.ExternalID)
	if err != nil {
		log.Printf("[DRIFT]: Failed to re-fetch %s record '%s': %v", row.Platform, row.ExternalID, err)
		return Sample{}, false
	}

	newHash, err := datahash.Hash(rec)
	if err != nil {
		log.Printf("[DRIFT]: Failed to hash %s record '%s': %v", row.Platform, row.ExternalID, err)
		return Sample{}, false
	}

	now := time.Now()
	if err := d.integrations.MarkChecked(ctx, row.ID, now); err != nil {
		log.Printf("[DRIFT]: Failed to mark integration %d checked: %v", row.ID, err)
	}

	sample := Sample{
		IntegrationID: row.ID,
		ExternalID:    row.ExternalID,
		OldHash:       row.ContentHash,
		CheckedAt:     now,
		Drifted:       newHash != row.ContentHash,
	}
	if sample.Drifted {
		sample.NewHash = newHash
	}

	return sample, true
}

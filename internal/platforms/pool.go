package platforms

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

// DefaultBulkWorkers bounds per-page record processing during bulk sync
const DefaultBulkWorkers = 5

// ProcessRecords fans a batch of normalized records out over a bounded
// worker pool. A single record's failure is isolated: it increments the
// error count and never aborts the remaining records.
func ProcessRecords(ctx context.Context, platform Platform, workers int, recs []*ExternalRecord, syncOne func(context.Context, *ExternalRecord) error) (synced, failed int) {
	if workers <= 0 {
		workers = DefaultBulkWorkers
	}

	work := make(chan *ExternalRecord)
	var okCount, errCount atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for rec := range work {
				if err := syncOne(ctx, rec); err != nil {
					errCount.Add(1)
					log.Printf("[SYNC]: Failed to sync %s record '%s': %v", platform, rec.ExternalID, err)
				} else {
					okCount.Add(1)
				}
			}
		}()
	}

	for _, rec := range recs {
		// Cancellation stops dispatching; in-flight records finish
		select {
		case <-ctx.Done():
			close(work)
			wg.Wait()
			return int(okCount.Load()), int(errCount.Load())
		case work <- rec:
		}
	}
	close(work)
	wg.Wait()

	return int(okCount.Load()), int(errCount.Load())
}

package queue_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethanbaker/clubsync/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var processed atomic.Int32

	q := queue.New(10, func(_ context.Context, _ queue.Job) {
		processed.Add(1)
	})
	q.Start(2)

	for i := 0; i < 5; i++ {
		require.True(t, q.TryEnqueue(queue.Job{Platform: "ticketing"}))
	}

	q.Stop()
	assert.Equal(t, int32(5), processed.Load())
}

func TestQueueRejectsWhenFull(t *testing.T) {
	block := make(chan struct{})

	q := queue.New(1, func(_ context.Context, _ queue.Job) {
		<-block
	})
	q.Start(1)

	// First job occupies the worker, second fills the buffer; the queue can
	// briefly absorb both, so hunt for the rejection
	deadline := time.Now().Add(time.Second)
	rejected := false
	for time.Now().Before(deadline) {
		if !q.TryEnqueue(queue.Job{Platform: "ticketing"}) {
			rejected = true
			break
		}
	}
	assert.True(t, rejected)

	close(block)
	q.Stop()
}

func TestQueueStopDrainsQueuedJobs(t *testing.T) {
	var processed atomic.Int32
	started := make(chan struct{})

	q := queue.New(10, func(_ context.Context, _ queue.Job) {
		select {
		case started <- struct{}{}:
		default:
		}
		processed.Add(1)
	})

	for i := 0; i < 4; i++ {
		require.True(t, q.TryEnqueue(queue.Job{Platform: "patronage"}))
	}

	q.Start(1)
	<-started
	q.Stop()

	assert.Equal(t, int32(4), processed.Load())
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := queue.New(10, func(_ context.Context, _ queue.Job) {})
	q.Start(1)
	q.Stop()

	assert.False(t, q.TryEnqueue(queue.Job{Platform: "ticketing"}))
}

func TestQueueAssignsCorrelationIDs(t *testing.T) {
	ids := make(chan string, 1)

	q := queue.New(1, func(_ context.Context, job queue.Job) {
		ids <- job.ID
	})
	q.Start(1)

	require.True(t, q.TryEnqueue(queue.Job{Platform: "ticketing"}))
	q.Stop()

	assert.NotEmpty(t, <-ids)
}

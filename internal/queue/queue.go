// Package queue decouples webhook ingestion latency from processing latency
// with an explicit bounded work queue: the HTTP handler enqueues, a worker
// pool drains. A full queue is visible backpressure, not silent blocking.
package queue

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Job is one unit of queued webhook work. The sync operation referenced by
// OperationID is already durably pending when the job is enqueued.
type Job struct {
	ID          string // correlation id for logs
	Platform    string
	EventType   string
	OperationID uint
	Payload     []byte
}

// Handler processes one job
type Handler func(ctx context.Context, job Job)

// Queue is a bounded work queue with a fixed worker pool
type Queue struct {
	jobs    chan Job
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a queue with the given capacity and handler
func New(capacity int, handler Handler) *Queue {
	if capacity <= 0 {
		capacity = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		jobs:    make(chan Job, capacity),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the worker pool
func (q *Queue) Start(workers int) {
	if workers <= 0 {
		workers = 4
	}

	q.startOnce.Do(func() {
		for i := 0; i < workers; i++ {
			q.wg.Add(1)
			go q.worker()
		}
	})
}

// TryEnqueue adds a job without blocking. Returns false when the queue is
// full or stopped so the caller can surface backpressure.
func (q *Queue) TryEnqueue(job Job) bool {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	select {
	case <-q.ctx.Done():
		return false
	case q.jobs <- job:
		return true
	default:
		log.Printf("[QUEUE]: Full, rejecting %s job '%s'", job.Platform, job.ID)
		return false
	}
}

// Stop drains the queue: no new jobs are accepted, queued jobs are
// processed, then the workers return
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}

// Len reports the number of queued jobs
func (q *Queue) Len() int {
	return len(q.jobs)
}

// worker processes jobs until stopped, then drains whatever is still
// queued. The handler receives a fresh context: webhook processing
// continues even after the originating HTTP request has returned.
func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case job := <-q.jobs:
			q.handler(context.Background(), job)
		case <-q.ctx.Done():
			for {
				select {
				case job := <-q.jobs:
					q.handler(context.Background(), job)
				default:
					return
				}
			}
		}
	}
}

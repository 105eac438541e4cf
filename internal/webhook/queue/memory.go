// Package queue provides the durable hand-off between the webhook
// endpoint and the executor workers: a Redis-backed list queue for
// deployments and an in-process channel queue for development and
// tests.
package queue

import (
	"context"
	"sync"
	"time"

	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
)

// MemoryQueue is a channel-backed queue. Delayed requeues are held on
// timers, so retry backoff behaves the same as with the Redis queue.
type MemoryQueue struct {
	jobs   chan webhookdomain.Job
	mu     sync.Mutex
	timers map[*time.Timer]struct{}
	closed bool
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &MemoryQueue{
		jobs:   make(chan webhookdomain.Job, capacity),
		timers: make(map[*time.Timer]struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job webhookdomain.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return webhookdomain.ErrQueueClosed
	}
	q.mu.Unlock()

	select {
	case q.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*webhookdomain.Job, error) {
	select {
	case job, ok := <-q.jobs:
		if !ok {
			return nil, webhookdomain.ErrQueueClosed
		}
		return &job, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ack is a no-op: channel receive already removed the job.
func (q *MemoryQueue) Ack(ctx context.Context, job webhookdomain.Job) error {
	return nil
}

func (q *MemoryQueue) Requeue(ctx context.Context, job webhookdomain.Job, delay time.Duration) error {
	if delay <= 0 {
		return q.Enqueue(ctx, job)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return webhookdomain.ErrQueueClosed
	}
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, timer)
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		select {
		case q.jobs <- job:
		default:
			// Queue full; drop back with another short delay rather
			// than block the timer goroutine.
			q.Requeue(context.Background(), job, 100*time.Millisecond)
		}
	})
	q.timers[timer] = struct{}{}
	q.mu.Unlock()
	return nil
}

// Close stops pending requeue timers and closes the channel. Only used
// from tests.
func (q *MemoryQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	for t := range q.timers {
		t.Stop()
	}
	close(q.jobs)
}

package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var (
	ErrUnknownTopic      = errors.New("unknown_topic")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrMissingDeliveryID = errors.New("missing_delivery_id")
	ErrDeliveryClaimed   = errors.New("delivery_claimed")
	ErrQueueClosed       = errors.New("queue_closed")
)

// permanentError marks a handler failure that no retry can fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the executor dead-letters the delivery
// immediately instead of retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Handler consumes deliveries for a single topic. Handle must be
// idempotent: the pipeline guarantees at-least-once execution, dedup
// only filters deliveries that already completed.
type Handler interface {
	Topic() string
	Handle(ctx context.Context, delivery Delivery) error
}

// Registry maps topics to their handlers. It is assembled once at
// startup and read-only afterwards.
type Registry struct {
	handlers map[string]Handler
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	m := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		if _, ok := m[h.Topic()]; ok {
			return nil, fmt.Errorf("duplicate handler for topic %q", h.Topic())
		}
		m[h.Topic()] = h
	}
	return &Registry{handlers: m}, nil
}

// Lookup returns the handler registered for topic, if any.
func (r *Registry) Lookup(topic string) (Handler, bool) {
	h, ok := r.handlers[topic]
	return h, ok
}

// Topics returns the registered topic names.
func (r *Registry) Topics() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	return out
}

// Queue is the durable hand-off between the webhook endpoint and the
// executor workers. Dequeue blocks until a job is available or the
// context is done; Ack removes a job the worker finished with (in any
// terminal way). Requeue schedules a copy for a later attempt without
// touching the in-flight entry — callers requeue first and ack the
// original after, so a crash in between duplicates rather than drops.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Dequeue(ctx context.Context) (*Job, error)
	Ack(ctx context.Context, job Job) error
	Requeue(ctx context.Context, job Job, delay time.Duration) error
}

// StuckRequeuer is implemented by queues that park in-flight jobs
// somewhere recoverable. The scheduler calls it to put back work left
// behind by crashed workers.
type StuckRequeuer interface {
	RequeueStuck(ctx context.Context) (int, error)
}

// Dispatcher accepts verified deliveries and routes them onto the
// queue. Unknown topics are acknowledged without enqueueing.
type Dispatcher interface {
	Dispatch(ctx context.Context, delivery Delivery) error
}

// Repository persists the pipeline's idempotency bookkeeping.
type Repository interface {
	IsProcessed(ctx context.Context, db *gorm.DB, topic, deliveryID string) (bool, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, rec *ProcessedDelivery) error
	PurgeProcessedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)

	Claim(ctx context.Context, db *gorm.DB, claim *DeliveryClaim) error
	ReleaseClaim(ctx context.Context, db *gorm.DB, topic, deliveryID string) error
	PurgeClaimsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error)

	InsertDeadLetter(ctx context.Context, db *gorm.DB, dl *DeadLetter) error
	ListDeadLetters(ctx context.Context, db *gorm.DB, topic string, limit int) ([]DeadLetter, error)
	FindDeadLetter(ctx context.Context, db *gorm.DB, id int64) (*DeadLetter, error)
	DeleteDeadLetter(ctx context.Context, db *gorm.DB, id int64) error
}

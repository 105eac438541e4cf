// Package service implements the delivery pipeline: the dispatcher
// that feeds the queue and the executor workers that drain it.
package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability/metrics"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	pkgdb "github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// claimRetryDelay is how long a redelivery waits when another worker
// currently holds the claim for the same delivery.
const claimRetryDelay = 2 * time.Second

// Executor drains the queue with a pool of workers. Every job runs
// through the same gauntlet: dedup check, claim, handler with timeout,
// then classification of the outcome into done, retry or dead letter.
type Executor struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     webhookdomain.Repository
	registry *webhookdomain.Registry
	queue    webhookdomain.Queue
	metrics  *metrics.Metrics

	workers        int
	maxAttempts    int
	retryBase      time.Duration
	retryCap       time.Duration
	handlerTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type ExecutorParam struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Config   config.Config
	Repo     webhookdomain.Repository
	Registry *webhookdomain.Registry
	Queue    webhookdomain.Queue
	Metrics  *metrics.Metrics
}

func NewExecutor(p ExecutorParam) *Executor {
	return &Executor{
		db:       p.DB,
		log:      p.Log.Named("webhook.executor"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		registry: p.Registry,
		queue:    p.Queue,
		metrics:  p.Metrics,

		workers:        p.Config.WebhookWorkers,
		maxAttempts:    p.Config.WebhookMaxAttempts,
		retryBase:      p.Config.WebhookRetryBase,
		retryCap:       p.Config.WebhookRetryCap,
		handlerTimeout: p.Config.HandlerTimeout,
	}
}

// Start launches the worker pool.
func (e *Executor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	n := e.workers
	if n <= 0 {
		n = 4
	}
	for i := 0; i < n; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}
	e.log.Info("executor started", zap.Int("workers", n))
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (e *Executor) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	e.log.Info("executor stopped")
}

func (e *Executor) worker(ctx context.Context, id int) {
	defer e.wg.Done()
	log := e.log.With(zap.Int("worker", id))

	for {
		job, err := e.queue.Dequeue(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Error("dequeue failed", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		if job == nil {
			continue
		}
		e.Process(ctx, *job)
	}
}

// Process runs a single job end to end. Exported so tests can push
// jobs through without standing up the worker pool.
func (e *Executor) Process(ctx context.Context, job webhookdomain.Job) {
	topic := job.Delivery.Topic
	log := e.log.With(
		zap.String("topic", topic),
		zap.String("delivery_id", job.Delivery.DeliveryID),
		zap.Int("attempt", job.Attempt),
	)

	done, err := e.repo.IsProcessed(ctx, e.db, topic, job.Delivery.DeliveryID)
	if err != nil {
		log.Error("dedup lookup failed", zap.Error(err))
		e.retryOrBury(ctx, job, err.Error(), log)
		return
	}
	if done {
		e.metrics.DedupHits.WithLabelValues(topic).Inc()
		log.Debug("delivery already processed, acknowledging")
		_ = e.queue.Ack(ctx, job)
		return
	}

	claim := &webhookdomain.DeliveryClaim{
		ID:         e.genID.Generate(),
		Topic:      topic,
		DeliveryID: job.Delivery.DeliveryID,
		ClaimedAt:  e.clock.Now(),
	}
	if err := e.repo.Claim(ctx, e.db, claim); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			// Another worker holds this delivery; come back after it
			// released the claim.
			log.Debug("delivery claimed elsewhere, requeueing")
			if err := e.queue.Requeue(ctx, job, claimRetryDelay); err == nil {
				_ = e.queue.Ack(ctx, job)
			}
			return
		}
		log.Error("claim failed", zap.Error(err))
		e.retryOrBury(ctx, job, err.Error(), log)
		return
	}
	defer func() {
		if err := e.repo.ReleaseClaim(context.WithoutCancel(ctx), e.db, topic, job.Delivery.DeliveryID); err != nil {
			log.Error("claim release failed", zap.Error(err))
		}
	}()

	start := time.Now()
	handleErr := e.runHandler(ctx, job.Delivery)
	e.metrics.JobDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())

	switch {
	case handleErr == nil:
		rec := &webhookdomain.ProcessedDelivery{
			ID:          e.genID.Generate(),
			Topic:       topic,
			DeliveryID:  job.Delivery.DeliveryID,
			ProcessedAt: e.clock.Now(),
		}
		if err := e.repo.MarkProcessed(ctx, e.db, rec); err != nil && !pkgdb.IsDuplicateKeyErr(err) {
			// The handler succeeded but the dedup record did not
			// stick. Leave the job unacked for a redelivery: handlers
			// are idempotent, losing the record only costs a re-run.
			log.Error("mark processed failed", zap.Error(err))
			e.retryOrBury(ctx, job, err.Error(), log)
			return
		}
		e.metrics.JobsProcessed.WithLabelValues(topic, "ok").Inc()
		_ = e.queue.Ack(ctx, job)
		log.Debug("delivery processed")

	case webhookdomain.IsPermanent(handleErr):
		log.Warn("permanent handler failure, dead-lettering", zap.Error(handleErr))
		e.bury(ctx, job, handleErr.Error(), log)

	default:
		log.Warn("handler failed", zap.Error(handleErr))
		e.retryOrBury(ctx, job, handleErr.Error(), log)
	}
}

func (e *Executor) runHandler(ctx context.Context, delivery webhookdomain.Delivery) error {
	handler, ok := e.registry.Lookup(delivery.Topic)
	if !ok {
		// Registry changed between enqueue and execution; nothing to
		// run, treat as done.
		return nil
	}

	hctx := ctx
	if e.handlerTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, e.handlerTimeout)
		defer cancel()
	}
	return handler.Handle(hctx, delivery)
}

func (e *Executor) retryOrBury(ctx context.Context, job webhookdomain.Job, reason string, log *zap.Logger) {
	if job.Attempt >= e.maxAttempts {
		log.Warn("attempts exhausted, dead-lettering", zap.Int("max_attempts", e.maxAttempts))
		e.bury(ctx, job, reason, log)
		return
	}

	next := job
	next.Attempt++
	delay := e.backoff(job.Attempt)
	e.metrics.JobRetries.WithLabelValues(job.Delivery.Topic).Inc()
	if err := e.queue.Requeue(ctx, next, delay); err != nil {
		// The original stays in flight for the stuck sweeper.
		log.Error("requeue failed", zap.Error(err))
		return
	}
	// The retry copy is durable; only now release the original.
	_ = e.queue.Ack(ctx, job)
}

func (e *Executor) bury(ctx context.Context, job webhookdomain.Job, reason string, log *zap.Logger) {
	dl := &webhookdomain.DeadLetter{
		ID:         e.genID.Generate(),
		Topic:      job.Delivery.Topic,
		DeliveryID: job.Delivery.DeliveryID,
		ShopDomain: job.Delivery.ShopDomain,
		Payload:    job.Delivery.Payload,
		Attempts:   job.Attempt,
		Reason:     reason,
		FailedAt:   e.clock.Now(),
	}
	if err := e.repo.InsertDeadLetter(context.WithoutCancel(ctx), e.db, dl); err != nil {
		log.Error("dead letter insert failed", zap.Error(err))
		// Keep the job on the queue rather than lose the payload.
		if err := e.queue.Requeue(ctx, job, e.retryCap); err == nil {
			_ = e.queue.Ack(ctx, job)
		}
		return
	}
	e.metrics.DeadLetters.WithLabelValues(job.Delivery.Topic).Inc()
	e.metrics.JobsProcessed.WithLabelValues(job.Delivery.Topic, "dead_letter").Inc()
	_ = e.queue.Ack(ctx, job)
}

// backoff returns the delay before attempt+1: exponential from the
// configured base, capped, with a little jitter so redeliveries of a
// burst do not land in lockstep.
func (e *Executor) backoff(attempt int) time.Duration {
	d := e.retryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= e.retryCap {
			d = e.retryCap
			break
		}
	}
	if d > e.retryCap {
		d = e.retryCap
	}
	jitter := time.Duration(rand.Int63n(int64(d)/5 + 1))
	return d + jitter - time.Duration(int64(d)/10)
}

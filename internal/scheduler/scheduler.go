// Package scheduler runs the periodic maintenance loop: subscription
// renewals, dedup-window expiry and stuck-job recovery.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	appconfig "github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability/metrics"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler: missing dependency")

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	BillingSvc  billingdomain.Service
	WebhookRepo webhookdomain.Repository
	Queue       webhookdomain.Queue
	Metrics     *metrics.Metrics
	AppConfig   appconfig.Config
	Config      Config `optional:"true"`
}

type Scheduler struct {
	db          *gorm.DB
	log         *zap.Logger
	cfg         Config
	clock       clock.Clock
	billingSvc  billingdomain.Service
	webhookRepo webhookdomain.Repository
	queue       webhookdomain.Queue
	metrics     *metrics.Metrics

	dedupRetention time.Duration
	claimMaxAge    time.Duration
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.BillingSvc == nil || p.WebhookRepo == nil || p.Metrics == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	if p.AppConfig.SchedulerRunInterval > 0 {
		cfg.RunInterval = p.AppConfig.SchedulerRunInterval
	}
	return &Scheduler{
		db:             p.DB,
		log:            p.Log.Named("scheduler"),
		cfg:            cfg,
		clock:          p.Clock,
		billingSvc:     p.BillingSvc,
		webhookRepo:    p.WebhookRepo,
		queue:          p.Queue,
		metrics:        p.Metrics,
		dedupRetention: p.AppConfig.DedupRetention,
		claimMaxAge:    2 * p.AppConfig.HandlerTimeout,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	s.metrics.SchedulerJobRuns.WithLabelValues(name).Inc()
	err := fn(ctx)
	s.metrics.SchedulerDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err == nil {
		return nil
	}

	s.metrics.SchedulerJobErrors.WithLabelValues(name).Inc()
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", s.cfg.JobTimeout),
		)
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{"renew_subscriptions", s.RenewSubscriptionsJob},
		{"purge_dedup", s.PurgeDedupJob},
		{"release_stale_claims", s.ReleaseStaleClaimsJob},
		{"requeue_stuck", s.RequeueStuckJob},
	}
	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, job.Run))
	}
	return err
}

// RenewSubscriptionsJob charges subscriptions whose period has ended.
func (s *Scheduler) RenewSubscriptionsJob(ctx context.Context) error {
	processed, err := s.billingSvc.RenewDue(ctx, s.clock.Now(), s.cfg.RenewBatchSize)
	if err != nil {
		return err
	}
	if processed > 0 {
		s.log.Info("renewals processed", zap.Int("count", processed))
	}
	return nil
}

// PurgeDedupJob expires processed-delivery records past the retention
// window so the dedup table stays bounded.
func (s *Scheduler) PurgeDedupJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.dedupRetention)
	purged, err := s.webhookRepo.PurgeProcessedBefore(ctx, s.db, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		s.log.Info("dedup records purged", zap.Int64("count", purged))
	}
	return nil
}

// ReleaseStaleClaimsJob drops claims whose worker died before
// releasing, so redeliveries of those events can run again.
func (s *Scheduler) ReleaseStaleClaimsJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.claimMaxAge)
	released, err := s.webhookRepo.PurgeClaimsBefore(ctx, s.db, cutoff)
	if err != nil {
		return err
	}
	if released > 0 {
		s.log.Warn("stale delivery claims released", zap.Int64("count", released))
	}
	return nil
}

// RequeueStuckJob recovers jobs left on the queue's processing area
// by crashed workers. No-op for queues without one.
func (s *Scheduler) RequeueStuckJob(ctx context.Context) error {
	sr, ok := s.queue.(webhookdomain.StuckRequeuer)
	if !ok {
		return nil
	}
	moved, err := sr.RequeueStuck(ctx)
	if err != nil {
		return err
	}
	if moved > 0 {
		s.log.Warn("stuck jobs requeued", zap.Int("count", moved))
	}
	return nil
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

package service

import (
	"context"
	"strings"
	"time"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability/metrics"
	plandomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/domain"
	pkgdb "github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/1212falcon1212/shopfiy-saas-sub001/pkg/money"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const usagePeriod = 30 * 24 * time.Hour

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      billingdomain.Repository
	plans     plandomain.Service
	merchants merchantdomain.Service
	gateway   billingdomain.Gateway
	metrics   *metrics.Metrics

	graceDays int
}

type ServiceParam struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Repo      billingdomain.Repository
	Plans     plandomain.Service
	Merchants merchantdomain.Service
	Gateway   billingdomain.Gateway
	Metrics   *metrics.Metrics
}

func NewService(p ServiceParam) billingdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("billing.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		plans:     p.Plans,
		merchants: p.Merchants,
		gateway:   p.Gateway,
		metrics:   p.Metrics,
		graceDays: p.Config.BillingGraceDay,
	}
}

func (s *Service) SelectPlan(ctx context.Context, req billingdomain.SelectPlanRequest) (*billingdomain.SelectPlanResult, error) {
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if !money.IsSupportedCurrency(currency) {
		return nil, billingdomain.ErrInvalidCurrency
	}

	plan, err := s.plans.GetByID(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, plandomain.ErrPlanNotActive
	}
	price, err := s.plans.Price(plan, currency)
	if err != nil {
		return nil, err
	}

	m, err := s.merchants.GetByID(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}

	prior, err := s.repo.CountByMerchant(ctx, s.db, req.MerchantID)
	if err != nil {
		return nil, err
	}
	trial := plan.TrialDays > 0 && prior == 0

	now := s.clock.Now()
	sub := &billingdomain.Subscription{
		ID:               s.genID.Generate(),
		MerchantID:       req.MerchantID,
		PlanID:           plan.ID,
		Status:           billingdomain.SubscriptionStatusPending,
		Currency:         currency,
		Price:            price,
		PeriodUsage:      "0",
		GatewayReference: uuid.NewString(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, sub); err != nil {
		return nil, err
	}
	s.recordEvent(ctx, sub, billingdomain.EventSubscriptionCreated, map[string]any{
		"plan_code": plan.Code,
		"currency":  currency,
		"trial":     trial,
	})

	charge, err := s.gateway.CreateCharge(ctx, billingdomain.CreateChargeRequest{
		Reference:  sub.GatewayReference,
		ShopDomain: m.ShopDomain,
		PlanName:   s.plans.Localize(plan, plandomain.FallbackLanguage).Name,
		Amount:     price,
		Currency:   currency,
		Trial:      trial,
		Test:       plan.IsTest,
		ReturnURL:  req.ReturnURL,
	})
	if err != nil {
		now = s.clock.Now()
		if _, terr := s.repo.TransitionStatus(ctx, s.db,
			sub.ID, billingdomain.SubscriptionStatusPending, billingdomain.SubscriptionStatusCancelled, now); terr != nil {
			s.log.Error("rollback of pending subscription failed", zap.Error(terr))
		}
		return nil, err
	}

	s.metrics.SubscriptionTransitions.WithLabelValues("NEW", string(billingdomain.SubscriptionStatusPending)).Inc()
	s.log.Info("subscription pending",
		zap.Int64("merchant_id", int64(req.MerchantID)),
		zap.String("plan_code", plan.Code),
		zap.String("currency", currency),
	)
	return &billingdomain.SelectPlanResult{
		Subscription: sub,
		RedirectURL:  charge.ConfirmationURL,
	}, nil
}

// HandleGatewayCallback resolves a pending subscription. The
// transition races the callback's own redelivery and, on plan change,
// callbacks for other pending subscriptions; conflicts retry once on
// fresh state before surfacing.
func (s *Service) HandleGatewayCallback(ctx context.Context, gatewayReference string, accepted bool) (*billingdomain.Subscription, error) {
	sub, err := s.resolveCallback(ctx, gatewayReference, accepted)
	if err == billingdomain.ErrConcurrentStateConflict {
		sub, err = s.resolveCallback(ctx, gatewayReference, accepted)
	}
	return sub, err
}

func (s *Service) resolveCallback(ctx context.Context, ref string, accepted bool) (*billingdomain.Subscription, error) {
	var out *billingdomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByGatewayRefForUpdate(ctx, tx, ref)
		if err != nil {
			return err
		}
		if sub == nil {
			return billingdomain.ErrSubscriptionNotFound
		}

		// Redelivered callbacks for a settled subscription are
		// acknowledged with the settled state.
		if sub.Status != billingdomain.SubscriptionStatusPending {
			if accepted && sub.Status == billingdomain.SubscriptionStatusActive {
				out = sub
				return nil
			}
			if !accepted && sub.Status == billingdomain.SubscriptionStatusCancelled {
				out = sub
				return nil
			}
			return billingdomain.ErrAlreadyResolved
		}

		if !accepted {
			if err := s.decline(ctx, tx, sub); err != nil {
				return err
			}
			out = sub
			return nil
		}
		activated, err := s.activate(ctx, tx, sub)
		if err != nil {
			return err
		}
		out = activated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) activate(ctx context.Context, tx *gorm.DB, sub *billingdomain.Subscription) (*billingdomain.Subscription, error) {
	plan, err := s.plans.GetByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	// Supersede before flipping this row ACTIVE: the partial unique
	// index on (merchant_id) WHERE ACTIVE would otherwise reject every
	// plan change. A concurrent activation this transaction cannot see
	// still trips the index below; that surfaces as a conflict and the
	// callback retries on fresh state.
	displaced, err := s.repo.SupersedeActive(ctx, tx, sub.MerchantID, sub.ID, now)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.TransitionStatus(ctx, tx,
		sub.ID, billingdomain.SubscriptionStatusPending, billingdomain.SubscriptionStatusActive, now)
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, billingdomain.ErrConcurrentStateConflict
		}
		return nil, err
	}
	if !ok {
		return nil, billingdomain.ErrConcurrentStateConflict
	}

	sub.Status = billingdomain.SubscriptionStatusActive
	sub.ActivatedAt = &now
	sub.UpdatedAt = now

	prior, err := s.repo.CountByMerchant(ctx, tx, sub.MerchantID)
	if err != nil {
		return nil, err
	}
	// Trial applies only to the merchant's first subscription ever;
	// the row being activated is one of the counted rows.
	if plan.TrialDays > 0 && prior == 1 {
		trialEnd := sub.CreatedAt.Add(time.Duration(plan.TrialDays) * 24 * time.Hour)
		sub.TrialEndsAt = &trialEnd
		// First charge waits out the trial.
		sub.CurrentPeriodEnd = &trialEnd
	} else {
		switch plan.BillingType {
		case plandomain.BillingTypeRecurring:
			end := now.Add(intervalDuration(plan.Interval))
			sub.CurrentPeriodEnd = &end
		case plandomain.BillingTypeUsage:
			end := now.Add(usagePeriod)
			sub.CurrentPeriodEnd = &end
		case plandomain.BillingTypeOneTime:
			sub.CurrentPeriodEnd = nil
		}
	}

	if err := s.repo.Update(ctx, tx, sub); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, billingdomain.ErrConcurrentStateConflict
		}
		return nil, err
	}

	for _, old := range displaced {
		s.recordEventTx(ctx, tx, &old, billingdomain.EventSubscriptionSuperseded, map[string]any{
			"superseded_by": sub.ID.String(),
		})
		s.metrics.SubscriptionTransitions.WithLabelValues(
			string(billingdomain.SubscriptionStatusActive), string(billingdomain.SubscriptionStatusSuperseded)).Inc()
	}

	s.recordEventTx(ctx, tx, sub, billingdomain.EventSubscriptionActivated, map[string]any{
		"trial_ends_at": sub.TrialEndsAt,
	})
	s.metrics.SubscriptionTransitions.WithLabelValues(
		string(billingdomain.SubscriptionStatusPending), string(billingdomain.SubscriptionStatusActive)).Inc()
	s.log.Info("subscription activated",
		zap.Int64("merchant_id", int64(sub.MerchantID)),
		zap.Int64("subscription_id", int64(sub.ID)),
		zap.Int("superseded", len(displaced)),
	)
	return sub, nil
}

func (s *Service) decline(ctx context.Context, tx *gorm.DB, sub *billingdomain.Subscription) error {
	now := s.clock.Now()
	ok, err := s.repo.TransitionStatus(ctx, tx,
		sub.ID, billingdomain.SubscriptionStatusPending, billingdomain.SubscriptionStatusCancelled, now)
	if err != nil {
		return err
	}
	if !ok {
		return billingdomain.ErrConcurrentStateConflict
	}
	sub.Status = billingdomain.SubscriptionStatusCancelled
	sub.CancelledAt = &now
	sub.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, sub); err != nil {
		return err
	}
	s.recordEventTx(ctx, tx, sub, billingdomain.EventSubscriptionDeclined, nil)
	s.metrics.SubscriptionTransitions.WithLabelValues(
		string(billingdomain.SubscriptionStatusPending), string(billingdomain.SubscriptionStatusCancelled)).Inc()
	return nil
}

func (s *Service) Current(ctx context.Context, merchantID snowflake.ID) (*billingdomain.Subscription, error) {
	sub, err := s.repo.FindLiveByMerchant(ctx, s.db, merchantID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, billingdomain.ErrNoActiveSubscription
	}
	return sub, nil
}

func (s *Service) Cancel(ctx context.Context, merchantID, subscriptionID snowflake.ID) (*billingdomain.Subscription, error) {
	var out *billingdomain.Subscription
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if sub == nil || sub.MerchantID != merchantID {
			return billingdomain.ErrSubscriptionNotFound
		}
		if sub.Status == billingdomain.SubscriptionStatusCancelled {
			out = sub
			return nil
		}
		if sub.Status.Terminal() {
			return billingdomain.ErrAlreadyResolved
		}

		now := s.clock.Now()
		ok, err := s.repo.TransitionStatus(ctx, tx, sub.ID, sub.Status, billingdomain.SubscriptionStatusCancelled, now)
		if err != nil {
			return err
		}
		if !ok {
			return billingdomain.ErrConcurrentStateConflict
		}
		from := sub.Status
		sub.Status = billingdomain.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		sub.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		s.recordEventTx(ctx, tx, sub, billingdomain.EventSubscriptionCancelled, nil)
		s.metrics.SubscriptionTransitions.WithLabelValues(
			string(from), string(billingdomain.SubscriptionStatusCancelled)).Inc()
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) CancelActiveForMerchant(ctx context.Context, merchantID snowflake.ID) error {
	sub, err := s.repo.FindLiveByMerchant(ctx, s.db, merchantID)
	if err != nil {
		return err
	}
	if sub == nil {
		return nil
	}
	_, err = s.Cancel(ctx, merchantID, sub.ID)
	if err == billingdomain.ErrAlreadyResolved || err == billingdomain.ErrSubscriptionNotFound {
		return nil
	}
	return err
}

func (s *Service) RecordUsageCharge(ctx context.Context, merchantID snowflake.ID, amount, description string) (*billingdomain.Subscription, error) {
	charge, err := money.Parse(amount)
	if err != nil {
		return nil, err
	}

	var out *billingdomain.Subscription
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindLiveByMerchantForUpdate(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		if sub == nil || sub.Status != billingdomain.SubscriptionStatusActive {
			return billingdomain.ErrNoActiveSubscription
		}

		plan, err := s.plans.GetByID(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		if plan.BillingType != plandomain.BillingTypeUsage {
			return billingdomain.ErrNotUsagePlan
		}

		used, err := money.Parse(sub.PeriodUsage)
		if err != nil {
			used = decimal.Zero
		}
		total := used.Add(charge)

		if plan.CappedAmount != nil {
			cap, err := money.Parse(*plan.CappedAmount)
			if err == nil && total.GreaterThan(cap) {
				s.recordEventTx(ctx, tx, sub, billingdomain.EventUsageCapExceeded, map[string]any{
					"attempted": money.Format(charge),
					"used":      money.Format(used),
					"cap":       money.Format(cap),
				})
				s.metrics.CapExceeded.Inc()
				return billingdomain.ErrCapExceeded
			}
		}

		now := s.clock.Now()
		sub.PeriodUsage = money.Format(total)
		sub.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		s.recordEventTx(ctx, tx, sub, billingdomain.EventUsageRecorded, map[string]any{
			"amount":      money.Format(charge),
			"description": description,
			"period_used": sub.PeriodUsage,
		})
		out = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RenewDue walks subscriptions whose period ended and charges or
// rolls them. Each subscription settles in its own transaction so one
// bad row cannot wedge the batch.
func (s *Service) RenewDue(ctx context.Context, now time.Time, batchSize int) (int, error) {
	due, err := s.repo.ListDue(ctx, s.db, now, batchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for i := range due {
		if err := s.renewOne(ctx, due[i].ID, now); err != nil {
			s.log.Error("renewal failed",
				zap.Int64("subscription_id", int64(due[i].ID)),
				zap.Error(err),
			)
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *Service) renewOne(ctx context.Context, id snowflake.ID, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub == nil || sub.CurrentPeriodEnd == nil || sub.CurrentPeriodEnd.After(now) {
			return nil
		}
		if sub.Status != billingdomain.SubscriptionStatusActive && sub.Status != billingdomain.SubscriptionStatusPastDue {
			return nil
		}

		plan, err := s.plans.GetByID(ctx, sub.PlanID)
		if err != nil {
			return err
		}

		switch plan.BillingType {
		case plandomain.BillingTypeUsage:
			// Usage plans are billed by the platform from recorded
			// charges; rolling the period just resets the cap.
			end := now.Add(usagePeriod)
			sub.CurrentPeriodEnd = &end
			sub.PeriodUsage = "0.00"
			sub.UpdatedAt = now
			return s.repo.Update(ctx, tx, sub)

		case plandomain.BillingTypeRecurring:
			return s.chargeRenewal(ctx, tx, sub, plan, now)

		default:
			// One-time plans have no renewals; clear the period end
			// so this row stops coming up.
			sub.CurrentPeriodEnd = nil
			sub.UpdatedAt = now
			return s.repo.Update(ctx, tx, sub)
		}
	})
}

func (s *Service) chargeRenewal(ctx context.Context, tx *gorm.DB, sub *billingdomain.Subscription, plan *plandomain.Plan, now time.Time) error {
	err := s.gateway.ChargeRecurring(ctx, billingdomain.RecurringChargeRequest{
		Reference: sub.GatewayReference,
		Amount:    sub.Price,
		Currency:  sub.Currency,
		Test:      plan.IsTest,
	})
	s.metrics.ChargeAttempts.WithLabelValues(outcomeLabel(err)).Inc()

	if err != nil {
		from := sub.Status
		sub.Status = billingdomain.SubscriptionStatusPastDue
		// Back off a day before the next attempt instead of retrying
		// on every scheduler tick.
		retryAt := now.Add(24 * time.Hour)
		sub.CurrentPeriodEnd = &retryAt
		sub.UpdatedAt = now
		if uerr := s.repo.Update(ctx, tx, sub); uerr != nil {
			return uerr
		}
		s.recordEventTx(ctx, tx, sub, billingdomain.EventChargeFailed, map[string]any{
			"amount":   sub.Price,
			"currency": sub.Currency,
		})
		if from != billingdomain.SubscriptionStatusPastDue {
			s.recordEventTx(ctx, tx, sub, billingdomain.EventSubscriptionPastDue, map[string]any{
				"grace_days": s.graceDays,
			})
			s.metrics.SubscriptionTransitions.WithLabelValues(
				string(from), string(billingdomain.SubscriptionStatusPastDue)).Inc()
		}
		s.log.Warn("recurring charge failed",
			zap.Int64("subscription_id", int64(sub.ID)),
			zap.Error(err),
		)
		return nil
	}

	from := sub.Status
	end := now.Add(intervalDuration(plan.Interval))
	sub.Status = billingdomain.SubscriptionStatusActive
	sub.CurrentPeriodEnd = &end
	sub.PeriodUsage = "0.00"
	sub.UpdatedAt = now
	if err := s.repo.Update(ctx, tx, sub); err != nil {
		return err
	}
	s.recordEventTx(ctx, tx, sub, billingdomain.EventChargeSucceeded, map[string]any{
		"amount":   sub.Price,
		"currency": sub.Currency,
	})
	if from == billingdomain.SubscriptionStatusPastDue {
		s.metrics.SubscriptionTransitions.WithLabelValues(
			string(from), string(billingdomain.SubscriptionStatusActive)).Inc()
	}
	return nil
}

func (s *Service) Events(ctx context.Context, merchantID snowflake.ID, limit int) ([]billingdomain.BillingEvent, error) {
	return s.repo.ListEvents(ctx, s.db, merchantID, limit)
}

func (s *Service) recordEvent(ctx context.Context, sub *billingdomain.Subscription, typ string, meta map[string]any) {
	s.recordEventTx(ctx, s.db, sub, typ, meta)
}

func (s *Service) recordEventTx(ctx context.Context, tx *gorm.DB, sub *billingdomain.Subscription, typ string, meta map[string]any) {
	event := &billingdomain.BillingEvent{
		ID:             s.genID.Generate(),
		MerchantID:     sub.MerchantID,
		SubscriptionID: sub.ID,
		Type:           typ,
		Metadata:       datatypes.JSONMap(meta),
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.InsertEvent(ctx, tx, event); err != nil {
		s.log.Error("billing event insert failed",
			zap.String("type", typ),
			zap.Error(err),
		)
	}
}

func intervalDuration(interval *plandomain.Interval) time.Duration {
	if interval != nil && *interval == plandomain.IntervalAnnual {
		return 365 * 24 * time.Hour
	}
	return 30 * 24 * time.Hour
}

func outcomeLabel(err error) string {
	if err != nil {
		return "failed"
	}
	return "succeeded"
}

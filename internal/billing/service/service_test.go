package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/repository"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	merchantrepository "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/repository"
	merchantservice "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/service"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/observability/metrics"
	plandomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/domain"
	planrepository "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/repository"
	planservice "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/service"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeGateway scripts charge outcomes without any HTTP.
type fakeGateway struct {
	mu             sync.Mutex
	createErr      error
	recurringErr   error
	createCalls    int
	recurringCalls int
}

func (g *fakeGateway) CreateCharge(ctx context.Context, req billingdomain.CreateChargeRequest) (*billingdomain.CreateChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	return &billingdomain.CreateChargeResult{
		ConfirmationURL: fmt.Sprintf("https://gateway.local/charges/confirm?reference=%s", req.Reference),
	}, nil
}

func (g *fakeGateway) ChargeRecurring(ctx context.Context, req billingdomain.RecurringChargeRequest) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recurringCalls++
	return g.recurringErr
}

type billingFixture struct {
	svc       billingdomain.Service
	plans     plandomain.Service
	merchants merchantdomain.Service
	gateway   *fakeGateway
	clock     *clock.FakeClock
	db        *gorm.DB
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&merchantdomain.Merchant{},
		&plandomain.Plan{},
		&billingdomain.Subscription{},
		&billingdomain.BillingEvent{},
	))
	// Same single-ACTIVE guard the SQL migration creates.
	require.NoError(t, db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_one_active ON subscriptions (merchant_id) WHERE status = 'ACTIVE'",
	).Error)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	plans := planservice.NewService(planservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fakeClock, Repo: planrepository.Provide(),
	})
	merchants := merchantservice.NewService(merchantservice.ServiceParam{
		DB: db, Log: log, GenID: node, Clock: fakeClock, Repo: merchantrepository.Provide(),
	})
	gateway := &fakeGateway{}

	svc := NewService(ServiceParam{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     fakeClock,
		Config:    config.Config{BillingGraceDay: 7},
		Repo:      repository.Provide(),
		Plans:     plans,
		Merchants: merchants,
		Gateway:   gateway,
		Metrics:   metrics.NewWith(prometheus.NewRegistry()),
	})

	return &billingFixture{
		svc:       svc,
		plans:     plans,
		merchants: merchants,
		gateway:   gateway,
		clock:     fakeClock,
		db:        db,
	}
}

func (f *billingFixture) seedMerchant(t *testing.T, domain string) *merchantdomain.Merchant {
	t.Helper()
	m, err := f.merchants.EnsureInstalled(context.Background(), domain)
	require.NoError(t, err)
	return m
}

func (f *billingFixture) seedPlan(t *testing.T, code string, billingType plandomain.BillingType, trialDays int, cap *string) *plandomain.Plan {
	t.Helper()
	req := plandomain.CreatePlanRequest{
		Code:        code,
		BillingType: billingType,
		Name:        map[string]string{"en": code, "tr": code},
		PriceByCurrency: map[string]string{
			"TRY": "499.00",
			"USD": "29.00",
			"EUR": "27.00",
		},
		CappedAmount: cap,
		TrialDays:    trialDays,
	}
	if billingType == plandomain.BillingTypeRecurring {
		interval := plandomain.IntervalEvery30Days
		req.Interval = &interval
	}
	plan, err := f.plans.Create(context.Background(), req)
	require.NoError(t, err)
	return plan
}

// subscribe runs plan selection and the accepted gateway callback.
func (f *billingFixture) subscribe(t *testing.T, merchantID snowflake.ID, planID snowflake.ID) *billingdomain.Subscription {
	t.Helper()
	ctx := context.Background()

	result, err := f.svc.SelectPlan(ctx, billingdomain.SelectPlanRequest{
		MerchantID: merchantID,
		PlanID:     planID,
		Currency:   "USD",
	})
	require.NoError(t, err)

	sub, err := f.svc.HandleGatewayCallback(ctx, result.Subscription.GatewayReference, true)
	require.NoError(t, err)
	return sub
}

func TestSelectPlanCreatesPendingSubscription(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)

	result, err := f.svc.SelectPlan(context.Background(), billingdomain.SelectPlanRequest{
		MerchantID: m.ID,
		PlanID:     plan.ID,
		Currency:   "try",
	})
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusPending, result.Subscription.Status)
	require.Equal(t, "TRY", result.Subscription.Currency)
	require.Equal(t, "499.00", result.Subscription.Price)
	require.Contains(t, result.RedirectURL, result.Subscription.GatewayReference)
	require.Equal(t, 1, f.gateway.createCalls)
}

func TestSelectPlanRejectsUnsupportedCurrency(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)

	_, err := f.svc.SelectPlan(context.Background(), billingdomain.SelectPlanRequest{
		MerchantID: m.ID,
		PlanID:     plan.ID,
		Currency:   "GBP",
	})
	require.ErrorIs(t, err, billingdomain.ErrInvalidCurrency)
}

func TestSelectPlanGatewayFailureCancelsPending(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	f.gateway.createErr = errors.New("gateway unreachable")

	_, err := f.svc.SelectPlan(context.Background(), billingdomain.SelectPlanRequest{
		MerchantID: m.ID,
		PlanID:     plan.ID,
		Currency:   "USD",
	})
	require.Error(t, err)

	var subs []billingdomain.Subscription
	require.NoError(t, f.db.Find(&subs).Error)
	require.Len(t, subs, 1)
	require.Equal(t, billingdomain.SubscriptionStatusCancelled, subs[0].Status)
}

func TestCallbackActivatesWithTrialAnchoredOnCreation(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 3, nil)
	ctx := context.Background()

	result, err := f.svc.SelectPlan(ctx, billingdomain.SelectPlanRequest{
		MerchantID: m.ID,
		PlanID:     plan.ID,
		Currency:   "USD",
	})
	require.NoError(t, err)
	createdAt := result.Subscription.CreatedAt

	// The merchant dawdles on the gateway approval page; the trial
	// clock started at subscription creation regardless.
	f.clock.Advance(2 * time.Hour)
	sub, err := f.svc.HandleGatewayCallback(ctx, result.Subscription.GatewayReference, true)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.TrialEndsAt)
	require.WithinDuration(t, createdAt.Add(3*24*time.Hour), sub.TrialEndsAt.UTC(), time.Second)
	require.NotNil(t, sub.CurrentPeriodEnd)
	require.WithinDuration(t, *sub.TrialEndsAt, *sub.CurrentPeriodEnd, time.Second)
}

func TestTrialAppliesOnlyToFirstSubscription(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	first := f.seedPlan(t, "starter", plandomain.BillingTypeRecurring, 3, nil)
	second := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 3, nil)

	sub1 := f.subscribe(t, m.ID, first.ID)
	require.NotNil(t, sub1.TrialEndsAt)

	sub2 := f.subscribe(t, m.ID, second.ID)
	require.Nil(t, sub2.TrialEndsAt)
	require.NotNil(t, sub2.CurrentPeriodEnd)
	require.WithinDuration(t, f.clock.Now().Add(30*24*time.Hour), sub2.CurrentPeriodEnd.UTC(), time.Second)
}

func TestActivationSupersedesPriorActive(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	starter := f.seedPlan(t, "starter", plandomain.BillingTypeRecurring, 0, nil)
	growth := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)

	sub1 := f.subscribe(t, m.ID, starter.ID)
	sub2 := f.subscribe(t, m.ID, growth.ID)

	var old billingdomain.Subscription
	require.NoError(t, f.db.First(&old, "id = ?", sub1.ID).Error)
	require.Equal(t, billingdomain.SubscriptionStatusSuperseded, old.Status)

	var active []billingdomain.Subscription
	require.NoError(t, f.db.Where("status = ?", billingdomain.SubscriptionStatusActive).Find(&active).Error)
	require.Len(t, active, 1)
	require.Equal(t, sub2.ID, active[0].ID)

	current, err := f.svc.Current(context.Background(), m.ID)
	require.NoError(t, err)
	require.Equal(t, sub2.ID, current.ID)
}

func TestCallbackRedeliveryIsIdempotent(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	ctx := context.Background()

	sub := f.subscribe(t, m.ID, plan.ID)

	again, err := f.svc.HandleGatewayCallback(ctx, sub.GatewayReference, true)
	require.NoError(t, err)
	require.Equal(t, sub.ID, again.ID)
	require.Equal(t, billingdomain.SubscriptionStatusActive, again.Status)

	var active []billingdomain.Subscription
	require.NoError(t, f.db.Where("status = ?", billingdomain.SubscriptionStatusActive).Find(&active).Error)
	require.Len(t, active, 1)
}

func TestCallbackDeclined(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	ctx := context.Background()

	result, err := f.svc.SelectPlan(ctx, billingdomain.SelectPlanRequest{
		MerchantID: m.ID,
		PlanID:     plan.ID,
		Currency:   "USD",
	})
	require.NoError(t, err)

	sub, err := f.svc.HandleGatewayCallback(ctx, result.Subscription.GatewayReference, false)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusCancelled, sub.Status)

	// Redelivered decline settles with the same answer.
	again, err := f.svc.HandleGatewayCallback(ctx, sub.GatewayReference, false)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusCancelled, again.Status)

	// A conflicting accepted callback for the settled reference is an
	// error, not a resurrection.
	_, err = f.svc.HandleGatewayCallback(ctx, sub.GatewayReference, true)
	require.ErrorIs(t, err, billingdomain.ErrAlreadyResolved)
}

func TestCallbackUnknownReference(t *testing.T) {
	f := newBillingFixture(t)

	_, err := f.svc.HandleGatewayCallback(context.Background(), "no-such-ref", true)
	require.ErrorIs(t, err, billingdomain.ErrSubscriptionNotFound)
}

func TestCancelIsIdempotent(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	ctx := context.Background()

	sub := f.subscribe(t, m.ID, plan.ID)

	cancelled, err := f.svc.Cancel(ctx, m.ID, sub.ID)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)

	again, err := f.svc.Cancel(ctx, m.ID, sub.ID)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusCancelled, again.Status)

	_, err = f.svc.Current(ctx, m.ID)
	require.ErrorIs(t, err, billingdomain.ErrNoActiveSubscription)
}

func TestRecordUsageChargeEnforcesCap(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	cap := "10.00"
	plan := f.seedPlan(t, "pay-as-you-go", plandomain.BillingTypeUsage, 0, &cap)
	ctx := context.Background()

	f.subscribe(t, m.ID, plan.ID)

	sub, err := f.svc.RecordUsageCharge(ctx, m.ID, "6.00", "api calls")
	require.NoError(t, err)
	require.Equal(t, "6.00", sub.PeriodUsage)

	// 6.00 + 5.00 breaches the 10.00 cap; the charge is rejected and
	// the accumulated usage stays put.
	_, err = f.svc.RecordUsageCharge(ctx, m.ID, "5.00", "api calls")
	require.ErrorIs(t, err, billingdomain.ErrCapExceeded)

	current, err := f.svc.Current(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, "6.00", current.PeriodUsage)

	// Exactly reaching the cap is allowed.
	sub, err = f.svc.RecordUsageCharge(ctx, m.ID, "4.00", "api calls")
	require.NoError(t, err)
	require.Equal(t, "10.00", sub.PeriodUsage)
}

func TestRecordUsageChargeRequiresUsagePlan(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)

	f.subscribe(t, m.ID, plan.ID)

	_, err := f.svc.RecordUsageCharge(context.Background(), m.ID, "5.00", "api calls")
	require.ErrorIs(t, err, billingdomain.ErrNotUsagePlan)
}

func TestRenewDueRollsRecurringSubscription(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	ctx := context.Background()

	sub := f.subscribe(t, m.ID, plan.ID)
	require.NotNil(t, sub.CurrentPeriodEnd)

	f.clock.Advance(31 * 24 * time.Hour)
	now := f.clock.Now()
	processed, err := f.svc.RenewDue(ctx, now, 100)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, 1, f.gateway.recurringCalls)

	renewed, err := f.svc.Current(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusActive, renewed.Status)
	require.WithinDuration(t, now.Add(30*24*time.Hour), renewed.CurrentPeriodEnd.UTC(), time.Second)
}

func TestRenewDueFailedChargeGoesPastDue(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	ctx := context.Background()

	f.subscribe(t, m.ID, plan.ID)

	f.gateway.recurringErr = billingdomain.ErrChargeDeclined
	f.clock.Advance(31 * 24 * time.Hour)
	now := f.clock.Now()
	processed, err := f.svc.RenewDue(ctx, now, 100)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	sub, err := f.svc.Current(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusPastDue, sub.Status)
	require.WithinDuration(t, now.Add(24*time.Hour), sub.CurrentPeriodEnd.UTC(), time.Second)

	// The next scheduler pass after the backoff succeeds and the
	// subscription recovers.
	f.gateway.recurringErr = nil
	f.clock.Advance(25 * time.Hour)
	now = f.clock.Now()
	processed, err = f.svc.RenewDue(ctx, now, 100)
	require.NoError(t, err)
	require.Equal(t, 1, processed)

	sub, err = f.svc.Current(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusActive, sub.Status)
}

func TestRenewDueResetsUsagePeriod(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	cap := "100.00"
	plan := f.seedPlan(t, "pay-as-you-go", plandomain.BillingTypeUsage, 0, &cap)
	ctx := context.Background()

	f.subscribe(t, m.ID, plan.ID)
	_, err := f.svc.RecordUsageCharge(ctx, m.ID, "42.00", "api calls")
	require.NoError(t, err)

	f.clock.Advance(31 * 24 * time.Hour)
	now := f.clock.Now()
	processed, err := f.svc.RenewDue(ctx, now, 100)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Zero(t, f.gateway.recurringCalls)

	sub, err := f.svc.Current(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, "0.00", sub.PeriodUsage)
	require.WithinDuration(t, now.Add(30*24*time.Hour), sub.CurrentPeriodEnd.UTC(), time.Second)
}

func TestCancelActiveForMerchantOnUninstall(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	ctx := context.Background()

	f.subscribe(t, m.ID, plan.ID)

	require.NoError(t, f.svc.CancelActiveForMerchant(ctx, m.ID))
	_, err := f.svc.Current(ctx, m.ID)
	require.ErrorIs(t, err, billingdomain.ErrNoActiveSubscription)

	// No live subscription left; uninstall handlers may run twice.
	require.NoError(t, f.svc.CancelActiveForMerchant(ctx, m.ID))
}

// blindSupersedeRepo skips the supersede pass, standing in for a
// concurrent activation whose committed ACTIVE row the transaction's
// snapshot cannot see.
type blindSupersedeRepo struct {
	billingdomain.Repository
}

func (r blindSupersedeRepo) SupersedeActive(ctx context.Context, db *gorm.DB, merchantID, exceptID snowflake.ID, at time.Time) ([]billingdomain.Subscription, error) {
	return nil, nil
}

func TestConcurrentActivationsKeepSingleActive(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	ctx := context.Background()

	sub1 := f.subscribe(t, m.ID, plan.ID)

	result, err := f.svc.SelectPlan(ctx, billingdomain.SelectPlanRequest{
		MerchantID: m.ID,
		PlanID:     plan.ID,
		Currency:   "USD",
	})
	require.NoError(t, err)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	blind := NewService(ServiceParam{
		DB:        f.db,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     f.clock,
		Config:    config.Config{BillingGraceDay: 7},
		Repo:      blindSupersedeRepo{Repository: repository.Provide()},
		Plans:     f.plans,
		Merchants: f.merchants,
		Gateway:   f.gateway,
		Metrics:   metrics.NewWith(prometheus.NewRegistry()),
	})

	// Without the supersede, flipping the second row ACTIVE trips the
	// single-ACTIVE index; the callback surfaces a conflict instead of
	// committing a second ACTIVE subscription.
	_, err = blind.HandleGatewayCallback(ctx, result.Subscription.GatewayReference, true)
	require.ErrorIs(t, err, billingdomain.ErrConcurrentStateConflict)

	var active int64
	require.NoError(t, f.db.Model(&billingdomain.Subscription{}).
		Where("status = ?", billingdomain.SubscriptionStatusActive).
		Count(&active).Error)
	require.EqualValues(t, 1, active)

	// The conflicting transaction rolled back; a retry on fresh state
	// supersedes the first subscription and activates the second.
	sub2, err := f.svc.HandleGatewayCallback(ctx, result.Subscription.GatewayReference, true)
	require.NoError(t, err)
	require.Equal(t, billingdomain.SubscriptionStatusActive, sub2.Status)

	reloaded, err := f.svc.Current(ctx, m.ID)
	require.NoError(t, err)
	require.Equal(t, sub2.ID, reloaded.ID)
	require.NotEqual(t, sub1.ID, reloaded.ID)
}

func TestUninstallHandlerTearsDownMerchant(t *testing.T) {
	f := newBillingFixture(t)
	m := f.seedMerchant(t, "demo.myshopify.com")
	plan := f.seedPlan(t, "growth", plandomain.BillingTypeRecurring, 0, nil)
	ctx := context.Background()

	f.subscribe(t, m.ID, plan.ID)

	handler := NewUninstallHandler(UninstallHandlerParam{
		Log:       zap.NewNop(),
		Merchants: f.merchants,
		Billing:   f.svc,
	})
	require.Equal(t, TopicAppUninstalled, handler.Topic())

	err := handler.Handle(ctx, webhookdomain.Delivery{
		Topic:      TopicAppUninstalled,
		DeliveryID: "wh-uninstall-1",
		ShopDomain: "demo.myshopify.com",
	})
	require.NoError(t, err)

	_, err = f.svc.Current(ctx, m.ID)
	require.ErrorIs(t, err, billingdomain.ErrNoActiveSubscription)
	reloaded, err := f.merchants.GetByDomain(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	require.Equal(t, merchantdomain.MerchantStatusUninstalled, reloaded.Status)
	require.NotNil(t, reloaded.UninstalledAt)
}

func TestUninstallHandlerIgnoresUnknownShop(t *testing.T) {
	f := newBillingFixture(t)

	handler := NewUninstallHandler(UninstallHandlerParam{
		Log:       zap.NewNop(),
		Merchants: f.merchants,
		Billing:   f.svc,
	})
	require.NoError(t, handler.Handle(context.Background(), webhookdomain.Delivery{
		Topic:      TopicAppUninstalled,
		DeliveryID: "wh-uninstall-2",
		ShopDomain: "ghost.myshopify.com",
	}))
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/clock"
	plandomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPlanService(t *testing.T) plandomain.Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&plandomain.Plan{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func validCreateRequest() plandomain.CreatePlanRequest {
	interval := plandomain.IntervalEvery30Days
	return plandomain.CreatePlanRequest{
		Code:        "growth",
		BillingType: plandomain.BillingTypeRecurring,
		Interval:    &interval,
		Name: map[string]string{
			"en": "Growth",
			"tr": "Büyüme",
		},
		Description: map[string]string{
			"en": "For stores with steady order volume.",
		},
		Features: map[string][]string{
			"en": {"Order sync", "Priority support"},
			"tr": {"Sipariş senkronizasyonu", "Öncelikli destek"},
		},
		PriceByCurrency: map[string]string{
			"TRY": "499.00",
			"USD": "29.00",
			"EUR": "27.00",
		},
		TrialDays: 3,
	}
}

func TestCreatePlanPersistsAllCurrencies(t *testing.T) {
	svc := setupPlanService(t)

	plan, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)
	require.True(t, plan.IsActive)

	price, err := svc.Price(plan, "EUR")
	require.NoError(t, err)
	require.Equal(t, "27.00", price)

	_, err = svc.Price(plan, "GBP")
	require.ErrorIs(t, err, plandomain.ErrMissingCurrency)
}

func TestCreatePlanRejectsDuplicateCode(t *testing.T) {
	svc := setupPlanService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	_, err = svc.Create(ctx, validCreateRequest())
	require.ErrorIs(t, err, plandomain.ErrPlanCodeTaken)
}

func TestCreatePlanValidation(t *testing.T) {
	svc := setupPlanService(t)

	cases := map[string]struct {
		mutate func(*plandomain.CreatePlanRequest)
		want   error
	}{
		"empty code": {
			mutate: func(r *plandomain.CreatePlanRequest) { r.Code = " " },
			want:   plandomain.ErrInvalidPlan,
		},
		"negative trial": {
			mutate: func(r *plandomain.CreatePlanRequest) { r.TrialDays = -1 },
			want:   plandomain.ErrInvalidPlan,
		},
		"recurring without interval": {
			mutate: func(r *plandomain.CreatePlanRequest) { r.Interval = nil },
			want:   plandomain.ErrIntervalRequired,
		},
		"missing turkish name": {
			mutate: func(r *plandomain.CreatePlanRequest) { delete(r.Name, "tr") },
			want:   plandomain.ErrMissingLocale,
		},
		"missing eur price": {
			mutate: func(r *plandomain.CreatePlanRequest) { delete(r.PriceByCurrency, "EUR") },
			want:   plandomain.ErrMissingCurrency,
		},
		"unparseable price": {
			mutate: func(r *plandomain.CreatePlanRequest) { r.PriceByCurrency["USD"] = "twenty" },
			want:   plandomain.ErrInvalidPlan,
		},
		"unsupported currency": {
			mutate: func(r *plandomain.CreatePlanRequest) { r.PriceByCurrency["GBP"] = "25.00" },
			want:   plandomain.ErrInvalidPlan,
		},
		"bad capped amount": {
			mutate: func(r *plandomain.CreatePlanRequest) {
				capped := "-5.00"
				r.CappedAmount = &capped
			},
			want: plandomain.ErrInvalidPlan,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(&req)
			_, err := svc.Create(context.Background(), req)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLocalizeFallsBackToEnglish(t *testing.T) {
	svc := setupPlanService(t)

	plan, err := svc.Create(context.Background(), validCreateRequest())
	require.NoError(t, err)

	tr := svc.Localize(plan, "tr")
	require.Equal(t, "Büyüme", tr.Name)
	// No Turkish description was provided; English fills in.
	require.Equal(t, "For stores with steady order volume.", tr.Description)
	require.Equal(t, []string{"Sipariş senkronizasyonu", "Öncelikli destek"}, tr.Features)

	// Unknown locales collapse to the fallback.
	de := svc.Localize(plan, "de-DE")
	require.Equal(t, "Growth", de.Name)

	en := svc.Localize(plan, "en")
	require.Equal(t, []string{"Order sync", "Priority support"}, en.Features)
}

func TestListActiveSkipsDeactivatedPlans(t *testing.T) {
	svc := setupPlanService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, validCreateRequest())
	require.NoError(t, err)

	req := validCreateRequest()
	req.Code = "legacy"
	legacy, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, legacy.ID))

	views, err := svc.ListActive(ctx, "en")
	require.NoError(t, err)
	require.Len(t, views, 1)
	require.Equal(t, plan.ID, views[0].ID)
	require.Equal(t, "29.00", views[0].PriceByCurrency["USD"])
}

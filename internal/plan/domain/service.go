package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrPlanNotFound      = errors.New("plan_not_found")
	ErrPlanCodeTaken     = errors.New("plan_code_taken")
	ErrInvalidPlan       = errors.New("invalid_plan")
	ErrMissingCurrency   = errors.New("missing_currency_price")
	ErrMissingLocale     = errors.New("missing_locale")
	ErrUnknownBilling    = errors.New("unknown_billing_type")
	ErrIntervalRequired  = errors.New("interval_required")
	ErrPlanNotActive     = errors.New("plan_not_active")
	ErrUnsupportedLocale = errors.New("unsupported_locale")
)

// SupportedLanguages are the locales every localized plan field must
// cover. English doubles as the fallback.
var SupportedLanguages = []string{"en", "tr"}

const FallbackLanguage = "en"

type CreatePlanRequest struct {
	Code               string            `json:"code"`
	BillingType        BillingType       `json:"billing_type"`
	Interval           *Interval         `json:"interval,omitempty"`
	Name               map[string]string `json:"name"`
	Description        map[string]string `json:"description,omitempty"`
	Features           map[string][]string `json:"features,omitempty"`
	PriceByCurrency    map[string]string `json:"price_by_currency"`
	CappedAmount       *string           `json:"capped_amount,omitempty"`
	TrialDays          int               `json:"trial_days"`
	IsTest             bool              `json:"is_test"`
	IsDefaultOnInstall bool              `json:"is_default_on_install"`
}

// PlanView is a plan projected into a single language for display.
type PlanView struct {
	ID              snowflake.ID      `json:"id,string"`
	Code            string            `json:"code"`
	BillingType     BillingType       `json:"billing_type"`
	Interval        *Interval         `json:"interval,omitempty"`
	Name            string            `json:"name"`
	Description     string            `json:"description,omitempty"`
	Features        []string          `json:"features,omitempty"`
	PriceByCurrency map[string]string `json:"price_by_currency"`
	CappedAmount    *string           `json:"capped_amount,omitempty"`
	TrialDays       int               `json:"trial_days"`
	IsTest          bool              `json:"is_test"`
}

type Service interface {
	Create(ctx context.Context, req CreatePlanRequest) (*Plan, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Plan, error)
	GetByCode(ctx context.Context, code string) (*Plan, error)
	ListActive(ctx context.Context, lang string) ([]PlanView, error)
	Localize(plan *Plan, lang string) PlanView
	Deactivate(ctx context.Context, id snowflake.ID) error
	// Price returns the plan's fixed price for currency.
	Price(plan *Plan, currency string) (string, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Plan, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Plan, error)
	ListActive(ctx context.Context, db *gorm.DB) ([]Plan, error)
	FindDefaultOnInstall(ctx context.Context, db *gorm.DB) (*Plan, error)
	Update(ctx context.Context, db *gorm.DB, plan *Plan) error
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrSubscriptionNotFound    = errors.New("subscription_not_found")
	ErrNoActiveSubscription    = errors.New("no_active_subscription")
	ErrAlreadyResolved         = errors.New("subscription_already_resolved")
	ErrCapExceeded             = errors.New("cap_exceeded")
	ErrNotUsagePlan            = errors.New("not_a_usage_plan")
	ErrConcurrentStateConflict = errors.New("concurrent_state_conflict")
	ErrChargeDeclined          = errors.New("charge_declined")
	ErrInvalidCurrency         = errors.New("invalid_currency")
)

// SelectPlanResult carries the redirect target the merchant must
// visit to approve the charge on the gateway side.
type SelectPlanRequest struct {
	MerchantID snowflake.ID
	PlanID     snowflake.ID
	Currency   string
	ReturnURL  string
}

type SelectPlanResult struct {
	Subscription *Subscription `json:"subscription"`
	RedirectURL  string        `json:"redirect_url"`
}

type Service interface {
	// SelectPlan creates a PENDING subscription and opens the
	// gateway round-trip.
	SelectPlan(ctx context.Context, req SelectPlanRequest) (*SelectPlanResult, error)
	// HandleGatewayCallback resolves a PENDING subscription after the
	// gateway round-trip. Accepted moves it to ACTIVE and supersedes
	// any prior ACTIVE subscription for the merchant in the same
	// transaction; declined moves it to CANCELLED.
	HandleGatewayCallback(ctx context.Context, gatewayReference string, accepted bool) (*Subscription, error)
	Current(ctx context.Context, merchantID snowflake.ID) (*Subscription, error)
	Cancel(ctx context.Context, merchantID, subscriptionID snowflake.ID) (*Subscription, error)
	// CancelActiveForMerchant ends whatever subscription is live for
	// the merchant. Used on app uninstall.
	CancelActiveForMerchant(ctx context.Context, merchantID snowflake.ID) error
	// RecordUsageCharge adds a usage charge to the current period,
	// enforcing the plan's capped amount.
	RecordUsageCharge(ctx context.Context, merchantID snowflake.ID, amount, description string) (*Subscription, error)
	// RenewDue charges every recurring subscription whose period has
	// ended and rolls or degrades it based on the outcome. Returns
	// how many were processed.
	RenewDue(ctx context.Context, now time.Time, batchSize int) (int, error)
	Events(ctx context.Context, merchantID snowflake.ID, limit int) ([]BillingEvent, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	Update(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Subscription, error)
	FindByGatewayRef(ctx context.Context, db *gorm.DB, ref string) (*Subscription, error)
	FindByGatewayRefForUpdate(ctx context.Context, db *gorm.DB, ref string) (*Subscription, error)
	FindActiveByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*Subscription, error)
	FindLiveByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*Subscription, error)
	FindLiveByMerchantForUpdate(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*Subscription, error)
	CountByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (int64, error)
	// TransitionStatus performs a compare-and-swap on status and
	// reports whether the row was in `from` when the update ran.
	TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to SubscriptionStatus, at time.Time) (bool, error)
	SupersedeActive(ctx context.Context, db *gorm.DB, merchantID, exceptID snowflake.ID, at time.Time) ([]Subscription, error)
	ListDue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Subscription, error)

	InsertEvent(ctx context.Context, db *gorm.DB, event *BillingEvent) error
	ListEvents(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, limit int) ([]BillingEvent, error)
}

// CreateChargeRequest asks the gateway to open an approval flow for a
// subscription charge.
type CreateChargeRequest struct {
	Reference  string
	ShopDomain string
	PlanName   string
	Amount     string
	Currency   string
	Trial      bool
	Test       bool
	ReturnURL  string
}

type CreateChargeResult struct {
	ConfirmationURL string
}

// RecurringChargeRequest is a renewal charge against an approved
// subscription; no merchant interaction is involved.
type RecurringChargeRequest struct {
	Reference string
	Amount    string
	Currency  string
	Test      bool
}

// Gateway abstracts the payment provider. Implementations must treat
// context deadlines as hard limits; a timed-out charge is reported as
// an error and retried by the caller, never assumed successful.
type Gateway interface {
	CreateCharge(ctx context.Context, req CreateChargeRequest) (*CreateChargeResult, error)
	ChargeRecurring(ctx context.Context, req RecurringChargeRequest) error
}

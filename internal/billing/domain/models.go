// Package domain contains the subscription state machine models and
// the gateway contract.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "PENDING"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusPastDue   SubscriptionStatus = "PAST_DUE"
	SubscriptionStatusCancelled SubscriptionStatus = "CANCELLED"
	// SubscriptionStatusSuperseded marks a subscription displaced by
	// a newer ACTIVE one. Terminal, distinct from CANCELLED so the
	// billing history shows why it ended.
	SubscriptionStatusSuperseded SubscriptionStatus = "SUPERSEDED"
)

// Terminal reports whether no further transition may leave status.
func (s SubscriptionStatus) Terminal() bool {
	return s == SubscriptionStatusCancelled || s == SubscriptionStatusSuperseded
}

// Subscription is a merchant's agreement to a plan. PeriodUsage
// accumulates approved usage charges within the current period for
// cap enforcement; it resets when the period rolls.
type Subscription struct {
	ID               snowflake.ID       `gorm:"primaryKey"`
	MerchantID       snowflake.ID       `gorm:"not null;index"`
	PlanID           snowflake.ID       `gorm:"not null;index"`
	Status           SubscriptionStatus `gorm:"type:text;not null;index"`
	Currency         string             `gorm:"type:text;not null"`
	Price            string             `gorm:"type:text;not null"`
	TrialEndsAt      *time.Time         `gorm:""`
	CurrentPeriodEnd *time.Time         `gorm:"index"`
	PeriodUsage      string             `gorm:"type:text;not null;default:'0'"`
	GatewayReference string             `gorm:"type:text;not null;uniqueIndex"`
	ActivatedAt      *time.Time         `gorm:""`
	CancelledAt      *time.Time         `gorm:""`
	CreatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Subscription) TableName() string { return "subscriptions" }

// BillingEvent is the audit trail of state transitions and charge
// outcomes. PAST_DUE escalation policy lives outside this core; the
// events give the surrounding system what it needs to act.
type BillingEvent struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	MerchantID     snowflake.ID      `gorm:"not null;index"`
	SubscriptionID snowflake.ID      `gorm:"not null;index"`
	Type           string            `gorm:"type:text;not null"`
	Metadata       datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
}

func (BillingEvent) TableName() string { return "billing_events" }

const (
	EventSubscriptionCreated    = "subscription.created"
	EventSubscriptionActivated  = "subscription.activated"
	EventSubscriptionDeclined   = "subscription.declined"
	EventSubscriptionSuperseded = "subscription.superseded"
	EventSubscriptionCancelled  = "subscription.cancelled"
	EventSubscriptionPastDue    = "subscription.past_due"
	EventChargeSucceeded        = "charge.succeeded"
	EventChargeFailed           = "charge.failed"
	EventUsageRecorded          = "usage.recorded"
	EventUsageCapExceeded       = "usage.cap_exceeded"
)

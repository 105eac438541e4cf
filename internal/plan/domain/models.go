// Package domain contains the billing plan catalog models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type BillingType string

const (
	BillingTypeRecurring BillingType = "RECURRING"
	BillingTypeOneTime   BillingType = "ONE_TIME"
	BillingTypeUsage     BillingType = "USAGE"
)

type Interval string

const (
	IntervalEvery30Days Interval = "EVERY_30_DAYS"
	IntervalAnnual      Interval = "ANNUAL"
)

// Plan is an offer merchants can subscribe to. Localized fields hold
// one entry per language code; prices hold one decimal string per
// currency, fixed when the plan is defined and never converted at
// charge time.
type Plan struct {
	ID                 snowflake.ID      `gorm:"primaryKey"`
	Code               string            `gorm:"type:text;not null;uniqueIndex"`
	BillingType        BillingType       `gorm:"type:text;not null"`
	Interval           *Interval         `gorm:"type:text"`
	Name               datatypes.JSONMap `gorm:"type:jsonb;not null"`
	Description        datatypes.JSONMap `gorm:"type:jsonb"`
	Features           datatypes.JSONMap `gorm:"type:jsonb"`
	PriceByCurrency    datatypes.JSONMap `gorm:"type:jsonb;not null"`
	CappedAmount       *string           `gorm:"type:text"`
	TrialDays          int               `gorm:"not null;default:0"`
	IsTest             bool              `gorm:"not null;default:false"`
	IsDefaultOnInstall bool              `gorm:"not null;default:false"`
	IsActive           bool              `gorm:"not null;default:true"`
	CreatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt          time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Plan) TableName() string { return "plans" }

// Package domain contains the merchant (installed shop) model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type MerchantStatus string

const (
	MerchantStatusActive      MerchantStatus = "ACTIVE"
	MerchantStatusUninstalled MerchantStatus = "UNINSTALLED"
)

// Merchant is a shop that installed the app. The shop domain is the
// identity the platform uses in every webhook and API call.
type Merchant struct {
	ID            snowflake.ID   `gorm:"primaryKey"`
	ShopDomain    string         `gorm:"type:text;not null;uniqueIndex"`
	Status        MerchantStatus `gorm:"type:text;not null"`
	InstalledAt   time.Time      `gorm:"not null"`
	UninstalledAt *time.Time     `gorm:""`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Merchant) TableName() string { return "merchants" }

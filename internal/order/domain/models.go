// Package domain contains the ingested order models. Orders mirror
// what the platform reported; totals are stored verbatim, never
// recomputed from line items.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Order struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	MerchantID      snowflake.ID      `gorm:"not null;uniqueIndex:idx_orders_merchant_platform,priority:1"`
	PlatformOrderID int64             `gorm:"not null;uniqueIndex:idx_orders_merchant_platform,priority:2"`
	OrderNumber     string            `gorm:"type:text;not null"`
	CustomerName    string            `gorm:"type:text"`
	ShippingAddress datatypes.JSONMap `gorm:"type:jsonb"`
	Currency        string            `gorm:"type:text;not null"`
	TotalPrice      string            `gorm:"type:text;not null"`
	FinancialStatus string            `gorm:"type:text"`
	PlacedAt        *time.Time        `gorm:""`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

type OrderLineItem struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	OrderID   snowflake.ID `gorm:"not null;index"`
	Position  int          `gorm:"not null"`
	Title     string       `gorm:"type:text;not null"`
	Quantity  int          `gorm:"not null"`
	UnitPrice string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (OrderLineItem) TableName() string { return "order_line_items" }

// Package domain contains invoice snapshot models. An invoice copies
// the order's lines at generation time; later edits to the order never
// reach back into an existing snapshot.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Invoice struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	MerchantID  snowflake.ID `gorm:"not null;index"`
	OrderID     snowflake.ID `gorm:"not null;index"`
	Number      string       `gorm:"type:text;not null;uniqueIndex"`
	Currency    string       `gorm:"type:text;not null"`
	Total       string       `gorm:"type:text;not null"`
	GeneratedAt time.Time    `gorm:"not null"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Invoice) TableName() string { return "invoices" }

type InvoiceLine struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	InvoiceID snowflake.ID `gorm:"not null;index"`
	Position  int          `gorm:"not null"`
	Title     string       `gorm:"type:text;not null"`
	Quantity  int          `gorm:"not null"`
	UnitPrice string       `gorm:"type:text;not null"`
	Amount    string       `gorm:"type:text;not null"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InvoiceLine) TableName() string { return "invoice_lines" }

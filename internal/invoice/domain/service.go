package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrInvoiceNotFound = errors.New("invoice_not_found")
	ErrOrderNotFound   = errors.New("invoice_order_not_found")
)

// InvoiceWithLines bundles a snapshot with its copied lines for
// display.
type InvoiceWithLines struct {
	Invoice Invoice       `json:"invoice"`
	Lines   []InvoiceLine `json:"lines"`
}

type Service interface {
	// Materialize generates a snapshot for the order unless one
	// already exists, in which case the existing one is returned.
	// Queue redeliveries land here, so it must be idempotent.
	Materialize(ctx context.Context, orderID snowflake.ID) (*Invoice, error)
	// Regenerate always produces a fresh snapshot from the order's
	// current state. Earlier snapshots stay untouched.
	Regenerate(ctx context.Context, orderID snowflake.ID) (*Invoice, error)
	LatestForOrder(ctx context.Context, merchantID, orderID snowflake.ID) (*InvoiceWithLines, error)
	ListForOrder(ctx context.Context, merchantID, orderID snowflake.ID) ([]Invoice, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice, lines []InvoiceLine) error
	FindLatestByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Invoice, error)
	ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]Invoice, error)
	FindLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceLine, error)
	CountForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error)
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrOrderNotFound  = errors.New("order_not_found")
	ErrInvalidPayload = errors.New("invalid_order_payload")
)

type IngestLineItem struct {
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"price"`
}

// IngestRequest is the order payload as delivered by the platform,
// already bound to a merchant.
type IngestRequest struct {
	MerchantID      snowflake.ID
	PlatformOrderID int64
	OrderNumber     string
	CustomerName    string
	ShippingAddress map[string]any
	Currency        string
	TotalPrice      string
	FinancialStatus string
	PlacedAt        *time.Time
	LineItems       []IngestLineItem
}

type Service interface {
	// Ingest upserts the order keyed by (merchant, platform order id)
	// and reports whether this call created it. Redeliveries and
	// order updates both land here.
	Ingest(ctx context.Context, req IngestRequest) (*Order, bool, error)
	GetByID(ctx context.Context, merchantID, id snowflake.ID) (*Order, error)
	GetByPlatformID(ctx context.Context, merchantID snowflake.ID, platformOrderID int64) (*Order, error)
	ListLineItems(ctx context.Context, orderID snowflake.ID) ([]OrderLineItem, error)
	List(ctx context.Context, merchantID snowflake.ID, limit int) ([]Order, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	Update(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*Order, error)
	FindByOrderID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	FindByPlatformID(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, platformOrderID int64) (*Order, error)
	FindByPlatformIDForUpdate(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, platformOrderID int64) (*Order, error)
	List(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, limit int) ([]Order, error)

	ReplaceLineItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID, items []OrderLineItem) error
	FindLineItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]OrderLineItem, error)
}

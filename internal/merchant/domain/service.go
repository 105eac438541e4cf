package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrMerchantNotFound = errors.New("merchant_not_found")
	ErrInvalidShop      = errors.New("invalid_shop_domain")
)

type Service interface {
	// EnsureInstalled resolves the merchant for a shop domain,
	// creating the record on first contact and reactivating a
	// previously uninstalled shop.
	EnsureInstalled(ctx context.Context, shopDomain string) (*Merchant, error)
	GetByDomain(ctx context.Context, shopDomain string) (*Merchant, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Merchant, error)
	MarkUninstalled(ctx context.Context, shopDomain string) error
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, merchant *Merchant) error
	FindByDomain(ctx context.Context, db *gorm.DB, shopDomain string) (*Merchant, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Merchant, error)
	Update(ctx context.Context, db *gorm.DB, merchant *Merchant) error
}

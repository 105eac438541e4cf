// Package migration brings the schema up to date on startup so the
// service is usable out of the box for local and self-hosted installs.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	invoicedomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/domain"
	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	orderdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/domain"
	plandomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/domain"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations
var embeddedMigrations embed.FS

const migrationsDir = "migrations"

// RunMigrations applies the embedded SQL migrations against postgres.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// AutoMigrate builds the schema through gorm for dialects the SQL
// migrations do not target (sqlite, mysql).
func AutoMigrate(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}

	if err := conn.AutoMigrate(
		&merchantdomain.Merchant{},
		&plandomain.Plan{},
		&orderdomain.Order{},
		&orderdomain.OrderLineItem{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceLine{},
		&billingdomain.Subscription{},
		&billingdomain.BillingEvent{},
		&webhookdomain.ProcessedDelivery{},
		&webhookdomain.DeliveryClaim{},
		&webhookdomain.DeadLetter{},
	); err != nil {
		return err
	}

	// gorm tags cannot express the partial single-ACTIVE guard; mysql
	// has no partial indexes, there the invariant rests on the
	// activation transaction alone.
	if conn.Dialector.Name() != "mysql" {
		return conn.Exec(
			"CREATE UNIQUE INDEX IF NOT EXISTS idx_subscriptions_one_active ON subscriptions (merchant_id) WHERE status = 'ACTIVE'",
		).Error
	}
	return nil
}

package repository

import (
	"context"
	"errors"

	invoicedomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/invoice/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() invoicedomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *invoicedomain.Invoice, lines []invoicedomain.InvoiceLine) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(invoice).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.Create(&lines).Error
	})
}

func (r *repo) FindLatestByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*invoicedomain.Invoice, error) {
	var inv invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("generated_at DESC, id DESC").
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]invoicedomain.Invoice, error) {
	var out []invoicedomain.Invoice
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("generated_at DESC, id DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) FindLines(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]invoicedomain.InvoiceLine, error) {
	var out []invoicedomain.InvoiceLine
	err := db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("position ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) CountForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("order_id = ?", orderID).
		Count(&count).Error
	return count, err
}

package repository

import (
	"context"
	"errors"

	orderdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/order/domain"
	pkgdb "github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() orderdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *orderdomain.Order) error {
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, order *orderdomain.Order) error {
	return db.WithContext(ctx).Save(order).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, merchantID, id snowflake.ID) (*orderdomain.Order, error) {
	var o orderdomain.Order
	err := db.WithContext(ctx).
		Where("merchant_id = ? AND id = ?", merchantID, id).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repo) FindByOrderID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	var o orderdomain.Order
	err := db.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repo) FindByPlatformID(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, platformOrderID int64) (*orderdomain.Order, error) {
	return r.findByPlatformID(ctx, db, merchantID, platformOrderID)
}

func (r *repo) FindByPlatformIDForUpdate(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, platformOrderID int64) (*orderdomain.Order, error) {
	return r.findByPlatformID(ctx, pkgdb.ForUpdate(db), merchantID, platformOrderID)
}

func (r *repo) findByPlatformID(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, platformOrderID int64) (*orderdomain.Order, error) {
	var o orderdomain.Order
	err := db.WithContext(ctx).
		Where("merchant_id = ? AND platform_order_id = ?", merchantID, platformOrderID).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, limit int) ([]orderdomain.Order, error) {
	q := db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []orderdomain.Order
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) ReplaceLineItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID, items []orderdomain.OrderLineItem) error {
	if err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Delete(&orderdomain.OrderLineItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindLineItems(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]orderdomain.OrderLineItem, error) {
	var out []orderdomain.OrderLineItem
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("position ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

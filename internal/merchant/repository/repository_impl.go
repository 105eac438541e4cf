package repository

import (
	"context"
	"errors"

	merchantdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/merchant/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() merchantdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, merchant *merchantdomain.Merchant) error {
	return db.WithContext(ctx).Create(merchant).Error
}

func (r *repo) FindByDomain(ctx context.Context, db *gorm.DB, shopDomain string) (*merchantdomain.Merchant, error) {
	var m merchantdomain.Merchant
	err := db.WithContext(ctx).Where("shop_domain = ?", shopDomain).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*merchantdomain.Merchant, error) {
	var m merchantdomain.Merchant
	err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, merchant *merchantdomain.Merchant) error {
	return db.WithContext(ctx).Save(merchant).Error
}

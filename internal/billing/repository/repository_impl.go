package repository

import (
	"context"
	"errors"
	"time"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	pkgdb "github.com/1212falcon1212/shopfiy-saas-sub001/pkg/db"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() billingdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *billingdomain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, sub *billingdomain.Subscription) error {
	return db.WithContext(ctx).Save(sub).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Subscription, error) {
	return first(ctx, db, "id = ?", id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*billingdomain.Subscription, error) {
	return first(ctx, pkgdb.ForUpdate(db), "id = ?", id)
}

func (r *repo) FindByGatewayRef(ctx context.Context, db *gorm.DB, ref string) (*billingdomain.Subscription, error) {
	return first(ctx, db, "gateway_reference = ?", ref)
}

func (r *repo) FindByGatewayRefForUpdate(ctx context.Context, db *gorm.DB, ref string) (*billingdomain.Subscription, error) {
	return first(ctx, pkgdb.ForUpdate(db), "gateway_reference = ?", ref)
}

func (r *repo) FindActiveByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*billingdomain.Subscription, error) {
	return first(ctx, db, "merchant_id = ? AND status = ?", merchantID, billingdomain.SubscriptionStatusActive)
}

// FindLiveByMerchant returns the merchant's most recent subscription
// still carrying entitlements (ACTIVE or PAST_DUE).
func (r *repo) FindLiveByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*billingdomain.Subscription, error) {
	return r.findLive(ctx, db, merchantID)
}

func (r *repo) FindLiveByMerchantForUpdate(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*billingdomain.Subscription, error) {
	return r.findLive(ctx, pkgdb.ForUpdate(db), merchantID)
}

func (r *repo) findLive(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (*billingdomain.Subscription, error) {
	var sub billingdomain.Subscription
	err := db.WithContext(ctx).
		Where("merchant_id = ? AND status IN ?", merchantID, []billingdomain.SubscriptionStatus{
			billingdomain.SubscriptionStatusActive,
			billingdomain.SubscriptionStatusPastDue,
		}).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) CountByMerchant(ctx context.Context, db *gorm.DB, merchantID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&billingdomain.Subscription{}).
		Where("merchant_id = ?", merchantID).
		Count(&count).Error
	return count, err
}

func (r *repo) TransitionStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to billingdomain.SubscriptionStatus, at time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&billingdomain.Subscription{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) SupersedeActive(ctx context.Context, db *gorm.DB, merchantID, exceptID snowflake.ID, at time.Time) ([]billingdomain.Subscription, error) {
	var displaced []billingdomain.Subscription
	err := pkgdb.ForUpdate(db).WithContext(ctx).
		Where("merchant_id = ? AND status = ? AND id <> ?",
			merchantID, billingdomain.SubscriptionStatusActive, exceptID).
		Find(&displaced).Error
	if err != nil {
		return nil, err
	}
	if len(displaced) == 0 {
		return nil, nil
	}
	ids := make([]snowflake.ID, 0, len(displaced))
	for _, s := range displaced {
		ids = append(ids, s.ID)
	}
	err = db.WithContext(ctx).
		Model(&billingdomain.Subscription{}).
		Where("id IN ? AND status = ?", ids, billingdomain.SubscriptionStatusActive).
		Updates(map[string]any{
			"status":     billingdomain.SubscriptionStatusSuperseded,
			"updated_at": at,
		}).Error
	if err != nil {
		return nil, err
	}
	return displaced, nil
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]billingdomain.Subscription, error) {
	q := db.WithContext(ctx).
		Where("status IN ? AND current_period_end IS NOT NULL AND current_period_end <= ?",
			[]billingdomain.SubscriptionStatus{
				billingdomain.SubscriptionStatusActive,
				billingdomain.SubscriptionStatusPastDue,
			}, cutoff).
		Order("current_period_end ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []billingdomain.Subscription
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *billingdomain.BillingEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) ListEvents(ctx context.Context, db *gorm.DB, merchantID snowflake.ID, limit int) ([]billingdomain.BillingEvent, error) {
	q := db.WithContext(ctx).
		Where("merchant_id = ?", merchantID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []billingdomain.BillingEvent
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}


func first(ctx context.Context, db *gorm.DB, query string, args ...any) (*billingdomain.Subscription, error) {
	var sub billingdomain.Subscription
	err := db.WithContext(ctx).Where(query, args...).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

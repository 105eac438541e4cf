package repository

import (
	"context"
	"errors"
	"time"

	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() webhookdomain.Repository {
	return &repo{}
}

func (r *repo) IsProcessed(ctx context.Context, db *gorm.DB, topic, deliveryID string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&webhookdomain.ProcessedDelivery{}).
		Where("topic = ? AND delivery_id = ?", topic, deliveryID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, rec *webhookdomain.ProcessedDelivery) error {
	return db.WithContext(ctx).Create(rec).Error
}

func (r *repo) PurgeProcessedBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("processed_at < ?", cutoff).
		Delete(&webhookdomain.ProcessedDelivery{})
	return res.RowsAffected, res.Error
}

func (r *repo) Claim(ctx context.Context, db *gorm.DB, claim *webhookdomain.DeliveryClaim) error {
	return db.WithContext(ctx).Create(claim).Error
}

func (r *repo) ReleaseClaim(ctx context.Context, db *gorm.DB, topic, deliveryID string) error {
	return db.WithContext(ctx).
		Where("topic = ? AND delivery_id = ?", topic, deliveryID).
		Delete(&webhookdomain.DeliveryClaim{}).Error
}

func (r *repo) PurgeClaimsBefore(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("claimed_at < ?", cutoff).
		Delete(&webhookdomain.DeliveryClaim{})
	return res.RowsAffected, res.Error
}

func (r *repo) InsertDeadLetter(ctx context.Context, db *gorm.DB, dl *webhookdomain.DeadLetter) error {
	return db.WithContext(ctx).Create(dl).Error
}

func (r *repo) ListDeadLetters(ctx context.Context, db *gorm.DB, topic string, limit int) ([]webhookdomain.DeadLetter, error) {
	q := db.WithContext(ctx).Model(&webhookdomain.DeadLetter{}).Order("failed_at DESC")
	if topic != "" {
		q = q.Where("topic = ?", topic)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []webhookdomain.DeadLetter
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repo) FindDeadLetter(ctx context.Context, db *gorm.DB, id int64) (*webhookdomain.DeadLetter, error) {
	var dl webhookdomain.DeadLetter
	err := db.WithContext(ctx).Where("id = ?", id).First(&dl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dl, nil
}

func (r *repo) DeleteDeadLetter(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Where("id = ?", id).Delete(&webhookdomain.DeadLetter{}).Error
}

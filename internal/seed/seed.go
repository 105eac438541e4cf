// Package seed bootstraps the plan catalog so a fresh install has
// something to subscribe to without manual setup.
package seed

import (
	"context"
	"errors"
	"time"

	plandomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/plan/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EnsureDefaultPlans inserts the built-in plans if they are missing.
// Existing rows are left untouched so operator edits survive restarts.
func EnsureDefaultPlans(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, plan := range defaultPlans(node) {
			if err := ensurePlanTx(ctx, tx, plan); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensurePlanTx(ctx context.Context, tx *gorm.DB, plan plandomain.Plan) error {
	var existing plandomain.Plan
	err := tx.WithContext(ctx).Where("code = ?", plan.Code).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return tx.WithContext(ctx).Create(&plan).Error
}

func defaultPlans(node *snowflake.Node) []plandomain.Plan {
	now := time.Now().UTC()
	interval := plandomain.IntervalEvery30Days
	capped := "500.00"

	return []plandomain.Plan{
		{
			ID:          node.Generate(),
			Code:        "starter",
			BillingType: plandomain.BillingTypeRecurring,
			Interval:    &interval,
			Name: datatypes.JSONMap{
				"en": "Starter",
				"tr": "Başlangıç",
			},
			Description: datatypes.JSONMap{
				"en": "Everything a new store needs to get going.",
				"tr": "Yeni bir mağazanın başlamak için ihtiyacı olan her şey.",
			},
			Features: datatypes.JSONMap{
				"en": []string{"Order sync", "Invoice generation"},
				"tr": []string{"Sipariş senkronizasyonu", "Fatura oluşturma"},
			},
			PriceByCurrency: datatypes.JSONMap{
				"TRY": "149.00",
				"USD": "9.00",
				"EUR": "8.00",
			},
			TrialDays:          3,
			IsDefaultOnInstall: true,
			IsActive:           true,
			CreatedAt:          now,
			UpdatedAt:          now,
		},
		{
			ID:          node.Generate(),
			Code:        "growth",
			BillingType: plandomain.BillingTypeRecurring,
			Interval:    &interval,
			Name: datatypes.JSONMap{
				"en": "Growth",
				"tr": "Büyüme",
			},
			Description: datatypes.JSONMap{
				"en": "For stores with steady order volume.",
				"tr": "Düzenli sipariş hacmi olan mağazalar için.",
			},
			Features: datatypes.JSONMap{
				"en": []string{"Order sync", "Invoice generation", "Priority support"},
				"tr": []string{"Sipariş senkronizasyonu", "Fatura oluşturma", "Öncelikli destek"},
			},
			PriceByCurrency: datatypes.JSONMap{
				"TRY": "499.00",
				"USD": "29.00",
				"EUR": "27.00",
			},
			TrialDays: 3,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
		{
			ID:          node.Generate(),
			Code:        "pay-as-you-go",
			BillingType: plandomain.BillingTypeUsage,
			Name: datatypes.JSONMap{
				"en": "Pay as you go",
				"tr": "Kullandıkça öde",
			},
			Description: datatypes.JSONMap{
				"en": "Usage-based billing with a monthly cap.",
				"tr": "Aylık üst limitli, kullanım bazlı faturalandırma.",
			},
			Features: datatypes.JSONMap{
				"en": []string{"Order sync", "Invoice generation", "Usage pricing"},
				"tr": []string{"Sipariş senkronizasyonu", "Fatura oluşturma", "Kullanım bazlı fiyat"},
			},
			PriceByCurrency: datatypes.JSONMap{
				"TRY": "0.00",
				"USD": "0.00",
				"EUR": "0.00",
			},
			CappedAmount: &capped,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
}

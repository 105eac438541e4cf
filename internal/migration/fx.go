package migration

import (
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		}

		if cfg.SeedDefaultPlans {
			return seed.EnsureDefaultPlans(conn)
		}
		return nil
	}),
)

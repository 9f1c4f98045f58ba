package migration

import (
	"github.com/stampkit/stampkit/internal/config"
	"github.com/stampkit/stampkit/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		if !cfg.Bootstrap.EnsureDefaultRestaurant {
			return nil
		}
		return seed.EnsureDefaults(conn, cfg, log)
	}),
)

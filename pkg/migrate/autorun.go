package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/readcycle-backend/pkg/config"
	"github.com/angelmondragon/readcycle-backend/pkg/db"
	"github.com/angelmondragon/readcycle-backend/pkg/db/models"
	"github.com/angelmondragon/readcycle-backend/pkg/logger"
)

// MaybeRunDev migrates the schema on boot when running in dev with
// READCYCLE_AUTO_MIGRATE set. Postgres gets the goose SQL files; sqlite gets
// gorm AutoMigrate because the SQL files use postgres-only syntax.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	conn := client.DB()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": conn.Dialector.Name()})

	if conn.Dialector.Name() == "sqlite" {
		logg.Info(ctx, "running gorm automigrate (dev sqlite)")
		if err := conn.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("automigrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithField(ctx, "dir", DefaultDir)
	logg.Info(ctx, "running goose migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "goose migrations completed")
	return nil
}

package migrate

import (
	"context"
	"fmt"

	"github.com/mutirao/castracao-backend/pkg/config"
	"github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/logger"
)

// RunDev applies the embedded migrations on boot when the app runs in dev with
// MUTIRAO_AUTO_MIGRATE set. A sqlite client is left alone; its schema comes from
// the models.
func RunDev(ctx context.Context, app config.AppConfig, flags config.FeatureFlagsConfig, logg *logger.Logger, client *db.Client) error {
	if !app.IsDev() || !flags.AutoMigrate {
		return nil
	}
	if client == nil {
		return fmt.Errorf("db client is required")
	}

	ctx = logg.WithField(ctx, "env", app.Env)
	if !client.IsPostgres() {
		logg.Warn(ctx, "dev auto-migrate skipped: database is not postgres")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	logg.Info(ctx, "applying embedded migrations")
	if err := Run(ctx, sqlDB, "", "up"); err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	logg.Info(ctx, "embedded migrations applied")
	return nil
}

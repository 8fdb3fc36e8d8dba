package migrate_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mutirao/castracao-backend/pkg/config"
	"github.com/mutirao/castracao-backend/pkg/db/dbtest"
	"github.com/mutirao/castracao-backend/pkg/logger"
	"github.com/mutirao/castracao-backend/pkg/migrate"
)

func TestRunDevIsNoopOutsideDev(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	app := config.AppConfig{Env: config.AppEnvProd}

	require.NoError(t, migrate.RunDev(context.Background(), app, config.FeatureFlagsConfig{AutoMigrate: true}, logg, nil))
}

func TestRunDevSkipsSQLite(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	app := config.AppConfig{Env: config.AppEnvDev}

	err := migrate.RunDev(context.Background(), app, config.FeatureFlagsConfig{AutoMigrate: true}, logg, dbtest.Open(t))
	require.NoError(t, err)
}

func TestRunDevRequiresClient(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	app := config.AppConfig{Env: config.AppEnvDev}

	require.Error(t, migrate.RunDev(context.Background(), app, config.FeatureFlagsConfig{AutoMigrate: true}, logg, nil))
}

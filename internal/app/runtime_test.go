package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setBootEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DRIVE_APP_ENV", "dev")
	t.Setenv("DRIVE_USE_SQLITE", "true")
	t.Setenv("DRIVE_AUTO_MIGRATE", "true")
	t.Setenv("DRIVE_DB_SQLITE_PATH", filepath.Join(t.TempDir(), "drive.db"))
	t.Setenv("DRIVE_DISPATCH_DEFAULT_TIMEZONE", "UTC")
	t.Setenv("DRIVE_REDIS_URL", "")
	t.Setenv("DRIVE_REDIS_ADDR", "")
	t.Setenv("DRIVE_GCP_PROJECT_ID", "")
}

func TestBootWiresEngineOnSQLite(t *testing.T) {
	setBootEnv(t)
	ctx := context.Background()

	rt, err := Boot(ctx, BootOptions{Service: "api", Redis: true, Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)

	assert.Equal(t, "api", rt.Config.Service.Kind)
	assert.Nil(t, rt.Redis, "redis stays off without an address")
	require.NotNil(t, rt.Engine)
	assert.NotNil(t, rt.Engine.BidWindows)
	assert.NoError(t, rt.DB.Ping(ctx))

	require.NoError(t, rt.Close())
	assert.NoError(t, rt.Close())
	assert.Error(t, rt.DB.Ping(ctx))
}

func TestBootRejectsInvalidConfig(t *testing.T) {
	setBootEnv(t)
	t.Setenv("DRIVE_DISPATCH_DEFAULT_TIMEZONE", "Mars/Olympus")

	_, err := Boot(context.Background(), BootOptions{Service: "cron-worker"})
	assert.Error(t, err)
}

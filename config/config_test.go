package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOCK_TIMEOUT", "")
	t.Setenv("PURCHASE_TIMEOUT", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("OTEL_EXPORTER_TYPE", "")
	t.Setenv("NATS_ENABLED", "")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.LockTimeout)
	assert.Equal(t, 10*time.Second, cfg.PurchaseTimeout)
	assert.Equal(t, time.Minute, cfg.DrawWorkerInterval)
	assert.Equal(t, "console", cfg.OTelExporterType)
	assert.Equal(t, 30000, cfg.OTelExportIntervalMillis)
	assert.False(t, cfg.NATSEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOCK_TIMEOUT", "750ms")
	t.Setenv("PURCHASE_TIMEOUT", "3s")
	t.Setenv("DRAW_WORKER_INTERVAL", "30s")
	t.Setenv("DRAW_WORKER_ENABLED", "false")
	t.Setenv("NATS_ENABLED", "true")
	t.Setenv("OTEL_EXPORT_INTERVAL_MS", "5000")

	cfg, err := load()
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	assert.Equal(t, 3*time.Second, cfg.PurchaseTimeout)
	assert.Equal(t, 30*time.Second, cfg.DrawWorkerInterval)
	assert.False(t, cfg.DrawWorkerEnabled)
	assert.True(t, cfg.NATSEnabled)
	assert.Equal(t, 5000, cfg.OTelExportIntervalMillis)
}

func TestLoad_RequiredOutsideTest(t *testing.T) {
	tests := []struct {
		name        string
		databaseURL string
		jwtSecret   string
		expectedErr string
	}{
		{name: "missing database url", databaseURL: "", jwtSecret: "secret", expectedErr: "DATABASE_URL is required"},
		{name: "missing jwt secret", databaseURL: "postgres://localhost:5432", jwtSecret: "", expectedErr: "JWT_SECRET is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ENVIRONMENT", "production")
			t.Setenv("DATABASE_URL", tt.databaseURL)
			t.Setenv("JWT_SECRET", tt.jwtSecret)

			_, err := load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedErr)
		})
	}
}

func TestLoad_RejectsNonPositiveLockTimeout(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("LOCK_TIMEOUT", "0s")

	_, err := load()
	assert.Error(t, err)
}

func TestSetTestConfig(t *testing.T) {
	t.Cleanup(ResetConfig)

	custom := NewTestConfig()
	custom.HTTPAddr = ":9999"
	SetTestConfig(custom)

	assert.Same(t, custom, Get())
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talx-hub/gopher-billpay/internal/model/order"
)

func TestBuilder_defaults(t *testing.T) {
	cfg := NewBuilder(slog.Default()).FromEnv().GetConfig()

	assert.Equal(t, "localhost:8080", cfg.RunAddr)
	assert.Equal(t, ReconcileDB, cfg.ReconcileMode)
	assert.Equal(t, "https://kpp.bankplus.vn", cfg.PortalURL)
	assert.Equal(t, 10, cfg.PendingLimit)
	assert.Equal(t, time.Second, cfg.StepPause)
	assert.False(t, cfg.Headless)
	assert.Empty(t, cfg.Schedules.Enabled())
}

func TestBuilder_FromEnv(t *testing.T) {
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("RECONCILE_MODE", "callback")
	t.Setenv("HEADLESS", "true")
	t.Setenv("STEP_PAUSE", "500ms")
	t.Setenv("SCHEDULE_TRA_CUU_FTTH", "*/5 * * * *")
	t.Setenv("SCHEDULE_GACH_DIEN_EVN", "  ")

	cfg := NewBuilder(slog.Default()).FromEnv().GetConfig()

	assert.Equal(t, ":9090", cfg.RunAddr)
	assert.Equal(t, ReconcileCallback, cfg.ReconcileMode)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 500*time.Millisecond, cfg.StepPause)
	assert.Equal(t,
		map[order.ServiceType]string{order.ServiceFTTHLookup: "*/5 * * * *"},
		cfg.Schedules.Enabled())
}

func TestBuilder_FromDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(file, []byte("DEFAULT_PIN=123456\nRESULT_DIR=out\n"), 0o600))
	t.Setenv("RESULT_DIR", "from-env")
	t.Cleanup(func() {
		_ = os.Unsetenv("DEFAULT_PIN")
	})

	cfg := NewBuilder(slog.Default()).
		FromDotEnv(file, filepath.Join(dir, "missing.env")).
		FromEnv().
		GetConfig()

	assert.Equal(t, "123456", cfg.DefaultPIN)
	assert.Equal(t, "from-env", cfg.ResultDir)
}

func TestBuilder_FromFlags(t *testing.T) {
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("DATABASE_URI", "postgres://env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-a", ":7070", "--reconcile", "callback", "--headless"}))

	cfg := NewBuilder(slog.Default()).FromEnv().FromFlags(fs).GetConfig()

	assert.Equal(t, ":7070", cfg.RunAddr)
	assert.Equal(t, "postgres://env", cfg.DatabaseURI)
	assert.Equal(t, ReconcileCallback, cfg.ReconcileMode)
	assert.True(t, cfg.Headless)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "db mode with dsn",
			cfg:  Config{ReconcileMode: ReconcileDB, DatabaseURI: "postgres://x", PendingLimit: 10},
		},
		{
			name:    "db mode without dsn",
			cfg:     Config{ReconcileMode: ReconcileDB, PendingLimit: 10},
			wantErr: true,
		},
		{
			name: "callback mode",
			cfg:  Config{ReconcileMode: ReconcileCallback, NodeServerURL: "http://x", PendingLimit: 10},
		},
		{
			name:    "unknown mode",
			cfg:     Config{ReconcileMode: "file", PendingLimit: 10},
			wantErr: true,
		},
		{
			name: "strong secret",
			cfg: Config{
				ReconcileMode: ReconcileCallback, NodeServerURL: "http://x", PendingLimit: 10,
				SecretKey: "k7#Vq2!mZp9@Lx4$Rt8&",
			},
		},
		{
			name: "weak secret",
			cfg: Config{
				ReconcileMode: ReconcileCallback, NodeServerURL: "http://x", PendingLimit: 10,
				SecretKey: "secret",
			},
			wantErr: true,
		},
		{
			name:    "zero pending limit",
			cfg:     Config{ReconcileMode: ReconcileCallback, NodeServerURL: "http://x"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfig_SlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).SlogLevel())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "WARN"}).SlogLevel())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "loud"}).SlogLevel())
}

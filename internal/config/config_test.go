package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMergesFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9000"
  allowed_origins: ["https://app.repcir.com"]
database:
  url: postgres://file/db
  max_conns: 10
cron:
  interval: 30m
retention:
  invitation_days: 7
`), 0o600))

	t.Setenv("CLERK_SECRET_KEY", "sk_test")
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DB_MIGRATE", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "postgres://env/db", cfg.Database.URL)
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Database.Migrate)
	assert.Equal(t, 7, cfg.Retention.InvitationDays)
	assert.Equal(t, 90, cfg.Retention.NotificationDays)

	interval, err := cfg.CronInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, interval)
}

func TestLoadRequiresDatabaseAndClerk(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CLERK_SECRET_KEY", "sk_test")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoadRejectsBadInteger(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")
	t.Setenv("CLERK_SECRET_KEY", "sk_test")
	t.Setenv("SMTP_PORT", "not-a-port")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMTP_PORT")
}

func TestOptionalProvidersDisabledByDefault(t *testing.T) {
	cfg := &Config{}
	setDefaults(cfg)

	assert.False(t, cfg.StripeEnabled())
	assert.False(t, cfg.StorageEnabled())
	assert.False(t, cfg.QueueEnabled())
	assert.False(t, cfg.AIEnabled())
	assert.False(t, cfg.FCMEnabled())
}

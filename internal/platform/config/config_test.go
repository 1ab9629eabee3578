package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-session-secret-at-least-32-chars!!"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("SESSION_SECRET", testSecret)
	t.Setenv("ADMIN_USER_IDS", "2827691")
}

func TestLoad_AllRequiredVarsSet(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
	assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
	assert.Equal(t, testSecret, cfg.SessionSecret)
	assert.Equal(t, []int64{2827691}, cfg.AdminIDs())
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		skipEnv string
		wantErr string
	}{
		{"missing DATABASE_URL", "DATABASE_URL", "DATABASE_URL is required"},
		{"missing REDIS_URL", "REDIS_URL", "REDIS_URL is required"},
		{"missing SESSION_SECRET", "SESSION_SECRET", "SESSION_SECRET is required"},
		{"missing ADMIN_USER_IDS", "ADMIN_USER_IDS", "ADMIN_USER_IDS is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.skipEnv, "")

			_, err := Load()
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 3, cfg.LoginMaxAttempts)
	assert.Equal(t, 50*time.Second, cfg.LoginWindow)
	assert.Equal(t, "https://api.torn.com", cfg.TornAPIBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.CatalogCacheTTL)
	assert.False(t, cfg.ScheduledSyncEnabled())
}

func TestLoad_ShortSessionSecret(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SESSION_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET must be at least 32 characters")
}

func TestLoad_AdminUserIDs(t *testing.T) {
	t.Run("multiple ids with spaces", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ADMIN_USER_IDS", "1, 2 ,3")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, cfg.AdminIDs())
	})

	t.Run("non numeric", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("ADMIN_USER_IDS", "1,abc")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ADMIN_USER_IDS is invalid")
	})
}

func TestLoad_SyncSchedule(t *testing.T) {
	t.Run("valid cron enables scheduled sync", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SYNC_SCHEDULE", "*/15 * * * *")
		t.Setenv("SYNC_API_KEY", "key")

		cfg, err := Load()
		require.NoError(t, err)
		assert.True(t, cfg.ScheduledSyncEnabled())
	})

	t.Run("schedule without key stays disabled", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SYNC_SCHEDULE", "@hourly")

		cfg, err := Load()
		require.NoError(t, err)
		assert.False(t, cfg.ScheduledSyncEnabled())
	})

	t.Run("invalid cron", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SYNC_SCHEDULE", "every tuesday")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SYNC_SCHEDULE is not a valid cron expression")
	})
}

func TestLoad_LoginMaxAttempts(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("LOGIN_MAX_ATTEMPTS", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOGIN_MAX_ATTEMPTS must be at least 1")
}

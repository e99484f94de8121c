package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSigningKey = "0123456789abcdef0123456789abcdef"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CAMPUSGATE_POSTGRES_URL", "postgres://localhost:5432/campusgate?sslmode=disable")
	t.Setenv("CAMPUSGATE_SIGNING_KEY", testSigningKey)
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, "campusgate", cfg.Auth.Issuer)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 90*24*time.Hour, cfg.Audit.Retention)
	assert.True(t, cfg.Audit.Enabled)
	assert.False(t, cfg.Google.Enabled)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfig_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CAMPUSGATE_PORT", "3000")
	t.Setenv("CAMPUSGATE_TOKEN_ISSUER", "admissions")
	t.Setenv("CAMPUSGATE_TOKEN_TTL", "30m")
	t.Setenv("CAMPUSGATE_GOOGLE_CLIENT_IDS", "web-client, android-client")
	t.Setenv("CAMPUSGATE_AUDIT_ENABLED", "false")
	t.Setenv("CAMPUSGATE_REDIS_DB", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "admissions", cfg.Auth.Issuer)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, []string{"web-client", "android-client"}, cfg.Google.ClientIDs)
	assert.True(t, cfg.Google.Enabled)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(t *testing.T)
		wantMsg string
	}{
		{
			name:    "missing postgres URL",
			mutate:  func(t *testing.T) { t.Setenv("CAMPUSGATE_POSTGRES_URL", "") },
			wantMsg: "postgres URL",
		},
		{
			name:    "missing signing key",
			mutate:  func(t *testing.T) { t.Setenv("CAMPUSGATE_SIGNING_KEY", "") },
			wantMsg: "signing key",
		},
		{
			name:    "short signing key",
			mutate:  func(t *testing.T) { t.Setenv("CAMPUSGATE_SIGNING_KEY", "too-short") },
			wantMsg: "signing key",
		},
		{
			name:    "health port colliding with server port",
			mutate:  func(t *testing.T) { t.Setenv("CAMPUSGATE_HEALTH_PORT", "8080") },
			wantMsg: "must be different",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			tt.mutate(t)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_TokenTTL(t *testing.T) {
	setRequiredEnv(t)
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.Auth.TokenTTL = 0
	assert.Error(t, cfg.Validate())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Run("duration falls back on junk", func(t *testing.T) {
		t.Setenv("CAMPUSGATE_TEST_DURATION", "not-a-duration")
		assert.Equal(t, time.Minute, getEnvDuration("CAMPUSGATE_TEST_DURATION", time.Minute))
	})

	t.Run("bool accepts 1 and true", func(t *testing.T) {
		t.Setenv("CAMPUSGATE_TEST_BOOL", "1")
		assert.True(t, getEnvBool("CAMPUSGATE_TEST_BOOL", false))
		t.Setenv("CAMPUSGATE_TEST_BOOL", "TRUE")
		assert.True(t, getEnvBool("CAMPUSGATE_TEST_BOOL", false))
		t.Setenv("CAMPUSGATE_TEST_BOOL", "no")
		assert.False(t, getEnvBool("CAMPUSGATE_TEST_BOOL", true))
	})

	t.Run("list splits and trims", func(t *testing.T) {
		assert.Equal(t, []string{"a", "b"}, splitList("a, b"))
		assert.Nil(t, splitList(""))
	})
}

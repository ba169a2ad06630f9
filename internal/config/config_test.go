package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.RunAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "", cfg.DatabaseDSN)
	assert.Equal(t, "", cfg.DBFileName)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, time.Hour, cfg.TokenTTL)
	assert.Equal(t, "admin", cfg.SeedAdminUsername)
	assert.NotEmpty(t, cfg.TokenSigningSecretKey)
}

func TestConfigEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":7000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FILE_STORAGE_PATH", "collections.json")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("SEED_ADMIN_USERNAME", "root")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.RunAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "collections.json", cfg.DBFileName)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, "root", cfg.SeedAdminUsername)
}

func TestConfigPriorityFlagsPlusEnv(t *testing.T) {
	t.Setenv("SERVER_ADDRESS", ":4000")

	os.Args = []string{
		"testbin",
		"-a", ":6000",
		"-l", "debug",
	}

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.RunAddr, "env overrides flags")
	assert.Equal(t, "debug", cfg.LogLevel, "flag value survives without env override")
}

func TestConfigRejectsBadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}

func TestConfigRejectsBadSigningKey(t *testing.T) {
	t.Setenv("TOKEN_SIGNING_SECRET_KEY", "%%% not base64 %%%")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}

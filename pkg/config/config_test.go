package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catalogforge/catalog/pkg/observability"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "filesystem", cfg.Icons.Type)
	assert.Equal(t, observability.InfoLevel, cfg.Log.Level)
	assert.True(t, cfg.Sweeper.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CATALOG_PORT", "8181")
	t.Setenv("CATALOG_LOG_LEVEL", "debug")
	t.Setenv("CATALOG_CACHE_ENABLED", "true")
	t.Setenv("CATALOG_INVENTORY_TIMEOUT", "3s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8181", cfg.Server.Port)
	assert.Equal(t, observability.DebugLevel, cfg.Log.Level)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Provisioner.Timeout)
}

func TestValidateRejectsPortCollision(t *testing.T) {
	t.Setenv("CATALOG_PORT", "9090")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be different")
}

func TestValidateRejectsBadIconStorage(t *testing.T) {
	t.Setenv("CATALOG_ICON_STORAGE_TYPE", "tape")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid icon storage type")
}

func TestValidateRequiresOIDCClientID(t *testing.T) {
	t.Setenv("CATALOG_OIDC_ISSUER", "https://sso.example.com/auth/realms/catalog")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OIDC client ID")
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, OversellAllow, cfg.Oversell)
	assert.Equal(t, ForeignShopOverride, cfg.ForeignShop)
	assert.Equal(t, devJWTSecret, cfg.JWTSecret)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestFromEnv_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestFromEnv_Policies(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("OVERSELL_POLICY", "BLOCK")
	t.Setenv("FOREIGN_SHOP_POLICY", "reject")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, OversellBlock, cfg.Oversell)
	assert.Equal(t, ForeignShopReject, cfg.ForeignShop)

	t.Setenv("OVERSELL_POLICY", "sometimes")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestFromEnv_InvalidTTL(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("TOKEN_TTL", "tomorrow")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestFromEnv_BootstrapOwnerPair(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("BOOTSTRAP_OWNER_USERNAME", "owner@shop.test")
	t.Setenv("BOOTSTRAP_OWNER_PASSWORD", "")

	_, err := FromEnv()
	assert.Error(t, err)
}

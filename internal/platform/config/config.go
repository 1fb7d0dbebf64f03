package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ServiceName    = "shopledger"
	ServiceVersion = "0.1.0"

	devJWTSecret = "dev-only-jwt-secret"
)

// OversellPolicy decides whether a sale may drive a pair's stock below zero.
type OversellPolicy string

const (
	OversellAllow OversellPolicy = "allow"
	OversellBlock OversellPolicy = "block"
)

// ForeignShopPolicy decides what happens when an employee names another shop on a ticket.
type ForeignShopPolicy string

const (
	ForeignShopOverride ForeignShopPolicy = "override"
	ForeignShopReject   ForeignShopPolicy = "reject"
)

// Config holds process configuration read from the environment.
type Config struct {
	Port         string
	Env          string
	DatabaseURL  string // empty selects the in-memory store
	JWTSecret    string
	TokenTTL     time.Duration
	LogLevel     string
	OtelEndpoint string

	Oversell    OversellPolicy
	ForeignShop ForeignShopPolicy

	BootstrapOwnerUsername string
	BootstrapOwnerPassword string
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool { return c.Env == "development" }

// Load reads .env (if present) and the environment.
// Precedence: explicit env var > .env file > default.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:                   getEnv("APP_PORT", "8080"),
		Env:                    getEnv("APP_ENV", "development"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		JWTSecret:              os.Getenv("JWT_SECRET"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		OtelEndpoint:           os.Getenv("OTEL_ENDPOINT"),
		Oversell:               OversellPolicy(strings.ToLower(getEnv("OVERSELL_POLICY", string(OversellAllow)))),
		ForeignShop:            ForeignShopPolicy(strings.ToLower(getEnv("FOREIGN_SHOP_POLICY", string(ForeignShopOverride)))),
		BootstrapOwnerUsername: os.Getenv("BOOTSTRAP_OWNER_USERNAME"),
		BootstrapOwnerPassword: os.Getenv("BOOTSTRAP_OWNER_PASSWORD"),
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %s", ttl)
	}
	cfg.TokenTTL = ttl

	switch cfg.Oversell {
	case OversellAllow, OversellBlock:
	default:
		return nil, fmt.Errorf("invalid OVERSELL_POLICY %q (allowed: allow, block)", cfg.Oversell)
	}
	switch cfg.ForeignShop {
	case ForeignShopOverride, ForeignShopReject:
	default:
		return nil, fmt.Errorf("invalid FOREIGN_SHOP_POLICY %q (allowed: override, reject)", cfg.ForeignShop)
	}

	if cfg.JWTSecret == "" {
		if !cfg.IsDevelopment() {
			return nil, fmt.Errorf("JWT_SECRET environment variable is required")
		}
		cfg.JWTSecret = devJWTSecret
	}
	if (cfg.BootstrapOwnerUsername == "") != (cfg.BootstrapOwnerPassword == "") {
		return nil, fmt.Errorf("BOOTSTRAP_OWNER_USERNAME and BOOTSTRAP_OWNER_PASSWORD must be set together")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Package config loads process configuration from the environment so main
// stays lean. Per-tenant provider settings live in internal/tenant; this
// package only covers process-wide knobs.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Store backend selectors. Both lifecycle policies and both persistence
// designs are picked here, not by forking code paths.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreCookie   = "cookie"
	StoreJWT      = "jwt"
)

// Config captures process-wide settings for the gateway.
type Config struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Tenants is the closed set of tenant identifiers this deployment serves.
	Tenants []string `envconfig:"AUTH_TENANTS" default:"tenant-a,tenant-b"`

	// ProtectedPrefixes are the tenant-relative path prefixes that require an
	// authenticated session.
	ProtectedPrefixes []string `envconfig:"PROTECTED_PREFIXES" default:"home,profile"`

	SessionStore       string `envconfig:"SESSION_STORE" default:"memory"`
	AuthStateStore     string `envconfig:"AUTH_STATE_STORE" default:"memory"`
	SessionTermination string `envconfig:"SESSION_TERMINATION" default:"soft"`

	DatabaseURL string `envconfig:"DATABASE_URL"`

	Redis RedisConfig

	// SessionJWTKey signs the stateless session token when SESSION_STORE=jwt.
	SessionJWTKey string `envconfig:"SESSION_JWT_KEY"`

	// AuthStateCookieKey is the base64 secretbox key for the cookie-embedded
	// auth state variant (AUTH_STATE_STORE=cookie).
	AuthStateCookieKey string `envconfig:"AUTH_STATE_COOKIE_KEY"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// RedisConfig tunes the shared Redis client.
type RedisConfig struct {
	URL          string        `envconfig:"REDIS_URL"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Production reports whether cookies must carry the Secure attribute.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// Load reads a .env file when present, then builds the Config from the
// environment. A missing .env file is not an error; explicit env always wins.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, auth) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the rewards API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./migrations"`

	// RedisURL selects the shared revocation list. Empty keeps it in memory.
	RedisURL string `env:"REDIS_URL"`

	Auth  AuthConfig  `envPrefix:"AUTH_"`
	Authz AuthzConfig `envPrefix:"AUTHZ_"`
}

// AuthConfig configures token issuance and the signing secret.
type AuthConfig struct {
	// SigningSecret is optional outside production; a secret is generated when empty.
	SigningSecret     string        `env:"SIGNING_SECRET"`
	MinSecretLength   int           `env:"MIN_SECRET_LENGTH"       envDefault:"64"`
	SecretGraceWindow time.Duration `env:"SECRET_GRACE_WINDOW"     envDefault:"168h"`

	// SecretReloadInterval bounds how long a rotation on another replica goes unseen here.
	SecretReloadInterval time.Duration `env:"SECRET_RELOAD_INTERVAL" envDefault:"30s"`

	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL"        envDefault:"15m"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL"       envDefault:"168h"`
	Issuer            string        `env:"ISSUER"                  envDefault:"rewards-api"`
	Audience          string        `env:"AUDIENCE"                envDefault:"rewards-web"`

	// TokenEncryptionKey encrypts refresh cookies and persisted secrets.
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	RevocationSweepInterval time.Duration `env:"REVOCATION_SWEEP_INTERVAL" envDefault:"1m"`
}

// AuthzConfig configures the authorization engine.
type AuthzConfig struct {
	LookupTimeout time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"2s"`
	AuditQueue    int           `env:"AUDIT_QUEUE"    envDefault:"1024"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {
	cfg := &Config{}

	// Fails if any field marked 'required' is missing
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

/*
Validate checks cross-field constraints env tags cannot express.

Production requires an explicit signing secret and encryption key so that
restarts and replicas agree on them.
*/
func (c *Config) Validate() error {
	var errs []error

	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.Auth.AccessTokenTTL >= c.Auth.RefreshTokenTTL {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL must be shorter than AUTH_REFRESH_TOKEN_TTL"))
	}
	if c.Auth.SecretGraceWindow < c.Auth.RefreshTokenTTL {
		errs = append(errs, errors.New("AUTH_SECRET_GRACE_WINDOW must cover AUTH_REFRESH_TOKEN_TTL"))
	}
	if c.Auth.TokenEncryptionKey != "" && len(c.Auth.TokenEncryptionKey) < 32 {
		errs = append(errs, errors.New("AUTH_TOKEN_ENCRYPTION_KEY must be at least 32 bytes"))
	}
	if c.IsProduction() {
		if c.Auth.SigningSecret == "" {
			errs = append(errs, errors.New("AUTH_SIGNING_SECRET is required in production"))
		}
		if c.Auth.TokenEncryptionKey == "" {
			errs = append(errs, errors.New("AUTH_TOKEN_ENCRYPTION_KEY is required in production"))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

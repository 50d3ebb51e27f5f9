// Package config builds a configured dossier.Service from environment
// variables and programmatic options.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier"
	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter/postgres"
	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter/sqlite"
)

// ServerConfig represents server configuration for the dossier service.
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// Database configuration
	DatabaseType string `env:"DATABASE_TYPE" env-default:"sqlite"` // "postgres", "sqlite"
	DatabaseURL  string `env:"DATABASE_URL" env-default:":memory:"`
}

// Option applies configuration on top of the environment.
type Option func(*ServerConfig) error

// WithDatabase overrides the database backend and DSN.
func WithDatabase(databaseType, databaseURL string) Option {
	return func(c *ServerConfig) error {
		c.DatabaseType = databaseType
		c.DatabaseURL = databaseURL
		return nil
	}
}

// Load reads the environment and applies the supplied options on top.
func Load(opts ...Option) (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	if c.DatabaseType != "postgres" && c.DatabaseType != "sqlite" {
		return errors.New("database_type must be 'postgres' or 'sqlite'")
	}
	if c.DatabaseURL == "" {
		return errors.New("database_url is required")
	}
	return nil
}

// NewAdapter opens the configured database backend.
func (c *ServerConfig) NewAdapter(ctx context.Context) (adapter.Adapter, error) {
	switch c.DatabaseType {
	case "postgres":
		return postgres.New(ctx, c.DatabaseURL)
	case "sqlite":
		return sqlite.New(ctx, c.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database type %q", c.DatabaseType)
	}
}

// BuildService creates a Service from the server configuration and loads the
// stored schema. The caller owns the returned adapter's lifetime.
func (c *ServerConfig) BuildService(ctx context.Context, log zerolog.Logger) (dossier.Service, adapter.Adapter, error) {
	db, err := c.NewAdapter(ctx)
	if err != nil {
		return nil, nil, err
	}

	svc, err := dossier.New(
		dossier.WithAdapter(db),
		dossier.WithLogger(log),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := svc.LoadSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return svc, db, nil
}

package config_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, ":memory:", cfg.DatabaseURL)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/dossier")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "postgres", cfg.DatabaseType)
	assert.Equal(t, "postgres://localhost:5432/dossier", cfg.DatabaseURL)
}

func TestLoadWithOptions(t *testing.T) {
	cfg, err := config.Load(config.WithDatabase("sqlite", "/tmp/dossier.db"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseType)
	assert.Equal(t, "/tmp/dossier.db", cfg.DatabaseURL)
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	_, err := config.Load(config.WithDatabase("oracle", "dsn"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_type")
}

func TestBuildServiceSQLite(t *testing.T) {
	cfg, err := config.Load(config.WithDatabase("sqlite", ":memory:"))
	require.NoError(t, err)

	svc, db, err := cfg.BuildService(context.Background(), zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	require.NotNil(t, svc)
	assert.Equal(t, 0, svc.GetSchemaSpec(context.Background()).Version)
}

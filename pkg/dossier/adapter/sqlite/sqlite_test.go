package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter/sqlite"
)

func openTestAdapter(t *testing.T) *sqlite.Adapter {
	t.Helper()
	a, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNewAppliesDDL(t *testing.T) {
	a := openTestAdapter(t)

	err := a.WithTransaction(context.Background(), func(tx adapter.Tx) error {
		for _, table := range []string{"entities", "entity_versions", "schema_specs"} {
			var count int
			if err := tx.QueryRow(context.Background(),
				`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = $1`,
				table).Scan(&count); err != nil {
				return err
			}
			assert.Equal(t, 1, count, "table %s must exist", table)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	a := openTestAdapter(t)
	ctx := context.Background()

	insert := func() error {
		return a.WithTransaction(ctx, func(tx adapter.Tx) error {
			_, err := tx.Exec(ctx,
				`INSERT INTO schema_specs (version, spec, created_at) VALUES ($1, $2, $3)`,
				1, "{}", "2024-01-01T00:00:00Z")
			return err
		})
	}

	require.NoError(t, insert())
	err := insert()
	require.Error(t, err)
	assert.True(t, a.IsUniqueViolation(err))

	assert.False(t, a.IsUniqueViolation(nil))
	assert.False(t, a.IsUniqueViolation(errors.New("some other error")))
}

func TestTransactionRollback(t *testing.T) {
	a := openTestAdapter(t)
	ctx := context.Background()

	boom := errors.New("abort")
	err := a.WithTransaction(ctx, func(tx adapter.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO schema_specs (version, spec, created_at) VALUES ($1, $2, $3)`,
			1, "{}", "2024-01-01T00:00:00Z"); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	err = a.WithTransaction(ctx, func(tx adapter.Tx) error {
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM schema_specs`).Scan(&count); err != nil {
			return err
		}
		assert.Equal(t, 0, count, "rolled back insert must not be visible")
		return nil
	})
	require.NoError(t, err)
}

func TestLockClauseIsEmpty(t *testing.T) {
	a := openTestAdapter(t)
	assert.Empty(t, a.LockClause())
}

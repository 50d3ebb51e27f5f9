package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter/postgres"
)

func TestIsUniqueViolation(t *testing.T) {
	a := postgres.NewWithDB(nil)

	assert.True(t, a.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, a.IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))

	assert.False(t, a.IsUniqueViolation(nil))
	assert.False(t, a.IsUniqueViolation(errors.New("duplicate key")))
	assert.False(t, a.IsUniqueViolation(&pgconn.PgError{Code: "23503"})) // foreign key
}

func TestLockClause(t *testing.T) {
	a := postgres.NewWithDB(nil)
	assert.Equal(t, " FOR UPDATE", a.LockClause())
}

func TestWithTransactionUsesRepeatableRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	a := postgres.NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = a.WithTransaction(context.Background(), func(tx adapter.Tx) error {
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

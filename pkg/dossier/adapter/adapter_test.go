package adapter_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
)

func TestRunInTxCommitsOnSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE entities").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = adapter.RunInTx(context.Background(), db, nil, func(tx adapter.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE entities SET name = $1", "x")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = adapter.RunInTx(context.Background(), db, nil, func(tx adapter.Tx) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxRollsBackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = adapter.RunInTx(context.Background(), db, nil, func(tx adapter.Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunInTxBeginFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err = adapter.RunInTx(context.Background(), db, nil, func(tx adapter.Tx) error {
		t.Fatal("transaction function must not run")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, adapter.ErrAdapter)
}

func TestAdapterErrorWrapping(t *testing.T) {
	cause := errors.New("disk full")
	err := &adapter.Error{Op: "insert entity", Err: cause}

	assert.ErrorIs(t, err, adapter.ErrAdapter)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "insert entity")
}

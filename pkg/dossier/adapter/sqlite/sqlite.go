// Package sqlite provides the SQLite database adapter on the pure-Go
// modernc.org/sqlite driver. SQLite serializes writers, which satisfies the
// engine's isolation contract without explicit row locks; the adapter pins
// the pool to a single connection so in-memory databases behave like a
// single database and writes never race.
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"modernc.org/sqlite"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
)

// SQLITE_CONSTRAINT and its unique/primary-key extended codes.
const (
	constraintCode       = 19
	constraintPrimaryKey = 1555
	constraintUniqueCode = 2067
)

// Adapter implements adapter.Adapter on SQLite.
type Adapter struct {
	db *sql.DB
}

// New opens the database at dsn (":memory:" works), applies the engine DDL
// and returns the adapter.
func New(ctx context.Context, dsn string) (*Adapter, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &adapter.Error{Op: "open", Err: err}
	}
	// One connection: modernc sqlite gives each connection its own
	// in-memory database, and file databases allow one writer anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, &adapter.Error{Op: "pragma", Err: err}
	}
	if err := adapter.ApplyDDL(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Adapter{db: db}, nil
}

// WithTransaction runs fn inside a transaction. SQLite transactions are
// serializable by construction.
func (a *Adapter) WithTransaction(ctx context.Context, fn func(tx adapter.Tx) error) error {
	return adapter.RunInTx(ctx, a.db, nil, fn)
}

// IsUniqueViolation reports SQLITE_CONSTRAINT unique/primary-key errors.
func (a *Adapter) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case constraintCode, constraintPrimaryKey, constraintUniqueCode:
		return true
	}
	return false
}

// LockClause is empty: the single writer covers row locking.
func (a *Adapter) LockClause() string { return "" }

// Close closes the database.
func (a *Adapter) Close() error { return a.db.Close() }

// Package postgres provides the PostgreSQL database adapter, using pgx
// through its database/sql driver so the engine's SQL is shared with the
// other backends.
package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
)

const uniqueViolationCode = "23505"

// Adapter implements adapter.Adapter on PostgreSQL.
type Adapter struct {
	db *sql.DB
}

// New opens a connection pool for the given DSN, applies the engine DDL and
// returns the adapter.
func New(ctx context.Context, dsn string) (*Adapter, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, &adapter.Error{Op: "open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &adapter.Error{Op: "ping", Err: err}
	}
	if err := adapter.ApplyDDL(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Adapter{db: db}, nil
}

// NewWithDB wraps an existing pool. The caller keeps ownership of db's
// lifetime; Close is still forwarded.
func NewWithDB(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// WithTransaction runs fn inside a repeatable-read transaction.
func (a *Adapter) WithTransaction(ctx context.Context, fn func(tx adapter.Tx) error) error {
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	return adapter.RunInTx(ctx, a.db, opts, fn)
}

// IsUniqueViolation reports postgres unique_violation (23505).
func (a *Adapter) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// LockClause returns the row-lock suffix for SELECTs that guard a write.
func (a *Adapter) LockClause() string { return " FOR UPDATE" }

// Close closes the underlying pool.
func (a *Adapter) Close() error { return a.db.Close() }

// Package adapter defines the transactional database interface the engine
// runs on. Backend packages (postgres, sqlite) provide implementations with
// identical transaction semantics; the engine's SQL uses $N placeholders,
// which both backends accept.
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrAdapter is the sentinel all backend I/O failures wrap. The engine never
// retries adapter errors itself; retrying with backoff is the caller layer's
// job, so a transaction is never double-applied.
var ErrAdapter = errors.New("database adapter error")

// Error wraps a backend failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("adapter operation %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports ErrAdapter so callers can match the whole class.
func (e *Error) Is(target error) bool { return target == ErrAdapter }

// Tx is the statement surface available inside a transaction.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
}

// Adapter is the uniform transactional interface over a concrete SQL
// backend. Implementations guarantee commit on normal return from the
// transaction function and rollback on any failure path, including a panic
// inside the function.
type Adapter interface {
	// WithTransaction runs fn inside one transaction with at least
	// repeatable-read isolation.
	WithTransaction(ctx context.Context, fn func(tx Tx) error) error

	// IsUniqueViolation reports whether err was caused by a unique
	// constraint, in the backend's own error vocabulary.
	IsUniqueViolation(err error) bool

	// LockClause returns the suffix appended to a SELECT that must take a
	// row lock (" FOR UPDATE" on postgres, empty where the backend's write
	// serialization already covers it).
	LockClause() string

	Close() error
}

// sqlTx adapts *sql.Tx to the Tx interface.
type sqlTx struct {
	tx *sql.Tx
}

func (t sqlTx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

func (t sqlTx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t sqlTx) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

// RunInTx implements the WithTransaction contract over a *sql.DB for both
// backends: begin with the given options, roll back on error or panic,
// commit on normal return.
func RunInTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return &Error{Op: "begin", Err: err}
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(sqlTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &Error{Op: "commit", Err: err}
	}
	return nil
}

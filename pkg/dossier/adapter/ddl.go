package adapter

import (
	"context"
	"database/sql"
)

// Statements shared by all backends. Column types stay in the common subset
// of postgres and sqlite; backend packages may append engine-specific setup.
var ddl = []string{
	`CREATE TABLE IF NOT EXISTS entities (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		auth_key TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		draft_version INTEGER NOT NULL,
		published_version INTEGER,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS entity_versions (
		entity_id TEXT NOT NULL REFERENCES entities(id),
		version INTEGER NOT NULL,
		encode_version INTEGER NOT NULL,
		fields TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (entity_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS schema_specs (
		version INTEGER PRIMARY KEY,
		spec TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS entities_order_idx ON entities (created_at, id)`,
	`CREATE INDEX IF NOT EXISTS entities_type_idx ON entities (type)`,
}

// ApplyDDL creates the engine's tables if they do not exist. Backends call
// this at open.
func ApplyDDL(ctx context.Context, db *sql.DB) error {
	for _, stmt := range ddl {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return &Error{Op: "apply ddl", Err: err}
		}
	}
	return nil
}

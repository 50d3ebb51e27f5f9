package dossier

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/schema"
)

// Row-level persistence helpers shared by every service operation. All run
// inside a transaction handed in by the caller; none opens its own.

const entityColumns = `id, type, name, auth_key, status, draft_version, published_version, created_at, updated_at`

// nowUTC returns the current time truncated to microseconds, the timestamp
// precision stored by both backends. List cursors carry microseconds, so a
// written created_at must never hold sub-microsecond digits or the cursor
// boundary re-includes its own row.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func scanEntityRow(scan func(dest ...any) error) (*Entity, error) {
	var (
		e         Entity
		id        string
		published sql.NullInt64
	)
	err := scan(&id, &e.Type, &e.Name, &e.AuthKey, &e.Status,
		&e.DraftVersion, &published, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("corrupt entity id %q: %w", id, err)
	}
	if published.Valid {
		v := int(published.Int64)
		e.PublishedVersion = &v
	}
	e.CreatedAt = e.CreatedAt.UTC()
	e.UpdatedAt = e.UpdatedAt.UTC()
	return &e, nil
}

// getEntity reads one entity row. lock is the backend's lock clause when the
// read guards a write, empty otherwise.
func getEntity(ctx context.Context, tx adapter.Tx, id uuid.UUID, lock string) (*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE id = $1` + lock
	e, err := scanEntityRow(tx.QueryRow(ctx, query, id.String()).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &adapter.Error{Op: "get entity", Err: err}
	}
	return e, nil
}

func insertEntity(ctx context.Context, tx adapter.Tx, e *Entity) error {
	query := `
		INSERT INTO entities (` + entityColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	var published any
	if e.PublishedVersion != nil {
		published = *e.PublishedVersion
	}
	_, err := tx.Exec(ctx, query,
		e.ID.String(), e.Type, e.Name, e.AuthKey, string(e.Status),
		e.DraftVersion, published, e.CreatedAt, e.UpdatedAt)
	return err
}

func updateEntity(ctx context.Context, tx adapter.Tx, e *Entity) error {
	query := `
		UPDATE entities SET
			name = $2, status = $3, draft_version = $4,
			published_version = $5, updated_at = $6
		WHERE id = $1`
	var published any
	if e.PublishedVersion != nil {
		published = *e.PublishedVersion
	}
	_, err := tx.Exec(ctx, query,
		e.ID.String(), e.Name, string(e.Status),
		e.DraftVersion, published, e.UpdatedAt)
	if err != nil {
		return &adapter.Error{Op: "update entity", Err: err}
	}
	return nil
}

func insertVersion(ctx context.Context, tx adapter.Tx, entityID uuid.UUID, version, encodeVersion int, fields FieldValues, createdAt time.Time, createdBy string) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: fields are not encodable: %v", ErrBadRequest, err)
	}
	query := `
		INSERT INTO entity_versions (entity_id, version, encode_version, fields, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, query,
		entityID.String(), version, encodeVersion, string(payload), createdAt, createdBy); err != nil {
		return &adapter.Error{Op: "insert entity version", Err: err}
	}
	return nil
}

// getVersionFields reads one version's stored payload and its encode
// version. The payload is returned exactly as written; migration is the
// caller's concern.
func getVersionFields(ctx context.Context, tx adapter.Tx, entityID uuid.UUID, version int) (FieldValues, int, error) {
	query := `
		SELECT encode_version, fields FROM entity_versions
		WHERE entity_id = $1 AND version = $2`
	var (
		encodeVersion int
		payload       string
	)
	err := tx.QueryRow(ctx, query, entityID.String(), version).Scan(&encodeVersion, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, &adapter.Error{Op: "get entity version", Err: err}
	}
	fields, err := decodeFields(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("entity %s version %d: %w", entityID, version, err)
	}
	return fields, encodeVersion, nil
}

func decodeFields(payload string) (FieldValues, error) {
	var fields FieldValues
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return nil, fmt.Errorf("corrupt fields payload: %w", err)
	}
	if fields == nil {
		fields = FieldValues{}
	}
	return fields, nil
}

func listVersions(ctx context.Context, tx adapter.Tx, entityID uuid.UUID) ([]VersionInfo, error) {
	query := `
		SELECT version, encode_version, created_at, created_by
		FROM entity_versions WHERE entity_id = $1 ORDER BY version`
	rows, err := tx.Query(ctx, query, entityID.String())
	if err != nil {
		return nil, &adapter.Error{Op: "list entity versions", Err: err}
	}
	defer rows.Close()

	var infos []VersionInfo
	for rows.Next() {
		info := VersionInfo{EntityID: entityID}
		if err := rows.Scan(&info.Version, &info.EncodeVersion, &info.CreatedAt, &info.CreatedBy); err != nil {
			return nil, &adapter.Error{Op: "scan entity version", Err: err}
		}
		info.CreatedAt = info.CreatedAt.UTC()
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, &adapter.Error{Op: "iterate entity versions", Err: err}
	}
	return infos, nil
}

// countEntitiesOfType reports how many entities of the given type exist,
// archived ones included: their retained version history would equally be
// orphaned by a type removal.
func countEntitiesOfType(ctx context.Context, tx adapter.Tx, typeName string) (int64, error) {
	var count int64
	err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM entities WHERE type = $1`, typeName).Scan(&count)
	if err != nil {
		return 0, &adapter.Error{Op: "count entities of type", Err: err}
	}
	return count, nil
}

func renameEntityType(ctx context.Context, tx adapter.Tx, from, to string) error {
	if _, err := tx.Exec(ctx,
		`UPDATE entities SET type = $2 WHERE type = $1`, from, to); err != nil {
		return &adapter.Error{Op: "rename entity type", Err: err}
	}
	return nil
}

// Schema specification log (append-only, keyed by version).

func insertSchemaSpec(ctx context.Context, tx adapter.Tx, spec *schema.Spec, createdAt time.Time) error {
	payload, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("%w: spec is not encodable: %v", ErrBadRequest, err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO schema_specs (version, spec, created_at) VALUES ($1, $2, $3)`,
		spec.Version, string(payload), createdAt)
	return err
}

func loadSchemaHistory(ctx context.Context, tx adapter.Tx) ([]*schema.Spec, error) {
	rows, err := tx.Query(ctx, `SELECT spec FROM schema_specs ORDER BY version`)
	if err != nil {
		return nil, &adapter.Error{Op: "load schema history", Err: err}
	}
	defer rows.Close()

	var history []*schema.Spec
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, &adapter.Error{Op: "scan schema spec", Err: err}
		}
		var spec schema.Spec
		if err := json.Unmarshal([]byte(payload), &spec); err != nil {
			return nil, fmt.Errorf("corrupt schema spec payload: %w", err)
		}
		history = append(history, &spec)
	}
	if err := rows.Err(); err != nil {
		return nil, &adapter.Error{Op: "iterate schema specs", Err: err}
	}
	return history, nil
}

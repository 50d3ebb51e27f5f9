package dossier

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/adapter"
)

func (s *service) ListEntities(ctx context.Context, req ListEntitiesRequest) (*EntityPage, error) {
	snap := s.schemas.Current()

	count, forwards, err := req.Paging.Resolve()
	if err != nil {
		return nil, err
	}
	allowedKeys, err := s.allowedKeys(ctx, req.AuthKeys)
	if err != nil {
		return nil, err
	}

	query, args, err := buildListQuery(req, allowedKeys, count, forwards)
	if err != nil {
		return nil, err
	}

	var entities []*Entity
	err = s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return &adapter.Error{Op: "list entities", Err: err}
		}
		defer rows.Close()

		for rows.Next() {
			var (
				encodeVersion int
				payload       string
			)
			e, err := scanEntityRow(func(dest ...any) error {
				dest = append(dest, &encodeVersion, &payload)
				return rows.Scan(dest...)
			})
			if err != nil {
				return &adapter.Error{Op: "scan entity", Err: err}
			}
			fields, err := decodeFields(payload)
			if err != nil {
				return err
			}
			fields, err = snap.Migrator.Migrate(e.Type, fields, encodeVersion)
			if err != nil {
				return err
			}
			e.Version = e.DraftVersion
			e.Fields = fields
			entities = append(entities, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	return buildPage(entities, req.Paging, count, forwards), nil
}

func (s *service) CountEntities(ctx context.Context, req CountEntitiesRequest) (int64, error) {
	allowedKeys, err := s.allowedKeys(ctx, req.AuthKeys)
	if err != nil {
		return 0, err
	}

	var b queryBuilder
	b.write(`SELECT COUNT(*) FROM entities WHERE 1=1`)
	applyFilters(&b, req.Types, req.Statuses, allowedKeys)

	var total int64
	err = s.db.WithTransaction(ctx, func(tx adapter.Tx) error {
		if err := tx.QueryRow(ctx, b.query.String(), b.args...).Scan(&total); err != nil {
			return &adapter.Error{Op: "count entities", Err: err}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

// allowedKeys resolves the caller's auth keys into the partition keys the
// query may see. The default partition "" is always included.
func (s *service) allowedKeys(ctx context.Context, callerKeys []string) ([]string, error) {
	keys := []string{""}
	if len(callerKeys) == 0 {
		return keys, nil
	}
	resolved, err := s.auth.ResolveAuthorizationKeys(ctx, callerKeys)
	if err != nil {
		return nil, err
	}
	for key := range resolved {
		if key != "" {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// queryBuilder accumulates a query with $N placeholders.
type queryBuilder struct {
	query strings.Builder
	args  []any
}

func (b *queryBuilder) write(s string) {
	b.query.WriteString(s)
}

// arg appends v and returns its placeholder.
func (b *queryBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *queryBuilder) in(column string, values []string) {
	placeholders := make([]string, len(values))
	for i, v := range values {
		placeholders[i] = b.arg(v)
	}
	b.write(fmt.Sprintf(" AND %s IN (%s)", column, strings.Join(placeholders, ",")))
}

func applyFilters(b *queryBuilder, types []string, statuses []EntityStatus, allowedKeys []string) {
	if len(types) > 0 {
		b.in("type", types)
	}
	if len(statuses) > 0 {
		values := make([]string, len(statuses))
		for i, status := range statuses {
			values[i] = string(status)
		}
		b.in("status", values)
	} else {
		// Archived entities are invisible unless asked for by status.
		b.write(fmt.Sprintf(" AND status != %s", b.arg(string(StatusArchived))))
	}
	b.in("auth_key", allowedKeys)
}

// buildListQuery joins each entity with its draft version row and applies
// the cursor boundary. Ordering is the stable total order (created_at, id);
// backwards paging queries in reverse and the page is flipped afterwards.
func buildListQuery(req ListEntitiesRequest, allowedKeys []string, count int, forwards bool) (string, []any, error) {
	var b queryBuilder
	b.write(`
		SELECT e.id, e.type, e.name, e.auth_key, e.status, e.draft_version,
		       e.published_version, e.created_at, e.updated_at,
		       v.encode_version, v.fields
		FROM entities e
		JOIN entity_versions v ON v.entity_id = e.id AND v.version = e.draft_version
		WHERE 1=1`)
	applyFilters(&b, req.Types, req.Statuses, allowedKeys)

	cursor := req.Paging.After
	if !forwards {
		cursor = req.Paging.Before
	}
	if cursor != nil {
		createdAt, id, err := decodeCursor(*cursor)
		if err != nil {
			return "", nil, err
		}
		op := ">"
		if !forwards {
			op = "<"
		}
		t := b.arg(createdAt)
		i := b.arg(id.String())
		b.write(fmt.Sprintf(" AND (e.created_at %s %s OR (e.created_at = %s AND e.id %s %s))", op, t, t, op, i))
	}

	if forwards {
		b.write(" ORDER BY e.created_at, e.id")
	} else {
		b.write(" ORDER BY e.created_at DESC, e.id DESC")
	}
	// One extra row decides HasNextPage without a second query.
	b.write(fmt.Sprintf(" LIMIT %s", b.arg(count+1)))

	return b.query.String(), b.args, nil
}

func buildPage(entities []*Entity, paging Paging, count int, forwards bool) *EntityPage {
	hasExtra := len(entities) > count
	if hasExtra {
		entities = entities[:count]
	}
	if !forwards {
		slices.Reverse(entities)
	}

	page := &EntityPage{Entities: entities}
	if forwards {
		page.PageInfo.HasNextPage = hasExtra
		page.PageInfo.HasPreviousPage = paging.After != nil
	} else {
		page.PageInfo.HasNextPage = paging.Before != nil
		page.PageInfo.HasPreviousPage = hasExtra
	}
	if len(entities) > 0 {
		page.PageInfo.StartCursor = encodeCursor(entities[0].CreatedAt, entities[0].ID)
		page.PageInfo.EndCursor = encodeCursor(entities[len(entities)-1].CreatedAt, entities[len(entities)-1].ID)
	}
	return page
}

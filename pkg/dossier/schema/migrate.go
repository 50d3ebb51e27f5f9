package schema

import (
	"errors"
	"fmt"
)

// ErrUnmigratableVersion indicates no migration path exists from the encode
// version a payload was stored under to the current encode version. This is
// fatal for that record and is surfaced, never silently skipped.
var ErrUnmigratableVersion = errors.New("no migration path for encode version")

// Migrator upgrades field payloads written under older schema versions to
// the current encoding. Migration is an ordered composition of single-step
// transforms, each mapping exactly one encode version to the next; steps are
// derived from the recorded diffs between consecutive spec versions.
//
// Migration runs at read time and is non-destructive: the stored row is
// never rewritten. The identity case (payload already current) is the
// dominant path and returns the input untouched.
type Migrator struct {
	oldest  int
	current int
	// steps[v] transforms a payload from encode version v to v+1.
	// A version with no payload-affecting changes has no entry.
	steps map[int][]migrationStep
}

type migrationStep struct {
	typeName  string
	valueType bool
	field     string
	// renameTo is empty for a field removal.
	renameTo string
}

// NewMigrator builds the step table from the full append-only spec history,
// ordered oldest to newest. The last element is the current version. An empty
// history yields a migrator whose only accepted encode version is 0.
func NewMigrator(history []*Spec) *Migrator {
	m := &Migrator{steps: make(map[int][]migrationStep)}
	if len(history) == 0 {
		return m
	}
	m.oldest = history[0].Version
	m.current = history[len(history)-1].Version
	for i := 1; i < len(history); i++ {
		prev, next := history[i-1], history[i]
		d := Diff(prev, next)
		var steps []migrationStep
		for _, fc := range d.FieldChanges {
			switch fc.Kind {
			case FieldRemoved:
				steps = append(steps, migrationStep{typeName: fc.TypeName, valueType: fc.ValueType, field: fc.Field})
			case FieldRenamed:
				steps = append(steps, migrationStep{typeName: fc.TypeName, valueType: fc.ValueType, field: fc.Field, renameTo: fc.RenamedTo})
			}
		}
		if len(steps) > 0 {
			m.steps[prev.Version] = steps
		}
	}
	return m
}

// CurrentVersion returns the encode version payloads are written under now.
func (m *Migrator) CurrentVersion() int { return m.current }

// Migrate returns fields upgraded from encode version from to the current
// encode version, for an entity of the given type. The input map is never
// mutated; if no transform applies, the input is returned as-is without
// copying. A from outside the known version range fails closed with an error
// wrapping ErrUnmigratableVersion.
func (m *Migrator) Migrate(typeName string, fields map[string]any, from int) (map[string]any, error) {
	if from == m.current {
		return fields, nil
	}
	if from > m.current || from < m.oldest {
		return nil, fmt.Errorf("%w: stored %d, current %d (known range %d..%d)",
			ErrUnmigratableVersion, from, m.current, m.oldest, m.current)
	}

	out := fields
	copied := false
	for v := from; v < m.current; v++ {
		for _, step := range m.steps[v] {
			if step.valueType {
				// Value items are embedded maps carrying a "type"
				// discriminator; rewrite them wherever they nest.
				migrated, changed := migrateValueItems(out, step)
				if changed {
					out = migrated.(map[string]any)
					copied = true
				}
				continue
			}
			if step.typeName != typeName {
				continue
			}
			if _, ok := out[step.field]; !ok {
				continue
			}
			if !copied {
				out = copyFields(out)
				copied = true
			}
			if step.renameTo != "" {
				out[step.renameTo] = out[step.field]
			}
			delete(out, step.field)
		}
	}
	return out, nil
}

// migrateValueItems walks a decoded payload and applies step to every
// embedded value item of the step's type. It copies only along the path it
// changes and reports whether anything changed.
func migrateValueItems(value any, step migrationStep) (any, bool) {
	switch v := value.(type) {
	case map[string]any:
		out := v
		changed := false
		if t, _ := v[ValueItemTypeField].(string); t == step.typeName {
			if _, ok := v[step.field]; ok {
				out = copyFields(v)
				if step.renameTo != "" {
					out[step.renameTo] = out[step.field]
				}
				delete(out, step.field)
				changed = true
			}
		}
		for k, nested := range out {
			if migrated, ok := migrateValueItems(nested, step); ok {
				if !changed {
					out = copyFields(out)
					changed = true
				}
				out[k] = migrated
			}
		}
		return out, changed
	case []any:
		out := v
		changed := false
		for i, nested := range v {
			if migrated, ok := migrateValueItems(nested, step); ok {
				if !changed {
					out = make([]any, len(v))
					copy(out, v)
					changed = true
				}
				out[i] = migrated
			}
		}
		return out, changed
	default:
		return value, false
	}
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}

package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/schema"
)

func TestDiffSameSpecIsEmpty(t *testing.T) {
	spec := articleSpec(1)
	d := schema.Diff(spec, spec)
	assert.True(t, d.IsEmpty())
}

func TestDiffDetectsChanges(t *testing.T) {
	prev := articleSpec(1)
	next := articleSpec(2)

	// Rename Article.body to Article.content, drop Person, add Comment,
	// rename the Address value type.
	next.EntityTypes[0].Fields[1] = schema.FieldSpec{
		Name: "content", Type: schema.FieldTypeString, Multiline: true, RenamedFrom: "body",
	}
	next.EntityTypes[0].Fields[2].EntityTypes = nil
	next.EntityTypes = append(next.EntityTypes[:1], schema.EntityTypeSpec{
		Name:   "Comment",
		Fields: []schema.FieldSpec{{Name: "text", Type: schema.FieldTypeString}},
	})
	next.ValueTypes[0] = schema.ValueTypeSpec{
		Name:        "PostalAddress",
		RenamedFrom: "Address",
		Fields:      next.ValueTypes[0].Fields,
	}
	next.EntityTypes[0].Fields[3].ValueTypes = []string{"PostalAddress"}

	d := schema.Diff(prev, next)
	assert.False(t, d.IsEmpty())
	assert.Equal(t, []string{"Comment"}, d.AddedEntityTypes)
	assert.Equal(t, []string{"Person"}, d.RemovedEntityTypes)
	assert.Equal(t, []schema.RenamedType{{From: "Address", To: "PostalAddress"}}, d.RenamedValueTypes)

	var renamed []schema.FieldChange
	for _, fc := range d.FieldChanges {
		if fc.Kind == schema.FieldRenamed {
			renamed = append(renamed, fc)
		}
	}
	require.Len(t, renamed, 1)
	assert.Equal(t, "Article", renamed[0].TypeName)
	assert.Equal(t, "body", renamed[0].Field)
	assert.Equal(t, "content", renamed[0].RenamedTo)
}

func TestDiffRenamedTypeKeepsFieldHistory(t *testing.T) {
	prev := articleSpec(1)
	next := articleSpec(2)
	next.EntityTypes[1] = schema.EntityTypeSpec{
		Name:        "Author",
		RenamedFrom: "Person",
		Fields:      next.EntityTypes[1].Fields,
	}
	next.EntityTypes[0].Fields[2].EntityTypes = []string{"Author"}

	d := schema.Diff(prev, next)
	assert.Equal(t, []schema.RenamedType{{From: "Person", To: "Author"}}, d.RenamedEntityTypes)
	assert.Empty(t, d.RemovedEntityTypes)
	assert.Empty(t, d.AddedEntityTypes)
}

func migrationHistory() []*schema.Spec {
	v1 := articleSpec(1)

	// v2 renames Article.body to Article.content.
	v2 := articleSpec(2)
	v2.EntityTypes[0].Fields[1] = schema.FieldSpec{
		Name: "content", Type: schema.FieldTypeString, Multiline: true, RenamedFrom: "body",
	}

	// v3 removes Article.location and renames Address.street.
	v3 := articleSpec(3)
	v3.EntityTypes[0].Fields = []schema.FieldSpec{
		v2.EntityTypes[0].Fields[0],
		{Name: "content", Type: schema.FieldTypeString, Multiline: true},
		v2.EntityTypes[0].Fields[2],
	}
	v3.ValueTypes[0].Fields = []schema.FieldSpec{
		{Name: "streetAddress", Type: schema.FieldTypeString, RenamedFrom: "street"},
		{Name: "city", Type: schema.FieldTypeString},
	}

	return []*schema.Spec{v1, v2, v3}
}

func TestMigrateIdentity(t *testing.T) {
	m := schema.NewMigrator(migrationHistory())
	require.Equal(t, 3, m.CurrentVersion())

	fields := map[string]any{"title": "Hello", "content": "World"}
	out, err := m.Migrate("Article", fields, 3)
	require.NoError(t, err)

	// Current-version payloads pass through without copying.
	assert.Equal(t, map[string]any{"title": "Hello", "content": "World"}, out)
	fields["title"] = "mutated"
	assert.Equal(t, "mutated", out["title"])
}

func TestMigrateFieldRename(t *testing.T) {
	m := schema.NewMigrator(migrationHistory())

	fields := map[string]any{"title": "Hello", "body": "Original text"}
	out, err := m.Migrate("Article", fields, 1)
	require.NoError(t, err)

	assert.Equal(t, "Original text", out["content"])
	assert.NotContains(t, out, "body")

	// The stored payload is never mutated.
	assert.Equal(t, "Original text", fields["body"])
	assert.NotContains(t, fields, "content")
}

func TestMigrateFieldRemoval(t *testing.T) {
	m := schema.NewMigrator(migrationHistory())

	fields := map[string]any{
		"title":    "Hello",
		"content":  "World",
		"location": map[string]any{"type": "Address", "street": "Main St", "city": "Lund"},
	}
	out, err := m.Migrate("Article", fields, 2)
	require.NoError(t, err)
	assert.NotContains(t, out, "location")
	assert.Equal(t, "World", out["content"])
}

func TestMigrateValueItemFields(t *testing.T) {
	history := migrationHistory()
	// Keep Article.location through v3 so the value item migration shows.
	history[2].EntityTypes[0].Fields = append(history[2].EntityTypes[0].Fields,
		schema.FieldSpec{Name: "location", Type: schema.FieldTypeValueItem, ValueTypes: []string{"Address"}})
	m := schema.NewMigrator(history)

	fields := map[string]any{
		"title": "Hello",
		"body":  "text",
		"location": map[string]any{
			"type":   "Address",
			"street": "Main St",
			"city":   "Lund",
		},
	}
	out, err := m.Migrate("Article", fields, 1)
	require.NoError(t, err)

	loc, ok := out["location"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Main St", loc["streetAddress"])
	assert.NotContains(t, loc, "street")

	// Nested originals untouched.
	orig := fields["location"].(map[string]any)
	assert.Equal(t, "Main St", orig["street"])
}

func TestMigrateValueItemInList(t *testing.T) {
	history := migrationHistory()
	history[2].EntityTypes[0].Fields = append(history[2].EntityTypes[0].Fields,
		schema.FieldSpec{Name: "location", Type: schema.FieldTypeValueItem, List: true, ValueTypes: []string{"Address"}})
	m := schema.NewMigrator(history)

	fields := map[string]any{
		"title": "Hi",
		"location": []any{
			map[string]any{"type": "Address", "street": "First", "city": "A"},
			map[string]any{"type": "Address", "street": "Second", "city": "B"},
		},
	}
	out, err := m.Migrate("Article", fields, 2)
	require.NoError(t, err)

	list, ok := out["location"].([]any)
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "First", list[0].(map[string]any)["streetAddress"])
	assert.Equal(t, "Second", list[1].(map[string]any)["streetAddress"])
}

func TestMigrateUnknownVersionFailsClosed(t *testing.T) {
	m := schema.NewMigrator(migrationHistory())

	_, err := m.Migrate("Article", map[string]any{"title": "x"}, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrUnmigratableVersion))

	_, err = m.Migrate("Article", map[string]any{"title": "x"}, 4)
	require.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrUnmigratableVersion))
}

func TestMigratorEmptyHistory(t *testing.T) {
	m := schema.NewMigrator(nil)
	assert.Equal(t, 0, m.CurrentVersion())

	out, err := m.Migrate("Article", map[string]any{"title": "x"}, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", out["title"])
}

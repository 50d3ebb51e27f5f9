package schema_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/schema"
)

func articleSpec(version int) *schema.Spec {
	return &schema.Spec{
		Version: version,
		EntityTypes: []schema.EntityTypeSpec{
			{
				Name: "Article",
				Fields: []schema.FieldSpec{
					{Name: "title", Type: schema.FieldTypeString, Required: true, IsName: true},
					{Name: "body", Type: schema.FieldTypeString, Multiline: true},
					{Name: "author", Type: schema.FieldTypeReference, EntityTypes: []string{"Person"}},
					{Name: "location", Type: schema.FieldTypeValueItem, ValueTypes: []string{"Address"}},
				},
			},
			{
				Name: "Person",
				Fields: []schema.FieldSpec{
					{Name: "name", Type: schema.FieldTypeString, IsName: true},
				},
			},
		},
		ValueTypes: []schema.ValueTypeSpec{
			{
				Name: "Address",
				Fields: []schema.FieldSpec{
					{Name: "street", Type: schema.FieldTypeString},
					{Name: "city", Type: schema.FieldTypeString},
				},
			},
		},
	}
}

func TestBuildRegistry(t *testing.T) {
	reg, err := schema.BuildRegistry(articleSpec(1))
	require.NoError(t, err)
	require.NotNil(t, reg)

	assert.Equal(t, 1, reg.Version())
	require.NotNil(t, reg.EntityType("Article"))
	require.NotNil(t, reg.ValueType("Address"))
	assert.Nil(t, reg.EntityType("Missing"))

	article := reg.EntityType("Article")
	require.NotNil(t, article.NameField())
	assert.Equal(t, "title", article.NameField().Name)
	require.NotNil(t, article.Field("body"))
	assert.True(t, article.Field("body").Multiline)
}

func TestBuildRegistryRejectsInvalidSpecs(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*schema.Spec)
		wantMsg string
	}{
		{
			name: "duplicate entity type name",
			mutate: func(s *schema.Spec) {
				s.EntityTypes = append(s.EntityTypes, schema.EntityTypeSpec{Name: "Article"})
			},
			wantMsg: "duplicate entity type name",
		},
		{
			name: "duplicate field name",
			mutate: func(s *schema.Spec) {
				s.EntityTypes[0].Fields = append(s.EntityTypes[0].Fields,
					schema.FieldSpec{Name: "title", Type: schema.FieldTypeString})
			},
			wantMsg: "duplicate field name",
		},
		{
			name: "two isName fields",
			mutate: func(s *schema.Spec) {
				s.EntityTypes[0].Fields = append(s.EntityTypes[0].Fields,
					schema.FieldSpec{Name: "alias", Type: schema.FieldTypeString, IsName: true})
			},
			wantMsg: "multiple isName",
		},
		{
			name: "isName on non-string field",
			mutate: func(s *schema.Spec) {
				s.EntityTypes[1].Fields = []schema.FieldSpec{
					{Name: "age", Type: schema.FieldTypeNumber, IsName: true},
				}
			},
			wantMsg: "isName requires a string field",
		},
		{
			name: "isName on value type",
			mutate: func(s *schema.Spec) {
				s.ValueTypes[0].Fields[0].IsName = true
			},
			wantMsg: "not allowed on value types",
		},
		{
			name: "multiline on boolean field",
			mutate: func(s *schema.Spec) {
				s.EntityTypes[0].Fields = append(s.EntityTypes[0].Fields,
					schema.FieldSpec{Name: "flag", Type: schema.FieldTypeBoolean, Multiline: true})
			},
			wantMsg: "multiline requires a string field",
		},
		{
			name: "unknown field type",
			mutate: func(s *schema.Spec) {
				s.EntityTypes[0].Fields = append(s.EntityTypes[0].Fields,
					schema.FieldSpec{Name: "blob", Type: "binary"})
			},
			wantMsg: "unknown type",
		},
		{
			name: "reference to missing entity type",
			mutate: func(s *schema.Spec) {
				s.EntityTypes[0].Fields[2].EntityTypes = []string{"Ghost"}
			},
			wantMsg: "does not exist",
		},
		{
			name: "entityTypes constraint on string field",
			mutate: func(s *schema.Spec) {
				s.EntityTypes[0].Fields[0].EntityTypes = []string{"Person"}
			},
			wantMsg: "only valid on reference fields",
		},
		{
			name: "valueTypes constraint on string field",
			mutate: func(s *schema.Spec) {
				s.EntityTypes[0].Fields[1].ValueTypes = []string{"Address"}
			},
			wantMsg: "only valid on valueItem fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := articleSpec(1)
			tt.mutate(spec)

			reg, err := schema.BuildRegistry(spec)
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.True(t, errors.Is(err, schema.ErrInvalidSpec))

			var ve *schema.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestBuildRegistryCollectsAllViolations(t *testing.T) {
	spec := articleSpec(1)
	spec.EntityTypes = append(spec.EntityTypes,
		schema.EntityTypeSpec{Name: "Article"},
		schema.EntityTypeSpec{Name: "Bad", Fields: []schema.FieldSpec{
			{Name: "x", Type: "binary"},
			{Name: "x", Type: schema.FieldTypeString},
		}},
	)

	_, err := schema.BuildRegistry(spec)
	require.Error(t, err)

	var ve *schema.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.GreaterOrEqual(t, len(ve.Violations), 3)
}

func TestPublishedViewHidesAdminOnly(t *testing.T) {
	spec := articleSpec(1)
	spec.EntityTypes[0].Fields = append(spec.EntityTypes[0].Fields,
		schema.FieldSpec{Name: "notes", Type: schema.FieldTypeString, AdminOnly: true})
	spec.EntityTypes = append(spec.EntityTypes, schema.EntityTypeSpec{
		Name:      "InternalMemo",
		AdminOnly: true,
		Fields:    []schema.FieldSpec{{Name: "text", Type: schema.FieldTypeString}},
	})

	reg, err := schema.BuildRegistry(spec)
	require.NoError(t, err)

	pub := reg.Published()
	assert.Nil(t, pub.EntityType("InternalMemo"))
	require.NotNil(t, pub.EntityType("Article"))
	assert.Nil(t, pub.EntityType("Article").Field("notes"))
	assert.NotNil(t, pub.EntityType("Article").Field("title"))

	// The admin view stays intact.
	assert.NotNil(t, reg.EntityType("InternalMemo"))
	assert.NotNil(t, reg.EntityType("Article").Field("notes"))
}

func TestHolderSwap(t *testing.T) {
	reg1, err := schema.BuildRegistry(articleSpec(1))
	require.NoError(t, err)
	reg2, err := schema.BuildRegistry(articleSpec(2))
	require.NoError(t, err)

	h := schema.NewHolder(&schema.Snapshot{Registry: reg1})
	assert.Equal(t, 1, h.Current().Registry.Version())

	h.Swap(&schema.Snapshot{Registry: reg2})
	assert.Equal(t, 2, h.Current().Registry.Version())
}

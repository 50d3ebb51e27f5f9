package schema

// ValueItemTypeField is the discriminator key naming the value type of an
// embedded value item payload.
const ValueItemTypeField = "type"

// FieldType is the domain type for field type tags.
type FieldType string

// Field type constants (closed set).
const (
	FieldTypeString    FieldType = "string"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeNumber    FieldType = "number"
	FieldTypeReference FieldType = "reference"
	FieldTypeRichText  FieldType = "richtext"
	FieldTypeValueItem FieldType = "valueitem"
)

// Spec is a full schema specification: the ordered set of entity-type and
// value-type definitions active at a given schema version. Specs are
// append-only; every accepted update produces a new version and prior
// versions remain resolvable for payload migration.
type Spec struct {
	Version     int              `json:"version"`
	EntityTypes []EntityTypeSpec `json:"entityTypes,omitempty"`
	ValueTypes  []ValueTypeSpec  `json:"valueTypes,omitempty"`
}

// EntityTypeSpec defines one entity type and its fields.
//
// RenamedFrom marks an explicit rename from a type present in the previous
// spec version. Renames are never guessed from field shapes.
type EntityTypeSpec struct {
	Name        string      `json:"name"`
	AdminOnly   bool        `json:"adminOnly,omitempty"`
	RenamedFrom string      `json:"renamedFrom,omitempty"`
	Fields      []FieldSpec `json:"fields,omitempty"`
}

// ValueTypeSpec defines one value-item type: an anonymous, schema-typed
// structure embeddable inside a field, with no independent identity.
type ValueTypeSpec struct {
	Name        string      `json:"name"`
	AdminOnly   bool        `json:"adminOnly,omitempty"`
	RenamedFrom string      `json:"renamedFrom,omitempty"`
	Fields      []FieldSpec `json:"fields,omitempty"`
}

// FieldSpec defines one named field of an entity or value type.
type FieldSpec struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	List        bool      `json:"list,omitempty"`
	Required    bool      `json:"required,omitempty"`
	IsName      bool      `json:"isName,omitempty"`
	AdminOnly   bool      `json:"adminOnly,omitempty"`
	Multiline   bool      `json:"multiline,omitempty"`
	RenamedFrom string    `json:"renamedFrom,omitempty"`

	// EntityTypes restricts reference targets to the named entity types.
	// Only meaningful for FieldTypeReference.
	EntityTypes []string `json:"entityTypes,omitempty"`

	// ValueTypes restricts embedded items to the named value types.
	// Only meaningful for FieldTypeValueItem.
	ValueTypes []string `json:"valueTypes,omitempty"`
}

// EntityType returns the entity type spec with the given name, or nil.
func (s *Spec) EntityType(name string) *EntityTypeSpec {
	for i := range s.EntityTypes {
		if s.EntityTypes[i].Name == name {
			return &s.EntityTypes[i]
		}
	}
	return nil
}

// ValueType returns the value type spec with the given name, or nil.
func (s *Spec) ValueType(name string) *ValueTypeSpec {
	for i := range s.ValueTypes {
		if s.ValueTypes[i].Name == name {
			return &s.ValueTypes[i]
		}
	}
	return nil
}

// Field returns the field spec with the given name, or nil.
func (t *EntityTypeSpec) Field(name string) *FieldSpec {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

// NameField returns the field marked isName, or nil.
func (t *EntityTypeSpec) NameField() *FieldSpec {
	for i := range t.Fields {
		if t.Fields[i].IsName {
			return &t.Fields[i]
		}
	}
	return nil
}

// Field returns the field spec with the given name, or nil.
func (t *ValueTypeSpec) Field(name string) *FieldSpec {
	for i := range t.Fields {
		if t.Fields[i].Name == name {
			return &t.Fields[i]
		}
	}
	return nil
}

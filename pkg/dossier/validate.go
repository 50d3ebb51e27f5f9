package dossier

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/exp/slices"

	"github.com/dossierhq/dossierhq-sub015/pkg/dossier/schema"
)

// refCheck is a reference that must be resolved against stored entities
// inside the operation's transaction.
type refCheck struct {
	field        string
	id           uuid.UUID
	allowedTypes []string
}

// fieldValidator collects every violation in one pass instead of stopping at
// the first, so callers can report all problems at once.
type fieldValidator struct {
	reg        *schema.Registry
	violations []FieldViolation
	refs       []refCheck
}

func (v *fieldValidator) addf(field, format string, args ...any) {
	v.violations = append(v.violations, FieldViolation{Field: field, Message: fmt.Sprintf(format, args...)})
}

// validateEntityFields checks fields against the entity type definition.
// With full set, every required field must be present and non-nil (the
// publish contract); without it, missing or nil values are accepted as
// draft-only gaps.
func validateEntityFields(reg *schema.Registry, t *schema.EntityTypeSpec, fields FieldValues, full bool) ([]FieldViolation, []refCheck) {
	v := &fieldValidator{reg: reg}
	v.checkFieldSet(t.Name, t.Fields, fields, full, "")
	return v.violations, v.refs
}

func (v *fieldValidator) checkFieldSet(typeName string, specs []schema.FieldSpec, fields FieldValues, full bool, path string) {
	for name := range fields {
		if fieldSpec(specs, name) == nil {
			v.addf(path+name, "unknown field on type %s", typeName)
		}
	}
	for i := range specs {
		f := &specs[i]
		value, present := fields[f.Name]
		if !present || value == nil {
			if full && f.Required {
				v.addf(path+f.Name, "required field is missing")
			}
			continue
		}
		if f.List {
			list, ok := value.([]any)
			if !ok {
				v.addf(path+f.Name, "expected a list, got %T", value)
				continue
			}
			for j, item := range list {
				v.checkValue(fmt.Sprintf("%s%s[%d]", path, f.Name, j), f, item, full)
			}
			continue
		}
		v.checkValue(path+f.Name, f, value, full)
	}
}

func (v *fieldValidator) checkValue(field string, f *schema.FieldSpec, value any, full bool) {
	switch f.Type {
	case schema.FieldTypeString:
		s, ok := value.(string)
		if !ok {
			v.addf(field, "expected a string, got %T", value)
			return
		}
		if !f.Multiline && strings.ContainsAny(s, "\n\r") {
			v.addf(field, "line breaks are not allowed in a single-line field")
		}
	case schema.FieldTypeBoolean:
		if _, ok := value.(bool); !ok {
			v.addf(field, "expected a boolean, got %T", value)
		}
	case schema.FieldTypeNumber:
		switch value.(type) {
		case float64, int, int64:
		default:
			v.addf(field, "expected a number, got %T", value)
		}
	case schema.FieldTypeReference:
		s, ok := value.(string)
		if !ok {
			v.addf(field, "expected an entity id string, got %T", value)
			return
		}
		id, err := uuid.Parse(s)
		if err != nil {
			v.addf(field, "malformed entity id %q", s)
			return
		}
		v.refs = append(v.refs, refCheck{field: field, id: id, allowedTypes: f.EntityTypes})
	case schema.FieldTypeRichText:
		if _, ok := value.(map[string]any); !ok {
			v.addf(field, "expected a rich text document, got %T", value)
		}
	case schema.FieldTypeValueItem:
		v.checkValueItem(field, f, value, full)
	}
}

func (v *fieldValidator) checkValueItem(field string, f *schema.FieldSpec, value any, full bool) {
	item, ok := value.(map[string]any)
	if !ok {
		v.addf(field, "expected a value item, got %T", value)
		return
	}
	typeName, _ := item[schema.ValueItemTypeField].(string)
	if typeName == "" {
		v.addf(field, "value item is missing its %q discriminator", schema.ValueItemTypeField)
		return
	}
	vt := v.reg.ValueType(typeName)
	if vt == nil {
		v.addf(field, "unknown value type %q", typeName)
		return
	}
	if len(f.ValueTypes) > 0 && !slices.Contains(f.ValueTypes, typeName) {
		v.addf(field, "value type %q is not allowed here (allowed: %s)", typeName, strings.Join(f.ValueTypes, ", "))
		return
	}

	itemFields := make(FieldValues, len(item)-1)
	for k, val := range item {
		if k == schema.ValueItemTypeField {
			continue
		}
		itemFields[k] = val
	}
	v.checkFieldSet(vt.Name, vt.Fields, itemFields, full, field+".")
}

func fieldSpec(specs []schema.FieldSpec, name string) *schema.FieldSpec {
	for i := range specs {
		if specs[i].Name == name {
			return &specs[i]
		}
	}
	return nil
}

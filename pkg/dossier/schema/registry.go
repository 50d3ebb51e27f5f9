package schema

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// ErrInvalidSpec indicates a schema specification violated a structural rule.
// The concrete error is always a *ValidationError wrapping this sentinel.
var ErrInvalidSpec = errors.New("invalid schema specification")

// ValidationError reports every rule a schema specification violated.
// Violations are collected exhaustively, not fail-fast, so a caller can
// correct all problems at once.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schema specification: %s", strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidSpec }

// Registry is an immutable, validated view of one schema specification
// version. It is safe for concurrent readers and is replaced, never mutated,
// on a schema update.
type Registry struct {
	spec        *Spec
	entityTypes map[string]*EntityTypeSpec
	valueTypes  map[string]*ValueTypeSpec
	published   *Registry
}

// BuildRegistry validates spec and returns an immutable registry over it.
// It returns a *ValidationError enumerating every violated rule otherwise.
// BuildRegistry is pure: it never modifies spec.
func BuildRegistry(spec *Spec) (*Registry, error) {
	v := &specValidator{}
	v.validate(spec)
	if len(v.violations) > 0 {
		return nil, &ValidationError{Violations: v.violations}
	}

	r := &Registry{
		spec:        spec,
		entityTypes: make(map[string]*EntityTypeSpec, len(spec.EntityTypes)),
		valueTypes:  make(map[string]*ValueTypeSpec, len(spec.ValueTypes)),
	}
	for i := range spec.EntityTypes {
		r.entityTypes[spec.EntityTypes[i].Name] = &spec.EntityTypes[i]
	}
	for i := range spec.ValueTypes {
		r.valueTypes[spec.ValueTypes[i].Name] = &spec.ValueTypes[i]
	}
	r.published = buildPublishedView(r)
	return r, nil
}

// Version returns the schema version this registry was built from.
func (r *Registry) Version() int { return r.spec.Version }

// Spec returns the underlying specification. Callers must not modify it.
func (r *Registry) Spec() *Spec { return r.spec }

// EntityType returns the named entity type, or nil if it does not exist.
func (r *Registry) EntityType(name string) *EntityTypeSpec { return r.entityTypes[name] }

// ValueType returns the named value type, or nil if it does not exist.
func (r *Registry) ValueType(name string) *ValueTypeSpec { return r.valueTypes[name] }

// Published returns the reader-facing view of this registry: adminOnly
// entity types, value types and fields are removed. The view is built once
// at registry construction and shares the registry's immutability.
func (r *Registry) Published() *Registry { return r.published }

func buildPublishedView(admin *Registry) *Registry {
	spec := &Spec{Version: admin.spec.Version}
	for _, t := range admin.spec.EntityTypes {
		if t.AdminOnly {
			continue
		}
		tc := t
		tc.Fields = publishedFields(t.Fields)
		spec.EntityTypes = append(spec.EntityTypes, tc)
	}
	for _, t := range admin.spec.ValueTypes {
		if t.AdminOnly {
			continue
		}
		tc := t
		tc.Fields = publishedFields(t.Fields)
		spec.ValueTypes = append(spec.ValueTypes, tc)
	}

	r := &Registry{
		spec:        spec,
		entityTypes: make(map[string]*EntityTypeSpec, len(spec.EntityTypes)),
		valueTypes:  make(map[string]*ValueTypeSpec, len(spec.ValueTypes)),
	}
	for i := range spec.EntityTypes {
		r.entityTypes[spec.EntityTypes[i].Name] = &spec.EntityTypes[i]
	}
	for i := range spec.ValueTypes {
		r.valueTypes[spec.ValueTypes[i].Name] = &spec.ValueTypes[i]
	}
	r.published = r
	return r
}

func publishedFields(fields []FieldSpec) []FieldSpec {
	out := make([]FieldSpec, 0, len(fields))
	for _, f := range fields {
		if f.AdminOnly {
			continue
		}
		out = append(out, f)
	}
	return out
}

// specValidator accumulates rule violations across a whole spec.
type specValidator struct {
	violations []string
}

func (v *specValidator) addf(format string, args ...any) {
	v.violations = append(v.violations, fmt.Sprintf(format, args...))
}

func (v *specValidator) validate(spec *Spec) {
	entityNames := make(map[string]bool, len(spec.EntityTypes))
	valueNames := make(map[string]bool, len(spec.ValueTypes))
	for _, t := range spec.EntityTypes {
		if t.Name == "" {
			v.addf("entity type with empty name")
			continue
		}
		if entityNames[t.Name] {
			v.addf("duplicate entity type name %q", t.Name)
		}
		entityNames[t.Name] = true
	}
	for _, t := range spec.ValueTypes {
		if t.Name == "" {
			v.addf("value type with empty name")
			continue
		}
		if valueNames[t.Name] || entityNames[t.Name] {
			v.addf("duplicate type name %q", t.Name)
		}
		valueNames[t.Name] = true
	}

	for _, t := range spec.EntityTypes {
		v.validateFields("entity type", t.Name, t.Fields, true, entityNames, valueNames)
	}
	for _, t := range spec.ValueTypes {
		v.validateFields("value type", t.Name, t.Fields, false, entityNames, valueNames)
	}
}

func (v *specValidator) validateFields(kind, typeName string, fields []FieldSpec, allowIsName bool, entityNames, valueNames map[string]bool) {
	fieldNames := make(map[string]bool, len(fields))
	nameField := ""
	for _, f := range fields {
		if f.Name == "" {
			v.addf("%s %q: field with empty name", kind, typeName)
			continue
		}
		if fieldNames[f.Name] {
			v.addf("%s %q: duplicate field name %q", kind, typeName, f.Name)
		}
		fieldNames[f.Name] = true

		switch f.Type {
		case FieldTypeString, FieldTypeBoolean, FieldTypeNumber,
			FieldTypeReference, FieldTypeRichText, FieldTypeValueItem:
		default:
			v.addf("%s %q: field %q has unknown type %q", kind, typeName, f.Name, f.Type)
			continue
		}

		if f.IsName {
			if !allowIsName {
				v.addf("%s %q: field %q: isName is not allowed on value types", kind, typeName, f.Name)
			} else if f.Type != FieldTypeString {
				v.addf("%s %q: field %q: isName requires a string field, got %s", kind, typeName, f.Name, f.Type)
			} else if nameField != "" {
				v.addf("%s %q: multiple isName fields (%q, %q)", kind, typeName, nameField, f.Name)
			} else {
				nameField = f.Name
			}
		}
		if f.Multiline && f.Type != FieldTypeString {
			v.addf("%s %q: field %q: multiline requires a string field", kind, typeName, f.Name)
		}
		if len(f.EntityTypes) > 0 && f.Type != FieldTypeReference {
			v.addf("%s %q: field %q: entityTypes is only valid on reference fields", kind, typeName, f.Name)
		}
		if len(f.ValueTypes) > 0 && f.Type != FieldTypeValueItem {
			v.addf("%s %q: field %q: valueTypes is only valid on valueItem fields", kind, typeName, f.Name)
		}
		for _, ref := range f.EntityTypes {
			if !entityNames[ref] {
				v.addf("%s %q: field %q: referenced entity type %q does not exist", kind, typeName, f.Name, ref)
			}
		}
		for _, ref := range f.ValueTypes {
			if !valueNames[ref] {
				v.addf("%s %q: field %q: referenced value type %q does not exist", kind, typeName, f.Name, ref)
			}
		}
	}
}

// Snapshot pairs a registry with the migrator built from the same spec
// history. The two must always be observed together.
type Snapshot struct {
	Registry *Registry
	Migrator *Migrator
}

// Holder publishes an immutable schema snapshot to concurrent readers.
// Writers swap in a replacement after their update transaction commits;
// readers in flight keep the snapshot they started with.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns a holder seeded with snap.
func NewHolder(snap *Snapshot) *Holder {
	h := &Holder{}
	h.current.Store(snap)
	return h
}

// Current returns the active snapshot.
func (h *Holder) Current() *Snapshot { return h.current.Load() }

// Swap atomically replaces the active snapshot.
func (h *Holder) Swap(snap *Snapshot) { h.current.Store(snap) }

package schema

// SchemaDiff describes the changes between two schema specification versions.
// It drives two things: rejecting updates that would silently orphan stored
// data, and deriving the read-time payload migration steps.
type SchemaDiff struct {
	AddedEntityTypes   []string
	RemovedEntityTypes []string
	RenamedEntityTypes []RenamedType
	AddedValueTypes    []string
	RemovedValueTypes  []string
	RenamedValueTypes  []RenamedType
	FieldChanges       []FieldChange
}

// RenamedType records an explicit type rename (RenamedFrom marker).
type RenamedType struct {
	From string
	To   string
}

// FieldChangeKind enumerates the payload-affecting field changes.
type FieldChangeKind string

const (
	FieldAdded   FieldChangeKind = "added"
	FieldRemoved FieldChangeKind = "removed"
	FieldRenamed FieldChangeKind = "renamed"
)

// FieldChange records one field-level change within a type.
type FieldChange struct {
	TypeName  string
	ValueType bool
	Kind      FieldChangeKind
	Field     string
	// RenamedTo is set for FieldRenamed: Field is the old name.
	RenamedTo string
}

// IsEmpty reports whether the diff contains no changes.
func (d *SchemaDiff) IsEmpty() bool {
	return len(d.AddedEntityTypes) == 0 &&
		len(d.RemovedEntityTypes) == 0 &&
		len(d.RenamedEntityTypes) == 0 &&
		len(d.AddedValueTypes) == 0 &&
		len(d.RemovedValueTypes) == 0 &&
		len(d.RenamedValueTypes) == 0 &&
		len(d.FieldChanges) == 0
}

// Diff computes the changes from previous to next. Renames are taken from
// explicit RenamedFrom markers on next; a type or field present in previous
// but absent from next (and not named by any marker) is reported as removed.
// Diff is pure and Diff(s, s) is empty.
func Diff(previous, next *Spec) SchemaDiff {
	var d SchemaDiff

	renamedEntityFrom := make(map[string]string)
	for _, t := range next.EntityTypes {
		if t.RenamedFrom != "" && previous.EntityType(t.RenamedFrom) != nil {
			renamedEntityFrom[t.RenamedFrom] = t.Name
			d.RenamedEntityTypes = append(d.RenamedEntityTypes, RenamedType{From: t.RenamedFrom, To: t.Name})
		}
	}
	renamedValueFrom := make(map[string]string)
	for _, t := range next.ValueTypes {
		if t.RenamedFrom != "" && previous.ValueType(t.RenamedFrom) != nil {
			renamedValueFrom[t.RenamedFrom] = t.Name
			d.RenamedValueTypes = append(d.RenamedValueTypes, RenamedType{From: t.RenamedFrom, To: t.Name})
		}
	}

	for _, t := range next.EntityTypes {
		prev := previous.EntityType(t.Name)
		if prev == nil && t.RenamedFrom != "" {
			prev = previous.EntityType(t.RenamedFrom)
		}
		if prev == nil {
			d.AddedEntityTypes = append(d.AddedEntityTypes, t.Name)
			continue
		}
		diffFields(&d, t.Name, false, prev.Fields, t.Fields)
	}
	for _, t := range previous.EntityTypes {
		if next.EntityType(t.Name) == nil && renamedEntityFrom[t.Name] == "" {
			d.RemovedEntityTypes = append(d.RemovedEntityTypes, t.Name)
		}
	}

	for _, t := range next.ValueTypes {
		var prevFields []FieldSpec
		prev := previous.ValueType(t.Name)
		if prev == nil && t.RenamedFrom != "" {
			prev = previous.ValueType(t.RenamedFrom)
		}
		if prev == nil {
			d.AddedValueTypes = append(d.AddedValueTypes, t.Name)
			continue
		}
		prevFields = prev.Fields
		diffFields(&d, t.Name, true, prevFields, t.Fields)
	}
	for _, t := range previous.ValueTypes {
		if next.ValueType(t.Name) == nil && renamedValueFrom[t.Name] == "" {
			d.RemovedValueTypes = append(d.RemovedValueTypes, t.Name)
		}
	}

	return d
}

func diffFields(d *SchemaDiff, typeName string, valueType bool, previous, next []FieldSpec) {
	renamedFrom := make(map[string]string)
	for _, f := range next {
		if f.RenamedFrom != "" {
			for _, pf := range previous {
				if pf.Name == f.RenamedFrom {
					renamedFrom[f.RenamedFrom] = f.Name
					d.FieldChanges = append(d.FieldChanges, FieldChange{
						TypeName:  typeName,
						ValueType: valueType,
						Kind:      FieldRenamed,
						Field:     f.RenamedFrom,
						RenamedTo: f.Name,
					})
					break
				}
			}
		}
	}

	prevByName := make(map[string]bool, len(previous))
	for _, f := range previous {
		prevByName[f.Name] = true
	}
	for _, f := range next {
		if !prevByName[f.Name] && renamedFrom[f.RenamedFrom] != f.Name {
			d.FieldChanges = append(d.FieldChanges, FieldChange{
				TypeName:  typeName,
				ValueType: valueType,
				Kind:      FieldAdded,
				Field:     f.Name,
			})
		}
	}
	nextByName := make(map[string]bool, len(next))
	for _, f := range next {
		nextByName[f.Name] = true
	}
	for _, f := range previous {
		if !nextByName[f.Name] && renamedFrom[f.Name] == "" {
			d.FieldChanges = append(d.FieldChanges, FieldChange{
				TypeName:  typeName,
				ValueType: valueType,
				Kind:      FieldRemoved,
				Field:     f.Name,
			})
		}
	}
}

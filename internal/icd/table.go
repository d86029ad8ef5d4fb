package icd

import "fmt"

// TableDefinition is one ICD field table: an ordered list of field
// definitions identified by the table's caption number (e.g. "11-56").
// Field order is the payload's declaration order and must be preserved
// through serialization and expansion.
type TableDefinition struct {
	Number string            `json:"table_number"`
	Fields []FieldDefinition `json:"fields"`

	deps []string
}

// NewTableDefinition validates the fields and derives the table's dependency
// set. The returned table is immutable by convention.
func NewTableDefinition(number string, fields []FieldDefinition) (*TableDefinition, error) {
	if number == "" {
		return nil, fmt.Errorf("table has empty number")
	}
	seen := make(map[string]bool, len(fields))
	for i := range fields {
		if err := fields[i].Validate(); err != nil {
			return nil, fmt.Errorf("table %s: %v", number, err)
		}
		if seen[fields[i].Name] {
			return nil, fmt.Errorf("table %s: duplicate field name %q", number, fields[i].Name)
		}
		seen[fields[i].Name] = true
	}
	t := &TableDefinition{Number: number, Fields: fields}
	t.deps = t.findDependencies()
	return t, nil
}

// Dependencies returns the table numbers referenced by this table's fields,
// in first-reference order.
func (t *TableDefinition) Dependencies() []string {
	if t.deps == nil {
		t.deps = t.findDependencies()
	}
	return t.deps
}

func (t *TableDefinition) findDependencies() []string {
	var deps []string
	seen := map[string]bool{}
	for i := range t.Fields {
		// Only the type column establishes a structural dependency; a
		// description mention alone does not place bytes in the payload.
		if ref, ok := t.Fields[i].TableRef(); ok && !seen[ref] {
			seen[ref] = true
			deps = append(deps, ref)
		}
	}
	return deps
}

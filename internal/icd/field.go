// Package icd holds the schema model for logcode packet decoding: field and
// table definitions extracted from an interface control document (ICD), the
// per-logcode schema that maps payload versions to tables, and the JSON
// document format used to exchange schemas with other tools.
//
// Everything in this package is a plain value type. Construction validates;
// after that the definitions are treated as read-only and may be shared
// freely between concurrent decode calls.
package icd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// RuntimeCount marks a field whose repetition count is only known at decode
// time, from sibling data in the same payload (Cnt column value "Var" in the
// ICD tables).
const RuntimeCount = -1

// FieldKind classifies how the raw bits of a field are interpreted.
type FieldKind int

const (
	KindUnsigned FieldKind = iota // plain unsigned integer
	KindSigned                    // two's-complement signed integer
	KindFloat                     // IEEE-754 single precision, byte-aligned
	KindBool                      // zero/nonzero flag
	KindEnum                      // unsigned integer with a label legend
	KindTableRef                  // sub-structure defined by another table
)

func (k FieldKind) String() string {
	switch k {
	case KindUnsigned:
		return "unsigned"
	case KindSigned:
		return "signed"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	case KindTableRef:
		return "table-ref"
	default:
		return fmt.Sprintf("FieldKind(%d)", int(k))
	}
}

// tableRefPattern matches table references in the Type Name column,
// e.g. "Table 7-2803". The same pattern appears in field descriptions when
// the ICD cross-references a record layout.
var tableRefPattern = regexp.MustCompile(`(?i)Table\s+(\d+-\d+)`)

// enumLegendPattern matches enum legends embedded in field descriptions,
// e.g. "0 = IDLE, 1 = CONNECTED, 2 = SUSPENDED".
var enumLegendPattern = regexp.MustCompile(`(\d+)\s*=\s*([A-Za-z][A-Za-z0-9_]*)`)

// FieldDefinition is a single row of an ICD field table. Offsets are relative
// to the start of the enclosing table; the expander turns them into absolute
// payload positions. OffsetBits plus LengthBits may exceed 8: fields straddle
// byte boundaries freely.
type FieldDefinition struct {
	Name        string `json:"name"`
	TypeName    string `json:"type_name"`
	Count       int    `json:"count,omitempty"` // 0 = absent, RuntimeCount = runtime array
	OffsetBytes int    `json:"offset_bytes"`
	OffsetBits  int    `json:"offset_bits"`
	LengthBits  int    `json:"length_bits"`
	Description string `json:"description,omitempty"`

	// EnumMappings carries the value legend for enum fields, keyed by raw
	// value. Populated from the ICD's enum column when present, otherwise
	// parsed out of Description by ParseEnumLegend.
	EnumMappings map[uint64]string `json:"enum_mappings,omitempty"`

	// CountField names the sibling field holding this runtime array's
	// repetition count, when the schema records one explicitly. Empty means
	// the decoder falls back to its heuristic count strategies.
	CountField string `json:"count_field,omitempty"`
}

// Kind reports how the field's bits are interpreted, derived from TypeName.
// Table references win over everything else; unknown primitive names decode
// as unsigned, which matches how the source ICDs label miscellaneous
// counters (Uint8/Uint16/Uint32 and friends).
func (f *FieldDefinition) Kind() FieldKind {
	if tableRefPattern.MatchString(f.TypeName) {
		return KindTableRef
	}
	t := strings.ToLower(strings.TrimSpace(f.TypeName))
	switch {
	case strings.HasPrefix(t, "int") || strings.HasPrefix(t, "sint") || strings.HasPrefix(t, "signed"):
		return KindSigned
	case strings.HasPrefix(t, "float") || strings.HasPrefix(t, "double"):
		return KindFloat
	case strings.HasPrefix(t, "bool"):
		return KindBool
	case strings.HasPrefix(t, "enum"):
		return KindEnum
	default:
		return KindUnsigned
	}
}

// TableRef returns the referenced table number ("7-2803") when the field's
// type is a table reference.
func (f *FieldDefinition) TableRef() (string, bool) {
	m := tableRefPattern.FindStringSubmatch(f.TypeName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsRuntimeArray reports whether the field is a runtime-sized record array:
// a table reference whose count is only known from already-decoded data.
func (f *FieldDefinition) IsRuntimeArray() bool {
	_, ref := f.TableRef()
	return ref && f.Count == RuntimeCount
}

// EnumLabel resolves a raw value against the field's legend. Unknown values
// degrade to their decimal form rather than failing; the ICDs routinely lag
// behind firmware, so unmapped values are expected in the field.
func (f *FieldDefinition) EnumLabel(raw uint64) string {
	if label, ok := f.EnumMappings[raw]; ok {
		return label
	}
	return strconv.FormatUint(raw, 10)
}

// Validate checks the structural invariants a field must satisfy before it
// can be decoded.
func (f *FieldDefinition) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("field has empty name")
	}
	if f.OffsetBytes < 0 {
		return fmt.Errorf("field %q: negative byte offset %d", f.Name, f.OffsetBytes)
	}
	if f.OffsetBits < 0 || f.OffsetBits > 7 {
		return fmt.Errorf("field %q: bit offset %d out of range 0-7", f.Name, f.OffsetBits)
	}
	// Table references occupy the referenced table's bits, not their own.
	if f.LengthBits <= 0 && f.Kind() != KindTableRef {
		return fmt.Errorf("field %q: non-positive bit length %d", f.Name, f.LengthBits)
	}
	if f.LengthBits < 0 {
		return fmt.Errorf("field %q: negative bit length %d", f.Name, f.LengthBits)
	}
	if f.Count < RuntimeCount {
		return fmt.Errorf("field %q: invalid count %d", f.Name, f.Count)
	}
	return nil
}

// ParseEnumLegend extracts an enum value legend from free-text description,
// e.g. "0 = IDLE, 1 = CONNECTED". Returns nil when the description carries
// no legend.
func ParseEnumLegend(description string) map[uint64]string {
	matches := enumLegendPattern.FindAllStringSubmatch(description, -1)
	if len(matches) == 0 {
		return nil
	}
	legend := make(map[uint64]string, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			continue
		}
		legend[v] = m[2]
	}
	if len(legend) == 0 {
		return nil
	}
	return legend
}

// FindTableRefs returns every table number referenced by the field, checking
// both the type name and the description (the ICDs cross-reference record
// layouts in either place).
func (f *FieldDefinition) FindTableRefs() []string {
	var refs []string
	seen := map[string]bool{}
	for _, text := range []string{f.TypeName, f.Description} {
		for _, m := range tableRefPattern.FindAllStringSubmatch(text, -1) {
			if !seen[m[1]] {
				seen[m[1]] = true
				refs = append(refs, m[1])
			}
		}
	}
	return refs
}

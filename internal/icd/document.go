package icd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// SchemaDocument is the on-disk JSON exchange format for logcode schemas.
// Other tools consume this document directly, so its shape is a contract:
// version_map keys are decimal strings, field order inside each table is the
// ICD declaration order and survives a round trip unchanged.
type SchemaDocument struct {
	LogcodeID    string                   `json:"logcode_id"` // "0xB888"
	LogcodeName  string                   `json:"logcode_name"`
	VersionField VersionField             `json:"version_field"`
	VersionMap   map[string]string        `json:"version_map"`
	Tables       map[string]TableDocument `json:"tables"`
}

// TableDocument is one table inside a SchemaDocument. Dependencies are
// derived on export; on import they are recomputed rather than trusted.
type TableDocument struct {
	Fields       []FieldDefinition `json:"fields"`
	Dependencies []string          `json:"dependencies,omitempty"`
}

// BuildDocument converts a schema into its exchange document.
func BuildDocument(s *LogcodeSchema) *SchemaDocument {
	doc := &SchemaDocument{
		LogcodeID:    FormatLogcodeID(s.LogcodeID),
		LogcodeName:  s.LogcodeName,
		VersionField: s.VersionField,
		VersionMap:   make(map[string]string, len(s.VersionMap)),
		Tables:       make(map[string]TableDocument, len(s.Tables)),
	}
	for v, table := range s.VersionMap {
		doc.VersionMap[strconv.FormatUint(v, 10)] = table
	}
	for number, table := range s.Tables {
		doc.Tables[number] = TableDocument{
			Fields:       table.Fields,
			Dependencies: table.Dependencies(),
		}
	}
	return doc
}

// Schema converts the document back into a validated LogcodeSchema.
func (doc *SchemaDocument) Schema() (*LogcodeSchema, error) {
	id, err := ParseLogcodeID(doc.LogcodeID)
	if err != nil {
		return nil, err
	}
	s := &LogcodeSchema{
		LogcodeID:    id,
		LogcodeName:  doc.LogcodeName,
		VersionField: doc.VersionField,
		VersionMap:   make(map[uint64]string, len(doc.VersionMap)),
		Tables:       make(map[string]*TableDefinition, len(doc.Tables)),
	}
	for vs, table := range doc.VersionMap {
		v, err := strconv.ParseUint(vs, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("schema %s: invalid version key %q: %v", doc.LogcodeID, vs, err)
		}
		s.VersionMap[v] = table
	}
	for number, td := range doc.Tables {
		table, err := NewTableDefinition(number, td.Fields)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %v", doc.LogcodeID, err)
		}
		s.Tables[number] = table
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// TableNumbers lists the document's tables in sorted order, for stable
// display and export.
func (doc *SchemaDocument) TableNumbers() []string {
	numbers := make([]string, 0, len(doc.Tables))
	for n := range doc.Tables {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)
	return numbers
}

// ReadDocument decodes a schema document from r.
func ReadDocument(r io.Reader) (*SchemaDocument, error) {
	var doc SchemaDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode schema document: %v", err)
	}
	return &doc, nil
}

// WriteDocument writes the document to w as indented JSON.
func (doc *SchemaDocument) WriteDocument(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode schema document: %v", err)
	}
	return nil
}

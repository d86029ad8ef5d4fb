package icd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrTableNotFound is returned by TableProvider implementations when the
// requested table number does not exist in the backing source.
var ErrTableNotFound = errors.New("table not found")

// TableProvider supplies table definitions on demand. The decoder only calls
// it when expanding a reference that is absent from the in-memory schema;
// implementations may be slow (database lookup, document scan) because
// results are cached upstream.
type TableProvider interface {
	GetTable(tableNumber string) (*TableDefinition, error)
}

// VersionField locates the version discriminator within a payload. It is
// fixed per logcode: the same window is read before any table is selected.
type VersionField struct {
	OffsetBytes int `json:"offset_bytes"`
	OffsetBits  int `json:"offset_bits"`
	LengthBits  int `json:"length_bits"`
}

// SizeBytes returns the number of whole bytes the version field occupies.
// Payload field offsets in the ICD tables are relative to the byte after the
// version field, so this is the base offset applied during expansion.
func (v VersionField) SizeBytes() int {
	return v.OffsetBytes + (v.OffsetBits+v.LengthBits+7)/8
}

// LogcodeSchema is everything known about one logcode: which payload window
// selects the version, which table each version maps to, and the table
// definitions themselves. Built once, then shared read-only across decode
// calls; tables missing from Tables are fetched through a TableProvider at
// expansion time without mutating the schema.
type LogcodeSchema struct {
	LogcodeID    uint16                      `json:"logcode_id"`
	LogcodeName  string                      `json:"logcode_name"`
	VersionField VersionField                `json:"version_field"`
	VersionMap   map[uint64]string           `json:"version_map"`
	Tables       map[string]*TableDefinition `json:"tables"`
}

// Table returns the named table from the schema's in-memory set.
func (s *LogcodeSchema) Table(number string) (*TableDefinition, bool) {
	t, ok := s.Tables[number]
	return t, ok
}

// Versions lists the version values defined for this logcode in ascending
// order.
func (s *LogcodeSchema) Versions() []uint64 {
	versions := make([]uint64, 0, len(s.VersionMap))
	for v := range s.VersionMap {
		versions = append(versions, v)
	}
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && versions[j-1] > versions[j]; j-- {
			versions[j-1], versions[j] = versions[j], versions[j-1]
		}
	}
	return versions
}

// Validate checks the schema is decodable: a usable version window and at
// least one version mapping.
func (s *LogcodeSchema) Validate() error {
	if s.VersionField.LengthBits <= 0 {
		return fmt.Errorf("logcode %s: version field has no length", FormatLogcodeID(s.LogcodeID))
	}
	if s.VersionField.OffsetBits < 0 || s.VersionField.OffsetBits > 7 {
		return fmt.Errorf("logcode %s: version field bit offset %d out of range",
			FormatLogcodeID(s.LogcodeID), s.VersionField.OffsetBits)
	}
	if len(s.VersionMap) == 0 {
		return fmt.Errorf("logcode %s: empty version map", FormatLogcodeID(s.LogcodeID))
	}
	return nil
}

// FormatLogcodeID renders a logcode the way the ICDs write them: "0xB888".
func FormatLogcodeID(id uint16) string {
	return fmt.Sprintf("0x%04X", id)
}

// ParseLogcodeID accepts "0xB888", "B888" or decimal forms.
func ParseLogcodeID(s string) (uint16, error) {
	s = strings.TrimSpace(s)
	if t, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		v, err := strconv.ParseUint(t, 16, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid logcode %q: %v", s, err)
		}
		return uint16(v), nil
	}
	if v, err := strconv.ParseUint(s, 10, 16); err == nil {
		return uint16(v), nil
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid logcode %q: %v", s, err)
	}
	return uint16(v), nil
}

package decode

import (
	"regexp"

	"github.com/banshee-data/logcode.report/internal/icd"
)

// ExpandedLayout is a table flattened for decoding: every fixed table
// reference inlined in declaration order with offsets made absolute, runtime
// record arrays (count == icd.RuntimeCount) kept as-is because their
// multiplicity is data-dependent. Immutable once built; cached per
// (logcode, table).
type ExpandedLayout struct {
	TableNumber string
	Fields      []icd.FieldDefinition
}

// RecordLayout is the flattened layout of one repetition of a record table,
// with the non-structural fields filtered out and the byte stride of one
// record computed from the surviving fields.
type RecordLayout struct {
	TableNumber string
	Fields      []icd.FieldDefinition
	StrideBytes int
}

// defaultNonStructural matches field names injected by upstream table
// extraction that hold no payload bytes (padding and placeholder rows).
var defaultNonStructural = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bdummy\b`),
	regexp.MustCompile(`(?i)\bpadding\b`),
	regexp.MustCompile(`(?i)^reserved$`),
}

// Expander flattens table graphs against a schema, pulling tables the schema
// does not hold from the provider. An Expander is stateless apart from its
// configuration and safe for concurrent use.
type Expander struct {
	provider      icd.TableProvider
	nonStructural []*regexp.Regexp
}

// NewExpander returns an expander backed by provider. Provider may be nil,
// in which case only tables already present in the schema resolve.
func NewExpander(provider icd.TableProvider) *Expander {
	return &Expander{
		provider:      provider,
		nonStructural: defaultNonStructural,
	}
}

// SetNonStructuralPatterns replaces the name patterns excluded from record
// sizing. Patterns apply only when computing a record's byte stride, never
// when decoding a top-level table.
func (e *Expander) SetNonStructuralPatterns(patterns []*regexp.Regexp) {
	e.nonStructural = patterns
}

// Expand flattens tableNumber into an absolute-offset field list. baseBytes
// shifts every offset by that many bytes; the orchestrator passes the
// version field's size here because ICD table offsets are relative to the
// byte after the version discriminator.
//
// Fixed table references are inlined recursively, pre-order and in place, so
// output order matches declaration order. Runtime arrays pass through
// untouched; the repeat decoder resolves their record table lazily because
// the bytes they consume are unknown until sibling data is read.
func (e *Expander) Expand(tableNumber string, schema *icd.LogcodeSchema, baseBytes int) (*ExpandedLayout, error) {
	fields, err := e.expand(tableNumber, schema, baseBytes*8, nil)
	if err != nil {
		return nil, err
	}
	return &ExpandedLayout{TableNumber: tableNumber, Fields: fields}, nil
}

// expand walks one table. baseBits is the absolute bit position of the
// table's start; path is the chain of tables currently being expanded, used
// as the visited set for cycle detection.
func (e *Expander) expand(tableNumber string, schema *icd.LogcodeSchema, baseBits int, path []string) ([]icd.FieldDefinition, error) {
	for _, visiting := range path {
		if visiting == tableNumber {
			return nil, &CyclicDependencyError{
				LogcodeID:   schema.LogcodeID,
				TableNumber: tableNumber,
				Path:        append(append([]string{}, path...), tableNumber),
			}
		}
	}
	path = append(path, tableNumber)

	table, err := e.lookupTable(tableNumber, schema)
	if err != nil {
		return nil, err
	}

	var out []icd.FieldDefinition
	for i := range table.Fields {
		field := table.Fields[i]
		ref, isRef := field.TableRef()

		if isRef && field.Count != icd.RuntimeCount {
			// Fixed sub-structure: splice the referenced table's fields in
			// place of the wrapper, rebasing their offsets onto the
			// wrapper's absolute position.
			wrapperBits := baseBits + field.OffsetBytes*8 + field.OffsetBits
			sub, err := e.expand(ref, schema, wrapperBits, path)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
			continue
		}

		adjusted := field
		totalBits := baseBits + field.OffsetBytes*8 + field.OffsetBits
		adjusted.OffsetBytes = totalBits / 8
		adjusted.OffsetBits = totalBits % 8
		out = append(out, adjusted)
	}
	return out, nil
}

// RecordLayout flattens the record table behind a runtime array and computes
// its stride. The sizing filter drops two classes of field: anything
// matching a non-structural name pattern, and any field at offset zero after
// a nonzero offset has been seen — those are derived pseudo-fields injected
// by upstream table extraction (a calculated rate column, for instance), not
// real payload positions, and counting them would wreck the stride.
func (e *Expander) RecordLayout(tableNumber string, schema *icd.LogcodeSchema) (*RecordLayout, error) {
	expanded, err := e.expand(tableNumber, schema, 0, nil)
	if err != nil {
		return nil, err
	}

	var structural []icd.FieldDefinition
	maxOffsetSeen := 0
	maxEndBits := 0
	for i := range expanded {
		f := expanded[i]
		startBits := f.OffsetBytes*8 + f.OffsetBits
		if startBits == 0 && maxOffsetSeen > 0 {
			continue
		}
		if e.isNonStructural(f.Name) {
			continue
		}
		if startBits > maxOffsetSeen {
			maxOffsetSeen = startBits
		}
		if end := startBits + f.LengthBits; end > maxEndBits {
			maxEndBits = end
		}
		structural = append(structural, f)
	}

	return &RecordLayout{
		TableNumber: tableNumber,
		Fields:      structural,
		StrideBytes: (maxEndBits + 7) / 8,
	}, nil
}

func (e *Expander) isNonStructural(name string) bool {
	for _, p := range e.nonStructural {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

func (e *Expander) lookupTable(tableNumber string, schema *icd.LogcodeSchema) (*icd.TableDefinition, error) {
	if t, ok := schema.Table(tableNumber); ok {
		return t, nil
	}
	if e.provider != nil {
		t, err := e.provider.GetTable(tableNumber)
		if err == nil && t != nil {
			return t, nil
		}
	}
	return nil, &MissingDependencyError{LogcodeID: schema.LogcodeID, TableNumber: tableNumber}
}

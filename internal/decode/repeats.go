package decode

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/banshee-data/logcode.report/internal/icd"
	"github.com/banshee-data/logcode.report/internal/monitoring"
)

// CountStrategy resolves the repetition count of a runtime record array from
// the wrapper field and the sibling fields decoded so far. Strategies run in
// configured order; the first one that answers wins. The order ships as a
// default, not a rule — it was inferred from observed ICD conventions, so
// new logcodes may need a different arrangement.
type CountStrategy interface {
	Name() string
	Count(wrapper *icd.FieldDefinition, decoded []DecodedField) (int, bool)
}

// DefaultCountStrategies returns the standard resolution order: an explicit
// count-field hint on the wrapper, then a sibling whose name denotes a
// count, then a sibling bitmask's population count.
func DefaultCountStrategies() []CountStrategy {
	return []CountStrategy{
		HintCountStrategy{},
		NameCountStrategy{},
		BitmaskCountStrategy{},
	}
}

// CountStrategiesByName builds a strategy list from configuration names.
// Unknown names are rejected so a config typo fails loudly at startup.
func CountStrategiesByName(names []string) ([]CountStrategy, error) {
	var out []CountStrategy
	for _, name := range names {
		switch name {
		case "hint":
			out = append(out, HintCountStrategy{})
		case "name":
			out = append(out, NameCountStrategy{})
		case "bitmask":
			out = append(out, BitmaskCountStrategy{})
		default:
			return nil, fmt.Errorf("unknown count strategy %q", name)
		}
	}
	return out, nil
}

// HintCountStrategy follows an explicit count_field annotation on the
// wrapper, when the schema records one.
type HintCountStrategy struct{}

func (HintCountStrategy) Name() string { return "hint" }

func (HintCountStrategy) Count(wrapper *icd.FieldDefinition, decoded []DecodedField) (int, bool) {
	if wrapper.CountField == "" {
		return 0, false
	}
	for i := range decoded {
		if decoded[i].Name == wrapper.CountField {
			if v, ok := decoded[i].Uint(); ok {
				return int(v), true
			}
		}
	}
	return 0, false
}

// NameCountStrategy looks for a previously decoded sibling whose name marks
// it as a count: it must contain "Num" plus either a generic record keyword
// or a word shared with the wrapper's own name ("Num CA" for a "CA Records"
// wrapper, "Num Records" for anything).
type NameCountStrategy struct{}

func (NameCountStrategy) Name() string { return "name" }

func (NameCountStrategy) Count(wrapper *icd.FieldDefinition, decoded []DecodedField) (int, bool) {
	wrapperWords := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(wrapper.Name)) {
		wrapperWords[w] = true
	}

	for i := range decoded {
		name := decoded[i].Name
		lower := strings.ToLower(name)
		if !strings.Contains(lower, "num") {
			continue
		}
		matched := strings.Contains(lower, "record")
		if !matched {
			for _, w := range strings.Fields(lower) {
				if w != "num" && wrapperWords[w] {
					matched = true
					break
				}
			}
		}
		if matched {
			if v, ok := decoded[i].Uint(); ok {
				return int(v), true
			}
		}
	}
	return 0, false
}

// BitmaskCountStrategy counts set bits in a previously decoded sibling
// bitmask field: one record per set bit.
type BitmaskCountStrategy struct{}

func (BitmaskCountStrategy) Name() string { return "bitmask" }

func (BitmaskCountStrategy) Count(wrapper *icd.FieldDefinition, decoded []DecodedField) (int, bool) {
	for i := range decoded {
		if !strings.Contains(strings.ToLower(decoded[i].Name), "bitmask") {
			continue
		}
		if v, ok := decoded[i].Uint(); ok {
			return bits.OnesCount64(v), true
		}
	}
	return 0, false
}

// RepeatResult is the outcome of decoding one runtime record array.
type RepeatResult struct {
	Fields    []DecodedField
	Errors    []FieldError
	Strategy  string // which count strategy fired
	Count     int    // records actually decoded
	Truncated bool   // payload ended before the resolved count
}

// RepeatDecoder decodes runtime record arrays: it resolves the repetition
// count from sibling data, sizes one record via the expander's filtered
// record layout, then decodes count records at stride intervals.
type RepeatDecoder struct {
	expander   *Expander
	strategies []CountStrategy
}

// NewRepeatDecoder builds a repeat decoder over the given expander. A nil
// strategy list selects DefaultCountStrategies.
func NewRepeatDecoder(expander *Expander, strategies []CountStrategy) *RepeatDecoder {
	if strategies == nil {
		strategies = DefaultCountStrategies()
	}
	return &RepeatDecoder{expander: expander, strategies: strategies}
}

// Decode expands wrapper's record table and decodes its repetitions.
// wrapper's offset must already be absolute. When the payload holds fewer
// complete records than the resolved count, the surplus is dropped and the
// result is marked truncated instead of failing the packet: counts and
// payload sizes disagree in real captures, in both directions.
func (r *RepeatDecoder) Decode(payload []byte, wrapper *icd.FieldDefinition, decoded []DecodedField, schema *icd.LogcodeSchema) (*RepeatResult, error) {
	ref, ok := wrapper.TableRef()
	if !ok {
		return nil, &RepeatingStructureError{
			Field:  wrapper.Name,
			Reason: fmt.Sprintf("type %q is not a table reference", wrapper.TypeName),
		}
	}

	layout, err := r.expander.RecordLayout(ref, schema)
	if err != nil {
		return nil, err
	}
	if layout.StrideBytes == 0 || len(layout.Fields) == 0 {
		return nil, &RepeatingStructureError{
			Field:  wrapper.Name,
			Reason: fmt.Sprintf("record table %s has no structural fields", ref),
		}
	}

	count, strategy, err := r.resolveCount(wrapper, decoded)
	if err != nil {
		return nil, err
	}

	baseOffset := wrapper.OffsetBytes
	available := len(payload) - baseOffset
	if available < 0 {
		available = 0
	}
	maxFit := available / layout.StrideBytes

	result := &RepeatResult{Strategy: strategy}
	actual := count
	if actual > maxFit {
		actual = maxFit
		result.Truncated = true
		monitoring.Logf("repeating structure %q: count %d from strategy %q exceeds payload capacity %d, truncating",
			wrapper.Name, count, strategy, maxFit)
	}

	for i := 0; i < actual; i++ {
		recordBase := baseOffset + i*layout.StrideBytes
		for j := range layout.Fields {
			field := layout.Fields[j]
			field.OffsetBytes += recordBase
			field.Name = fmt.Sprintf("%s (Record %d)", field.Name, i)

			df, err := DecodeField(payload, &field)
			if err != nil {
				if fde, ok := err.(*FieldDecodingError); ok {
					result.Errors = append(result.Errors, fieldError(fde))
					continue
				}
				return nil, err
			}
			result.Fields = append(result.Fields, df)
		}
	}
	result.Count = actual

	return result, nil
}

func (r *RepeatDecoder) resolveCount(wrapper *icd.FieldDefinition, decoded []DecodedField) (int, string, error) {
	for _, s := range r.strategies {
		if count, ok := s.Count(wrapper, decoded); ok {
			monitoring.Logf("repeating structure %q: count %d resolved by strategy %q", wrapper.Name, count, s.Name())
			return count, s.Name(), nil
		}
	}
	return 0, "", &RepeatingStructureError{
		Field:  wrapper.Name,
		Reason: "no count-resolution strategy produced a count",
	}
}

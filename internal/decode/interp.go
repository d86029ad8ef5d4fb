package decode

import (
	"fmt"
	"math"

	"github.com/banshee-data/logcode.report/internal/icd"
)

// DecodedField is one decoded value. RawValue holds the typed result
// (uint64, int64, float64 or bool); FriendlyValue carries the human-readable
// form for enums and bools. Fields inside repeated records are
// record-qualified, e.g. "RSRP (Record 1)".
type DecodedField struct {
	Name          string `json:"name"`
	TypeName      string `json:"type_name"`
	RawValue      any    `json:"raw_value"`
	FriendlyValue string `json:"friendly_value,omitempty"`
	OffsetBytes   int    `json:"offset_bytes"`
	LengthBits    int    `json:"length_bits"`
}

// Uint returns the field's value as an unsigned integer where that makes
// sense (unsigned, enum and bool fields), for use by count strategies and
// post-processors.
func (f *DecodedField) Uint() (uint64, bool) {
	switch v := f.RawValue.(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Float returns the field's value as a float64 for numeric aggregation.
func (f *DecodedField) Float() (float64, bool) {
	switch v := f.RawValue.(type) {
	case uint64:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

// DecodeField extracts and interprets a single non-repeating field at its
// absolute payload position. Failures come back as *FieldDecodingError so
// the orchestrator can record them without aborting the packet.
func DecodeField(payload []byte, field *icd.FieldDefinition) (DecodedField, error) {
	wrap := func(err error) (DecodedField, error) {
		return DecodedField{}, &FieldDecodingError{
			Field:       field.Name,
			OffsetBytes: field.OffsetBytes,
			OffsetBits:  field.OffsetBits,
			Err:         err,
		}
	}

	kind := field.Kind()

	// The ICDs only use byte-aligned 32-bit floats; reject anything else
	// before touching the payload.
	if kind == icd.KindFloat {
		if field.OffsetBits != 0 {
			return wrap(fmt.Errorf("float field is not byte-aligned (bit offset %d)", field.OffsetBits))
		}
		if field.LengthBits != 32 {
			return wrap(fmt.Errorf("float field must be 32 bits, got %d", field.LengthBits))
		}
	}

	raw, err := ExtractBits(payload, field.OffsetBytes, field.OffsetBits, field.LengthBits)
	if err != nil {
		return wrap(err)
	}

	out := DecodedField{
		Name:        field.Name,
		TypeName:    field.TypeName,
		OffsetBytes: field.OffsetBytes,
		LengthBits:  field.LengthBits,
	}

	switch kind {
	case icd.KindSigned:
		out.RawValue = signExtend(raw, field.LengthBits)
	case icd.KindFloat:
		out.RawValue = float64(math.Float32frombits(uint32(raw)))
	case icd.KindBool:
		b := raw != 0
		out.RawValue = b
		if b {
			out.FriendlyValue = "true"
		} else {
			out.FriendlyValue = "false"
		}
	case icd.KindEnum:
		out.RawValue = raw
		out.FriendlyValue = field.EnumLabel(raw)
	case icd.KindTableRef:
		return wrap(fmt.Errorf("table reference %q reached the field decoder unexpanded", field.TypeName))
	default:
		out.RawValue = raw
	}

	return out, nil
}

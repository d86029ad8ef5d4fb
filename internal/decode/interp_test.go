package decode

import (
	"math"
	"testing"

	"github.com/banshee-data/logcode.report/internal/icd"
)

func TestDecodeFieldUnsigned(t *testing.T) {
	payload := []byte{0x34, 0x12}
	field := &icd.FieldDefinition{Name: "Counter", TypeName: "Uint16", LengthBits: 16}

	df, err := DecodeField(payload, field)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if v, ok := df.RawValue.(uint64); !ok || v != 0x1234 {
		t.Errorf("RawValue = %v, want uint64 0x1234", df.RawValue)
	}
}

func TestDecodeFieldSigned(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    int64
	}{
		{"negative one", []byte{0xFF}, -1},
		{"max positive", []byte{0x7F}, 127},
		{"min negative", []byte{0x80}, -128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			field := &icd.FieldDefinition{Name: "Delta", TypeName: "Int8", LengthBits: 8}
			df, err := DecodeField(tt.payload, field)
			if err != nil {
				t.Fatalf("DecodeField: %v", err)
			}
			if v, ok := df.RawValue.(int64); !ok || v != tt.want {
				t.Errorf("RawValue = %v, want int64 %d", df.RawValue, tt.want)
			}
		})
	}
}

func TestDecodeFieldFloat(t *testing.T) {
	bits := math.Float32bits(3.5)
	payload := []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}
	field := &icd.FieldDefinition{Name: "SNR", TypeName: "Float32", LengthBits: 32}

	df, err := DecodeField(payload, field)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if v, ok := df.RawValue.(float64); !ok || v != 3.5 {
		t.Errorf("RawValue = %v, want float64 3.5", df.RawValue)
	}
}

func TestDecodeFieldFloatRejectsMisaligned(t *testing.T) {
	payload := make([]byte, 8)

	field := &icd.FieldDefinition{Name: "SNR", TypeName: "Float32", OffsetBits: 3, LengthBits: 32}
	if _, err := DecodeField(payload, field); err == nil {
		t.Error("expected error for non-byte-aligned float")
	}

	field = &icd.FieldDefinition{Name: "SNR", TypeName: "Float32", LengthBits: 16}
	if _, err := DecodeField(payload, field); err == nil {
		t.Error("expected error for 16-bit float")
	}
}

func TestDecodeFieldBool(t *testing.T) {
	field := &icd.FieldDefinition{Name: "Active", TypeName: "Bool", LengthBits: 1}

	df, err := DecodeField([]byte{0x01}, field)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if v, ok := df.RawValue.(bool); !ok || !v {
		t.Errorf("RawValue = %v, want true", df.RawValue)
	}
	if df.FriendlyValue != "true" {
		t.Errorf("FriendlyValue = %q, want \"true\"", df.FriendlyValue)
	}

	df, err = DecodeField([]byte{0x00}, field)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if df.FriendlyValue != "false" {
		t.Errorf("FriendlyValue = %q, want \"false\"", df.FriendlyValue)
	}
}

func TestDecodeFieldEnum(t *testing.T) {
	field := &icd.FieldDefinition{
		Name:       "State",
		TypeName:   "Enum",
		LengthBits: 8,
		EnumMappings: map[uint64]string{
			0: "IDLE",
			1: "CONNECTED",
		},
	}

	df, err := DecodeField([]byte{0x01}, field)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if df.FriendlyValue != "CONNECTED" {
		t.Errorf("FriendlyValue = %q, want \"CONNECTED\"", df.FriendlyValue)
	}

	// Unmapped raw values fall back to their decimal form.
	df, err = DecodeField([]byte{0x07}, field)
	if err != nil {
		t.Fatalf("DecodeField: %v", err)
	}
	if df.FriendlyValue != "7" {
		t.Errorf("FriendlyValue = %q, want \"7\"", df.FriendlyValue)
	}
}

func TestDecodeFieldErrorsAreFieldDecodingErrors(t *testing.T) {
	field := &icd.FieldDefinition{Name: "Tail", TypeName: "Uint32", OffsetBytes: 10, LengthBits: 32}

	_, err := DecodeField([]byte{0x01}, field)
	fde, ok := err.(*FieldDecodingError)
	if !ok {
		t.Fatalf("expected *FieldDecodingError, got %T (%v)", err, err)
	}
	if fde.Field != "Tail" {
		t.Errorf("Field = %q, want \"Tail\"", fde.Field)
	}
	if _, ok := fde.Err.(*PayloadTooShortError); !ok {
		t.Errorf("wrapped error = %T, want *PayloadTooShortError", fde.Err)
	}
}

func TestDecodedFieldAccessors(t *testing.T) {
	u := DecodedField{RawValue: uint64(9)}
	if v, ok := u.Uint(); !ok || v != 9 {
		t.Errorf("Uint() = %d,%v, want 9,true", v, ok)
	}
	if v, ok := u.Float(); !ok || v != 9 {
		t.Errorf("Float() = %v,%v, want 9,true", v, ok)
	}

	neg := DecodedField{RawValue: int64(-3)}
	if _, ok := neg.Uint(); ok {
		t.Error("Uint() on negative value should not be ok")
	}
	if v, ok := neg.Float(); !ok || v != -3 {
		t.Errorf("Float() = %v,%v, want -3,true", v, ok)
	}

	b := DecodedField{RawValue: true}
	if v, ok := b.Uint(); !ok || v != 1 {
		t.Errorf("Uint() on bool = %d,%v, want 1,true", v, ok)
	}
	if _, ok := b.Float(); ok {
		t.Error("Float() on bool should not be ok")
	}
}

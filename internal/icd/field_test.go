package icd

import (
	"testing"
)

func TestFieldKind(t *testing.T) {
	tests := []struct {
		typeName string
		want     FieldKind
	}{
		{"Uint8", KindUnsigned},
		{"Uint32", KindUnsigned},
		{"Int16", KindSigned},
		{"sint8", KindSigned},
		{"Float32", KindFloat},
		{"Bool", KindBool},
		{"Enum", KindEnum},
		{"Table 7-2803", KindTableRef},
		{"table 11-56", KindTableRef},
		{"SomethingElse", KindUnsigned},
	}
	for _, tt := range tests {
		f := FieldDefinition{TypeName: tt.typeName}
		if got := f.Kind(); got != tt.want {
			t.Errorf("Kind(%q) = %s, want %s", tt.typeName, got, tt.want)
		}
	}
}

func TestTableRef(t *testing.T) {
	f := FieldDefinition{TypeName: "Table 7-2803"}
	ref, ok := f.TableRef()
	if !ok || ref != "7-2803" {
		t.Errorf("TableRef() = %q,%v, want \"7-2803\",true", ref, ok)
	}

	f = FieldDefinition{TypeName: "Uint8"}
	if _, ok := f.TableRef(); ok {
		t.Error("TableRef() on Uint8 should not match")
	}
}

func TestIsRuntimeArray(t *testing.T) {
	f := FieldDefinition{TypeName: "Table 7-2", Count: RuntimeCount}
	if !f.IsRuntimeArray() {
		t.Error("table ref with runtime count should be a runtime array")
	}

	f.Count = 1
	if f.IsRuntimeArray() {
		t.Error("fixed-count table ref is not a runtime array")
	}

	f = FieldDefinition{TypeName: "Uint8", Count: RuntimeCount}
	if f.IsRuntimeArray() {
		t.Error("non-ref field is not a runtime array")
	}
}

func TestEnumLabelFallsBackToDecimal(t *testing.T) {
	f := FieldDefinition{EnumMappings: map[uint64]string{0: "OFF", 1: "ON"}}
	if got := f.EnumLabel(1); got != "ON" {
		t.Errorf("EnumLabel(1) = %q, want \"ON\"", got)
	}
	if got := f.EnumLabel(7); got != "7" {
		t.Errorf("EnumLabel(7) = %q, want \"7\"", got)
	}

	var bare FieldDefinition
	if got := bare.EnumLabel(3); got != "3" {
		t.Errorf("EnumLabel with no legend = %q, want \"3\"", got)
	}
}

func TestParseEnumLegend(t *testing.T) {
	legend := ParseEnumLegend("RRC state. 0 = IDLE, 1 = CONNECTED, 2 = SUSPENDED")
	if len(legend) != 3 {
		t.Fatalf("got %d entries, want 3: %v", len(legend), legend)
	}
	if legend[0] != "IDLE" || legend[2] != "SUSPENDED" {
		t.Errorf("legend = %v", legend)
	}

	if got := ParseEnumLegend("plain counter with no legend"); got != nil {
		t.Errorf("expected nil legend, got %v", got)
	}
}

func TestFindTableRefs(t *testing.T) {
	f := FieldDefinition{
		TypeName:    "Table 7-1",
		Description: "Record layout per Table 7-2; see also Table 7-1.",
	}
	refs := f.FindTableRefs()
	if len(refs) != 2 || refs[0] != "7-1" || refs[1] != "7-2" {
		t.Errorf("FindTableRefs() = %v, want [7-1 7-2]", refs)
	}
}

func TestFieldValidate(t *testing.T) {
	valid := FieldDefinition{Name: "X", TypeName: "Uint8", LengthBits: 8}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid field rejected: %v", err)
	}

	// Table refs carry no length of their own.
	ref := FieldDefinition{Name: "Sub", TypeName: "Table 7-2", Count: 1}
	if err := ref.Validate(); err != nil {
		t.Errorf("table ref rejected: %v", err)
	}

	bad := []FieldDefinition{
		{Name: "", TypeName: "Uint8", LengthBits: 8},
		{Name: "X", TypeName: "Uint8", LengthBits: 0},
		{Name: "X", TypeName: "Uint8", LengthBits: 8, OffsetBits: 9},
		{Name: "X", TypeName: "Uint8", LengthBits: 8, OffsetBytes: -1},
		{Name: "X", TypeName: "Uint8", LengthBits: 8, Count: -2},
	}
	for i, f := range bad {
		if err := f.Validate(); err == nil {
			t.Errorf("bad field %d accepted", i)
		}
	}
}

func TestVersionFieldSizeBytes(t *testing.T) {
	tests := []struct {
		vf   VersionField
		want int
	}{
		{VersionField{LengthBits: 32}, 4},
		{VersionField{LengthBits: 8}, 1},
		{VersionField{OffsetBytes: 2, LengthBits: 16}, 4},
		{VersionField{OffsetBits: 4, LengthBits: 8}, 2},
	}
	for _, tt := range tests {
		if got := tt.vf.SizeBytes(); got != tt.want {
			t.Errorf("SizeBytes(%+v) = %d, want %d", tt.vf, got, tt.want)
		}
	}
}

func TestParseLogcodeID(t *testing.T) {
	tests := []struct {
		in   string
		want uint16
	}{
		{"0xB888", 0xB888},
		{"0xb888", 0xB888},
		{"B888", 0xB888},
		{"47240", 47240},
		{" 0xB888 ", 0xB888},
	}
	for _, tt := range tests {
		got, err := ParseLogcodeID(tt.in)
		if err != nil {
			t.Errorf("ParseLogcodeID(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogcodeID(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "zz", "0x10000", "not a logcode"} {
		if _, err := ParseLogcodeID(bad); err == nil {
			t.Errorf("ParseLogcodeID(%q) accepted", bad)
		}
	}
}

func TestTableDefinitionDependencies(t *testing.T) {
	table, err := NewTableDefinition("7-1", []FieldDefinition{
		{Name: "A", TypeName: "Uint8", LengthBits: 8},
		{Name: "Sub1", TypeName: "Table 7-2", Count: 1},
		{Name: "Sub2", TypeName: "Table 7-3", Count: RuntimeCount},
		{Name: "Sub3", TypeName: "Table 7-2", OffsetBytes: 4, Count: 1},
	})
	if err != nil {
		t.Fatalf("NewTableDefinition: %v", err)
	}
	deps := table.Dependencies()
	if len(deps) != 2 || deps[0] != "7-2" || deps[1] != "7-3" {
		t.Errorf("Dependencies() = %v, want [7-2 7-3]", deps)
	}
}

func TestNewTableDefinitionRejectsDuplicates(t *testing.T) {
	_, err := NewTableDefinition("7-1", []FieldDefinition{
		{Name: "A", TypeName: "Uint8", LengthBits: 8},
		{Name: "A", TypeName: "Uint8", OffsetBytes: 1, LengthBits: 8},
	})
	if err == nil {
		t.Error("duplicate field names accepted")
	}
}

package postproc

import (
	"math"
	"testing"

	"github.com/banshee-data/logcode.report/internal/decode"
)

func TestSummarizeRecords(t *testing.T) {
	fields := []decode.DecodedField{
		{Name: "Timestamp", RawValue: uint64(100)}, // not record-qualified
		{Name: "RSRP (Record 0)", RawValue: int64(-80)},
		{Name: "RSRP (Record 1)", RawValue: int64(-90)},
		{Name: "RSRP (Record 2)", RawValue: int64(-100)},
		{Name: "State (Record 0)", FriendlyValue: "CONNECTED"}, // non-numeric
	}

	summaries := SummarizeRecords(fields)
	if len(summaries) != 1 {
		t.Fatalf("got %d summaries, want 1: %+v", len(summaries), summaries)
	}

	s := summaries[0]
	if s.Name != "RSRP" {
		t.Errorf("Name = %q, want \"RSRP\"", s.Name)
	}
	if s.Count != 3 {
		t.Errorf("Count = %d, want 3", s.Count)
	}
	if s.Mean != -90 {
		t.Errorf("Mean = %v, want -90", s.Mean)
	}
	if s.Min != -100 || s.Max != -80 {
		t.Errorf("Min/Max = %v/%v, want -100/-80", s.Min, s.Max)
	}
	if math.Abs(s.StdDev-10) > 1e-9 {
		t.Errorf("StdDev = %v, want 10", s.StdDev)
	}
}

func TestSummarizeRecordsMultipleFieldsSorted(t *testing.T) {
	fields := []decode.DecodedField{
		{Name: "Z Metric (Record 0)", RawValue: uint64(1)},
		{Name: "A Metric (Record 0)", RawValue: uint64(2)},
	}

	summaries := SummarizeRecords(fields)
	if len(summaries) != 2 {
		t.Fatalf("got %d summaries, want 2", len(summaries))
	}
	if summaries[0].Name != "A Metric" || summaries[1].Name != "Z Metric" {
		t.Errorf("order = [%s %s], want sorted by name", summaries[0].Name, summaries[1].Name)
	}
}

func TestSummarizeAcrossPackets(t *testing.T) {
	packets := []*decode.DecodedPacket{
		{Fields: []decode.DecodedField{{Name: "BLER", RawValue: float64(10)}}},
		{Fields: []decode.DecodedField{{Name: "BLER", RawValue: float64(20)}}},
		{Fields: []decode.DecodedField{{Name: "Other", RawValue: float64(99)}}},
	}

	summary, ok := SummarizeAcrossPackets(packets, "BLER")
	if !ok {
		t.Fatal("expected a summary")
	}
	if summary.Count != 2 || summary.Mean != 15 {
		t.Errorf("Count=%d Mean=%v, want 2/15", summary.Count, summary.Mean)
	}

	if _, ok := SummarizeAcrossPackets(packets, "Absent"); ok {
		t.Error("expected no summary for absent field")
	}
}

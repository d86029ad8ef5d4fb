package postproc

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/logcode.report/internal/decode"
)

// FieldSummary aggregates one field's values across the record instances of
// a decoded packet (or across a packet sequence, when fed multiple packets).
type FieldSummary struct {
	Name   string  `json:"name"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// SummarizeRecords groups record-qualified fields ("RSRP (Record 0)",
// "RSRP (Record 1)", ...) by their base name and computes per-field
// aggregates. Non-numeric and non-record fields are ignored.
func SummarizeRecords(fields []decode.DecodedField) []FieldSummary {
	groups := map[string][]float64{}
	for i := range fields {
		m := recordSuffixPattern.FindStringIndex(fields[i].Name)
		if m == nil {
			continue
		}
		v, ok := fields[i].Float()
		if !ok {
			continue
		}
		base := trimSpaceRight(fields[i].Name[:m[0]])
		groups[base] = append(groups[base], v)
	}
	return summarize(groups)
}

// SummarizeAcrossPackets aggregates one named field over a packet sequence,
// for trend reporting.
func SummarizeAcrossPackets(packets []*decode.DecodedPacket, fieldName string) (FieldSummary, bool) {
	var values []float64
	for _, p := range packets {
		if f, ok := p.Field(fieldName); ok {
			if v, ok := f.Float(); ok {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		return FieldSummary{}, false
	}
	return newSummary(fieldName, values), true
}

func summarize(groups map[string][]float64) []FieldSummary {
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]FieldSummary, 0, len(names))
	for _, name := range names {
		out = append(out, newSummary(name, groups[name]))
	}
	return out
}

func newSummary(name string, values []float64) FieldSummary {
	s := FieldSummary{
		Name:  name,
		Count: len(values),
		Mean:  stat.Mean(values, nil),
		Min:   values[0],
		Max:   values[0],
	}
	if len(values) > 1 {
		s.StdDev = stat.StdDev(values, nil)
	}
	for _, v := range values {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	return s
}

func trimSpaceRight(s string) string {
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

// Package postproc holds post-decode hooks and aggregates. Hooks read the
// decoder's ordered field list and fill in derived fields — values the ICDs
// document as columns but that are computed from sibling counters rather
// than carried in the payload. Nothing here is consulted by the decode core;
// callers register what they need.
package postproc

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/banshee-data/logcode.report/internal/decode"
)

// PDSCHStatsLogcode is the NR5G MAC PDSCH statistics logcode, whose BLER
// columns are derived from the CRC pass/fail counters.
const PDSCHStatsLogcode = 0xB888

var recordSuffixPattern = regexp.MustCompile(`\(Record (\d+)\)$`)

// PDSCHStatsHook computes BLER and residual BLER, top-level and per carrier
// record:
//
//	BLER          = CRC fails / (CRC passes + CRC fails) × 100
//	Residual BLER = HARQ failures / (CRC passes + CRC fails) × 100
//
// A zero transmission total leaves the rate at 0 rather than dividing by
// zero. Fields the payload does not carry are left untouched.
func PDSCHStatsHook(fields []decode.DecodedField) []decode.DecodedField {
	byName := make(map[string]int, len(fields))
	for i := range fields {
		byName[fields[i].Name] = i
	}

	// Suffixes: "" for the top-level counters, " (Record N)" per carrier.
	suffixes := map[string]bool{"": true}
	for i := range fields {
		if m := recordSuffixPattern.FindStringSubmatch(fields[i].Name); m != nil {
			suffixes[" (Record "+m[1]+")"] = true
		}
	}

	for suffix := range suffixes {
		applyBLER(fields, byName, suffix)
	}
	return fields
}

func applyBLER(fields []decode.DecodedField, byName map[string]int, suffix string) {
	passIdx, okPass := byName["Num CRC Pass TB"+suffix]
	failIdx, okFail := byName["Num CRC Fail TB"+suffix]
	if !okPass || !okFail {
		return
	}
	pass, ok1 := fields[passIdx].Float()
	fail, ok2 := fields[failIdx].Float()
	if !ok1 || !ok2 {
		return
	}
	total := pass + fail

	if blerIdx, ok := byName["BLER"+suffix]; ok {
		setRate(&fields[blerIdx], fail, total)
	}
	if resIdx, ok := byName["Residual BLER"+suffix]; ok {
		if harqIdx, ok := byName["HARQ Failure"+suffix]; ok {
			if harq, ok := fields[harqIdx].Float(); ok {
				setRate(&fields[resIdx], harq, total)
			}
		}
	}
}

func setRate(field *decode.DecodedField, numerator, total float64) {
	rate := 0.0
	if total > 0 {
		rate = numerator / total * 100
	}
	// Round to two decimals so the stored raw value matches the rendering.
	rate, _ = strconv.ParseFloat(fmt.Sprintf("%.2f", rate), 64)
	field.RawValue = rate
	field.FriendlyValue = fmt.Sprintf("%.2f%%", rate)
}

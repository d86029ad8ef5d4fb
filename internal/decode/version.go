package decode

import (
	"fmt"

	"github.com/banshee-data/logcode.report/internal/icd"
)

// VersionInfo is the resolved version discriminator of one payload.
type VersionInfo struct {
	Value       uint64 `json:"value"`
	Hex         string `json:"hex"`
	TableNumber string `json:"table_number"`
}

// ResolveVersion reads the version field from the payload and maps it to a
// table number. The lookup is strict: an unmapped version is an error, never
// a nearest-match guess — selecting a wrong table decodes garbage with full
// confidence, which is worse than failing.
func ResolveVersion(payload []byte, schema *icd.LogcodeSchema) (VersionInfo, error) {
	vf := schema.VersionField
	value, err := ExtractBits(payload, vf.OffsetBytes, vf.OffsetBits, vf.LengthBits)
	if err != nil {
		if short, ok := err.(*PayloadTooShortError); ok {
			short.Field = "version"
			return VersionInfo{}, short
		}
		return VersionInfo{}, fmt.Errorf("failed to read version field: %v", err)
	}

	tableNumber, ok := schema.VersionMap[value]
	if !ok {
		return VersionInfo{}, &VersionNotFoundError{LogcodeID: schema.LogcodeID, Version: value}
	}

	return VersionInfo{
		Value:       value,
		Hex:         fmt.Sprintf("0x%X", value),
		TableNumber: tableNumber,
	}, nil
}

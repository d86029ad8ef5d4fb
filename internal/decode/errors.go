package decode

import (
	"fmt"
	"strings"

	"github.com/banshee-data/logcode.report/internal/icd"
)

// Decode failures split into two tiers. Header and version failures are
// fatal: without a resolved table no partial result means anything, so they
// surface as returned errors. Everything below that level is recovered
// locally — the failing field is skipped, a FieldError lands in the result's
// error list, and decoding continues.

// MalformedInputError reports a packet too small to hold the fixed header.
type MalformedInputError struct {
	Needed int
	Got    int
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed packet: header needs %d bytes, got %d", e.Needed, e.Got)
}

// PayloadTooShortError reports a field bit window extending past the end of
// the payload.
type PayloadTooShortError struct {
	Field  string
	Needed int // bytes
	Got    int // bytes
}

func (e *PayloadTooShortError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("payload too short: field %q needs %d bytes, got %d", e.Field, e.Needed, e.Got)
	}
	return fmt.Sprintf("payload too short: need %d bytes, got %d", e.Needed, e.Got)
}

// MissingDependencyError reports a referenced table that neither the schema
// nor its TableProvider could supply.
type MissingDependencyError struct {
	LogcodeID   uint16
	TableNumber string
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("logcode %s: referenced table %s is not resolvable",
		icd.FormatLogcodeID(e.LogcodeID), e.TableNumber)
}

// CyclicDependencyError reports a table that transitively references itself.
// Path holds the expansion chain from the root to the repeated table so the
// offending reference can be located in the source document.
type CyclicDependencyError struct {
	LogcodeID   uint16
	TableNumber string
	Path        []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("logcode %s: cyclic table reference %s (path %s)",
		icd.FormatLogcodeID(e.LogcodeID), e.TableNumber, strings.Join(e.Path, " -> "))
}

// VersionNotFoundError reports a version value with no table mapping. There
// is no fuzzy fallback at decode time.
type VersionNotFoundError struct {
	LogcodeID uint16
	Version   uint64
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("logcode %s: version %d (0x%X) not found in version map",
		icd.FormatLogcodeID(e.LogcodeID), e.Version, e.Version)
}

// RepeatingStructureError reports a runtime record array whose repetition
// count could not be resolved by any configured strategy.
type RepeatingStructureError struct {
	Field  string
	Reason string
}

func (e *RepeatingStructureError) Error() string {
	return fmt.Sprintf("repeating structure %q: %s", e.Field, e.Reason)
}

// FieldDecodingError wraps a single-field interpretation failure with the
// field's identity and position. It is recorded, not propagated.
type FieldDecodingError struct {
	Field       string
	OffsetBytes int
	OffsetBits  int
	Err         error
}

func (e *FieldDecodingError) Error() string {
	return fmt.Sprintf("failed to decode field %q at byte %d bit %d: %v",
		e.Field, e.OffsetBytes, e.OffsetBits, e.Err)
}

func (e *FieldDecodingError) Unwrap() error { return e.Err }

// FieldError is the serializable form of a recovered field-level failure,
// carried on the DecodedPacket.
type FieldError struct {
	Field       string `json:"field"`
	OffsetBytes int    `json:"offset_bytes"`
	OffsetBits  int    `json:"offset_bits"`
	Message     string `json:"message"`
}

func fieldError(err *FieldDecodingError) FieldError {
	return FieldError{
		Field:       err.Field,
		OffsetBytes: err.OffsetBytes,
		OffsetBits:  err.OffsetBits,
		Message:     err.Err.Error(),
	}
}

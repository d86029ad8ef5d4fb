// Package decode is the schema-driven binary decoding engine. It turns a
// parsed log packet plus a logcode schema into an ordered list of typed
// field values: bit-level extraction, table-reference expansion, version
// resolution, runtime record arrays, and per-field error accumulation.
//
// Decode is a single synchronous pass with no I/O; schemas and expanded
// layouts are immutable once built and safe to share across goroutines. The
// only mutable shared state lives in Cache.
package decode

import (
	"fmt"
)

// MaxFieldBits is the widest bit window ExtractBits supports. With a bit
// offset of up to 7, the covering byte window of a 57-bit field still fits
// an 8-byte little-endian assembly; wider fields do not occur in the ICDs.
const MaxFieldBits = 57

// ExtractBits reads an unsigned value of lengthBits bits starting at
// offsetBytes+offsetBits from payload. The covering byte window is assembled
// little-endian (least significant byte first), shifted right by the bit
// offset, then masked to the field width. That single formula handles
// byte-aligned and straddling fields alike: LE assembly followed by a right
// shift reconstructs any bit window spanning multiple bytes.
func ExtractBits(payload []byte, offsetBytes, offsetBits, lengthBits int) (uint64, error) {
	if offsetBits < 0 || offsetBits > 7 {
		return 0, fmt.Errorf("bit offset %d out of range 0-7", offsetBits)
	}
	if lengthBits <= 0 || lengthBits > MaxFieldBits {
		return 0, fmt.Errorf("bit length %d out of range 1-%d", lengthBits, MaxFieldBits)
	}
	if offsetBytes < 0 {
		return 0, fmt.Errorf("negative byte offset %d", offsetBytes)
	}

	endByte := offsetBytes + (offsetBits+lengthBits+7)/8
	if endByte > len(payload) {
		return 0, &PayloadTooShortError{Needed: endByte, Got: len(payload)}
	}

	var window uint64
	for i := endByte - 1; i >= offsetBytes; i-- {
		window = window<<8 | uint64(payload[i])
	}

	return (window >> uint(offsetBits)) & (1<<uint(lengthBits) - 1), nil
}

// signExtend converts raw to a two's-complement signed value of the given
// bit width.
func signExtend(raw uint64, lengthBits int) int64 {
	signBit := uint64(1) << uint(lengthBits-1)
	if raw&signBit != 0 {
		return int64(raw) - int64(uint64(1)<<uint(lengthBits))
	}
	return int64(raw)
}

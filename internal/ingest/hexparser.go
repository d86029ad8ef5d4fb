// Package ingest turns raw input — hex log dumps and packet captures — into
// ParsedPackets for the decoder. It validates shape (hex alphabet, declared
// length) but never interprets payload contents.
package ingest

import (
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/banshee-data/logcode.report/internal/icd"
)

// Hex log dumps arrive as labelled sections:
//
//	Length: 61
//	Header: 3D 00 23 B8 CD 0F 67 95 F5 A6 06 01
//	Payload:
//	02 00 03 00 01 01 00 38 00 3A 00 7D
//	...
//
// Separators and line breaks inside the hex are free-form.

// MalformedHexError reports input that does not match the expected hex log
// shape.
type MalformedHexError struct {
	Reason string
}

func (e *MalformedHexError) Error() string {
	return fmt.Sprintf("malformed hex input: %s", e.Reason)
}

// LengthMismatchError reports a declared packet length that disagrees with
// the actual byte count.
type LengthMismatchError struct {
	Declared int
	Actual   int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("length mismatch: declared %d bytes, got %d", e.Declared, e.Actual)
}

var (
	lengthPattern  = regexp.MustCompile(`(?i)Length:\s*(\d+)`)
	sectionPattern = regexp.MustCompile(`(?i)(Header|Payload):\s*([0-9A-Fa-f\s]*)`)
)

// ParseHexInput parses one hex log dump into a ParsedPacket.
func ParseHexInput(input string) (*icd.ParsedPacket, error) {
	length, err := extractLength(input)
	if err != nil {
		return nil, err
	}

	sections := map[string]string{}
	for _, m := range sectionPattern.FindAllStringSubmatch(input, -1) {
		sections[strings.ToLower(m[1])] = m[2]
	}

	headerHex, ok := sections["header"]
	if !ok || strings.TrimSpace(headerHex) == "" {
		return nil, &MalformedHexError{Reason: "missing or empty Header section"}
	}
	payloadHex, ok := sections["payload"]
	if !ok || strings.TrimSpace(payloadHex) == "" {
		return nil, &MalformedHexError{Reason: "missing or empty Payload section"}
	}

	header, err := HexStringToBytes(headerHex)
	if err != nil {
		return nil, err
	}
	payload, err := HexStringToBytes(payloadHex)
	if err != nil {
		return nil, err
	}

	if total := len(header) + len(payload); total != length {
		return nil, &LengthMismatchError{Declared: length, Actual: total}
	}

	return &icd.ParsedPacket{
		Length:  length,
		Header:  header,
		Payload: payload,
		Raw:     input,
	}, nil
}

func extractLength(input string) (int, error) {
	m := lengthPattern.FindStringSubmatch(input)
	if m == nil {
		return 0, &MalformedHexError{Reason: "could not parse Length field"}
	}
	length, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, &MalformedHexError{Reason: fmt.Sprintf("invalid length value %q", m[1])}
	}
	return length, nil
}

// HexStringToBytes decodes a hex string, tolerating spaces, dashes, colons
// and line breaks between bytes and an optional 0x prefix.
func HexStringToBytes(s string) ([]byte, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', ':', '\n', '\r', '\t':
			return -1
		}
		return r
	}, s)
	cleaned = strings.TrimPrefix(strings.TrimPrefix(cleaned, "0x"), "0X")

	if len(cleaned)%2 != 0 {
		return nil, &MalformedHexError{Reason: "hex string has odd length"}
	}
	out, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, &MalformedHexError{Reason: fmt.Sprintf("invalid hex characters: %v", err)}
	}
	return out, nil
}

// BytesToHexString renders bytes as space-separated uppercase hex, the same
// layout the log dumps use.
func BytesToHexString(data []byte) string {
	var b strings.Builder
	for i, v := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02X", v)
	}
	return b.String()
}

// SplitPackets splits a multi-packet hex log file into individual packet
// chunks, each starting at a Length: line.
func SplitPackets(input string) []string {
	indices := lengthPattern.FindAllStringIndex(input, -1)
	if len(indices) == 0 {
		return nil
	}
	var chunks []string
	for i, idx := range indices {
		end := len(input)
		if i+1 < len(indices) {
			end = indices[i+1][0]
		}
		chunk := strings.TrimSpace(input[idx[0]:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

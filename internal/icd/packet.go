package icd

// Log packet header layout (12 bytes, all little-endian):
//
//	[0:2]   total length (uint16)
//	[2:4]   logcode id (uint16)
//	[4:8]   timestamp (uint32)
//	[8:12]  sequence (uint32)
const HeaderSize = 12

// ParsedPacket is a raw log packet after input parsing: header and payload
// split apart, with the declared length kept for validation. It carries no
// decode state; one is created per decode call and discarded after.
type ParsedPacket struct {
	Length  int    // declared total length in bytes, 0 if the input had none
	Header  []byte // raw header bytes, HeaderSize or longer
	Payload []byte // everything after the header
	Raw     string // original textual input, kept for diagnostics
}

// Header is the decoded fixed packet header.
type Header struct {
	LengthBytes int    `json:"length_bytes"`
	LogcodeID   uint16 `json:"logcode_id"`
	Timestamp   uint32 `json:"timestamp"`
	Sequence    uint32 `json:"sequence"`
}

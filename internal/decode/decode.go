package decode

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/banshee-data/logcode.report/internal/icd"
)

// DecodedPacket is the result of one decode call: identity, resolved
// version, the ordered field list, and any non-fatal field errors collected
// along the way. Field order is stable (schema declaration order with
// references inlined in place), so post-processing hooks can rely on it.
type DecodedPacket struct {
	LogcodeID   uint16         `json:"logcode_id"`
	LogcodeHex  string         `json:"logcode"`
	LogcodeName string         `json:"logcode_name,omitempty"`
	Version     uint64         `json:"version"`
	VersionHex  string         `json:"version_hex"`
	TableNumber string         `json:"table_number"`
	Header      icd.Header     `json:"header"`
	Fields      []DecodedField `json:"fields"`
	Errors      []FieldError   `json:"errors,omitempty"`
}

// Field returns the first decoded field with the given name.
func (p *DecodedPacket) Field(name string) (*DecodedField, bool) {
	for i := range p.Fields {
		if p.Fields[i].Name == name {
			return &p.Fields[i], true
		}
	}
	return nil, false
}

// Hook reads an already-decoded field list and returns it with derived
// fields appended or recomputed. Hooks run after the core decode pass, in
// registration order, and must not reorder the incoming fields.
type Hook func(fields []DecodedField) []DecodedField

// Decoder composes the decode pipeline: header read, schema fetch, version
// resolution, layout expansion, field extraction and repeating structures,
// with per-field error accumulation. Safe for concurrent use; each Decode
// call is an independent linear pass over shared immutable schema state.
type Decoder struct {
	cache    *Cache
	expander *Expander
	repeats  *RepeatDecoder

	hookMu sync.RWMutex
	hooks  map[uint16][]Hook
}

// Config carries the decoder's tunables. Zero values select defaults.
type Config struct {
	CacheCapacity   int
	FailureTTL      time.Duration
	CountStrategies []CountStrategy

	// NonStructuralPatterns overrides the field-name patterns excluded from
	// record sizing. Nil keeps the defaults.
	NonStructuralPatterns []*regexp.Regexp
}

// NewDecoder wires a decoder from a schema source and a table provider.
func NewDecoder(source SchemaSource, provider icd.TableProvider, cfg Config) *Decoder {
	expander := NewExpander(provider)
	if cfg.NonStructuralPatterns != nil {
		expander.SetNonStructuralPatterns(cfg.NonStructuralPatterns)
	}
	d := &Decoder{
		cache:    NewCache(source, expander, cfg.CacheCapacity),
		expander: expander,
		repeats:  NewRepeatDecoder(expander, cfg.CountStrategies),
		hooks:    make(map[uint16][]Hook),
	}
	if cfg.FailureTTL > 0 {
		d.cache.SetFailureTTL(cfg.FailureTTL)
	}
	return d
}

// Cache exposes the decoder's schema cache for lifecycle control (eviction
// callbacks, capacity inspection).
func (d *Decoder) Cache() *Cache { return d.cache }

// RegisterHook attaches a post-processing hook to one logcode. Hooks are a
// boundary for derived metrics (rates, ratios); the core never registers
// any itself.
func (d *Decoder) RegisterHook(logcodeID uint16, h Hook) {
	d.hookMu.Lock()
	defer d.hookMu.Unlock()
	d.hooks[logcodeID] = append(d.hooks[logcodeID], h)
}

// DecodeHeader reads the fixed 12-byte packet header.
func DecodeHeader(header []byte) (icd.Header, error) {
	if len(header) < icd.HeaderSize {
		return icd.Header{}, &MalformedInputError{Needed: icd.HeaderSize, Got: len(header)}
	}
	return icd.Header{
		LengthBytes: int(binary.LittleEndian.Uint16(header[0:2])),
		LogcodeID:   binary.LittleEndian.Uint16(header[2:4]),
		Timestamp:   binary.LittleEndian.Uint32(header[4:8]),
		Sequence:    binary.LittleEndian.Uint32(header[8:12]),
	}, nil
}

// Decode runs the full pipeline over one parsed packet. Header and version
// failures abort with an error; field-level failures are recorded on the
// result and decoding continues.
func (d *Decoder) Decode(pkt *icd.ParsedPacket) (*DecodedPacket, error) {
	header, err := DecodeHeader(pkt.Header)
	if err != nil {
		return nil, err
	}

	schema, err := d.cache.Schema(header.LogcodeID)
	if err != nil {
		return nil, fmt.Errorf("logcode %s: schema build failed: %w",
			icd.FormatLogcodeID(header.LogcodeID), err)
	}

	version, err := ResolveVersion(pkt.Payload, schema)
	if err != nil {
		return nil, err
	}

	baseBytes := schema.VersionField.SizeBytes()
	layout, err := d.cache.Layout(schema, version.TableNumber, baseBytes)
	if err != nil {
		return nil, fmt.Errorf("logcode %s table %s: %w",
			icd.FormatLogcodeID(header.LogcodeID), version.TableNumber, err)
	}

	result := &DecodedPacket{
		LogcodeID:   header.LogcodeID,
		LogcodeHex:  icd.FormatLogcodeID(header.LogcodeID),
		LogcodeName: schema.LogcodeName,
		Version:     version.Value,
		VersionHex:  version.Hex,
		TableNumber: version.TableNumber,
		Header:      header,
	}

	for i := range layout.Fields {
		field := layout.Fields[i]

		if field.IsRuntimeArray() {
			rep, err := d.repeats.Decode(pkt.Payload, &field, result.Fields, schema)
			if err != nil {
				result.Errors = append(result.Errors, FieldError{
					Field:       field.Name,
					OffsetBytes: field.OffsetBytes,
					OffsetBits:  field.OffsetBits,
					Message:     err.Error(),
				})
				continue
			}
			result.Fields = append(result.Fields, rep.Fields...)
			result.Errors = append(result.Errors, rep.Errors...)
			if rep.Truncated {
				result.Errors = append(result.Errors, FieldError{
					Field:       field.Name,
					OffsetBytes: field.OffsetBytes,
					Message:     fmt.Sprintf("record array truncated: only %d records fit the payload", rep.Count),
				})
			}
			continue
		}

		df, err := DecodeField(pkt.Payload, &field)
		if err != nil {
			if fde, ok := err.(*FieldDecodingError); ok {
				result.Errors = append(result.Errors, fieldError(fde))
				continue
			}
			return nil, err
		}
		result.Fields = append(result.Fields, df)
	}

	d.hookMu.RLock()
	hooks := d.hooks[header.LogcodeID]
	d.hookMu.RUnlock()
	for _, h := range hooks {
		result.Fields = h(result.Fields)
	}

	return result, nil
}

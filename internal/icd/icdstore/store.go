// Package icdstore persists logcode schemas and decode run summaries in
// sqlite. It is the durable side of the TableProvider/SchemaSource seams:
// schema documents are imported once (typically from an ICD extraction
// tool's JSON output) and served to the decoder from here.
package icdstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/logcode.report/internal/icd"
)

// Store wraps the sqlite handle. It implements icd.TableProvider and the
// decoder's SchemaSource.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the schema store at path and applies any
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema store %s: %v", path, err)
	}
	s := &Store{db}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// LogcodeInfo is one row of the store's logcode listing.
type LogcodeInfo struct {
	LogcodeID  uint16 `json:"logcode_id"`
	LogcodeHex string `json:"logcode"`
	Name       string `json:"name"`
	Versions   int    `json:"versions"`
	Tables     int    `json:"tables"`
}

// ImportDocument stores a schema document, replacing any previous schema for
// the same logcode. Field order inside each table is preserved via an
// explicit position column.
func (s *Store) ImportDocument(doc *icd.SchemaDocument) error {
	schema, err := doc.Schema()
	if err != nil {
		return err
	}

	tx, err := s.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin import transaction: %v", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM logcode_versions WHERE logcode_id = ?`, schema.LogcodeID); err != nil {
		return fmt.Errorf("failed to clear old versions: %v", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO logcodes (logcode_id, name, version_offset_bytes, version_offset_bits, version_length_bits)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(logcode_id) DO UPDATE SET
			name = excluded.name,
			version_offset_bytes = excluded.version_offset_bytes,
			version_offset_bits = excluded.version_offset_bits,
			version_length_bits = excluded.version_length_bits
	`, schema.LogcodeID, schema.LogcodeName,
		schema.VersionField.OffsetBytes, schema.VersionField.OffsetBits, schema.VersionField.LengthBits); err != nil {
		return fmt.Errorf("failed to upsert logcode: %v", err)
	}

	for version, tableNumber := range schema.VersionMap {
		if _, err := tx.Exec(`
			INSERT INTO logcode_versions (logcode_id, version_value, table_number)
			VALUES (?, ?, ?)
		`, schema.LogcodeID, int64(version), tableNumber); err != nil {
			return fmt.Errorf("failed to insert version %d: %v", version, err)
		}
	}

	for number, table := range schema.Tables {
		if err := insertTable(tx, number, table); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %v", err)
	}
	return nil
}

func insertTable(tx *sql.Tx, number string, table *icd.TableDefinition) error {
	if _, err := tx.Exec(`DELETE FROM icd_fields WHERE table_number = ?`, number); err != nil {
		return fmt.Errorf("failed to clear table %s: %v", number, err)
	}
	if _, err := tx.Exec(`
		INSERT INTO icd_tables (table_number) VALUES (?)
		ON CONFLICT(table_number) DO NOTHING
	`, number); err != nil {
		return fmt.Errorf("failed to upsert table %s: %v", number, err)
	}

	for i := range table.Fields {
		f := &table.Fields[i]
		var enums any
		if len(f.EnumMappings) > 0 {
			blob, err := json.Marshal(f.EnumMappings)
			if err != nil {
				return fmt.Errorf("table %s field %q: failed to marshal enum mappings: %v", number, f.Name, err)
			}
			enums = string(blob)
		}
		if _, err := tx.Exec(`
			INSERT INTO icd_fields
				(table_number, position, name, type_name, count, offset_bytes, offset_bits, length_bits, description, enum_mappings, count_field)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, number, i, f.Name, f.TypeName, f.Count, f.OffsetBytes, f.OffsetBits, f.LengthBits, f.Description, enums, f.CountField); err != nil {
			return fmt.Errorf("table %s field %q: failed to insert: %v", number, f.Name, err)
		}
	}
	return nil
}

// SchemaForLogcode loads the complete schema for one logcode, including
// every table currently stored — table lookups during expansion then rarely
// need to come back through GetTable.
func (s *Store) SchemaForLogcode(logcodeID uint16) (*icd.LogcodeSchema, error) {
	schema := &icd.LogcodeSchema{
		LogcodeID:  logcodeID,
		VersionMap: map[uint64]string{},
		Tables:     map[string]*icd.TableDefinition{},
	}

	row := s.QueryRow(`
		SELECT name, version_offset_bytes, version_offset_bits, version_length_bits
		FROM logcodes WHERE logcode_id = ?
	`, logcodeID)
	if err := row.Scan(&schema.LogcodeName,
		&schema.VersionField.OffsetBytes, &schema.VersionField.OffsetBits, &schema.VersionField.LengthBits); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("logcode %s not found in schema store", icd.FormatLogcodeID(logcodeID))
		}
		return nil, fmt.Errorf("failed to load logcode %s: %v", icd.FormatLogcodeID(logcodeID), err)
	}

	rows, err := s.Query(`
		SELECT version_value, table_number FROM logcode_versions WHERE logcode_id = ?
	`, logcodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load versions for %s: %v", icd.FormatLogcodeID(logcodeID), err)
	}
	defer rows.Close()
	tableNumbers := map[string]bool{}
	for rows.Next() {
		var version int64
		var tableNumber string
		if err := rows.Scan(&version, &tableNumber); err != nil {
			return nil, fmt.Errorf("failed to scan version row: %v", err)
		}
		schema.VersionMap[uint64(version)] = tableNumber
		tableNumbers[tableNumber] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read version rows: %v", err)
	}

	// Pull the mapped tables and, transitively, everything they reference.
	// Anything missed here still resolves through GetTable at expansion
	// time.
	pending := make([]string, 0, len(tableNumbers))
	for n := range tableNumbers {
		pending = append(pending, n)
	}
	for len(pending) > 0 {
		number := pending[0]
		pending = pending[1:]
		if _, ok := schema.Tables[number]; ok {
			continue
		}
		table, err := s.GetTable(number)
		if err == icd.ErrTableNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		schema.Tables[number] = table
		pending = append(pending, table.Dependencies()...)
	}

	return schema, nil
}

// GetTable loads a single table definition. Implements icd.TableProvider.
func (s *Store) GetTable(tableNumber string) (*icd.TableDefinition, error) {
	rows, err := s.Query(`
		SELECT name, type_name, count, offset_bytes, offset_bits, length_bits, description, enum_mappings, count_field
		FROM icd_fields WHERE table_number = ? ORDER BY position
	`, tableNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to load table %s: %v", tableNumber, err)
	}
	defer rows.Close()

	var fields []icd.FieldDefinition
	for rows.Next() {
		var f icd.FieldDefinition
		var enums sql.NullString
		if err := rows.Scan(&f.Name, &f.TypeName, &f.Count, &f.OffsetBytes, &f.OffsetBits,
			&f.LengthBits, &f.Description, &enums, &f.CountField); err != nil {
			return nil, fmt.Errorf("failed to scan field row of table %s: %v", tableNumber, err)
		}
		if enums.Valid && enums.String != "" {
			if err := json.Unmarshal([]byte(enums.String), &f.EnumMappings); err != nil {
				return nil, fmt.Errorf("table %s field %q: corrupt enum mappings: %v", tableNumber, f.Name, err)
			}
		}
		fields = append(fields, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read field rows of table %s: %v", tableNumber, err)
	}
	if len(fields) == 0 {
		return nil, icd.ErrTableNotFound
	}

	return icd.NewTableDefinition(tableNumber, fields)
}

// ExportDocument rebuilds the exchange document for one logcode from the
// store.
func (s *Store) ExportDocument(logcodeID uint16) (*icd.SchemaDocument, error) {
	schema, err := s.SchemaForLogcode(logcodeID)
	if err != nil {
		return nil, err
	}
	return icd.BuildDocument(schema), nil
}

// ListLogcodes returns a summary row per stored logcode.
func (s *Store) ListLogcodes() ([]LogcodeInfo, error) {
	rows, err := s.Query(`
		SELECT l.logcode_id, l.name,
			(SELECT COUNT(*) FROM logcode_versions v WHERE v.logcode_id = l.logcode_id)
		FROM logcodes l ORDER BY l.logcode_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list logcodes: %v", err)
	}
	defer rows.Close()

	var out []LogcodeInfo
	for rows.Next() {
		var info LogcodeInfo
		var id int64
		if err := rows.Scan(&id, &info.Name, &info.Versions); err != nil {
			return nil, fmt.Errorf("failed to scan logcode row: %v", err)
		}
		info.LogcodeID = uint16(id)
		info.LogcodeHex = icd.FormatLogcodeID(info.LogcodeID)
		out = append(out, info)
	}
	return out, rows.Err()
}

// DecodeRun is a stored summary of one decode call, keyed by request ID.
type DecodeRun struct {
	RunID       string    `json:"run_id"`
	LogcodeID   uint16    `json:"logcode_id"`
	Version     uint64    `json:"version"`
	TableNumber string    `json:"table_number"`
	FieldCount  int       `json:"field_count"`
	ErrorCount  int       `json:"error_count"`
	Source      string    `json:"source,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordDecodeRun stores a decode summary.
func (s *Store) RecordDecodeRun(run DecodeRun) error {
	_, err := s.Exec(`
		INSERT INTO decode_runs (run_id, logcode_id, version_value, table_number, field_count, error_count, source)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.LogcodeID, int64(run.Version), run.TableNumber, run.FieldCount, run.ErrorCount, run.Source)
	if err != nil {
		return fmt.Errorf("failed to record decode run %s: %v", run.RunID, err)
	}
	return nil
}

// ListDecodeRuns returns the most recent decode summaries, newest first.
func (s *Store) ListDecodeRuns(limit int) ([]DecodeRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Query(`
		SELECT run_id, logcode_id, version_value, table_number, field_count, error_count, source, created_at
		FROM decode_runs ORDER BY created_at DESC, run_id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list decode runs: %v", err)
	}
	defer rows.Close()

	var out []DecodeRun
	for rows.Next() {
		var run DecodeRun
		var id, version int64
		if err := rows.Scan(&run.RunID, &id, &version, &run.TableNumber,
			&run.FieldCount, &run.ErrorCount, &run.Source, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decode run row: %v", err)
		}
		run.LogcodeID = uint16(id)
		run.Version = uint64(version)
		out = append(out, run)
	}
	return out, rows.Err()
}

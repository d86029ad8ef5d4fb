package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/banshee-data/logcode.report/internal/decode"
	"github.com/banshee-data/logcode.report/internal/icd"
	"github.com/banshee-data/logcode.report/internal/icd/icdstore"
	"github.com/banshee-data/logcode.report/internal/testutil"
)

const decodeBody = `Length: 20
Header: 14 00 88 B8 00 00 00 00 07 00 00 00
Payload:
03 00 03 00 01 01 B0 FF
`

func testServer(t *testing.T) *Server {
	t.Helper()
	store, err := icdstore.Open(filepath.Join(t.TempDir(), "api_test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	doc := &icd.SchemaDocument{
		LogcodeID:    "0xB888",
		LogcodeName:  "NR5G MAC PDSCH Stats",
		VersionField: icd.VersionField{LengthBits: 32},
		VersionMap:   map[string]string{"196611": "11-56"},
		Tables: map[string]icd.TableDocument{
			"11-56": {
				Fields: []icd.FieldDefinition{
					{Name: "Num Records", TypeName: "Uint8", LengthBits: 8},
					{
						Name: "State", TypeName: "Enum", OffsetBytes: 1, LengthBits: 8,
						EnumMappings: map[uint64]string{1: "CONNECTED"},
					},
					{Name: "Carrier Records", TypeName: "Table 11-57", OffsetBytes: 2, Count: icd.RuntimeCount},
				},
			},
			"11-57": {
				Fields: []icd.FieldDefinition{
					{Name: "RSRP", TypeName: "Int16", LengthBits: 16},
				},
			},
		},
	}
	if err := store.ImportDocument(doc); err != nil {
		t.Fatalf("failed to import schema: %v", err)
	}

	decoder := decode.NewDecoder(store, store, decode.Config{})
	return NewServer(decoder, store)
}

func TestDecodeEndpoint(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodPost, "/api/decode", decodeBody)
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		RunID  string               `json:"run_id"`
		Packet decode.DecodedPacket `json:"packet"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.RunID == "" {
		t.Error("run_id is empty")
	}
	if resp.Packet.LogcodeHex != "0xB888" {
		t.Errorf("logcode = %q, want \"0xB888\"", resp.Packet.LogcodeHex)
	}
	if got, _ := resp.Packet.Field("State"); got == nil || got.FriendlyValue != "CONNECTED" {
		t.Errorf("State field missing or wrong: %+v", got)
	}
	if got, _ := resp.Packet.Field("RSRP (Record 0)"); got == nil {
		t.Error("record field missing from response")
	}

	// The decode was recorded as a run.
	runs, err := server.store.ListDecodeRuns(10)
	testutil.AssertNoError(t, err)
	if len(runs) != 1 || runs[0].RunID != resp.RunID {
		t.Errorf("runs = %+v, want one run %s", runs, resp.RunID)
	}
}

func TestDecodeEndpointRejectsGet(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/api/decode", "")
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestDecodeEndpointMalformedBody(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodPost, "/api/decode", "this is not a hex dump")
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestDecodeEndpointUnmappedVersion(t *testing.T) {
	server := testServer(t)

	body := `Length: 16
Header: 10 00 88 B8 00 00 00 00 00 00 00 00
Payload:
04 00 03 00
`
	req := testutil.NewTestRequest(http.MethodPost, "/api/decode", body)
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusUnprocessableEntity)
}

func TestLogcodesEndpoint(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/api/logcodes", "")
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var logcodes []icdstore.LogcodeInfo
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&logcodes))
	if len(logcodes) != 1 || logcodes[0].LogcodeHex != "0xB888" {
		t.Errorf("logcodes = %+v", logcodes)
	}
}

func TestSchemaEndpoint(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/api/schema?logcode=0xB888", "")
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var doc icd.SchemaDocument
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	if doc.LogcodeID != "0xB888" || len(doc.Tables) != 2 {
		t.Errorf("doc = %+v", doc)
	}
}

func TestSchemaEndpointBadParam(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/api/schema?logcode=garbage", "")
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestSchemaEndpointUnknownLogcode(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/api/schema?logcode=0xDEAD", "")
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestRunsEndpointInvalidLimit(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/api/runs?limit=-1", "")
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestHealthz(t *testing.T) {
	server := testServer(t)

	req := testutil.NewTestRequest(http.MethodGet, "/healthz", "")
	rec := testutil.NewTestRecorder()
	server.ServeMux().ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var status map[string]string
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&status))
	if status["status"] != "ok" {
		t.Errorf("status = %q, want \"ok\"", status["status"])
	}
}

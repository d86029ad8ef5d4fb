// Package api serves the decode engine over HTTP: submit hex log dumps,
// browse the stored schemas, and review recent decode runs.
package api

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/logcode.report/internal/decode"
	"github.com/banshee-data/logcode.report/internal/httputil"
	"github.com/banshee-data/logcode.report/internal/icd"
	"github.com/banshee-data/logcode.report/internal/icd/icdstore"
	"github.com/banshee-data/logcode.report/internal/ingest"
	"github.com/banshee-data/logcode.report/internal/monitoring"
	"github.com/banshee-data/logcode.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// MaxDecodeBodySize bounds decode request bodies. Hex dumps of a single log
// packet are a few KB; anything beyond this is not a packet.
const MaxDecodeBodySize = 1 << 20

type Server struct {
	decoder *decode.Decoder
	store   *icdstore.Store
}

func NewServer(decoder *decode.Decoder, store *icdstore.Store) *Server {
	return &Server{
		decoder: decoder,
		store:   store,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/decode", s.decodePacket)
	mux.HandleFunc("/api/logcodes", s.listLogcodes)
	mux.HandleFunc("/api/schema", s.showSchema)
	mux.HandleFunc("/api/runs", s.listDecodeRuns)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

// decodeResponse wraps a decode result with the run identity the caller can
// use to find it again in /api/runs.
type decodeResponse struct {
	RunID  string                `json:"run_id"`
	Packet *decode.DecodedPacket `json:"packet"`
}

func (s *Server) decodePacket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxDecodeBodySize+1))
	if err != nil {
		httputil.BadRequest(w, "failed to read request body")
		return
	}
	if len(body) > MaxDecodeBodySize {
		httputil.BadRequest(w, "request body too large")
		return
	}

	pkt, err := ingest.ParseHexInput(string(body))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	decoded, err := s.decoder.Decode(pkt)
	if err != nil {
		httputil.WriteJSONError(w, decodeErrorStatus(err), err.Error())
		return
	}

	runID := uuid.NewString()
	if s.store != nil {
		if err := s.store.RecordDecodeRun(icdstore.DecodeRun{
			RunID:       runID,
			LogcodeID:   decoded.LogcodeID,
			Version:     decoded.Version,
			TableNumber: decoded.TableNumber,
			FieldCount:  len(decoded.Fields),
			ErrorCount:  len(decoded.Errors),
			Source:      "api",
		}); err != nil {
			monitoring.Logf("failed to record decode run %s: %v", runID, err)
		}
	}

	httputil.WriteJSONOK(w, decodeResponse{RunID: runID, Packet: decoded})
}

// decodeErrorStatus maps pipeline failures onto HTTP status codes: inputs
// that never parsed are 400s, inputs that parsed but cannot be decoded
// against the stored schemas are 422s.
func decodeErrorStatus(err error) int {
	var malformed *decode.MalformedInputError
	if errors.As(err, &malformed) {
		return http.StatusBadRequest
	}
	var versionErr *decode.VersionNotFoundError
	var missingDep *decode.MissingDependencyError
	var cyclic *decode.CyclicDependencyError
	var tooShort *decode.PayloadTooShortError
	if errors.As(err, &versionErr) || errors.As(err, &missingDep) ||
		errors.As(err, &cyclic) || errors.As(err, &tooShort) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) listLogcodes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	logcodes, err := s.store.ListLogcodes()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if logcodes == nil {
		logcodes = []icdstore.LogcodeInfo{}
	}
	httputil.WriteJSONOK(w, logcodes)
}

func (s *Server) showSchema(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	logcodeID, err := icd.ParseLogcodeID(r.URL.Query().Get("logcode"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	doc, err := s.store.ExportDocument(logcodeID)
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, doc)
}

func (s *Server) listDecodeRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	runs, err := s.store.ListDecodeRuns(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if runs == nil {
		runs = []icdstore.DecodeRun{}
	}
	httputil.WriteJSONOK(w, runs)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

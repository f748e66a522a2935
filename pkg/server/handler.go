package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/mockforge/mockforge/pkg/fixture"
	"github.com/mockforge/mockforge/pkg/param"
	"github.com/mockforge/mockforge/pkg/router"
	"github.com/mockforge/mockforge/pkg/validation"
)

// maxBodySize bounds request bodies read for validation and fixture
// matching.
const maxBodySize = 10 << 20

// adminPrefix roots the admin contract endpoints.
const adminPrefix = "/__admin"

// Handler returns the root handler: documentation endpoint, admin surface
// and the serving pipeline.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /openapi.json", s.handleOpenAPIDoc)
	s.registerAdmin(mux)
	mux.HandleFunc("/", s.handleRequest)
	return mux
}

// handleOpenAPIDoc serves the currently loaded spec as JSON.
func (s *Server) handleOpenAPIDoc(w http.ResponseWriter, r *http.Request) {
	doc := s.doc.Load()
	w.Header().Set("Content-Type", "application/json")
	if doc == nil || len(doc.Raw) == 0 {
		_, _ = w.Write([]byte(`{}`))
		return
	}
	_, _ = w.Write(doc.Raw)
}

// handleRequest runs the serving pipeline for one mock request.
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	// Shaping pre-phase: rate limiting happens before any other work.
	if !s.envelope.Pre(w, r) {
		return
	}

	op, pathParams, err := s.registry.Load().Lookup(r.Method, r.URL.Path)
	if err != nil {
		s.writeRoutingError(w, err)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeClientError(w, http.StatusBadRequest, "BODY_READ_FAILED", "failed to read request body")
		return
	}

	extracted := param.Extract(op, r, pathParams)

	if result := validation.ValidateRequest(op, extracted, body, s.cfg.ValidationMode); !result.Valid {
		result.WriteError(w)
		return
	}

	// Fixtures preempt synthesis; learned patterns only ever bias shaping,
	// so a fixture body and learned latency can both apply.
	if s.cfg.OverridesEnabled {
		if f := s.fixtures.Current().Match(op.Method, op.Path, fixtureParams(extracted), body); f != nil {
			s.serveFixture(w, r, f)
			return
		}
	}

	status, respBody, err := s.synthesizer.Synthesize(r.Context(), op, 0)
	if err != nil {
		s.log.Error("synthesis failed", "operation", op.ID, "error", err)
		writeClientError(w, http.StatusInternalServerError, "SYNTHESIS_FAILED", "failed to synthesize response")
		return
	}

	s.envelope.Post(w, r, status, "application/json", respBody)
}

// serveFixture emits a fixture response through the shaping post-phase.
func (s *Server) serveFixture(w http.ResponseWriter, r *http.Request, f *fixture.Fixture) {
	contentType := "application/json"
	for name, value := range f.Response.Headers {
		if strings.EqualFold(name, "Content-Type") {
			contentType = value
			continue
		}
		w.Header().Set(name, value)
	}

	var body []byte
	switch v := f.Response.Body.(type) {
	case nil:
	case string:
		body = []byte(v)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			writeClientError(w, http.StatusInternalServerError, "FIXTURE_ENCODING_FAILED", "failed to encode fixture body")
			return
		}
		body = encoded
	}

	s.envelope.Post(w, r, f.Response.Status, contentType, body)
}

func (s *Server) writeRoutingError(w http.ResponseWriter, err error) {
	var mna *router.MethodNotAllowedError
	switch {
	case errors.As(err, &mna):
		w.Header().Set("Allow", strings.Join(mna.Allow, ", "))
		writeClientError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", err.Error())
	case errors.Is(err, router.ErrNotFound):
		writeClientError(w, http.StatusNotFound, "NOT_FOUND", "no operation matches this path")
	default:
		writeClientError(w, http.StatusInternalServerError, "ROUTING_FAILED", err.Error())
	}
}

// writeClientError emits the {code, message} error body shared by every
// 4xx surface.
func writeClientError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

func fixtureParams(e *param.Extracted) *fixture.Params {
	return &fixture.Params{
		Path:   e.Path,
		Query:  e.Query,
		Header: e.Header,
		Cookie: e.Cookie,
	}
}

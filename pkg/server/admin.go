package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mockforge/mockforge/pkg/infer"
	"github.com/mockforge/mockforge/pkg/shaping"
)

// registerAdmin mounts the admin contract under /__admin. The admin UI
// itself is an external collaborator; these endpoints are what the core
// exposes to it.
func (s *Server) registerAdmin(mux *http.ServeMux) {
	mux.HandleFunc("GET "+adminPrefix+"/config", s.handleGetConfig)
	mux.HandleFunc("PUT "+adminPrefix+"/config", s.handlePutConfig)
	mux.HandleFunc("GET "+adminPrefix+"/routes", s.handleGetRoutes)
	mux.HandleFunc("GET "+adminPrefix+"/stats", s.handleGetStats)
	mux.HandleFunc("POST "+adminPrefix+"/reload", s.handleReload)
	mux.HandleFunc("POST "+adminPrefix+"/infer", s.handleInfer)
	mux.HandleFunc("POST "+adminPrefix+"/scenarios/{name}", s.handleActivateScenario)
	mux.HandleFunc("GET "+adminPrefix+"/scenarios", s.handleListScenarios)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.envelope.Config())
}

func (s *Server) handlePutConfig(w http.ResponseWriter, r *http.Request) {
	var cfg shaping.Config
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&cfg); err != nil {
		writeClientError(w, http.StatusBadRequest, "INVALID_CONFIG", fmt.Sprintf("failed to decode shaping config: %v", err))
		return
	}
	if err := cfg.Validate(); err != nil {
		writeClientError(w, http.StatusBadRequest, "INVALID_CONFIG", err.Error())
		return
	}
	s.envelope.SetConfig(&cfg)
	s.log.Info("shaping config updated", "scenario", cfg.Scenario)
	writeJSON(w, http.StatusOK, s.envelope.Config())
}

func (s *Server) handleGetRoutes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Load().Routes())
}

func (s *Server) handleGetStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"shaping":       s.envelope.Stats(),
		"templateCache": s.synthesizer.CacheStats(),
	})
}

// handleReload rebuilds the registry from the posted spec. The swap is
// atomic; a bad spec leaves the previous registry serving.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeClientError(w, http.StatusBadRequest, "BODY_READ_FAILED", "failed to read spec body")
		return
	}
	hint := r.URL.Query().Get("hint")

	report := s.Reload(data, hint)
	if !report.Valid {
		writeJSON(w, http.StatusBadRequest, report)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":   true,
		"operations": len(s.doc.Load().Operations),
	})
}

// inferRequest is the admin infer payload: recorded exchanges plus
// options.
type inferRequest struct {
	Exchanges []*infer.Exchange `json:"exchanges"`

	// Apply swaps the inferred draft in as the active spec and publishes
	// the learned patterns to the shaper.
	Apply bool `json:"apply,omitempty"`
}

func (s *Server) handleInfer(w http.ResponseWriter, r *http.Request) {
	var req inferRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeClientError(w, http.StatusBadRequest, "INVALID_EXCHANGES", fmt.Sprintf("failed to decode exchanges: %v", err))
		return
	}

	result, err := s.inferencer.Run(r.Context(), infer.SliceSource(req.Exchanges))
	if err != nil {
		writeClientError(w, http.StatusBadRequest, "INFERENCE_FAILED", err.Error())
		return
	}

	if req.Apply {
		if report := s.Reload(result.Draft, "inferred.json"); !report.Valid {
			writeJSON(w, http.StatusBadRequest, report)
			return
		}
		s.patterns.Publish(result.Patterns)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"draft":   json.RawMessage(result.Draft),
		"report":  result.Report,
		"applied": req.Apply,
	})
}

func (s *Server) handleActivateScenario(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.envelope.ActivateScenario(name); err != nil {
		writeClientError(w, http.StatusNotFound, "UNKNOWN_SCENARIO", err.Error())
		return
	}
	s.log.Info("chaos scenario activated", "scenario", name)
	writeJSON(w, http.StatusOK, s.envelope.Config())
}

func (s *Server) handleListScenarios(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, shaping.Scenarios())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package apiserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/config"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/engine"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/observability/logging"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/observability/metrics"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

// Server is the thin HTTP layer over the decision engine.
type Server struct {
	engine *engine.Engine
}

// New creates the API server over the given engine.
func New(eng *engine.Engine) *Server {
	return &Server{engine: eng}
}

// Start blocks serving the API on the given port.
func (s *Server) Start(port int) error {
	mux := s.setupRoutes()
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logging.Infof("Analysis API server listening on port %d", port)
	return server.ListenAndServe()
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /health", s.handleHealth)

	// Analysis endpoint
	mux.HandleFunc("POST /api/v1/analyze", s.handleAnalyze)

	// Engine configuration endpoints (atomic snapshot swap on update)
	mux.HandleFunc("GET /api/v1/config/engine", s.handleGetConfig)
	mux.HandleFunc("PUT /api/v1/config/engine", s.handleUpdateConfig)

	// Information endpoints
	mux.HandleFunc("GET /info/models", s.handleModelsInfo)

	return mux
}

// AnalyzeRequest is the analysis request body. Callers supply either the raw
// message (the server fans out to the configured classifiers) or
// already-computed signals.
type AnalyzeRequest struct {
	MessageID string          `json:"message_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Signals   []signal.Record `json:"signals,omitempty"`
	Options   AnalyzeOptions  `json:"options"`
}

// AnalyzeOptions are the per-request engine options.
type AnalyzeOptions struct {
	IncludeExplanation bool   `json:"include_explanation"`
	Verbosity          string `json:"verbosity,omitempty"`
	ConsensusAlgorithm string `json:"consensus_algorithm,omitempty"`
	ResolutionStrategy string `json:"resolution_strategy,omitempty"`

	// Legacy requests the flattened backward-compatible projection.
	Legacy bool `json:"legacy,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	if req.Message == "" && len(req.Signals) == 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("either message or signals must be provided"))
		return
	}

	opts := engine.Options{
		IncludeExplanation: req.Options.IncludeExplanation,
		Verbosity:          req.Options.Verbosity,
		Algorithm:          req.Options.ConsensusAlgorithm,
		Strategy:           req.Options.ResolutionStrategy,
	}

	var (
		analysis *engine.Analysis
		err      error
	)
	if len(req.Signals) > 0 {
		analysis, err = s.engine.AnalyzeSignals(r.Context(), req.MessageID, req.Signals, opts)
	} else {
		analysis, err = s.engine.Analyze(r.Context(), req.MessageID, req.Message, opts)
	}
	if err != nil {
		// Option validation failures are client errors; the engine never
		// errors on signal content.
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if req.Options.Legacy {
		s.writeJSON(w, http.StatusOK, analysis.ToLegacyMap())
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, config.Get())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	// Start from the active snapshot so partial updates keep current values.
	updated := config.Get().Clone()
	if err := json.NewDecoder(r.Body).Decode(updated); err != nil {
		metrics.RecordConfigReload("invalid_json")
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	if err := config.Replace(updated); err != nil {
		metrics.RecordConfigReload("rejected")
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	metrics.RecordConfigReload("applied")
	s.writeJSON(w, http.StatusOK, config.Get())
}

// ModelInfo describes one configured classifier endpoint.
type ModelInfo struct {
	Name      string  `json:"name"`
	Role      string  `json:"role"`
	Weight    float64 `json:"weight"`
	TimeoutMs int64   `json:"timeout_ms"`
}

func (s *Server) handleModelsInfo(w http.ResponseWriter, _ *http.Request) {
	cfg := config.Get()
	models := make([]ModelInfo, 0, len(s.engine.Providers()))
	for _, p := range s.engine.Providers() {
		models = append(models, ModelInfo{
			Name:      p.Name(),
			Role:      string(p.Role()),
			Weight:    cfg.Weights[string(p.Role())],
			TimeoutMs: p.Timeout().Milliseconds(),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"models": models})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Errorf("Failed to encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

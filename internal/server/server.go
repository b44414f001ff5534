// Package server exposes the detection pipeline over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/krewdev/SealevelStudio4-sub007/internal/graph"
	"github.com/krewdev/SealevelStudio4-sub007/internal/observability"
	"github.com/krewdev/SealevelStudio4-sub007/internal/service"
	"github.com/krewdev/SealevelStudio4-sub007/internal/storage"
)

// Server wires the service to HTTP handlers.
type Server struct {
	svc    *service.Service
	logger *log.Logger
}

// New creates the HTTP server layer.
func New(svc *service.Service, logger *log.Logger) *Server {
	return &Server{svc: svc, logger: logger}
}

// Routes returns the full handler mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.instrument("health", s.handleHealth))
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/api/opportunities", s.instrument("opportunities", s.handleOpportunities))
	mux.HandleFunc("/api/graph", s.instrument("graph", s.handleGraph))
	mux.HandleFunc("/api/monitor", s.instrument("monitor", s.handleMonitor))
	mux.HandleFunc("/api/predict", s.instrument("predict", s.handlePredict))
	mux.HandleFunc("/api/signals", s.instrument("signals", s.handleSignals))
	mux.HandleFunc("/api/outcomes", s.instrument("outcomes", s.handleOutcomes))
	mux.HandleFunc("/api/patterns", s.instrument("patterns", s.handlePatterns))

	return mux
}

// statusRecorder captures the response code for request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request duration and status per endpoint.
func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		m := observability.DefaultMetrics
		m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
		m.RequestsTotal.WithLabelValues(endpoint, http.StatusText(rec.status)).Inc()
	}
}

// errorResponse is the uniform JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

// writeError maps service errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNoSnapshot):
		status = http.StatusServiceUnavailable
	case errors.Is(err, service.ErrUnknownOpportunity),
		errors.Is(err, graph.ErrUnknownToken),
		errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	}
	if status == http.StatusInternalServerError {
		s.logger.Printf("request failed: %v", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// queryFloat parses an optional non-negative float parameter.
func queryFloat(r *http.Request, name string) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

// queryInt parses an optional non-negative integer parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return v, nil
}

// queryList splits an optional comma-separated id list.
func queryList(r *http.Request, name string) []string {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	minProfit, err := queryFloat(r, "minProfit")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := s.svc.Analyses(r.Context(), service.AnalysisQuery{
		MinProfitPct:  minProfit,
		OpportunityID: r.URL.Query().Get("opportunityId"),
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toAnalysesResponse(report))
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	maxHops, err := queryInt(r, "maxHops")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	minProfit, err := queryFloat(r, "minProfit")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := s.svc.Graph(r.Context(), service.GraphQuery{
		StartMint:    r.URL.Query().Get("startToken"),
		MaxHops:      maxHops,
		MinProfitPct: minProfit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toGraphResponse(report))
}

func (s *Server) handleMonitor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	report, err := s.svc.Monitor(r.Context(), queryList(r, "pools"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toMonitorResponse(report))
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	horizonSec, err := queryInt(r, "timeHorizon")
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	report, err := s.svc.Predict(r.Context(), queryList(r, "pools"), time.Duration(horizonSec)*time.Second)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPredictReportResponse(report))
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	signals, err := s.svc.Signals(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSignalsResponse(signals))
}

// outcomeRequest is the POST body for /api/outcomes.
type outcomeRequest struct {
	OpportunityID  string  `json:"opportunity_id"`
	Success        bool    `json:"success"`
	RealizedProfit float64 `json:"realized_profit"`
}

type outcomeResponse struct {
	PatternID int64 `json:"pattern_id"`
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.OpportunityID == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "opportunity_id is required"})
		return
	}

	id, err := s.svc.RecordOutcome(r.Context(), service.Outcome{
		OpportunityID:  req.OpportunityID,
		Success:        req.Success,
		RealizedProfit: req.RealizedProfit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, outcomeResponse{PatternID: id})
}

func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
		return
	}

	stats, err := s.svc.PatternStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, patternStatsResponse{
		Count:       stats.Count,
		Capacity:    stats.Capacity,
		SuccessRate: stats.SuccessRate,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	// Degraded still serves; only report it.
	s.writeJSON(w, http.StatusOK, toHealthResponse(s.svc.Health()))
}

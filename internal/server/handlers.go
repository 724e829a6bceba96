package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleHealth is the basic liveness probe
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{"status": "ok"})
}

// handleListRuns returns every recorded run, most recent first
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	all, err := s.runs.GetAll()
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, all)
}

// handleGetRun returns one run record
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, run)
}

// handleGetTrades returns the full trade ledger of a run in execution order
func (s *Server) handleGetTrades(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	trades, err := s.trades.GetByRun(runID)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load trades")
		http.Error(w, "Failed to load trades", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, trades)
}

// handleGetSnapshots returns the daily snapshot series of a run in date order
func (s *Server) handleGetSnapshots(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	snaps, err := s.snapshots.GetByRun(runID)
	if err != nil {
		s.log.Error().Err(err).Str("run_id", runID).Msg("Failed to load snapshots")
		http.Error(w, "Failed to load snapshots", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, snaps)
}

// handleGetMetrics returns the final metrics JSON stored with the run
func (s *Server) handleGetMetrics(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.Get(chi.URLParam(r, "runID"))
	if err != nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}
	if run.Metrics == "" {
		http.Error(w, "Run has no metrics yet", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(run.Metrics))
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/foresight/internal/modules/pipeline"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	if err := s.db.HealthCheck(ctx); err != nil {
		s.log.Error().Err(err).Msg("Health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":  status,
		"service": "foresight",
	})
}

// handleLatestRun returns the most recent pipeline run.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.results.Latest()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "no runs recorded yet")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// handleGetRun returns one run by ID.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.results.Get(runID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "run not found")
		return
	}
	s.writeJSON(w, http.StatusOK, run)
}

// latestAsset finds the named asset in the most recent run.
func (s *Server) latestAsset(w http.ResponseWriter, r *http.Request) (*pipeline.RunResult, *pipeline.AssetResult, bool) {
	symbol := chi.URLParam(r, "symbol")
	run, err := s.results.Latest()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, nil, false
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "no runs recorded yet")
		return nil, nil, false
	}
	for _, asset := range run.Assets {
		if asset.Symbol == symbol {
			return run, asset, true
		}
	}
	s.writeError(w, http.StatusNotFound, "asset not in latest run")
	return nil, nil, false
}

// handleAssetReport returns the evaluation report for one asset.
func (s *Server) handleAssetReport(w http.ResponseWriter, r *http.Request) {
	_, asset, ok := s.latestAsset(w, r)
	if !ok {
		return
	}
	if asset.Err != "" {
		s.writeJSON(w, http.StatusOK, map[string]string{
			"symbol": asset.Symbol,
			"error":  asset.Err,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, asset.Report)
}

// handleAssetForecast returns the per-family forecasts for one asset.
func (s *Server) handleAssetForecast(w http.ResponseWriter, r *http.Request) {
	_, asset, ok := s.latestAsset(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    asset.Symbol,
		"forecasts": asset.Forecasts,
		"statuses":  asset.Statuses,
	})
}

// handleAssetScenario returns the scenario bundle for one asset. The
// run payload carries a trimmed copy; the full path set comes from the
// snapshot store when available.
func (s *Server) handleAssetScenario(w http.ResponseWriter, r *http.Request) {
	run, asset, ok := s.latestAsset(w, r)
	if !ok {
		return
	}
	if bundle, err := s.snapshots.Load(run.RunID.String(), asset.Symbol); err == nil && bundle != nil {
		s.writeJSON(w, http.StatusOK, bundle)
		return
	}
	if asset.Bundle == nil {
		s.writeError(w, http.StatusNotFound, "no scenario bundle for asset")
		return
	}
	s.writeJSON(w, http.StatusOK, asset.Bundle)
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

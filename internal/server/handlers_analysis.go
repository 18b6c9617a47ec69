package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dawnsea/tidescan/internal/interfaces"
	"github.com/dawnsea/tidescan/internal/models"
)

// AnalysisRunRequest is the body of POST /api/v1/analysis/run.
type AnalysisRunRequest struct {
	Symbols          []string `json:"symbols"`
	DryRun           bool     `json:"dry_run"`
	SendNotification bool     `json:"send_notification"`
	ForceRefresh     bool     `json:"force_refresh"`
}

// AnalysisRunResponse is the outcome of one pipeline batch.
type AnalysisRunResponse struct {
	RunID      string                  `json:"run_id"`
	Requested  int                     `json:"requested"`
	Succeeded  int                     `json:"succeeded"`
	DurationMS int64                   `json:"duration_ms"`
	Results    []models.AnalysisResult `json:"results"`
}

// handleAnalysisRun handles POST /api/v1/analysis/run.
func (s *Server) handleAnalysisRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AnalysisRunRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	symbols := make([]string, 0, len(req.Symbols))
	for _, symbol := range req.Symbols {
		if symbol = strings.TrimSpace(symbol); symbol != "" {
			symbols = append(symbols, symbol)
		}
	}
	if len(symbols) == 0 {
		WriteError(w, http.StatusBadRequest, "symbols is required")
		return
	}

	runID := uuid.New().String()[:8]
	start := time.Now()

	s.logger.Info().
		Str("run_id", runID).
		Int("symbols", len(symbols)).
		Bool("dry_run", req.DryRun).
		Msg("Analysis run requested")

	results, err := s.app.PipelineService.Run(r.Context(), symbols, interfaces.RunOptions{
		DryRun:           req.DryRun,
		SendNotification: req.SendNotification,
		ForceRefresh:     req.ForceRefresh,
	})
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Analysis run failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, AnalysisRunResponse{
		RunID:      runID,
		Requested:  len(symbols),
		Succeeded:  len(results),
		DurationMS: time.Since(start).Milliseconds(),
		Results:    results,
	})
}

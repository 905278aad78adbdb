package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/qgrade/internal/db"
)

// RunSummary is a stored run without its full report
type RunSummary struct {
	ID          uuid.UUID `json:"id"`
	Suite       string    `json:"suite"`
	Module      string    `json:"module"`
	Fingerprint string    `json:"fingerprint"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	TotalScore  float64   `json:"total_score"`
	MaxScore    int       `json:"max_score"`
	Percentage  float64   `json:"percentage"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func runToSummary(run db.Run) RunSummary {
	return RunSummary{
		ID:          run.ID,
		Suite:       run.Suite,
		Module:      run.Module,
		Fingerprint: run.Fingerprint,
		Status:      run.Status,
		Error:       run.Error,
		TotalScore:  run.TotalScore,
		MaxScore:    run.MaxScore,
		Percentage:  run.Percentage,
		DurationMS:  run.DurationMS,
		CreatedAt:   run.CreatedAt,
	}
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run history not available")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	runs, err := s.runs.ListRuns(r.Context(), limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("failed to list runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	responses := make([]RunSummary, len(runs))
	for i, run := range runs {
		responses[i] = runToSummary(run)
	}

	respondJSON(w, http.StatusOK, responses)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		respondError(w, http.StatusServiceUnavailable, "run history not available")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "runID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run ID")
		return
	}

	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		log.Error().Err(err).Str("run_id", id.String()).Msg("failed to get run")
		respondError(w, http.StatusInternalServerError, "failed to get run")
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}

	report, err := run.SuiteReport()
	if err != nil {
		log.Error().Err(err).Str("run_id", id.String()).Msg("stored report is corrupt")
		respondError(w, http.StatusInternalServerError, "failed to decode run")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

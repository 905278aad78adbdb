package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/QTest-hq/qgrade/internal/suite"
)

// SuiteResponse describes a registered suite
type SuiteResponse struct {
	Key       string           `json:"key"`
	Module    string           `json:"module"`
	Tests     int              `json:"tests"`
	MaxPoints int              `json:"max_points"`
	Cases     []suite.TestCase `json:"cases,omitempty"`
}

func suiteToResponse(s *suite.Suite, withCases bool) SuiteResponse {
	resp := SuiteResponse{
		Key:       s.Key,
		Module:    s.ModuleName,
		Tests:     len(s.Cases()),
		MaxPoints: s.MaxPoints(),
	}
	if withCases {
		resp.Cases = s.Cases()
	}
	return resp
}

func (s *Server) listSuites(w http.ResponseWriter, r *http.Request) {
	suites := s.grader.Registry().Suites()

	responses := make([]SuiteResponse, len(suites))
	for i, st := range suites {
		responses[i] = suiteToResponse(st, false)
	}

	respondJSON(w, http.StatusOK, responses)
}

func (s *Server) getSuite(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "suiteKey")

	st, ok := s.grader.Registry().Get(key)
	if !ok {
		respondError(w, http.StatusNotFound, "Test suite not found: "+key)
		return
	}

	respondJSON(w, http.StatusOK, suiteToResponse(st, true))
}

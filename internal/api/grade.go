package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/QTest-hq/qgrade/internal/analyzer"
	"github.com/QTest-hq/qgrade/internal/engine"
	"github.com/QTest-hq/qgrade/internal/grader"
	"github.com/QTest-hq/qgrade/internal/submission"
)

// GradeRequest grades either inline code or a file in a git repository
type GradeRequest struct {
	Code  string `json:"code,omitempty"`
	Suite string `json:"suite,omitempty"`

	RepositoryURL string `json:"repository_url,omitempty"`
	Ref           string `json:"ref,omitempty"`
	Path          string `json:"path,omitempty"`
}

// GradeResponse carries every suite report plus the rendered text report
type GradeResponse struct {
	CommitSHA  string                `json:"commit_sha,omitempty"`
	TotalScore float64               `json:"total_score"`
	MaxScore   int                   `json:"max_score"`
	Percentage float64               `json:"percentage"`
	Suites     []*engine.SuiteReport `json:"suites"`
	Report     string                `json:"report"`
}

// AnalyzeRequest holds source to analyze
type AnalyzeRequest struct {
	Code string `json:"code"`
}

// AnalyzeResponse holds structural facts and the TDD report for a source
type AnalyzeResponse struct {
	Classes  []string            `json:"classes"`
	Methods  map[string][]string `json:"methods"`
	Patterns []string            `json:"patterns"`
	TDD      analyzer.TDDReport  `json:"tdd"`
}

func (s *Server) grade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	switch {
	case req.Code == "" && req.RepositoryURL == "":
		respondError(w, http.StatusBadRequest, "code or repository_url is required")
		return
	case req.Code != "" && req.RepositoryURL != "":
		respondError(w, http.StatusBadRequest, "code and repository_url are mutually exclusive")
		return
	}

	if req.Suite != "" {
		if _, ok := s.grader.Registry().Get(req.Suite); !ok {
			respondError(w, http.StatusNotFound, "Test suite not found: "+req.Suite)
			return
		}
	}

	var (
		path      string
		commitSHA string
		cleanup   func()
	)
	if req.RepositoryURL != "" {
		if req.Path == "" {
			req.Path = "solution.py"
		}
		sub, err := s.fetcher.Fetch(r.Context(), submission.Source{URL: req.RepositoryURL, Ref: req.Ref, Path: req.Path})
		if err != nil {
			log.Warn().Err(err).Str("url", req.RepositoryURL).Msg("failed to fetch submission")
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		path, commitSHA = sub.File, sub.CommitSHA
		cleanup = func() { sub.Cleanup() }
	} else {
		dir, err := s.writeSolution(req.Code)
		if err != nil {
			log.Error().Err(err).Msg("failed to write solution")
			respondError(w, http.StatusInternalServerError, "failed to store solution")
			return
		}
		path = filepath.Join(dir, "solution.py")
		cleanup = func() { os.RemoveAll(dir) }
	}
	defer cleanup()

	results, err := s.grader.TestSolution(r.Context(), path, req.Suite)
	if err != nil {
		var unknown *grader.UnknownSuiteError
		if errors.As(err, &unknown) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Msg("grading failed")
		respondError(w, http.StatusInternalServerError, "grading failed")
		return
	}

	s.saveRuns(r.Context(), results)

	score, maxScore, pct := results.Total()
	respondJSON(w, http.StatusOK, GradeResponse{
		CommitSHA:  commitSHA,
		TotalScore: score,
		MaxScore:   maxScore,
		Percentage: pct,
		Suites:     results.Suites,
		Report:     grader.GenerateReport(results, time.Now()),
	})
}

// writeSolution stores inline code in a fresh directory under the work dir
func (s *Server) writeSolution(code string) (string, error) {
	if err := os.MkdirAll(s.cfg.Grading.WorkDir, 0755); err != nil {
		return "", err
	}
	dir, err := os.MkdirTemp(s.cfg.Grading.WorkDir, "upload-*")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, "solution.py"), []byte(code), 0644); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// saveRuns records every report. Storage failures never fail the request.
func (s *Server) saveRuns(ctx context.Context, results *grader.Results) {
	if s.runs == nil {
		return
	}
	for _, report := range results.Suites {
		run, err := s.runs.SaveReport(ctx, report)
		if err != nil {
			log.Error().Err(err).Str("suite", report.Suite).Msg("failed to save run")
			continue
		}
		report.RunID = run.ID
	}
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Code == "" {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	source := []byte(req.Code)
	result, err := s.analyzer.Analyze(r.Context(), source)
	if err != nil {
		var synErr *analyzer.SyntaxError
		if errors.As(err, &synErr) {
			respondError(w, http.StatusUnprocessableEntity, "SyntaxError: "+synErr.Error())
			return
		}
		log.Error().Err(err).Msg("analysis failed")
		respondError(w, http.StatusInternalServerError, "analysis failed")
		return
	}

	respondJSON(w, http.StatusOK, AnalyzeResponse{
		Classes:  result.Classes,
		Methods:  result.Methods,
		Patterns: result.DetectedPatterns(),
		TDD:      s.analyzer.CheckTDDCompliance(r.Context(), source),
	})
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/QTest-hq/qgrade/internal/config"
	"github.com/QTest-hq/qgrade/internal/db"
	"github.com/QTest-hq/qgrade/internal/engine"
	"github.com/QTest-hq/qgrade/internal/grader"
)

// memoryRunStore keeps runs in memory
type memoryRunStore struct {
	mu      sync.Mutex
	runs    []db.Run
	pingErr error
	saveErr error
}

func (m *memoryRunStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *memoryRunStore) SaveReport(ctx context.Context, report *engine.SuiteReport) (*db.Run, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	run, err := db.NewRun(report)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, *run)
	return run, nil
}

func (m *memoryRunStore) GetRun(ctx context.Context, id uuid.UUID) (*db.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			run := m.runs[i]
			return &run, nil
		}
	}
	return nil, nil
}

func (m *memoryRunStore) ListRuns(ctx context.Context, limit, offset int) ([]db.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offset >= len(m.runs) {
		return []db.Run{}, nil
	}
	end := offset + limit
	if end > len(m.runs) {
		end = len(m.runs)
	}
	return append([]db.Run(nil), m.runs[offset:end]...), nil
}

func newTestServer(t *testing.T, runs RunStore) *Server {
	t.Helper()

	cfg := &config.Config{
		Grading: config.GradingConfig{
			Loader:  config.LoaderStatic,
			WorkDir: t.TempDir(),
		},
	}
	srv, err := NewServer(cfg, grader.New(nil, engine.NewRunner(engine.Config{})), runs)
	require.NoError(t, err)
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := doRequest(t, srv, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.Equal(t, "ok", decode[map[string]string](t, rr)["status"])
}

func TestReadyCheck(t *testing.T) {
	t.Run("without database", func(t *testing.T) {
		rr := doRequest(t, newTestServer(t, nil), http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ready", decode[map[string]string](t, rr)["status"])
	})

	t.Run("database reachable", func(t *testing.T) {
		rr := doRequest(t, newTestServer(t, &memoryRunStore{}), http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("database down", func(t *testing.T) {
		rr := doRequest(t, newTestServer(t, &memoryRunStore{pingErr: errors.New("connection refused")}), http.MethodGet, "/ready", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
		assert.Equal(t, "not ready", decode[map[string]string](t, rr)["status"])
	})
}

func TestListSuites(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil), http.MethodGet, "/api/v1/suites", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	suites := decode[[]SuiteResponse](t, rr)
	require.Len(t, suites, 5)
	assert.Equal(t, SuiteResponse{Key: "solid-srp", Module: "SOLID - Single Responsibility Principle", Tests: 5, MaxPoints: 12}, suites[0])
	assert.Equal(t, "project-implementation", suites[4].Key)
	assert.Empty(t, suites[0].Cases)
}

func TestGetSuite(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := doRequest(t, srv, http.MethodGet, "/api/v1/suites/ddd-ecommerce", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[SuiteResponse](t, rr)
	assert.Equal(t, 7, resp.Tests)
	assert.Equal(t, 26, resp.MaxPoints)
	require.Len(t, resp.Cases, 7)
	assert.NotEmpty(t, resp.Cases[0].Name)

	rr = doRequest(t, srv, http.MethodGet, "/api/v1/suites/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Test suite not found: nope", decode[map[string]string](t, rr)["error"])
}

func TestGrade_BadRequests(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name   string
		body   any
		status int
		errMsg string
	}{
		{"invalid json", "{not json", http.StatusBadRequest, "invalid request body"},
		{"nothing to grade", GradeRequest{}, http.StatusBadRequest, "code or repository_url is required"},
		{"both sources", GradeRequest{Code: "x = 1", RepositoryURL: "https://github.com/a/b"}, http.StatusBadRequest, "code and repository_url are mutually exclusive"},
		{"unknown suite", GradeRequest{Code: "x = 1", Suite: "nope"}, http.StatusNotFound, "Test suite not found: nope"},
		{"bad repository", GradeRequest{RepositoryURL: "ftp://example.com/x"}, http.StatusBadRequest, "unsupported repository URL: ftp://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, srv, http.MethodPost, "/api/v1/grade", tt.body)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.errMsg, decode[map[string]string](t, rr)["error"])
		})
	}
}

func TestGrade_Code(t *testing.T) {
	store := &memoryRunStore{}
	srv := newTestServer(t, store)

	rr := doRequest(t, srv, http.MethodPost, "/api/v1/grade", GradeRequest{Code: "x = 1\n", Suite: "solid-srp"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[GradeResponse](t, rr)
	require.Len(t, resp.Suites, 1)
	report := resp.Suites[0]
	assert.Equal(t, "solid-srp", report.Suite)
	assert.Equal(t, engine.StatusCompleted, report.Status)
	assert.Equal(t, 12, report.MaxScore)
	assert.Len(t, report.Results, 5)
	assert.Equal(t, 12, resp.MaxScore)
	assert.True(t, strings.HasPrefix(resp.Report, "📋 AUTOMATED TESTING REPORT\n"))
	assert.Contains(t, resp.Report, "SOLID - Single Responsibility Principle")

	require.Len(t, store.runs, 1)
	assert.Equal(t, store.runs[0].ID, report.RunID)

	entries, err := os.ReadDir(srv.cfg.Grading.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "uploaded solution should be removed")
}

func TestGrade_AllSuites(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil), http.MethodPost, "/api/v1/grade", GradeRequest{Code: "class User:\n    pass\n"})
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[GradeResponse](t, rr)
	require.Len(t, resp.Suites, 5)
	assert.Equal(t, 12+19+18+26+37, resp.MaxScore)
}

func TestGrade_SyntaxError(t *testing.T) {
	rr := doRequest(t, newTestServer(t, nil), http.MethodPost, "/api/v1/grade", GradeRequest{Code: "def broken(:\n", Suite: "solid-srp"})
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[GradeResponse](t, rr)
	require.Len(t, resp.Suites, 1)
	assert.Equal(t, engine.StatusError, resp.Suites[0].Status)
	assert.True(t, strings.HasPrefix(resp.Suites[0].Error, "Failed to import solution: "), resp.Suites[0].Error)
	assert.Zero(t, resp.MaxScore)
	assert.Contains(t, resp.Report, "❌ solid-srp: Failed to import solution: ")
}

func TestGrade_StoreFailureDoesNotFailRequest(t *testing.T) {
	srv := newTestServer(t, &memoryRunStore{saveErr: errors.New("disk full")})

	rr := doRequest(t, srv, http.MethodPost, "/api/v1/grade", GradeRequest{Code: "x = 1\n", Suite: "solid-srp"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAnalyze(t *testing.T) {
	srv := newTestServer(t, nil)
	code := "class ShapeFactory:\n    def create(self, kind):\n        return kind\n\n\ndef test_create():\n    assert ShapeFactory().create(1) == 1\n"

	rr := doRequest(t, srv, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{Code: code})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[AnalyzeResponse](t, rr)
	assert.Equal(t, []string{"ShapeFactory"}, resp.Classes)
	assert.Equal(t, []string{"create"}, resp.Methods["ShapeFactory"])
	assert.Equal(t, []string{"test_create"}, resp.Methods[""])
	assert.Contains(t, resp.Patterns, "factory")
	assert.True(t, resp.TDD.HasTests)
	assert.Equal(t, []string{"test_create"}, resp.TDD.TestFunctions)
}

func TestAnalyze_Errors(t *testing.T) {
	srv := newTestServer(t, nil)

	rr := doRequest(t, srv, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, srv, http.MethodPost, "/api/v1/analyze", AnalyzeRequest{Code: "def broken(:\n"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.True(t, strings.HasPrefix(decode[map[string]string](t, rr)["error"], "SyntaxError: line "))
}

func TestRuns_Unavailable(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/api/v1/runs", "/api/v1/runs/" + uuid.NewString()} {
		rr := doRequest(t, srv, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, rr.Code, path)
	}
}

func TestRuns(t *testing.T) {
	store := &memoryRunStore{}
	srv := newTestServer(t, store)

	rr := doRequest(t, srv, http.MethodPost, "/api/v1/grade", GradeRequest{Code: "x = 1\n"})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, store.runs, 5)

	rr = doRequest(t, srv, http.MethodGet, "/api/v1/runs?limit=2&offset=1", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	summaries := decode[[]RunSummary](t, rr)
	require.Len(t, summaries, 2)
	assert.Equal(t, "patterns-ecommerce", summaries[0].Suite)

	id := store.runs[3].ID
	rr = doRequest(t, srv, http.MethodGet, "/api/v1/runs/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rr.Code)
	report := decode[engine.SuiteReport](t, rr)
	assert.Equal(t, id, report.RunID)
	assert.Equal(t, "ddd-ecommerce", report.Suite)
	assert.Len(t, report.Results, 7)

	rr = doRequest(t, srv, http.MethodGet, "/api/v1/runs/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, srv, http.MethodGet, "/api/v1/runs/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

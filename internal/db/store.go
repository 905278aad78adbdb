package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/QTest-hq/qgrade/internal/engine"
)

// ErrRunNotFound is returned when deleting a run that does not exist
var ErrRunNotFound = errors.New("run not found")

// Store provides database operations
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new store
func NewStore(db *DB) *Store {
	return &Store{pool: db.Pool()}
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Run is one persisted suite report
type Run struct {
	ID          uuid.UUID       `json:"id"`
	Suite       string          `json:"suite"`
	Module      string          `json:"module"`
	File        string          `json:"file"`
	Fingerprint string          `json:"fingerprint"`
	Status      string          `json:"status"`
	Error       string          `json:"error,omitempty"`
	TotalScore  float64         `json:"total_score"`
	MaxScore    int             `json:"max_score"`
	Percentage  float64         `json:"percentage"`
	Report      json.RawMessage `json:"report"`
	StartedAt   time.Time       `json:"started_at"`
	DurationMS  int64           `json:"duration_ms"`
	CreatedAt   time.Time       `json:"created_at"`
}

// NewRun flattens a suite report into a storable run. The full report is
// kept as JSON so results and detected patterns survive unchanged. Reports
// without a run id get a fresh one.
func NewRun(report *engine.SuiteReport) (*Run, error) {
	if report == nil {
		return nil, fmt.Errorf("nil report")
	}

	stored := *report
	if stored.RunID == uuid.Nil {
		stored.RunID = uuid.New()
	}
	if stored.StartedAt.IsZero() {
		stored.StartedAt = time.Now()
	}

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	return &Run{
		ID:          stored.RunID,
		Suite:       report.Suite,
		Module:      report.Module,
		File:        report.File,
		Fingerprint: report.Fingerprint,
		Status:      string(report.Status),
		Error:       report.Error,
		TotalScore:  report.TotalScore,
		MaxScore:    report.MaxScore,
		Percentage:  report.Percentage,
		Report:      data,
		StartedAt:   stored.StartedAt,
		DurationMS:  report.Duration.Milliseconds(),
	}, nil
}

// SuiteReport decodes the stored report
func (r *Run) SuiteReport() (*engine.SuiteReport, error) {
	var report engine.SuiteReport
	if err := json.Unmarshal(r.Report, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &report, nil
}

// CreateRun inserts a run
func (s *Store) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	run.CreatedAt = time.Now()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO grading_runs (id, suite, module, file, fingerprint, status, error,
		                          total_score, max_score, percentage, report, started_at, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, run.ID, run.Suite, run.Module, run.File, run.Fingerprint, run.Status, run.Error,
		run.TotalScore, run.MaxScore, run.Percentage, run.Report, run.StartedAt, run.DurationMS, run.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// SaveReport stores a suite report and returns the created run
func (s *Store) SaveReport(ctx context.Context, report *engine.SuiteReport) (*Run, error) {
	run, err := NewRun(report)
	if err != nil {
		return nil, err
	}
	if err := s.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

const runColumns = `id, suite, module, file, fingerprint, status, error,
	total_score, max_score, percentage, report, started_at, duration_ms, created_at`

func scanRun(row pgx.Row) (*Run, error) {
	run := &Run{}
	err := row.Scan(&run.ID, &run.Suite, &run.Module, &run.File, &run.Fingerprint, &run.Status, &run.Error,
		&run.TotalScore, &run.MaxScore, &run.Percentage, &run.Report, &run.StartedAt, &run.DurationMS, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun gets a run by ID. A missing run is (nil, nil).
func (s *Store) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	run, err := scanRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM grading_runs WHERE id = $1`, id))

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// ListRuns lists runs, newest first
func (s *Store) ListRuns(ctx context.Context, limit, offset int) ([]Run, error) {
	return s.listRuns(ctx, `
		SELECT `+runColumns+`
		FROM grading_runs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
}

// ListRunsByFingerprint lists runs graded against the same source, newest first
func (s *Store) ListRunsByFingerprint(ctx context.Context, fingerprint string, limit int) ([]Run, error) {
	return s.listRuns(ctx, `
		SELECT `+runColumns+`
		FROM grading_runs
		WHERE fingerprint = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, fingerprint, limit)
}

func (s *Store) listRuns(ctx context.Context, query string, args ...any) ([]Run, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// DeleteRun deletes a run
func (s *Store) DeleteRun(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, `DELETE FROM grading_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRunNotFound
	}

	return nil
}

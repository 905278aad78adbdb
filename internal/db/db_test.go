package db

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/QTest-hq/qgrade/internal/analyzer"
	"github.com/QTest-hq/qgrade/internal/engine"
)

func sampleReport() *engine.SuiteReport {
	return &engine.SuiteReport{
		RunID:      uuid.New(),
		Suite:      "solid-srp",
		Module:     "SOLID - Single Responsibility Principle",
		Status:     engine.StatusCompleted,
		TotalScore: 8,
		MaxScore:   12,
		Percentage: 66.66666666666667,
		Results: []engine.Result{
			{Name: "test_user_class_exists", Outcome: engine.OutcomePass, Score: 2, Points: 2},
			{Name: "test_email_service_exists", Outcome: engine.OutcomeFail, Error: "EmailService class not found", Points: 2},
		},
		DetectedPatterns: map[analyzer.Pattern]bool{analyzer.PatternFactory: true},
		FoundClasses:     []string{"User"},
		File:             "solution.py",
		Fingerprint:      "00000000deadbeef",
		StartedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:         1500 * time.Millisecond,
	}
}

func TestDB_Pool_Nil(t *testing.T) {
	db := &DB{pool: nil}

	if db.Pool() != nil {
		t.Error("Pool() should return nil when pool is nil")
	}
}

func TestNewFromPool(t *testing.T) {
	db := NewFromPool(nil)
	if db == nil {
		t.Fatal("NewFromPool() returned nil")
	}
}

func TestNewRun(t *testing.T) {
	report := sampleReport()

	run, err := NewRun(report)
	if err != nil {
		t.Fatalf("NewRun() error: %v", err)
	}

	if run.ID != report.RunID {
		t.Errorf("ID = %s, want %s", run.ID, report.RunID)
	}
	if run.Suite != "solid-srp" {
		t.Errorf("Suite = %s, want solid-srp", run.Suite)
	}
	if run.Status != "completed" {
		t.Errorf("Status = %s, want completed", run.Status)
	}
	if run.TotalScore != 8 || run.MaxScore != 12 {
		t.Errorf("score = %v/%d, want 8/12", run.TotalScore, run.MaxScore)
	}
	if run.Fingerprint != "00000000deadbeef" {
		t.Errorf("Fingerprint = %s", run.Fingerprint)
	}
	if run.DurationMS != 1500 {
		t.Errorf("DurationMS = %d, want 1500", run.DurationMS)
	}
	if !run.StartedAt.Equal(report.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", run.StartedAt, report.StartedAt)
	}

	var decoded map[string]any
	if err := json.Unmarshal(run.Report, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded["module"] != "SOLID - Single Responsibility Principle" {
		t.Errorf("report module = %v", decoded["module"])
	}
}

func TestNewRun_ErrorReport(t *testing.T) {
	report := &engine.SuiteReport{
		Suite:  "ddd-ecommerce",
		Module: "Domain-Driven Design - E-commerce Domain",
		Status: engine.StatusError,
		Error:  "Failed to import solution: boom",
	}

	run, err := NewRun(report)
	if err != nil {
		t.Fatalf("NewRun() error: %v", err)
	}

	if run.ID == uuid.Nil {
		t.Error("ID should be assigned")
	}
	if report.RunID != uuid.Nil {
		t.Error("NewRun() should not modify the report")
	}
	decoded, err := run.SuiteReport()
	if err != nil {
		t.Fatalf("SuiteReport() error: %v", err)
	}
	if decoded.RunID != run.ID {
		t.Errorf("stored RunID = %s, want %s", decoded.RunID, run.ID)
	}
	if run.Status != "error" || run.Error != "Failed to import solution: boom" {
		t.Errorf("run = %+v", run)
	}
	if run.StartedAt.IsZero() {
		t.Error("StartedAt should default to now")
	}
}

func TestNewRun_Nil(t *testing.T) {
	if _, err := NewRun(nil); err == nil {
		t.Error("expected error for nil report")
	}
}

func TestRun_SuiteReport(t *testing.T) {
	report := sampleReport()
	run, err := NewRun(report)
	if err != nil {
		t.Fatalf("NewRun() error: %v", err)
	}

	decoded, err := run.SuiteReport()
	if err != nil {
		t.Fatalf("SuiteReport() error: %v", err)
	}

	if decoded.RunID != report.RunID {
		t.Errorf("RunID = %s, want %s", decoded.RunID, report.RunID)
	}
	if len(decoded.Results) != 2 {
		t.Fatalf("Results = %d, want 2", len(decoded.Results))
	}
	if decoded.Results[1].Error != "EmailService class not found" {
		t.Errorf("Results[1].Error = %s", decoded.Results[1].Error)
	}
	if !decoded.DetectedPatterns[analyzer.PatternFactory] {
		t.Error("factory pattern should survive")
	}
}

func TestRun_SuiteReport_Invalid(t *testing.T) {
	run := &Run{Report: json.RawMessage(`not json`)}
	if _, err := run.SuiteReport(); err == nil {
		t.Error("expected error for invalid report")
	}
}

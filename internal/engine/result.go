package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/QTest-hq/qgrade/internal/analyzer"
)

// Outcome is the verdict of a single check
type Outcome string

const (
	OutcomePass  Outcome = "PASS"
	OutcomeFail  Outcome = "FAIL"
	OutcomeError Outcome = "ERROR"
	OutcomeSkip  Outcome = "SKIP"
)

// Status of a suite run
type Status string

const (
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Result holds the outcome of running one check
type Result struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Module      string        `json:"module" yaml:"module"`
	Outcome     Outcome       `json:"result" yaml:"result"`
	Duration    time.Duration `json:"execution_time" yaml:"execution_time"`
	Error       string        `json:"error_message,omitempty" yaml:"error_message,omitempty"`
	Score       float64       `json:"score" yaml:"score"`
	Points      int           `json:"points" yaml:"points"`
}

// Passed reports whether the check passed
func (r Result) Passed() bool {
	return r.Outcome == OutcomePass
}

// SuiteReport is the outcome of running one suite against one solution
type SuiteReport struct {
	RunID            uuid.UUID                 `json:"run_id" yaml:"run_id"`
	Suite            string                    `json:"suite" yaml:"suite"`
	Module           string                    `json:"module" yaml:"module"`
	Status           Status                    `json:"status" yaml:"status"`
	Error            string                    `json:"error,omitempty" yaml:"error,omitempty"`
	TotalScore       float64                   `json:"total_score" yaml:"total_score"`
	MaxScore         int                       `json:"max_score" yaml:"max_score"`
	Percentage       float64                   `json:"percentage" yaml:"percentage"`
	Results          []Result                  `json:"results" yaml:"results"`
	DetectedPatterns map[analyzer.Pattern]bool `json:"detected_patterns" yaml:"detected_patterns"`
	FoundClasses     []string                  `json:"found_classes" yaml:"found_classes"`

	File        string        `json:"file,omitempty" yaml:"file,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	StartedAt   time.Time     `json:"started_at" yaml:"started_at"`
	Duration    time.Duration `json:"duration" yaml:"duration"`
}

// Completed reports whether the suite ran its checks
func (r *SuiteReport) Completed() bool {
	return r.Status == StatusCompleted
}

// Patterns returns the detected pattern names in canonical order
func (r *SuiteReport) Patterns() []string {
	return analyzer.Detected(r.DetectedPatterns)
}

// Counts tallies results by outcome
func (r *SuiteReport) Counts() map[Outcome]int {
	counts := make(map[Outcome]int, 4)
	for _, res := range r.Results {
		counts[res.Outcome]++
	}
	return counts
}

// Package grader is the entry point for grading a solution file against the
// course suites.
package grader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/QTest-hq/qgrade/internal/engine"
	"github.com/QTest-hq/qgrade/internal/suite"
)

// FileNotFoundError is returned when the solution file does not exist
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("Solution file not found: %s", e.Path)
}

// UnknownSuiteError is returned for a suite key that is not registered
type UnknownSuiteError struct {
	Name      string
	Available []string
}

func (e *UnknownSuiteError) Error() string {
	return fmt.Sprintf("Test suite not found: %s", e.Name)
}

// Results holds suite reports in registry order
type Results struct {
	File   string                `json:"file" yaml:"file"`
	Suites []*engine.SuiteReport `json:"suites" yaml:"suites"`
}

// Get returns the report for a suite key, or nil
func (r *Results) Get(key string) *engine.SuiteReport {
	for _, s := range r.Suites {
		if s.Suite == key {
			return s
		}
	}
	return nil
}

// Total sums the completed suites
func (r *Results) Total() (score float64, maxScore int, percentage float64) {
	for _, s := range r.Suites {
		if !s.Completed() {
			continue
		}
		score += s.TotalScore
		maxScore += s.MaxScore
	}
	if maxScore > 0 {
		percentage = score / float64(maxScore) * 100
	}
	return score, maxScore, percentage
}

// Grader runs registered suites against solution files
type Grader struct {
	registry *suite.Registry
	runner   *engine.Runner
}

// New creates a grader. A nil registry means the default course suites and
// a nil runner means engine.NewRunner(engine.Config{}), which loads solutions
// statically. FromConfig builds a grader with the configured loader.
func New(registry *suite.Registry, runner *engine.Runner) *Grader {
	if registry == nil {
		registry = suite.Default()
	}
	if runner == nil {
		runner = engine.NewRunner(engine.Config{})
	}
	return &Grader{registry: registry, runner: runner}
}

// Registry returns the suites the grader knows
func (g *Grader) Registry() *suite.Registry {
	return g.registry
}

// TestSolution grades path against one suite, or all suites when suiteKey is
// empty. Only a missing file or an unknown key abort the call.
func (g *Grader) TestSolution(ctx context.Context, path, suiteKey string) (*Results, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Error().Str("path", path).Msg("solution file not found")
			return nil, &FileNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to stat solution: %w", err)
	}

	suites := g.registry.Suites()
	if suiteKey != "" {
		s, ok := g.registry.Get(suiteKey)
		if !ok {
			return nil, &UnknownSuiteError{Name: suiteKey, Available: g.registry.Keys()}
		}
		suites = []*suite.Suite{s}
	}

	results := &Results{
		File:   path,
		Suites: make([]*engine.SuiteReport, 0, len(suites)),
	}
	for _, s := range suites {
		results.Suites = append(results.Suites, g.runSuite(ctx, s, path))
	}
	return results, nil
}

// runSuite isolates a suite so a panic becomes an error report
func (g *Grader) runSuite(ctx context.Context, s *suite.Suite, path string) *engine.SuiteReport {
	var (
		report *engine.SuiteReport
		pc     panics.Catcher
	)
	pc.Try(func() {
		report = g.runner.RunSuite(ctx, s, path)
	})
	if r := pc.Recovered(); r != nil {
		log.Error().Str("suite", s.Key).Interface("panic", r.Value).Msg("suite panicked")
		return &engine.SuiteReport{
			Suite:   s.Key,
			Module:  s.ModuleName,
			Status:  engine.StatusError,
			Error:   fmt.Sprint(r.Value),
			Results: []engine.Result{},
			File:    path,
		}
	}
	return report
}

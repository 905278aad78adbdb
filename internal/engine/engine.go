// Package engine runs suite checks against a loaded solution and scores them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/QTest-hq/qgrade/internal/analyzer"
	"github.com/QTest-hq/qgrade/internal/loader"
	"github.com/QTest-hq/qgrade/internal/suite"
)

// Config configures a Runner
type Config struct {
	Loader   loader.Loader      // defaults to a StaticLoader
	Analyzer *analyzer.Analyzer // defaults to analyzer.New()

	// EnforceTimeouts runs each check in its own goroutine bounded by the
	// case timeout. A check that overruns keeps its goroutine until it returns.
	EnforceTimeouts bool

	// OnSuiteStart and OnCase are progress callbacks
	OnSuiteStart func(s *suite.Suite)
	OnCase       func(suiteKey string, r Result)
}

// Runner executes suites sequentially on the caller's goroutine
type Runner struct {
	loader          loader.Loader
	analyzer        *analyzer.Analyzer
	enforceTimeouts bool
	onSuiteStart    func(s *suite.Suite)
	onCase          func(suiteKey string, r Result)
}

// NewRunner creates a runner. Without a configured Loader it reads solutions
// with a StaticLoader, which never executes student code, so top-level
// exceptions in a solution are not load failures. Use a PythonLoader (see
// grader.NewLoader) for import semantics.
func NewRunner(cfg Config) *Runner {
	r := &Runner{
		loader:          cfg.Loader,
		analyzer:        cfg.Analyzer,
		enforceTimeouts: cfg.EnforceTimeouts,
		onSuiteStart:    cfg.OnSuiteStart,
		onCase:          cfg.OnCase,
	}
	if r.loader == nil {
		r.loader = loader.NewStaticLoader()
	}
	if r.analyzer == nil {
		r.analyzer = analyzer.New()
	}
	return r
}

// TimeoutError reports a check that did not return within its budget
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("check exceeded %s", e.Timeout)
}

// TypeName returns the Python-style exception name
func (e *TimeoutError) TypeName() string {
	return "TimeoutError"
}

// PanicError wraps a value recovered from a panicking check
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprint(e.Value)
}

// TypeName returns "Panic"
func (e *PanicError) TypeName() string {
	return "Panic"
}

// RunCase runs one check. It never panics.
func (r *Runner) RunCase(ctx context.Context, tc suite.TestCase, mod *loader.Module) Result {
	res := Result{
		Name:        tc.Name,
		Description: tc.Description,
		Module:      tc.Module,
		Points:      tc.Points,
	}

	start := time.Now()
	var err error
	if r.enforceTimeouts && tc.Timeout > 0 {
		err = runWithTimeout(ctx, tc, mod)
	} else {
		err = invoke(tc.Check, mod)
	}
	res.Duration = time.Since(start)

	var failure *suite.AssertionError
	switch {
	case err == nil:
		res.Outcome = OutcomePass
		res.Score = float64(tc.Points)
	case errors.As(err, &failure):
		res.Outcome = OutcomeFail
		res.Error = failure.Error()
	default:
		res.Outcome = OutcomeError
		res.Error = fmt.Sprintf("%s: %s", errorTypeName(err), err.Error())
	}

	log.Debug().
		Str("case", tc.Name).
		Str("outcome", string(res.Outcome)).
		Dur("duration", res.Duration).
		Msg("check finished")

	return res
}

func invoke(check suite.Check, mod *loader.Module) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = check(mod)
	})
	if recovered := pc.Recovered(); recovered != nil {
		return &PanicError{Value: recovered.Value}
	}
	return err
}

func runWithTimeout(ctx context.Context, tc suite.TestCase, mod *loader.Module) error {
	ctx, cancel := context.WithTimeout(ctx, tc.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- invoke(tc.Check, mod)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Timeout: tc.Timeout}
		}
		return ctx.Err()
	}
}

// errorTypeName names an error the way the report shows exception types.
// Errors that carry no name of their own are reported as Exception.
func errorTypeName(err error) string {
	var named interface{ TypeName() string }
	if errors.As(err, &named) {
		return named.TypeName()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "CancelledError"
	case errors.Is(err, context.DeadlineExceeded):
		return "TimeoutError"
	}
	return "Exception"
}

// RunSuite loads the solution once and runs every case in declared order.
// A solution that cannot be loaded yields a report with status error.
func (r *Runner) RunSuite(ctx context.Context, s *suite.Suite, path string) *SuiteReport {
	report := &SuiteReport{
		RunID:            uuid.New(),
		Suite:            s.Key,
		Module:           s.ModuleName,
		MaxScore:         s.MaxPoints(),
		Results:          make([]Result, 0, len(s.Cases())),
		DetectedPatterns: make(map[analyzer.Pattern]bool),
		FoundClasses:     make([]string, 0),
		File:             path,
		StartedAt:        time.Now(),
	}
	defer func() {
		report.Duration = time.Since(report.StartedAt)
	}()

	if r.onSuiteStart != nil {
		r.onSuiteStart(s)
	}

	log.Info().Str("suite", s.Key).Str("file", path).Msg("running suite")

	mod, err := r.loader.Load(ctx, path)
	if err != nil {
		msg := err.Error()
		var loadErr *loader.LoadError
		if errors.As(err, &loadErr) {
			msg = loadErr.Message
		}
		report.Status = StatusError
		report.Error = "Failed to import solution: " + msg
		return report
	}

	report.Fingerprint = fmt.Sprintf("%016x", xxhash.Sum64(mod.Source))

	// a solution the analyzer cannot parse still gets its checks run
	if analysis, err := r.analyzer.Analyze(ctx, mod.Source); err == nil {
		report.DetectedPatterns = analysis.Patterns
		report.FoundClasses = analysis.Classes
	}

	for _, tc := range s.Cases() {
		var res Result
		if ctx.Err() != nil {
			res = skipped(tc, ctx.Err())
		} else {
			res = r.RunCase(ctx, tc, mod)
		}
		report.Results = append(report.Results, res)
		report.TotalScore += res.Score

		if r.onCase != nil {
			r.onCase(s.Key, res)
		}
	}

	if report.MaxScore > 0 {
		report.Percentage = report.TotalScore / float64(report.MaxScore) * 100
	}
	report.Status = StatusCompleted

	log.Info().
		Str("suite", s.Key).
		Float64("score", report.TotalScore).
		Int("max", report.MaxScore).
		Str("fingerprint", report.Fingerprint).
		Msg("suite complete")

	return report
}

func skipped(tc suite.TestCase, err error) Result {
	return Result{
		Name:        tc.Name,
		Description: tc.Description,
		Module:      tc.Module,
		Points:      tc.Points,
		Outcome:     OutcomeSkip,
		Error:       fmt.Sprintf("%s: %s", errorTypeName(err), err.Error()),
	}
}

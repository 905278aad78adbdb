package grader

import (
	"fmt"

	"github.com/QTest-hq/qgrade/internal/config"
	"github.com/QTest-hq/qgrade/internal/engine"
	"github.com/QTest-hq/qgrade/internal/loader"
)

// NewLoader builds the loader named by the grading configuration
func NewLoader(cfg config.GradingConfig) (loader.Loader, error) {
	switch cfg.Loader {
	case config.LoaderStatic:
		return loader.NewStaticLoader(), nil
	case config.LoaderPython, "":
		l, err := loader.NewPythonLoader(cfg.Python, cfg.LoadTimeout)
		if err != nil {
			return nil, fmt.Errorf("failed to create python loader: %w", err)
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown loader %q", cfg.Loader)
	}
}

// RunnerConfig returns an engine configuration for cfg. Callers may add
// progress callbacks before building the runner.
func RunnerConfig(cfg config.GradingConfig) (engine.Config, error) {
	l, err := NewLoader(cfg)
	if err != nil {
		return engine.Config{}, err
	}
	return engine.Config{
		Loader:          l,
		EnforceTimeouts: cfg.EnforceTimeouts,
	}, nil
}

// FromConfig creates a grader over the default suites
func FromConfig(cfg config.GradingConfig) (*Grader, error) {
	rc, err := RunnerConfig(cfg)
	if err != nil {
		return nil, err
	}
	return New(nil, engine.NewRunner(rc)), nil
}

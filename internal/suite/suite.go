// Package suite holds the catalog of course checks. A check inspects a loaded
// solution and returns nil, an *AssertionError for an unmet expectation, or
// any other error for a broken solution.
package suite

import (
	"fmt"
	"time"

	"github.com/QTest-hq/qgrade/internal/loader"
)

const (
	DefaultPoints  = 1
	DefaultTimeout = 30 * time.Second
)

// Check inspects a loaded module. It must not retain or modify it.
type Check func(mod *loader.Module) error

// TestCase is one scored check
type TestCase struct {
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Check       Check         `json:"-" yaml:"-"`
	Module      string        `json:"module" yaml:"module"`
	Points      int           `json:"points" yaml:"points"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`

	// Metadata for reports, never checked automatically
	RequiredPatterns []string `json:"required_patterns,omitempty" yaml:"required_patterns,omitempty"`
	RequiredClasses  []string `json:"required_classes,omitempty" yaml:"required_classes,omitempty"`
	RequiredMethods  []string `json:"required_methods,omitempty" yaml:"required_methods,omitempty"`
}

// CaseOption customises a TestCase
type CaseOption func(*TestCase)

// WithTimeout sets the check's time budget
func WithTimeout(d time.Duration) CaseOption {
	return func(tc *TestCase) { tc.Timeout = d }
}

// WithRequiredPatterns records the patterns a check is about
func WithRequiredPatterns(patterns ...string) CaseOption {
	return func(tc *TestCase) { tc.RequiredPatterns = patterns }
}

// WithRequiredClasses records the classes a check expects
func WithRequiredClasses(classes ...string) CaseOption {
	return func(tc *TestCase) { tc.RequiredClasses = classes }
}

// WithRequiredMethods records the methods a check expects
func WithRequiredMethods(methods ...string) CaseOption {
	return func(tc *TestCase) { tc.RequiredMethods = methods }
}

// NewCase creates a test case. Points below 1 fall back to DefaultPoints.
func NewCase(name, description string, check Check, module string, points int, opts ...CaseOption) TestCase {
	tc := TestCase{
		Name:        name,
		Description: description,
		Check:       check,
		Module:      module,
		Points:      points,
		Timeout:     DefaultTimeout,
	}
	if tc.Points < 1 {
		tc.Points = DefaultPoints
	}
	for _, opt := range opts {
		opt(&tc)
	}
	return tc
}

// Suite is an ordered set of cases for one course module
type Suite struct {
	Key        string
	ModuleName string
	cases      []TestCase
	maxPoints  int
}

// New creates a suite; its maximum score is fixed here
func New(key, moduleName string, cases ...TestCase) *Suite {
	s := &Suite{
		Key:        key,
		ModuleName: moduleName,
		cases:      make([]TestCase, len(cases)),
	}
	copy(s.cases, cases)
	for _, c := range s.cases {
		s.maxPoints += c.Points
	}
	return s
}

// Cases returns the cases in declared order
func (s *Suite) Cases() []TestCase {
	out := make([]TestCase, len(s.cases))
	copy(out, s.cases)
	return out
}

// MaxPoints is the sum of all case points
func (s *Suite) MaxPoints() int {
	return s.maxPoints
}

// Registry maps stable suite keys to suites, in registration order
type Registry struct {
	keys   []string
	suites map[string]*Suite
}

// NewRegistry creates a registry. Duplicate keys are rejected.
func NewRegistry(suites ...*Suite) (*Registry, error) {
	r := &Registry{
		keys:   make([]string, 0, len(suites)),
		suites: make(map[string]*Suite, len(suites)),
	}
	for _, s := range suites {
		if _, dup := r.suites[s.Key]; dup {
			return nil, fmt.Errorf("duplicate suite key: %s", s.Key)
		}
		r.keys = append(r.keys, s.Key)
		r.suites[s.Key] = s
	}
	return r, nil
}

// Get returns the suite registered under key
func (r *Registry) Get(key string) (*Suite, bool) {
	s, ok := r.suites[key]
	return s, ok
}

// Keys returns suite keys in registration order
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Suites returns suites in registration order
func (r *Registry) Suites() []*Suite {
	out := make([]*Suite, 0, len(r.keys))
	for _, k := range r.keys {
		out = append(out, r.suites[k])
	}
	return out
}

// Default returns the five course suites
func Default() *Registry {
	r, err := NewRegistry(
		SOLIDSuite(),
		PatternsSuite(),
		ArchitectureSuite(),
		DDDSuite(),
		ProjectSuite(),
	)
	if err != nil {
		panic(err)
	}
	return r
}

package output

import (
	"bytes"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/QTest-hq/qgrade/internal/analyzer"
	"github.com/QTest-hq/qgrade/internal/engine"
	"github.com/QTest-hq/qgrade/internal/grader"
	"github.com/QTest-hq/qgrade/internal/suite"
)

func sampleResults() *grader.Results {
	return &grader.Results{
		File: "solution.py",
		Suites: []*engine.SuiteReport{
			{
				Suite:      "solid-srp",
				Module:     "SOLID - Single Responsibility Principle",
				Status:     engine.StatusCompleted,
				TotalScore: 7,
				MaxScore:   10,
				Percentage: 70,
				Results: []engine.Result{
					{Name: "test_a", Outcome: engine.OutcomePass, Score: 7, Points: 7},
					{Name: "test_b", Outcome: engine.OutcomeFail, Error: "B missing", Points: 3},
				},
				DetectedPatterns: map[analyzer.Pattern]bool{analyzer.PatternFactory: true},
				FoundClasses:     []string{"A"},
			},
			{
				Suite:  "ddd-ecommerce",
				Module: "Domain-Driven Design - E-commerce Domain",
				Status: engine.StatusError,
				Error:  "Failed to import solution: boom",
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"", FormatText},
		{"text", FormatText},
		{"TABLE", FormatTable},
		{"json", FormatJSON},
		{"yml", FormatYAML},
		{"yaml", FormatYAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseFormat("xml")
	assert.EqualError(t, err, "unknown output format: xml")
}

func TestResults_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatText, &buf, false).Results(sampleResults()))

	assert.Equal(t,
		"✅ SOLID - Single Responsibility Principle: 7.0/10 (70.0%)\n"+
			"❌ ddd-ecommerce: Failed to import solution: boom\n",
		buf.String())
}

func TestResults_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON, &buf, false).Results(sampleResults()))

	var decoded struct {
		Suites []map[string]any `json:"suites"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Suites, 2)

	first := decoded.Suites[0]
	for _, key := range []string{"module", "status", "total_score", "max_score", "percentage", "results", "detected_patterns", "found_classes"} {
		assert.Contains(t, first, key)
	}
	assert.Equal(t, "completed", first["status"])
	assert.Equal(t, 7.0, first["total_score"])
	assert.Equal(t, map[string]any{"factory": true}, first["detected_patterns"])
	assert.Equal(t, "error", decoded.Suites[1]["status"])
}

func TestResults_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatYAML, &buf, false).Results(sampleResults()))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	suites, ok := decoded["suites"].([]any)
	require.True(t, ok)
	require.Len(t, suites, 2)

	first := suites[0].(map[string]any)
	assert.Equal(t, "SOLID - Single Responsibility Principle", first["module"])
	assert.Equal(t, 10, first["max_score"])
}

func TestResults_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatTable, &buf, false).Results(sampleResults()))

	out := buf.String()
	assert.Contains(t, out, "Grading Results")
	assert.Contains(t, out, "solid-srp")
	assert.Contains(t, out, "ddd-ecommerce")
	assert.Contains(t, out, "70.0%")
}

func TestSuites_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatText, &buf, false).Suites(suite.Default()))

	out := buf.String()
	assert.Contains(t, out, "  • solid-srp: SOLID - Single Responsibility Principle (5 tests, 12 points)\n")
	assert.Contains(t, out, "  • project-implementation: Complete Project Implementation (9 tests, 37 points)\n")
}

func TestSuites_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatJSON, &buf, false).Suites(suite.Default()))

	var infos []suiteInfo
	require.NoError(t, json.Unmarshal(buf.Bytes(), &infos))
	require.Len(t, infos, 5)
	assert.Equal(t, suiteInfo{Key: "ddd-ecommerce", Module: "Domain-Driven Design - E-commerce Domain", Tests: 7, MaxPoints: 26}, infos[3])
}

func TestAnalysis_Text(t *testing.T) {
	r := &analyzer.Result{
		Classes:  []string{"ShapeFactory"},
		Methods:  map[string][]string{"ShapeFactory": {"create"}, "": {"main"}},
		Patterns: map[analyzer.Pattern]bool{analyzer.PatternFactory: true},
	}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatText, &buf, false).Analysis("shapes.py", r))

	out := buf.String()
	assert.Contains(t, out, "📋 Classes: ShapeFactory\n")
	assert.Contains(t, out, "  ShapeFactory: create\n")
	assert.Contains(t, out, "  (module): main\n")
	assert.Contains(t, out, "🎨 Patterns: factory\n")
}

func TestTDD_Text(t *testing.T) {
	report := analyzer.TDDReport{
		HasTests:                  true,
		TestCount:                 1,
		ImplementationCount:       1,
		Compliant:                 true,
		TestFunctions:             []string{"test_add"},
		ImplementationFunctions:   []string{"add"},
		TestsBeforeImplementation: true,
		Recommendations:           []string{"Great job following TDD practices!"},
	}

	var buf bytes.Buffer
	require.NoError(t, NewFormatter(FormatText, &buf, false).TDD("calc.py", report))

	out := buf.String()
	assert.Contains(t, out, "✅ compliant\n")
	assert.Contains(t, out, "Tests: 1 (test_add)\n")
	assert.Contains(t, out, "  • Great job following TDD practices!\n")
}

func TestSummaryLine(t *testing.T) {
	results := sampleResults()
	assert.Equal(t, "✅ SOLID - Single Responsibility Principle: 7.0/10 (70.0%)", SummaryLine(results.Suites[0]))
	assert.Equal(t, "❌ ddd-ecommerce: Failed to import solution: boom", SummaryLine(results.Suites[1]))
}

func TestTracker(t *testing.T) {
	tr := NewTracker(io.Discard, "grading", 3)
	tr.Describe("solid-srp")
	tr.Tick()
	tr.Tick()
	tr.Tick()
	tr.Finish()
}

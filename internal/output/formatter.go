// Package output renders grading results for the terminal and for machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"

	"github.com/QTest-hq/qgrade/internal/analyzer"
	"github.com/QTest-hq/qgrade/internal/engine"
	"github.com/QTest-hq/qgrade/internal/grader"
	"github.com/QTest-hq/qgrade/internal/suite"
)

// Format represents an output format.
type Format string

const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat converts a string to a Format. Empty means text.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format: %s", s)
}

// Formatter writes results in one format.
type Formatter struct {
	format  Format
	writer  io.Writer
	colored bool
}

// NewFormatter creates a formatter writing to w.
func NewFormatter(format Format, w io.Writer, colored bool) *Formatter {
	return &Formatter{format: format, writer: w, colored: colored}
}

// Format returns the configured format.
func (f *Formatter) Format() Format {
	return f.format
}

// SummaryLine is the one-line result of a suite
func SummaryLine(r *engine.SuiteReport) string {
	if !r.Completed() {
		return fmt.Sprintf("❌ %s: %s", r.Suite, r.Error)
	}
	return fmt.Sprintf("✅ %s: %s/%d (%.1f%%)", r.Module, grader.FormatScore(r.TotalScore), r.MaxScore, r.Percentage)
}

// Results writes grading results.
func (f *Formatter) Results(results *grader.Results) error {
	switch f.format {
	case FormatJSON:
		return f.json(results)
	case FormatYAML:
		return f.yaml(results)
	case FormatTable:
		return f.resultsTable(results)
	}

	for _, r := range results.Suites {
		line := SummaryLine(r)
		switch {
		case !f.colored:
			fmt.Fprintln(f.writer, line)
		case r.Completed():
			color.New(color.FgGreen).Fprintln(f.writer, line)
		default:
			color.New(color.FgRed).Fprintln(f.writer, line)
		}
	}
	return nil
}

func (f *Formatter) resultsTable(results *grader.Results) error {
	rows := make([][]string, 0, len(results.Suites))
	for _, r := range results.Suites {
		counts := r.Counts()
		rows = append(rows, []string{
			r.Suite,
			string(r.Status),
			fmt.Sprintf("%s/%d", grader.FormatScore(r.TotalScore), r.MaxScore),
			fmt.Sprintf("%.1f%%", r.Percentage),
			strconv.Itoa(counts[engine.OutcomePass]),
			strconv.Itoa(counts[engine.OutcomeFail]),
			strconv.Itoa(counts[engine.OutcomeError]),
		})
	}

	score, maxScore, pct := results.Total()
	footer := []string{"TOTAL", "", fmt.Sprintf("%s/%d", grader.FormatScore(score), maxScore), fmt.Sprintf("%.1f%%", pct), "", "", ""}

	f.title("Grading Results")
	f.table([]string{"Suite", "Status", "Score", "Percent", "Pass", "Fail", "Error"}, rows, footer)
	return nil
}

// suiteInfo is the serialisable form of a registered suite
type suiteInfo struct {
	Key       string `json:"key" yaml:"key"`
	Module    string `json:"module" yaml:"module"`
	Tests     int    `json:"tests" yaml:"tests"`
	MaxPoints int    `json:"max_points" yaml:"max_points"`
}

// Suites lists registered suites.
func (f *Formatter) Suites(registry *suite.Registry) error {
	infos := make([]suiteInfo, 0)
	for _, s := range registry.Suites() {
		infos = append(infos, suiteInfo{Key: s.Key, Module: s.ModuleName, Tests: len(s.Cases()), MaxPoints: s.MaxPoints()})
	}

	switch f.format {
	case FormatJSON:
		return f.json(infos)
	case FormatYAML:
		return f.yaml(infos)
	case FormatTable:
		rows := make([][]string, 0, len(infos))
		for _, i := range infos {
			rows = append(rows, []string{i.Key, i.Module, strconv.Itoa(i.Tests), strconv.Itoa(i.MaxPoints)})
		}
		f.title("Available Test Suites")
		f.table([]string{"Key", "Module", "Tests", "Points"}, rows, nil)
		return nil
	}

	f.title("📋 Available Test Suites:")
	for _, i := range infos {
		fmt.Fprintf(f.writer, "  • %s: %s (%d tests, %d points)\n", i.Key, i.Module, i.Tests, i.MaxPoints)
	}
	return nil
}

// analysis is the serialisable form of a structural analysis
type analysis struct {
	File     string              `json:"file" yaml:"file"`
	Classes  []string            `json:"classes" yaml:"classes"`
	Methods  map[string][]string `json:"methods" yaml:"methods"`
	Patterns []string            `json:"patterns" yaml:"patterns"`
}

// Analysis writes classes, methods and detected patterns of a file.
func (f *Formatter) Analysis(file string, r *analyzer.Result) error {
	data := analysis{File: file, Classes: r.Classes, Methods: r.Methods, Patterns: r.DetectedPatterns()}

	switch f.format {
	case FormatJSON:
		return f.json(data)
	case FormatYAML:
		return f.yaml(data)
	case FormatTable:
		rows := make([][]string, 0, len(data.Classes)+1)
		for _, c := range data.Classes {
			rows = append(rows, []string{c, strings.Join(data.Methods[c], ", ")})
		}
		if fns := data.Methods[""]; len(fns) > 0 {
			rows = append(rows, []string{"(module)", strings.Join(fns, ", ")})
		}
		f.title(file)
		f.table([]string{"Class", "Methods"}, rows, nil)
		fmt.Fprintf(f.writer, "Patterns: %s\n", orNone(data.Patterns))
		return nil
	}

	f.title("🔍 " + file)
	fmt.Fprintf(f.writer, "📋 Classes: %s\n", orNone(data.Classes))
	for _, c := range data.Classes {
		fmt.Fprintf(f.writer, "  %s: %s\n", c, orNone(data.Methods[c]))
	}
	if fns := data.Methods[""]; len(fns) > 0 {
		fmt.Fprintf(f.writer, "  (module): %s\n", strings.Join(fns, ", "))
	}
	fmt.Fprintf(f.writer, "🎨 Patterns: %s\n", orNone(data.Patterns))
	return nil
}

// TDD writes a test-first compliance report.
func (f *Formatter) TDD(file string, r analyzer.TDDReport) error {
	switch f.format {
	case FormatJSON:
		return f.json(r)
	case FormatYAML:
		return f.yaml(r)
	}

	f.title("🧪 TDD compliance: " + file)
	status := "❌ not compliant"
	if r.Compliant {
		status = "✅ compliant"
	}
	if f.colored {
		c := color.New(color.FgRed)
		if r.Compliant {
			c = color.New(color.FgGreen)
		}
		c.Fprintln(f.writer, status)
	} else {
		fmt.Fprintln(f.writer, status)
	}
	fmt.Fprintf(f.writer, "Tests: %d (%s)\n", r.TestCount, orNone(r.TestFunctions))
	fmt.Fprintf(f.writer, "Implementation: %d (%s)\n", r.ImplementationCount, orNone(r.ImplementationFunctions))
	fmt.Fprintf(f.writer, "Tests before implementation: %t\n", r.TestsBeforeImplementation)
	for _, rec := range r.Recommendations {
		fmt.Fprintf(f.writer, "  • %s\n", rec)
	}
	return nil
}

func (f *Formatter) title(s string) {
	if f.colored {
		color.New(color.Bold).Fprintln(f.writer, s)
	} else {
		fmt.Fprintln(f.writer, s)
	}
	fmt.Fprintln(f.writer, strings.Repeat("=", 50))
}

func (f *Formatter) table(headers []string, rows [][]string, footer []string) {
	table := tablewriter.NewTable(f.writer,
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Row: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.Border{
				Left:   tw.Off,
				Right:  tw.Off,
				Top:    tw.Off,
				Bottom: tw.Off,
			},
			Settings: tw.Settings{
				Separators: tw.Separators{
					BetweenColumns: tw.Off,
				},
			},
		}),
	)

	table.Header(headers)
	for _, row := range rows {
		table.Append(row)
	}
	if len(footer) > 0 {
		args := make([]any, len(footer))
		for i, v := range footer {
			args[i] = v
		}
		table.Footer(args...)
	}
	table.Render()
	fmt.Fprintln(f.writer)
}

func (f *Formatter) json(data any) error {
	enc := json.NewEncoder(f.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *Formatter) yaml(data any) error {
	enc := yaml.NewEncoder(f.writer)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func orNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

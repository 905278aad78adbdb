package grader

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/QTest-hq/qgrade/internal/engine"
)

// ReportTimeLayout names saved report files
const ReportTimeLayout = "20060102_150405"

// FormatScore prints a score the way the course tooling always has: 7.0, 7.5
func FormatScore(score float64) string {
	s := strconv.FormatFloat(score, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Band returns the encouragement line for an overall percentage
func Band(percentage float64) string {
	switch {
	case percentage >= 90:
		return "🎉 Excellent work!"
	case percentage >= 75:
		return "👍 Good job!"
	case percentage >= 60:
		return "📈 Keep improving!"
	}
	return "💪 More practice needed!"
}

// GenerateReport renders the plain-text grading report
func GenerateReport(results *Results, generatedAt time.Time) string {
	lines := []string{
		"📋 AUTOMATED TESTING REPORT",
		strings.Repeat("=", 50),
		"Generated: " + generatedAt.Format("2006-01-02 15:04:05"),
		"",
	}

	completed := false
	for _, s := range results.Suites {
		if !s.Completed() {
			lines = append(lines, fmt.Sprintf("❌ %s: %s", s.Suite, s.Error))
			continue
		}
		completed = true
		lines = append(lines, suiteSection(s)...)
	}

	score, maxScore, pct := results.Total()
	total := "0"
	if completed {
		total = FormatScore(score)
	}

	lines = append(lines,
		"🏆 OVERALL SUMMARY",
		strings.Repeat("-", 20),
		fmt.Sprintf("Total Score: %s/%d (%.1f%%)", total, maxScore, pct),
		Band(pct),
	)
	return strings.Join(lines, "\n")
}

func suiteSection(s *engine.SuiteReport) []string {
	lines := []string{
		"📚 " + s.Module,
		strings.Repeat("-", 30),
		fmt.Sprintf("Score: %s/%d (%.1f%%)", FormatScore(s.TotalScore), s.MaxScore, s.Percentage),
	}

	if patterns := s.Patterns(); len(patterns) > 0 {
		lines = append(lines, "🎨 Detected Patterns: "+strings.Join(patterns, ", "))
	}
	if classes := s.FoundClasses; len(classes) > 0 {
		if len(classes) > 5 {
			classes = classes[:5]
		}
		lines = append(lines, "📋 Found Classes: "+strings.Join(classes, ", "))
	}

	for _, r := range s.Results {
		icon := "❌"
		if r.Passed() {
			icon = "✅"
		}
		lines = append(lines, fmt.Sprintf("  %s %s", icon, r.Description))
		if r.Error != "" {
			lines = append(lines, "     Error: "+r.Error)
		}
	}
	return append(lines, "")
}

// SaveReport writes report to dir as test_report_YYYYMMDD_HHMMSS.txt and
// returns the file path
func SaveReport(dir, report string, now time.Time) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(dir, "test_report_"+now.Format(ReportTimeLayout)+".txt")
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

package analyzer

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// IsTestName reports whether a function name marks a test
func IsTestName(name string) bool {
	return strings.HasPrefix(name, "test_") || strings.Contains(strings.ToLower(name), "test")
}

// CheckTDDCompliance classifies every plain def of source as test or
// implementation and checks that tests are declared first. Code that does not
// parse yields a zero report with a single recommendation.
func (a *Analyzer) CheckTDDCompliance(ctx context.Context, source []byte) TDDReport {
	tree, err := a.Parse(ctx, source)
	if err != nil {
		return TDDReport{
			TestFunctions:           []string{},
			ImplementationFunctions: []string{},
			Recommendations:         []string{"Fix syntax errors in your code first"},
		}
	}
	defer tree.Close()

	report := TDDReport{
		TestFunctions:           make([]string, 0),
		ImplementationFunctions: make([]string, 0),
	}

	firstTest, firstImpl := -1, -1
	index := 0
	walkTree(tree.Root(), func(n *sitter.Node) {
		if n.Type() != "function_definition" || isAsync(n) {
			return
		}
		name := nodeName(n, tree.source)
		switch {
		case IsTestName(name):
			report.TestFunctions = append(report.TestFunctions, name)
			if firstTest < 0 {
				firstTest = index
			}
		case !strings.HasPrefix(name, "_"):
			report.ImplementationFunctions = append(report.ImplementationFunctions, name)
			if firstImpl < 0 {
				firstImpl = index
			}
		}
		index++
	})

	report.TestCount = len(report.TestFunctions)
	report.ImplementationCount = len(report.ImplementationFunctions)
	report.HasTests = report.TestCount > 0

	// Vacuously true when either group is empty
	report.TestsBeforeImplementation = true
	if firstTest >= 0 && firstImpl >= 0 {
		report.TestsBeforeImplementation = firstTest < firstImpl
	}

	report.Recommendations = tddRecommendations(report)
	report.Compliant = report.HasTests && report.TestsBeforeImplementation

	return report
}

func tddRecommendations(r TDDReport) []string {
	switch {
	case !r.HasTests:
		return []string{
			"❌ No test functions found. TDD requires writing tests first!",
			"💡 Start with a test function like: def test_your_function():",
		}
	case r.TestCount < r.ImplementationCount:
		return []string{
			fmt.Sprintf("⚠️ You have %d test(s) but %d implementation(s)", r.TestCount, r.ImplementationCount),
			"💡 Consider adding more tests to cover all functionality",
		}
	case !r.TestsBeforeImplementation:
		return []string{
			"⚠️ Implementation functions appear before test functions",
			"💡 In TDD, tests should be written before implementation",
		}
	default:
		return []string{"✅ Good TDD structure! Tests are written before implementation"}
	}
}

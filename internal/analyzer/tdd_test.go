package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckTDDCompliance(t *testing.T) {
	a := New()
	ctx := context.Background()

	t.Run("only a test", func(t *testing.T) {
		report := a.CheckTDDCompliance(ctx, []byte("def test_x(): assert True\n"))

		assert.True(t, report.HasTests)
		assert.Equal(t, 1, report.TestCount)
		assert.Equal(t, 0, report.ImplementationCount)
		assert.True(t, report.TestsBeforeImplementation)
		assert.True(t, report.Compliant)
		assert.Equal(t, []string{"✅ Good TDD structure! Tests are written before implementation"}, report.Recommendations)
	})

	t.Run("implementation first", func(t *testing.T) {
		src := "def add(a, b): return a + b\n\ndef test_add(): assert add(1, 1) == 2\n"
		report := a.CheckTDDCompliance(ctx, []byte(src))

		assert.True(t, report.HasTests)
		assert.False(t, report.TestsBeforeImplementation)
		assert.False(t, report.Compliant)
		assert.Equal(t, []string{
			"⚠️ Implementation functions appear before test functions",
			"💡 In TDD, tests should be written before implementation",
		}, report.Recommendations)
	})

	t.Run("test first", func(t *testing.T) {
		src := "def test_add(): assert add(1, 1) == 2\n\ndef add(a, b): return a + b\n"
		report := a.CheckTDDCompliance(ctx, []byte(src))

		assert.True(t, report.TestsBeforeImplementation)
		assert.True(t, report.Compliant)
		assert.Equal(t, []string{"test_add"}, report.TestFunctions)
		assert.Equal(t, []string{"add"}, report.ImplementationFunctions)
	})

	t.Run("no tests", func(t *testing.T) {
		report := a.CheckTDDCompliance(ctx, []byte("def add(a, b): return a + b\n"))

		assert.False(t, report.HasTests)
		assert.True(t, report.TestsBeforeImplementation)
		assert.False(t, report.Compliant)
		assert.Equal(t, []string{
			"❌ No test functions found. TDD requires writing tests first!",
			"💡 Start with a test function like: def test_your_function():",
		}, report.Recommendations)
	})

	t.Run("async defs are not classified", func(t *testing.T) {
		src := "async def test_orders():\n    pass\n\nasync def build():\n    pass\n"
		report := a.CheckTDDCompliance(ctx, []byte(src))

		assert.False(t, report.HasTests)
		assert.Empty(t, report.TestFunctions)
		assert.Empty(t, report.ImplementationFunctions)
		assert.False(t, report.Compliant)
	})

	t.Run("fewer tests than implementations", func(t *testing.T) {
		src := `
def test_add():
    pass

def add(a, b):
    return a + b

def sub(a, b):
    return a - b
`
		report := a.CheckTDDCompliance(ctx, []byte(src))

		assert.Equal(t, 1, report.TestCount)
		assert.Equal(t, 2, report.ImplementationCount)
		assert.True(t, report.Compliant)
		assert.Equal(t, []string{
			"⚠️ You have 1 test(s) but 2 implementation(s)",
			"💡 Consider adding more tests to cover all functionality",
		}, report.Recommendations)
	})

	t.Run("private helpers and methods", func(t *testing.T) {
		src := `
class TestCalculator:
    def setUp(self):
        pass

    def testAddition(self):
        pass

def _helper():
    pass

def compute():
    pass
`
		report := a.CheckTDDCompliance(ctx, []byte(src))

		assert.Equal(t, []string{"testAddition"}, report.TestFunctions)
		assert.Equal(t, []string{"setUp", "compute"}, report.ImplementationFunctions)
		assert.False(t, report.TestsBeforeImplementation)
	})

	t.Run("syntax error", func(t *testing.T) {
		report := a.CheckTDDCompliance(ctx, []byte("def broken(:\n"))

		assert.False(t, report.HasTests)
		assert.Zero(t, report.TestCount)
		assert.False(t, report.Compliant)
		assert.Equal(t, []string{"Fix syntax errors in your code first"}, report.Recommendations)
	})
}

func TestIsTestName(t *testing.T) {
	assert.True(t, IsTestName("test_add"))
	assert.True(t, IsTestName("check_Test"))
	assert.True(t, IsTestName("_test_helper"))
	assert.False(t, IsTestName("add"))
}

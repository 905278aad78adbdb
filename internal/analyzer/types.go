package analyzer

// Pattern identifies one of the design patterns the analyzer can detect
type Pattern string

const (
	PatternSingleton Pattern = "singleton"
	PatternFactory   Pattern = "factory"
	PatternStrategy  Pattern = "strategy"
	PatternObserver  Pattern = "observer"
	PatternDecorator Pattern = "decorator"
	PatternCommand   Pattern = "command"
	PatternBuilder   Pattern = "builder"
)

// AllPatterns lists every detectable pattern in report order
var AllPatterns = []Pattern{
	PatternSingleton,
	PatternFactory,
	PatternStrategy,
	PatternObserver,
	PatternDecorator,
	PatternCommand,
	PatternBuilder,
}

// Result holds the structural facts derived from one source text
type Result struct {
	Classes  []string            `json:"classes"`
	Methods  map[string][]string `json:"methods"` // keyed by enclosing class, "" for module level
	Patterns map[Pattern]bool    `json:"patterns"`
}

// DetectedPatterns returns the names of detected patterns in report order
func (r *Result) DetectedPatterns() []string {
	return Detected(r.Patterns)
}

// Detected returns the detected pattern names of a pattern map in report order
func Detected(patterns map[Pattern]bool) []string {
	names := make([]string, 0)
	for _, p := range AllPatterns {
		if patterns[p] {
			names = append(names, string(p))
		}
	}
	return names
}

// TDDReport describes how closely a source file follows test-first ordering
type TDDReport struct {
	HasTests                  bool     `json:"has_tests" yaml:"has_tests"`
	TestCount                 int      `json:"test_count" yaml:"test_count"`
	ImplementationCount       int      `json:"implementation_count" yaml:"implementation_count"`
	Compliant                 bool     `json:"tdd_compliant" yaml:"tdd_compliant"`
	TestFunctions             []string `json:"test_functions" yaml:"test_functions"`
	ImplementationFunctions   []string `json:"implementation_functions" yaml:"implementation_functions"`
	TestsBeforeImplementation bool     `json:"tests_before_implementation" yaml:"tests_before_implementation"`
	Recommendations           []string `json:"recommendations" yaml:"recommendations"`
}

// Outline is the module-level structure of a Python file
type Outline struct {
	Classes     []Class      `json:"classes"`
	Functions   []Function   `json:"functions"`
	Assignments []Assignment `json:"assignments"`
	Imports     []Import     `json:"imports"`
	Routes      []Route      `json:"routes"`
	Includes    []Include    `json:"includes,omitempty"`
}

// Class represents a top-level class definition
type Class struct {
	Name       string     `json:"name"`
	StartLine  int        `json:"start_line"`
	EndLine    int        `json:"end_line"`
	Bases      []string   `json:"bases,omitempty"`
	Decorators []string   `json:"decorators,omitempty"`
	Methods    []Function `json:"methods,omitempty"`
	Attributes []string   `json:"attributes,omitempty"` // class-level names bound by assignment
	Fields     []Field    `json:"fields,omitempty"`     // annotated class-level names
	Source     string     `json:"-"`
}

// Field is an annotated class attribute such as a dataclass field
type Field struct {
	Name       string `json:"name"`
	HasDefault bool   `json:"has_default"`
}

// Function represents a function or method definition
type Function struct {
	Name       string      `json:"name"`
	Class      string      `json:"class,omitempty"` // enclosing class for methods
	StartLine  int         `json:"start_line"`
	EndLine    int         `json:"end_line"`
	Parameters []Parameter `json:"parameters,omitempty"`
	Decorators []string    `json:"decorators,omitempty"`
	Async      bool        `json:"async,omitempty"`
	Locals     []string    `json:"locals,omitempty"` // plain names bound in the body
	SelfAttrs  []string    `json:"self_attrs,omitempty"`
	Source     string      `json:"-"`
}

// Parameter represents a function parameter
type Parameter struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Default  string `json:"default,omitempty"`
	Optional bool   `json:"optional,omitempty"`
	Variadic bool   `json:"variadic,omitempty"` // *args or **kwargs
}

// Required reports whether a caller must supply the parameter
func (p Parameter) Required() bool {
	return !p.Optional && !p.Variadic
}

// Assignment is a module-level name binding
type Assignment struct {
	Name string `json:"name"`
	Line int    `json:"line"`
	Call string `json:"call,omitempty"` // callee when the value is a call, e.g. FastAPI

	// Keywords holds the string literal keyword arguments of that call
	Keywords map[string]string `json:"keywords,omitempty"`
}

// Include is a module-level router mount like app.include_router(router, prefix="/api")
type Include struct {
	Object string `json:"object"`
	Router string `json:"router"`
	Prefix string `json:"prefix,omitempty"`
	Line   int    `json:"line"`
}

// Import represents an import statement
type Import struct {
	Module string   `json:"module"`
	Names  []string `json:"names"` // names bound in the importing module
	From   bool     `json:"from"`
	Line   int      `json:"line"`
}

// Route is a web route registered through a decorator like @app.get("/path")
type Route struct {
	Object  string `json:"object"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Handler string `json:"handler"`
	Line    int    `json:"line"`
}

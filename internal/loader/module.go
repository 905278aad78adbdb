// Package loader turns a solution file into a read-only Module snapshot that
// checks can inspect without touching the student's process.
package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// ModuleName is the synthetic name solutions are loaded under
const ModuleName = "student_solution"

// Loader loads a solution file. The returned error is always a *LoadError.
type Loader interface {
	Load(ctx context.Context, path string) (*Module, error)
}

// Kind classifies a module member
type Kind string

const (
	KindClass    Kind = "class"
	KindFunction Kind = "function"
	KindModule   Kind = "module"
	KindValue    Kind = "value"
)

// Instance is the outcome of calling a class with no arguments
type Instance struct {
	Attributes []string   `json:"attributes"`
	Error      *Exception `json:"error,omitempty"`
}

// HasAttr reports whether the instance exposes name
func (i *Instance) HasAttr(name string) bool {
	return contains(i.Attributes, name)
}

// Member is one name bound in the loaded module
type Member struct {
	Name       string   `json:"name"`
	Kind       Kind     `json:"kind"`
	Attributes []string `json:"attributes,omitempty"` // dir() of the member
	Bases      []string `json:"bases,omitempty"`

	// Constructor facts, classes only
	InitParams   []string `json:"init_params,omitempty"` // includes self
	InitRequired int      `json:"init_required"`
	InitLocals   int      `json:"init_locals"` // len(__init__.__code__.co_varnames), -1 without Python code

	Coroutine bool      `json:"coroutine,omitempty"`
	Source    string    `json:"source,omitempty"`
	Routes    []string  `json:"routes,omitempty"`
	HasRoutes bool      `json:"has_routes,omitempty"`
	Instance  *Instance `json:"instance,omitempty"`
}

// IsClass reports whether the member is a class
func (m *Member) IsClass() bool {
	return m.Kind == KindClass
}

// HasAttr reports whether name appears in dir() of the member
func (m *Member) HasAttr(name string) bool {
	return contains(m.Attributes, name)
}

// RouteList returns the paths of app.routes, or an AttributeError when the
// member has no routes attribute
func (m *Member) RouteList() ([]string, error) {
	if !m.HasRoutes {
		return nil, NewAttributeError("'%s' object has no attribute 'routes'", m.typeName())
	}
	return m.Routes, nil
}

func (m *Member) typeName() string {
	switch m.Kind {
	case KindClass:
		return "type"
	case KindFunction:
		return "function"
	case KindModule:
		return "module"
	}
	return "object"
}

// Module is an immutable snapshot of a loaded solution
type Module struct {
	Name    string
	File    string
	Source  []byte
	members []Member
	index   map[string]int
}

// NewModule builds a snapshot. Members are ordered by name like dir().
func NewModule(name, file string, source []byte, members []Member) *Module {
	sorted := make([]Member, len(members))
	copy(sorted, members)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	m := &Module{
		Name:    name,
		File:    file,
		Source:  source,
		members: make([]Member, 0, len(sorted)),
		index:   make(map[string]int, len(sorted)),
	}
	for _, mem := range sorted {
		if _, dup := m.index[mem.Name]; dup {
			continue
		}
		m.index[mem.Name] = len(m.members)
		m.members = append(m.members, mem)
	}
	return m
}

// Dir returns the sorted member names
func (m *Module) Dir() []string {
	names := make([]string, len(m.members))
	for i, mem := range m.members {
		names[i] = mem.Name
	}
	return names
}

// Members returns a copy of the members in dir() order
func (m *Module) Members() []Member {
	out := make([]Member, len(m.members))
	copy(out, m.members)
	return out
}

// Has reports whether the module binds name
func (m *Module) Has(name string) bool {
	_, ok := m.index[name]
	return ok
}

// Get looks up a member. A missing name is an AttributeError.
func (m *Module) Get(name string) (*Member, error) {
	i, ok := m.index[name]
	if !ok {
		return nil, NewAttributeError("module '%s' has no attribute '%s'", m.Name, name)
	}
	mem := m.members[i]
	return &mem, nil
}

// Instantiate calls the class name with no arguments
func (m *Module) Instantiate(name string) (*Instance, error) {
	mem, err := m.Get(name)
	if err != nil {
		return nil, err
	}
	if !mem.IsClass() {
		return nil, NewTypeError("%s is not a class", name)
	}
	if mem.Instance != nil {
		if mem.Instance.Error != nil {
			return nil, mem.Instance.Error
		}
		return mem.Instance, nil
	}
	if mem.InitRequired > 0 {
		return nil, missingArgs(name, mem.InitParams, mem.InitRequired)
	}
	return &Instance{Attributes: mem.Attributes}, nil
}

func missingArgs(class string, params []string, required int) *Exception {
	names := params
	if len(names) > 0 {
		names = names[1:]
	}
	if len(names) > required {
		names = names[:required]
	}
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}

	noun := "argument"
	if required > 1 {
		noun = "arguments"
	}
	return NewTypeError("%s.__init__() missing %d required positional %s: %s",
		class, required, noun, joinPython(quoted))
}

// joinPython joins names the way CPython lists missing arguments
func joinPython(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}

// Exception is a Python-style runtime error raised while inspecting a module
type Exception struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *Exception) Error() string {
	return e.Message
}

// TypeName returns the Python exception class name
func (e *Exception) TypeName() string {
	return e.Type
}

// NewAttributeError creates an AttributeError
func NewAttributeError(format string, args ...any) *Exception {
	return &Exception{Type: "AttributeError", Message: fmt.Sprintf(format, args...)}
}

// NewTypeError creates a TypeError
func NewTypeError(format string, args ...any) *Exception {
	return &Exception{Type: "TypeError", Message: fmt.Sprintf(format, args...)}
}

// NewOSError creates an OSError
func NewOSError(format string, args ...any) *Exception {
	return &Exception{Type: "OSError", Message: fmt.Sprintf(format, args...)}
}

// Reason classifies a load failure
type Reason string

const (
	ReasonNotFound Reason = "not_found"
	ReasonRead     Reason = "read"
	ReasonSyntax   Reason = "syntax"
	ReasonImport   Reason = "import"
	ReasonTimeout  Reason = "timeout"
	ReasonProtocol Reason = "protocol"
)

// LoadError describes why a solution could not be loaded
type LoadError struct {
	Path    string
	Reason  Reason
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("error importing %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func loadErrorf(path string, reason Reason, err error, format string, args ...any) *LoadError {
	return &LoadError{Path: path, Reason: reason, Message: fmt.Sprintf(format, args...), Err: err}
}

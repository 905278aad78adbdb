package loader

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"

	"github.com/QTest-hq/qgrade/internal/analyzer"
)

// objectAttributes is dir(object) plus the attributes every plain class gets
var objectAttributes = []string{
	"__class__", "__delattr__", "__dict__", "__dir__", "__doc__", "__eq__",
	"__format__", "__ge__", "__getattribute__", "__getstate__", "__gt__",
	"__hash__", "__init__", "__init_subclass__", "__le__", "__lt__",
	"__module__", "__ne__", "__new__", "__reduce__", "__reduce_ex__",
	"__repr__", "__setattr__", "__sizeof__", "__str__", "__subclasshook__",
	"__weakref__",
}

// moduleAttributes is what dir() shows for any module loaded from a file
var moduleAttributes = []string{
	"__builtins__", "__cached__", "__doc__", "__file__", "__loader__",
	"__name__", "__package__", "__spec__",
}

var dataclassAttributes = []string{"__dataclass_fields__", "__dataclass_params__", "__match_args__"}

// routeFactories are callables whose result exposes .routes
var routeFactories = map[string]bool{
	"FastAPI":   true,
	"APIRouter": true,
	"Starlette": true,
}

// fastAPIRoutes are registered by FastAPI() itself
var fastAPIRoutes = []string{"/openapi.json", "/docs", "/docs/oauth2-redirect", "/redoc"}

// StaticLoader builds a Module from the syntax tree alone. No student code is
// executed, so facts that only exist at runtime are approximated.
type StaticLoader struct {
	analyzer *analyzer.Analyzer
}

// NewStaticLoader creates a static loader
func NewStaticLoader() *StaticLoader {
	return &StaticLoader{analyzer: analyzer.New()}
}

// Load parses the solution and derives its members
func (l *StaticLoader) Load(ctx context.Context, path string) (*Module, error) {
	var (
		mod     *Module
		loadErr *LoadError
		pc      panics.Catcher
	)
	pc.Try(func() {
		mod, loadErr = l.load(ctx, path)
	})
	if r := pc.Recovered(); r != nil {
		loadErr = loadErrorf(path, ReasonProtocol, r.AsError(), "loader panic: %v", r.Value)
	}

	if loadErr != nil {
		log.Warn().
			Str("path", path).
			Str("reason", string(loadErr.Reason)).
			Str("error", loadErr.Message).
			Msg("failed to load solution")
		return nil, loadErr
	}
	return mod, nil
}

func (l *StaticLoader) load(ctx context.Context, path string) (*Module, *LoadError) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, loadErrorf(path, ReasonRead, err, "%v", err)
	}

	source, lerr := readSource(path, abs)
	if lerr != nil {
		return nil, lerr
	}

	tree, err := l.analyzer.Parse(ctx, source)
	if err != nil {
		var synErr *analyzer.SyntaxError
		if errors.As(err, &synErr) {
			return nil, loadErrorf(path, ReasonSyntax, err, "SyntaxError: %s (%s, line %d)",
				synErr.Msg, filepath.Base(path), synErr.Line)
		}
		return nil, loadErrorf(path, ReasonRead, err, "%v", err)
	}
	defer tree.Close()

	members := newStaticBuilder(analyzer.BuildOutline(tree)).members()

	log.Debug().Str("file", abs).Int("members", len(members)).Msg("solution loaded statically")

	return NewModule(ModuleName, abs, source, members), nil
}

// binding is a module-level name in statement order
type binding struct {
	line   int
	member Member
}

type staticBuilder struct {
	outline *analyzer.Outline
	classes map[string]*analyzer.Class
	prefix  map[string]string // router name -> APIRouter(prefix=...)
}

func newStaticBuilder(outline *analyzer.Outline) *staticBuilder {
	b := &staticBuilder{
		outline: outline,
		classes: make(map[string]*analyzer.Class, len(outline.Classes)),
		prefix:  make(map[string]string),
	}
	for i := range outline.Classes {
		b.classes[outline.Classes[i].Name] = &outline.Classes[i]
	}
	for _, a := range outline.Assignments {
		if p, ok := a.Keywords["prefix"]; ok {
			b.prefix[a.Name] = p
		}
	}
	return b
}

func (b *staticBuilder) members() []Member {
	bindings := make([]binding, 0)

	for _, imp := range b.outline.Imports {
		kind := KindValue
		if !imp.From {
			kind = KindModule
		}
		for _, name := range imp.Names {
			bindings = append(bindings, binding{imp.Line, valueMember(name, kind)})
		}
	}
	for _, fn := range b.outline.Functions {
		m := valueMember(fn.Name, KindFunction)
		m.Coroutine = fn.Async
		m.Source = fn.Source
		bindings = append(bindings, binding{fn.StartLine, m})
	}
	for _, a := range b.outline.Assignments {
		bindings = append(bindings, binding{a.Line, b.assignmentMember(a)})
	}
	for i := range b.outline.Classes {
		cls := &b.outline.Classes[i]
		bindings = append(bindings, binding{cls.StartLine, b.classMember(cls)})
	}

	// later bindings of a name win, as they do at runtime
	sort.SliceStable(bindings, func(i, j int) bool { return bindings[i].line < bindings[j].line })
	byName := make(map[string]Member, len(bindings)+len(moduleAttributes))
	for _, name := range moduleAttributes {
		byName[name] = valueMember(name, KindValue)
	}
	for _, bd := range bindings {
		byName[bd.member.Name] = bd.member
	}

	members := make([]Member, 0, len(byName))
	for _, m := range byName {
		members = append(members, m)
	}
	return members
}

func valueMember(name string, kind Kind) Member {
	return Member{Name: name, Kind: kind, InitLocals: -1}
}

func (b *staticBuilder) assignmentMember(a analyzer.Assignment) Member {
	m := valueMember(a.Name, KindValue)
	factory := a.Call
	if i := strings.LastIndex(factory, "."); i >= 0 {
		factory = factory[i+1:]
	}
	if !routeFactories[factory] {
		return m
	}

	m.HasRoutes = true
	m.Routes = make([]string, 0)
	if factory == "FastAPI" {
		m.Routes = append(m.Routes, fastAPIRoutes...)
	}
	m.Routes = append(m.Routes, b.routesOf(a.Name, map[string]bool{})...)
	return m
}

// routesOf returns the full paths registered on object, following
// include_router mounts
func (b *staticBuilder) routesOf(object string, visiting map[string]bool) []string {
	if visiting[object] {
		return nil
	}
	visiting[object] = true
	defer delete(visiting, object)

	type entry struct {
		line  int
		paths []string
	}
	entries := make([]entry, 0)

	prefix := b.prefix[object]
	for _, r := range b.outline.Routes {
		if r.Object == object {
			entries = append(entries, entry{r.Line, []string{prefix + r.Path}})
		}
	}
	for _, inc := range b.outline.Includes {
		if inc.Object != object {
			continue
		}
		sub := b.routesOf(inc.Router, visiting)
		paths := make([]string, len(sub))
		for i, p := range sub {
			paths[i] = prefix + inc.Prefix + p
		}
		entries = append(entries, entry{inc.Line, paths})
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].line < entries[j].line })
	routes := make([]string, 0)
	for _, e := range entries {
		routes = append(routes, e.paths...)
	}
	return routes
}

// mro returns the class followed by its same-file ancestors, depth first
func (b *staticBuilder) mro(cls *analyzer.Class) []*analyzer.Class {
	order := make([]*analyzer.Class, 0, 4)
	seen := make(map[string]bool)

	var visit func(c *analyzer.Class)
	visit = func(c *analyzer.Class) {
		if seen[c.Name] {
			return
		}
		seen[c.Name] = true
		order = append(order, c)
		for _, base := range c.Bases {
			if parent, ok := b.classes[baseName(base)]; ok {
				visit(parent)
			}
		}
	}
	visit(cls)
	return order
}

func (b *staticBuilder) classMember(cls *analyzer.Class) Member {
	chain := b.mro(cls)

	attrs := newNameSet(objectAttributes...)
	abstract := make(map[string]bool)
	concrete := make(map[string]bool)
	inheritsABC := false
	isDataclass := false

	for _, c := range chain {
		for _, fn := range c.Methods {
			attrs.add(fn.Name)
			if hasDecorator(fn.Decorators, "abstractmethod") {
				if !concrete[fn.Name] {
					abstract[fn.Name] = true
				}
			} else if !abstract[fn.Name] {
				concrete[fn.Name] = true
			}
		}
		attrs.add(c.Attributes...)
		if len(c.Fields) > 0 {
			attrs.add("__annotations__")
		}
		if hasDecorator(c.Decorators, "dataclass") {
			attrs.add(dataclassAttributes...)
			if c == cls {
				isDataclass = true
			}
		}
		for _, base := range c.Bases {
			switch baseName(base) {
			case "ABC":
				inheritsABC = true
				attrs.add("__abstractmethods__", "_abc_impl")
			case "Enum", "IntEnum", "StrEnum", "Flag":
				attrs.add("__members__", "name", "value")
			}
		}
	}

	m := Member{
		Name:       cls.Name,
		Kind:       KindClass,
		Attributes: attrs.sorted(),
		Bases:      make([]string, 0, len(cls.Bases)),
		Source:     cls.Source,
		InitLocals: -1,
	}
	for _, base := range cls.Bases {
		if name := baseName(base); name != "object" {
			m.Bases = append(m.Bases, name)
		}
	}

	b.describeInit(&m, chain, isDataclass)

	instance := &Instance{}
	switch {
	case inheritsABC && len(abstract) > 0:
		names := make([]string, 0, len(abstract))
		for name := range abstract {
			names = append(names, "'"+name+"'")
		}
		sort.Strings(names)
		noun := "method"
		if len(names) > 1 {
			noun = "methods"
		}
		instance.Error = NewTypeError("Can't instantiate abstract class %s without an implementation for abstract %s %s",
			cls.Name, noun, strings.Join(names, ", "))
	case m.InitRequired > 0:
		instance.Error = missingArgs(cls.Name, m.InitParams, m.InitRequired)
	default:
		inst := newNameSet(m.Attributes...)
		for _, c := range chain {
			if init := findMethod(c, "__init__"); init != nil {
				inst.add(init.SelfAttrs...)
			}
			if hasDecorator(c.Decorators, "dataclass") {
				for _, f := range c.Fields {
					inst.add(f.Name)
				}
			}
		}
		instance.Attributes = inst.sorted()
	}
	if instance.Attributes == nil {
		instance.Attributes = []string{}
	}
	m.Instance = instance

	return m
}

// describeInit fills the constructor facts from the first __init__ in the
// chain, a synthesised dataclass __init__, or object.__init__
func (b *staticBuilder) describeInit(m *Member, chain []*analyzer.Class, isDataclass bool) {
	if isDataclass {
		params := []string{"self"}
		required := 0
		// base dataclass fields come first
		for i := len(chain) - 1; i >= 0; i-- {
			if !hasDecorator(chain[i].Decorators, "dataclass") {
				continue
			}
			for _, f := range chain[i].Fields {
				params = append(params, f.Name)
				if !f.HasDefault {
					required++
				}
			}
		}
		m.InitParams = params
		m.InitRequired = required
		m.InitLocals = len(params)
		return
	}

	for _, c := range chain {
		init := findMethod(c, "__init__")
		if init == nil {
			continue
		}
		m.InitParams = make([]string, 0, len(init.Parameters))
		for i, p := range init.Parameters {
			m.InitParams = append(m.InitParams, p.Name)
			if i > 0 && p.Required() {
				m.InitRequired++
			}
		}
		m.InitLocals = len(init.Locals)
		return
	}

	m.InitParams = []string{"self", "args", "kwargs"}
}

func findMethod(cls *analyzer.Class, name string) *analyzer.Function {
	for i := range cls.Methods {
		if cls.Methods[i].Name == name {
			return &cls.Methods[i]
		}
	}
	return nil
}

// hasDecorator matches name, a dotted form like abc.name, or a call of either
func hasDecorator(decorators []string, name string) bool {
	for _, d := range decorators {
		if i := strings.IndexByte(d, '('); i >= 0 {
			d = d[:i]
		}
		if d == name || strings.HasSuffix(d, "."+name) {
			return true
		}
	}
	return false
}

// baseName reduces a base expression like abc.ABC or Generic[T] to its name
func baseName(expr string) string {
	if i := strings.IndexAny(expr, "[("); i >= 0 {
		expr = expr[:i]
	}
	if i := strings.LastIndex(expr, "."); i >= 0 {
		expr = expr[i+1:]
	}
	return strings.TrimSpace(expr)
}

type nameSet map[string]bool

func newNameSet(names ...string) nameSet {
	s := make(nameSet, len(names))
	s.add(names...)
	return s
}

func (s nameSet) add(names ...string) {
	for _, n := range names {
		s[n] = true
	}
}

func (s nameSet) sorted() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

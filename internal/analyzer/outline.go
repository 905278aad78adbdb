package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// routeMethods are decorator attributes that register a web route
var routeMethods = map[string]bool{
	"get":       true,
	"post":      true,
	"put":       true,
	"delete":    true,
	"patch":     true,
	"options":   true,
	"head":      true,
	"trace":     true,
	"route":     true,
	"api_route": true,
	"websocket": true,
}

// BuildOutline extracts the module-level structure of a parsed file. Statements
// nested in module-level if, try and with blocks count as module level.
func BuildOutline(t *Tree) *Outline {
	out := &Outline{
		Classes:     make([]Class, 0),
		Functions:   make([]Function, 0),
		Assignments: make([]Assignment, 0),
		Imports:     make([]Import, 0),
		Routes:      make([]Route, 0),
		Includes:    make([]Include, 0),
	}
	src := t.source

	moduleStatements(t.Root(), func(n *sitter.Node) {
		switch n.Type() {
		case "class_definition":
			out.Classes = append(out.Classes, parseClass(n, n, src))
		case "function_definition":
			out.Functions = append(out.Functions, parseFunction(n, n, src))
		case "decorated_definition":
			def := n.ChildByFieldName("definition")
			if def == nil {
				return
			}
			switch def.Type() {
			case "class_definition":
				out.Classes = append(out.Classes, parseClass(def, n, src))
			case "function_definition":
				fn := parseFunction(def, n, src)
				out.Functions = append(out.Functions, fn)
				out.Routes = append(out.Routes, parseRoutes(n, fn.Name, src)...)
			}
		case "import_statement", "import_from_statement":
			if imp, ok := parseImport(n, src); ok {
				out.Imports = append(out.Imports, imp)
			}
		case "expression_statement":
			if n.NamedChildCount() == 0 {
				return
			}
			expr := n.NamedChild(0)
			switch expr.Type() {
			case "assignment":
				out.Assignments = append(out.Assignments, parseAssignments(expr, src)...)
			case "call":
				if inc, ok := parseInclude(expr, src); ok {
					out.Includes = append(out.Includes, inc)
				}
			}
		}
	})

	return out
}

// moduleStatements calls fn for every statement executed at module level
func moduleStatements(n *sitter.Node, fn func(*sitter.Node)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "if_statement", "elif_clause", "else_clause",
			"try_statement", "except_clause", "except_group_clause", "finally_clause",
			"with_statement", "block":
			moduleStatements(child, fn)
		default:
			fn(child)
		}
	}
}

func parseClass(node, outer *sitter.Node, source []byte) Class {
	cls := Class{
		Name:       nodeName(node, source),
		StartLine:  int(outer.StartPoint().Row) + 1,
		EndLine:    int(outer.EndPoint().Row) + 1,
		Bases:      baseClasses(node, source),
		Decorators: decoratorNames(outer, source),
		Methods:    make([]Function, 0),
		Attributes: make([]string, 0),
		Fields:     make([]Field, 0),
		Source:     outer.Content(source),
	}

	body := node.ChildByFieldName("body")
	if body == nil {
		return cls
	}

	for i := 0; i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		def, outerDef := item, item
		if item.Type() == "decorated_definition" {
			if def = item.ChildByFieldName("definition"); def == nil {
				continue
			}
		}

		switch def.Type() {
		case "function_definition":
			fn := parseFunction(def, outerDef, source)
			fn.Class = cls.Name
			cls.Methods = append(cls.Methods, fn)
		case "class_definition":
			cls.Attributes = append(cls.Attributes, nodeName(def, source))
		case "expression_statement":
			if def.NamedChildCount() == 0 || def.NamedChild(0).Type() != "assignment" {
				continue
			}
			assign := def.NamedChild(0)
			left := assign.ChildByFieldName("left")
			hasValue := assign.ChildByFieldName("right") != nil
			if assign.ChildByFieldName("type") != nil && left != nil && left.Type() == "identifier" {
				cls.Fields = append(cls.Fields, Field{Name: left.Content(source), HasDefault: hasValue})
			}
			if hasValue {
				for _, a := range parseAssignments(assign, source) {
					cls.Attributes = append(cls.Attributes, a.Name)
				}
			}
		}
	}

	return cls
}

func parseFunction(node, outer *sitter.Node, source []byte) Function {
	fn := Function{
		Name:       nodeName(node, source),
		StartLine:  int(outer.StartPoint().Row) + 1,
		EndLine:    int(outer.EndPoint().Row) + 1,
		Parameters: make([]Parameter, 0),
		Decorators: decoratorNames(outer, source),
		Async:      isAsync(node),
		Source:     outer.Content(source),
	}

	if params := node.ChildByFieldName("parameters"); params != nil {
		fn.Parameters = parseParameters(params, source)
	}

	fn.Locals, fn.SelfAttrs = functionLocals(node, fn.Parameters, source)

	return fn
}

func parseParameters(node *sitter.Node, source []byte) []Parameter {
	params := make([]Parameter, 0)

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		var param Parameter

		switch child.Type() {
		case "identifier":
			param.Name = child.Content(source)
		case "typed_parameter":
			for j := 0; j < int(child.NamedChildCount()); j++ {
				sub := child.NamedChild(j)
				switch sub.Type() {
				case "identifier":
					param.Name = sub.Content(source)
				case "list_splat_pattern", "dictionary_splat_pattern":
					param.Name = splatName(sub, source)
					param.Variadic = true
				}
			}
			if typ := child.ChildByFieldName("type"); typ != nil {
				param.Type = typ.Content(source)
			}
		case "default_parameter", "typed_default_parameter":
			if name := child.ChildByFieldName("name"); name != nil {
				param.Name = name.Content(source)
			}
			if typ := child.ChildByFieldName("type"); typ != nil {
				param.Type = typ.Content(source)
			}
			if val := child.ChildByFieldName("value"); val != nil {
				param.Default = val.Content(source)
			}
			param.Optional = true
		case "list_splat_pattern", "dictionary_splat_pattern":
			param.Name = splatName(child, source)
			param.Variadic = true
		default:
			continue
		}

		if param.Name == "" {
			continue
		}
		params = append(params, param)
	}

	return params
}

func splatName(n *sitter.Node, source []byte) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "identifier" {
			return c.Content(source)
		}
	}
	return strings.TrimLeft(n.Content(source), "*")
}

// functionLocals approximates co_varnames: parameters first, then every plain
// name bound in the body outside nested scopes. It also returns the attribute
// names assigned on the first parameter (self).
func functionLocals(fn *sitter.Node, params []Parameter, source []byte) ([]string, []string) {
	locals := make([]string, 0, len(params))
	selfAttrs := make([]string, 0)
	seen := make(map[string]bool)
	seenAttr := make(map[string]bool)
	declared := make(map[string]bool) // global and nonlocal names

	self := ""
	if len(params) > 0 && !params[0].Variadic {
		self = params[0].Name
	}

	addLocal := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		locals = append(locals, name)
	}
	for _, p := range params {
		addLocal(p.Name)
	}

	var bind func(target *sitter.Node)
	bind = func(target *sitter.Node) {
		switch target.Type() {
		case "identifier":
			name := target.Content(source)
			if !declared[name] {
				addLocal(name)
			}
		case "attribute":
			obj := target.ChildByFieldName("object")
			attr := target.ChildByFieldName("attribute")
			if obj != nil && attr != nil && self != "" && obj.Type() == "identifier" && obj.Content(source) == self {
				name := attr.Content(source)
				if !seenAttr[name] {
					seenAttr[name] = true
					selfAttrs = append(selfAttrs, name)
				}
			}
		case "subscript":
		default:
			for i := 0; i < int(target.NamedChildCount()); i++ {
				bind(target.NamedChild(i))
			}
		}
	}

	body := fn.ChildByFieldName("body")
	if body == nil {
		return locals, selfAttrs
	}

	// global and nonlocal declarations apply to the whole body
	walkTree(body, func(n *sitter.Node) {
		if n.Type() == "global_statement" || n.Type() == "nonlocal_statement" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				declared[n.NamedChild(i).Content(source)] = true
			}
		}
	})

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "function_definition", "class_definition":
			if name := nodeName(n, source); !declared[name] {
				addLocal(name)
			}
			return
		case "lambda", "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
			return
		case "assignment", "augmented_assignment", "for_statement":
			if left := n.ChildByFieldName("left"); left != nil {
				bind(left)
			}
		case "named_expression":
			if name := n.ChildByFieldName("name"); name != nil {
				bind(name)
			}
		case "as_pattern":
			if alias := n.ChildByFieldName("alias"); alias != nil {
				bind(alias)
			}
		case "except_clause":
			for i := 0; i+1 < int(n.ChildCount()); i++ {
				if n.Child(i).Type() == "as" && n.Child(i+1).Type() == "identifier" {
					bind(n.Child(i + 1))
				}
			}
		case "import_statement", "import_from_statement":
			if imp, ok := parseImport(n, source); ok {
				for _, name := range imp.Names {
					addLocal(name)
				}
			}
			return
		}
		visitChildren(n, visit)
	}
	visitChildren(body, visit)

	return locals, selfAttrs
}

func parseImport(n *sitter.Node, source []byte) (Import, bool) {
	imp := Import{
		Names: make([]string, 0),
		From:  n.Type() == "import_from_statement",
		Line:  int(n.StartPoint().Row) + 1,
	}

	var mod *sitter.Node
	if imp.From {
		if mod = n.ChildByFieldName("module_name"); mod == nil {
			return imp, false
		}
		imp.Module = mod.Content(source)
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if mod != nil && child.StartByte() == mod.StartByte() {
			continue
		}
		switch child.Type() {
		case "dotted_name":
			name := child.Content(source)
			if imp.From {
				imp.Names = append(imp.Names, name)
				continue
			}
			if imp.Module == "" {
				imp.Module = name
			}
			// import a.b binds a
			imp.Names = append(imp.Names, strings.SplitN(name, ".", 2)[0])
		case "aliased_import":
			name := child.ChildByFieldName("name")
			alias := child.ChildByFieldName("alias")
			if name != nil && !imp.From && imp.Module == "" {
				imp.Module = name.Content(source)
			}
			if alias != nil {
				imp.Names = append(imp.Names, alias.Content(source))
			}
		}
	}

	return imp, true
}

// parseAssignments returns the names bound by a module or class level
// assignment, including chained targets like a = b = 1
func parseAssignments(assign *sitter.Node, source []byte) []Assignment {
	out := make([]Assignment, 0, 1)
	line := int(assign.StartPoint().Row) + 1

	value := assign
	targets := make([]*sitter.Node, 0, 1)
	for value != nil && value.Type() == "assignment" {
		if left := value.ChildByFieldName("left"); left != nil {
			targets = append(targets, left)
		}
		value = value.ChildByFieldName("right")
	}
	if value == nil {
		// bare annotation
		return out
	}

	call, keywords := "", map[string]string(nil)
	if value.Type() == "call" {
		if fn := value.ChildByFieldName("function"); fn != nil {
			call = fn.Content(source)
		}
		keywords = stringKeywords(value, source)
	}

	var collect func(n *sitter.Node)
	collect = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier":
			out = append(out, Assignment{Name: n.Content(source), Line: line, Call: call, Keywords: keywords})
		case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list", "list_splat_pattern", "parenthesized_expression":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				collect(n.NamedChild(i))
			}
		}
	}
	for _, target := range targets {
		collect(target)
	}

	return out
}

// parseRoutes reads route decorators such as @app.get("/items") or
// @router.route(path="/x")
func parseRoutes(decorated *sitter.Node, handler string, source []byte) []Route {
	routes := make([]Route, 0)
	for _, expr := range decoratorExprs(decorated) {
		if expr.Type() != "call" {
			continue
		}
		fn := expr.ChildByFieldName("function")
		if fn == nil || fn.Type() != "attribute" {
			continue
		}
		obj := fn.ChildByFieldName("object")
		attr := fn.ChildByFieldName("attribute")
		if obj == nil || attr == nil || !routeMethods[attr.Content(source)] {
			continue
		}

		path, ok := firstStringArg(expr, "path", source)
		if !ok {
			continue
		}
		routes = append(routes, Route{
			Object:  obj.Content(source),
			Method:  attr.Content(source),
			Path:    path,
			Handler: handler,
			Line:    int(decorated.StartPoint().Row) + 1,
		})
	}
	return routes
}

func parseInclude(call *sitter.Node, source []byte) (Include, bool) {
	fn := call.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return Include{}, false
	}
	obj := fn.ChildByFieldName("object")
	attr := fn.ChildByFieldName("attribute")
	if obj == nil || attr == nil || attr.Content(source) != "include_router" {
		return Include{}, false
	}

	inc := Include{
		Object: obj.Content(source),
		Line:   int(call.StartPoint().Row) + 1,
	}
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return inc, false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "identifier":
			if inc.Router == "" {
				inc.Router = arg.Content(source)
			}
		case "keyword_argument":
			name := arg.ChildByFieldName("name")
			value := arg.ChildByFieldName("value")
			if name == nil || value == nil {
				continue
			}
			switch name.Content(source) {
			case "prefix":
				if value.Type() == "string" {
					inc.Prefix = stringValue(value, source)
				}
			case "router":
				inc.Router = value.Content(source)
			}
		}
	}
	return inc, inc.Router != ""
}

// firstStringArg returns the first positional string argument of a call, or
// the keyword argument named keyword
func firstStringArg(call *sitter.Node, keyword string, source []byte) (string, bool) {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return "", false
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "string":
			return stringValue(arg, source), true
		case "keyword_argument":
			name := arg.ChildByFieldName("name")
			value := arg.ChildByFieldName("value")
			if name != nil && value != nil && name.Content(source) == keyword && value.Type() == "string" {
				return stringValue(value, source), true
			}
		}
	}
	return "", false
}

func stringKeywords(call *sitter.Node, source []byte) map[string]string {
	args := call.ChildByFieldName("arguments")
	if args == nil {
		return nil
	}
	var kw map[string]string
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() != "keyword_argument" {
			continue
		}
		name := arg.ChildByFieldName("name")
		value := arg.ChildByFieldName("value")
		if name == nil || value == nil || value.Type() != "string" {
			continue
		}
		if kw == nil {
			kw = make(map[string]string)
		}
		kw[name.Content(source)] = stringValue(value, source)
	}
	return kw
}

// stringValue strips the prefix and quotes of a string literal
func stringValue(n *sitter.Node, source []byte) string {
	text := strings.TrimLeft(n.Content(source), "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(text) >= 2*len(q) && strings.HasPrefix(text, q) && strings.HasSuffix(text, q) {
			return text[len(q) : len(text)-len(q)]
		}
	}
	return text
}

// decoratorNames returns decorator expressions without the leading @
func decoratorNames(outer *sitter.Node, source []byte) []string {
	if outer.Type() != "decorated_definition" {
		return nil
	}
	names := make([]string, 0)
	for _, expr := range decoratorExprs(outer) {
		names = append(names, expr.Content(source))
	}
	return names
}

// Package analyzer inspects Python source with tree-sitter: declared classes
// and methods, design-pattern heuristics, TDD ordering and a module outline.
package analyzer

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// SyntaxTips are shown to students whose code does not parse
var SyntaxTips = []string{
	"Missing colons (:) after if/for/def/class",
	"Incorrect indentation",
	"Missing parentheses or brackets",
}

// SyntaxError describes the first syntax problem found in a source text
type SyntaxError struct {
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Msg)
}

// Tree is a successfully parsed Python source
type Tree struct {
	tree   *sitter.Tree
	source []byte
}

// Root returns the module node
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the parsed text
func (t *Tree) Source() []byte {
	return t.source
}

// Close releases the tree-sitter tree
func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
	}
}

// Analyzer parses and inspects Python source code.
// A fresh tree-sitter parser is used per call so one Analyzer can serve
// concurrent requests.
type Analyzer struct{}

// New creates a new analyzer
func New() *Analyzer {
	return &Analyzer{}
}

// Parse parses source into a syntax tree. Code that does not parse yields a
// *SyntaxError; the tree is never partially returned.
func (a *Analyzer) Parse(ctx context.Context, source []byte) (*Tree, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		synErr := firstSyntaxError(root, source)
		tree.Close()
		log.Warn().
			Int("line", synErr.Line).
			Int("column", synErr.Column).
			Str("msg", synErr.Msg).
			Msg("syntax error in code")
		return nil, synErr
	}

	return &Tree{tree: tree, source: source}, nil
}

// Analyze parses source and collects classes, methods per class and patterns
func (a *Analyzer) Analyze(ctx context.Context, source []byte) (*Result, error) {
	tree, err := a.Parse(ctx, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	result := &Result{
		Classes:  FindClasses(tree),
		Methods:  make(map[string][]string),
		Patterns: FindDesignPatterns(tree),
	}
	walkScopes(tree.Root(), tree.source, func(n *sitter.Node, class string) {
		name := nodeName(n, tree.source)
		result.Methods[class] = append(result.Methods[class], name)
	})

	return result, nil
}

// FindClasses returns every class name, nested ones included, in depth-first
// document order
func FindClasses(t *Tree) []string {
	classes := make([]string, 0)
	walkTree(t.Root(), func(n *sitter.Node) {
		if n.Type() == "class_definition" {
			classes = append(classes, nodeName(n, t.source))
		}
	})
	return classes
}

// FindMethods returns function names defined inside class, or every function
// name when class is empty
func FindMethods(t *Tree, class string) []string {
	methods := make([]string, 0)
	walkScopes(t.Root(), t.source, func(n *sitter.Node, enclosing string) {
		if class == "" || enclosing == class {
			methods = append(methods, nodeName(n, t.source))
		}
	})
	return methods
}

// HasAsyncFunctions reports whether any async def appears in the tree
func HasAsyncFunctions(t *Tree) bool {
	found := false
	walkTree(t.Root(), func(n *sitter.Node) {
		if n.Type() == "function_definition" && isAsync(n) {
			found = true
		}
	})
	return found
}

// walkScopes visits plain (non-async) function definitions in document order
// together with the name of their nearest enclosing class ("" at module level).
// Functions nested inside an async def are still visited.
func walkScopes(root *sitter.Node, source []byte, fn func(n *sitter.Node, class string)) {
	scope := make([]string, 0, 4)

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch n.Type() {
		case "class_definition":
			scope = append(scope, nodeName(n, source))
			visitChildren(n, visit)
			scope = scope[:len(scope)-1]
			return
		case "function_definition":
			if isAsync(n) {
				break
			}
			current := ""
			if len(scope) > 0 {
				current = scope[len(scope)-1]
			}
			fn(n, current)
		}
		visitChildren(n, visit)
	}
	visit(root)
}

func visitChildren(n *sitter.Node, visit func(*sitter.Node)) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		visit(n.NamedChild(i))
	}
}

// walkTree walks the tree in pre-order and calls fn for each node
func walkTree(node *sitter.Node, fn func(*sitter.Node)) {
	cursor := sitter.NewTreeCursor(node)
	defer cursor.Close()

	for {
		fn(cursor.CurrentNode())

		if cursor.GoToFirstChild() {
			continue
		}

		for {
			if cursor.GoToNextSibling() {
				break
			}
			if !cursor.GoToParent() {
				return
			}
		}
	}
}

func firstSyntaxError(root *sitter.Node, source []byte) *SyntaxError {
	var found *sitter.Node
	walkTree(root, func(n *sitter.Node) {
		if found == nil && (n.IsError() || n.IsMissing()) {
			found = n
		}
	})

	synErr := &SyntaxError{Line: 1, Column: 1, Msg: "invalid syntax"}
	if found == nil {
		return synErr
	}

	point := found.StartPoint()
	synErr.Line = int(point.Row) + 1
	synErr.Column = int(point.Column) + 1
	if found.IsMissing() {
		synErr.Msg = fmt.Sprintf("expected '%s'", found.Type())
	} else if text := strings.TrimSpace(found.Content(source)); text != "" {
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			text = text[:idx]
		}
		synErr.Msg = fmt.Sprintf("invalid syntax near '%s'", text)
	}
	return synErr
}

func nodeName(n *sitter.Node, source []byte) string {
	if nameNode := n.ChildByFieldName("name"); nameNode != nil {
		return nameNode.Content(source)
	}
	return ""
}

func isAsync(fn *sitter.Node) bool {
	for i := 0; i < int(fn.ChildCount()); i++ {
		if fn.Child(i).Type() == "async" {
			return true
		}
	}
	return false
}

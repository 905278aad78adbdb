package analyzer

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Signal is one fact collected from the tree for pattern detection
type Signal int

const (
	// SignalClassNames matches a needle against the joined, lower-cased class names
	SignalClassNames Signal = iota
	// SignalMethodNames matches a needle against the joined, lower-cased function names
	SignalMethodNames
	// SignalAbstractMethods holds when a method is decorated with abstractmethod
	SignalAbstractMethods
	// SignalInheritance holds when some class declares a base class
	SignalInheritance
)

// Match says how a rule combines its conditions
type Match int

const (
	MatchAny Match = iota
	MatchAll
)

// Condition is a single (signal, needle) test. Needle is ignored for the
// boolean signals.
type Condition struct {
	Signal Signal
	Needle string
}

// Rule detects one pattern from a combination of conditions
type Rule struct {
	Pattern    Pattern
	Match      Match
	Conditions []Condition
}

// Rules is the heuristic detection table. Matching is substring containment
// over the joined name lists, so any method literally named create trips
// factory; course suites rely on these triggers.
var Rules = []Rule{
	{PatternSingleton, MatchAny, []Condition{
		{SignalClassNames, "singleton"},
		{SignalMethodNames, "_instance"},
	}},
	{PatternFactory, MatchAny, []Condition{
		{SignalClassNames, "factory"},
		{SignalMethodNames, "create"},
		{SignalMethodNames, "make"},
	}},
	{PatternStrategy, MatchAll, []Condition{
		{SignalAbstractMethods, ""},
		{SignalInheritance, ""},
		{SignalClassNames, "strategy"},
	}},
	{PatternObserver, MatchAny, []Condition{
		{SignalClassNames, "observer"},
		{SignalMethodNames, "notify"},
		{SignalMethodNames, "subscribe"},
	}},
	{PatternDecorator, MatchAny, []Condition{
		{SignalClassNames, "decorator"},
		{SignalMethodNames, "wrap"},
	}},
	{PatternCommand, MatchAll, []Condition{
		{SignalClassNames, "command"},
		{SignalMethodNames, "execute"},
	}},
	{PatternBuilder, MatchAny, []Condition{
		{SignalClassNames, "builder"},
		{SignalMethodNames, "build"},
	}},
}

// Signals are the facts the rule table is evaluated against
type Signals struct {
	ClassNames      []string
	MethodNames     []string
	AbstractMethods bool
	Inheritance     bool
}

// Evaluate applies every rule to the signals
func (s Signals) Evaluate(rules []Rule) map[Pattern]bool {
	classes := strings.Join(s.ClassNames, " ")
	methods := strings.Join(s.MethodNames, " ")

	holds := func(c Condition) bool {
		switch c.Signal {
		case SignalClassNames:
			return strings.Contains(classes, c.Needle)
		case SignalMethodNames:
			return strings.Contains(methods, c.Needle)
		case SignalAbstractMethods:
			return s.AbstractMethods
		case SignalInheritance:
			return s.Inheritance
		}
		return false
	}

	patterns := make(map[Pattern]bool, len(AllPatterns))
	for _, p := range AllPatterns {
		patterns[p] = false
	}

	for _, rule := range rules {
		matched := rule.Match == MatchAll
		for _, c := range rule.Conditions {
			if rule.Match == MatchAll && !holds(c) {
				matched = false
				break
			}
			if rule.Match == MatchAny && holds(c) {
				matched = true
				break
			}
		}
		if matched {
			patterns[rule.Pattern] = true
		}
	}

	return patterns
}

// CollectSignals gathers pattern signals in a single traversal
func CollectSignals(t *Tree) Signals {
	s := Signals{
		ClassNames:  make([]string, 0),
		MethodNames: make([]string, 0),
	}

	walkTree(t.Root(), func(n *sitter.Node) {
		switch n.Type() {
		case "class_definition":
			s.ClassNames = append(s.ClassNames, strings.ToLower(nodeName(n, t.source)))
			if len(baseClasses(n, t.source)) > 0 {
				s.Inheritance = true
			}
			if hasAbstractMethod(n, t.source) {
				s.AbstractMethods = true
			}
		case "function_definition":
			if isAsync(n) {
				return
			}
			s.MethodNames = append(s.MethodNames, strings.ToLower(nodeName(n, t.source)))
		}
	})

	return s
}

// FindDesignPatterns reports which known patterns the source appears to use
func FindDesignPatterns(t *Tree) map[Pattern]bool {
	return CollectSignals(t).Evaluate(Rules)
}

// hasAbstractMethod checks functions directly in the class body for a bare
// @abstractmethod decorator
func hasAbstractMethod(class *sitter.Node, source []byte) bool {
	body := class.ChildByFieldName("body")
	if body == nil {
		return false
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		item := body.NamedChild(i)
		if item.Type() != "decorated_definition" {
			continue
		}
		def := item.ChildByFieldName("definition")
		if def == nil || def.Type() != "function_definition" || isAsync(def) {
			continue
		}
		for _, dec := range decoratorExprs(item) {
			if dec.Type() == "identifier" && dec.Content(source) == "abstractmethod" {
				return true
			}
		}
	}
	return false
}

// baseClasses returns the positional base class expressions of a class
func baseClasses(class *sitter.Node, source []byte) []string {
	bases := make([]string, 0)
	args := class.ChildByFieldName("superclasses")
	if args == nil {
		return bases
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "keyword_argument", "comment", "dictionary_splat", "list_splat":
			continue
		}
		bases = append(bases, arg.Content(source))
	}
	return bases
}

// decoratorExprs returns the expression of each decorator of a decorated definition
func decoratorExprs(decorated *sitter.Node) []*sitter.Node {
	exprs := make([]*sitter.Node, 0)
	for i := 0; i < int(decorated.NamedChildCount()); i++ {
		child := decorated.NamedChild(i)
		if child.Type() != "decorator" || child.NamedChildCount() == 0 {
			continue
		}
		exprs = append(exprs, child.NamedChild(0))
	}
	return exprs
}

package suite

import (
	"fmt"
	"strings"

	"github.com/QTest-hq/qgrade/internal/loader"
)

// AssertionError marks an unmet expectation. The message is shown to the
// student verbatim.
type AssertionError struct {
	Msg string
}

func (e *AssertionError) Error() string {
	return e.Msg
}

// TypeName returns the Python-style exception name
func (e *AssertionError) TypeName() string {
	return "AssertionError"
}

// Failf returns an AssertionError
func Failf(format string, args ...any) error {
	return &AssertionError{Msg: fmt.Sprintf(format, args...)}
}

// Assert returns an AssertionError when cond is false
func Assert(cond bool, format string, args ...any) error {
	if cond {
		return nil
	}
	return Failf(format, args...)
}

// names returns module member names matching keep, in dir() order
func names(mod *loader.Module, keep func(name string) bool) []string {
	out := make([]string, 0)
	for _, n := range mod.Dir() {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}

// containing matches names holding any of the needles
func containing(needles ...string) func(string) bool {
	return func(name string) bool {
		return containsAny(name, needles...)
	}
}

// containingFold matches names whose lower-cased form holds any needle
func containingFold(needles ...string) func(string) bool {
	return func(name string) bool {
		return containsAny(strings.ToLower(name), needles...)
	}
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// attrs returns dir() of a module member
func attrs(mod *loader.Module, name string) ([]string, error) {
	m, err := mod.Get(name)
	if err != nil {
		return nil, err
	}
	return m.Attributes, nil
}

// hasAttr is hasattr(getattr(module, name), attr)
func hasAttr(mod *loader.Module, name, attr string) (bool, error) {
	m, err := mod.Get(name)
	if err != nil {
		return false, err
	}
	return m.HasAttr(attr), nil
}

// requireAttr fails with msg unless the member has attr
func requireAttr(mod *loader.Module, name, attr, msg string) error {
	ok, err := hasAttr(mod, name, attr)
	if err != nil {
		return err
	}
	return Assert(ok, "%s", msg)
}

// anyAttr reports whether some attribute of the member satisfies match
func anyAttr(mod *loader.Module, name string, match func(string) bool) (bool, error) {
	list, err := attrs(mod, name)
	if err != nil {
		return false, err
	}
	for _, a := range list {
		if match(a) {
			return true, nil
		}
	}
	return false, nil
}

// pyList renders names like a Python list repr
func pyList(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = "'" + s + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Package condition compiles the small boolean expressions used to decide
// whether a wizard step applies to the values collected so far.
//
// Supported forms:
//   - truthiness: `hasSubsidiary`, `!hasSubsidiary`
//   - comparisons against literals: `kind == "llc"`, `employees != 0`,
//     `isDifferent == false`, `parent == null`
//   - composition with `&&`, `||` and parentheses
//
// Identifiers are dotted paths resolved against the values map; a flattened
// key such as "registered.city" is tried before walking nested maps.
package condition

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-formwizard/pkg/model"
)

// ErrEmpty is returned by Compile when the expression has no tokens.
var ErrEmpty = errors.New("condition: empty expression")

// Expr is a compiled expression. The zero value is not usable; use Compile.
type Expr struct {
	source string
	root   node
}

// Compile parses an expression once so it can be evaluated repeatedly.
func Compile(source string) (*Expr, error) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return nil, ErrEmpty
	}
	toks, err := lex(trimmed)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.or()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, fmt.Errorf("condition: unexpected %q in %q", p.peek().text, trimmed)
	}
	return &Expr{source: trimmed, root: root}, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(source string) *Expr {
	expr, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return expr
}

// String returns the normalised source.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.source
}

// Eval evaluates the expression. A nil expression is always true.
func (e *Expr) Eval(values map[string]any) bool {
	if e == nil || e.root == nil {
		return true
	}
	return e.root.eval(values)
}

// Truthy applies the falsy rules shared by conditions and derived fields:
// nil, false, zero numbers, empty strings and the strings "false", "0",
// "off" and "no" are falsy.
func Truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "", "false", "0", "off", "no":
			return false
		}
		return true
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case map[string]any:
		return len(v) > 0
	case model.Record:
		return len(v) > 0
	case []any:
		return len(v) > 0
	default:
		return true
	}
}

// Lookup resolves a dotted path against values.
func Lookup(values map[string]any, path string) (any, bool) {
	if values == nil || path == "" {
		return nil, false
	}
	if v, ok := values[path]; ok {
		return v, true
	}
	var current any = values
	for _, segment := range strings.Split(path, ".") {
		m, ok := asMap(current)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func asMap(value any) (map[string]any, bool) {
	switch m := value.(type) {
	case map[string]any:
		return m, true
	case model.Record:
		return m, true
	default:
		return nil, false
	}
}

type node interface {
	eval(values map[string]any) bool
}

type orNode struct{ left, right node }

func (n orNode) eval(values map[string]any) bool {
	return n.left.eval(values) || n.right.eval(values)
}

type andNode struct{ left, right node }

func (n andNode) eval(values map[string]any) bool {
	return n.left.eval(values) && n.right.eval(values)
}

type notNode struct{ inner node }

func (n notNode) eval(values map[string]any) bool {
	return !n.inner.eval(values)
}

type truthyNode struct{ path string }

func (n truthyNode) eval(values map[string]any) bool {
	v, _ := Lookup(values, n.path)
	return Truthy(v)
}

type compareNode struct {
	path    string
	negate  bool
	literal token
}

func (n compareNode) eval(values map[string]any) bool {
	v, _ := Lookup(values, n.path)
	equal := false
	switch n.literal.kind {
	case tokNull:
		equal = v == nil
	case tokBool:
		equal = Truthy(v) == (n.literal.text == "true")
	case tokNumber:
		want, _ := strconv.ParseFloat(n.literal.text, 64)
		got, ok := number(v)
		equal = ok && got == want
	case tokString:
		equal = v != nil && fmt.Sprint(v) == n.literal.text
	}
	if n.negate {
		return !equal
	}
	return equal
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Package criteria evaluates declarative predicates against a snapshot of
// named fields.
package criteria

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// #region fields

// Fields is the read surface a predicate is evaluated against.
type Fields interface {
	Lookup(name string) (any, bool)
}

// Map is a plain map that satisfies Fields. Mostly useful in tests.
type Map map[string]any

// Lookup implements Fields.
func (m Map) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// #endregion fields

// #region op

// Op enumerates the comparison operators an operator-set condition may carry.
type Op int

const (
	OpGte Op = iota + 1
	OpLte
	OpEq
	OpNe
)

func (o Op) String() string {
	switch o {
	case OpGte:
		return "gte"
	case OpLte:
		return "lte"
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Operand pairs an operator with the value it compares against.
type Operand struct {
	Op    Op
	Value any
}

// #endregion op

// #region condition

type kind int

const (
	kindEquals kind = iota
	kindOps
	kindExpr
)

// Condition is the per-field half of a predicate: a literal to compare for
// equality, a set of operators that must all hold, or an expression.
type Condition struct {
	kind     kind
	value    any
	operands []Operand
	expr     *exprProgram
}

// Equals matches when the field equals v.
func Equals(v any) Condition {
	return Condition{kind: kindEquals, value: v}
}

// Ops matches when every operand holds for the field.
func Ops(operands ...Operand) Condition {
	return Condition{kind: kindOps, operands: append([]Operand(nil), operands...)}
}

// Gte matches field >= v.
func Gte(v any) Condition { return Ops(Operand{OpGte, v}) }

// Lte matches field <= v.
func Lte(v any) Condition { return Ops(Operand{OpLte, v}) }

// Ne matches field != v.
func Ne(v any) Condition { return Ops(Operand{OpNe, v}) }

// Between matches lo <= field <= hi.
func Between(lo, hi any) Condition {
	return Ops(Operand{OpGte, lo}, Operand{OpLte, hi})
}

// isOps reports whether c is an operator-set condition.
func (c Condition) isOps() bool { return c.kind == kindOps }

// ops returns a copy of the operator set. Empty for other kinds.
func (c Condition) ops() []Operand { return append([]Operand(nil), c.operands...) }

// Value returns the literal of an Equals condition.
func (c Condition) Value() any { return c.value }

func (c Condition) match(v any, s Fields) bool {
	switch c.kind {
	case kindEquals:
		return equal(v, c.value)
	case kindOps:
		if len(c.operands) == 0 {
			return false
		}
		for _, o := range c.operands {
			if !holds(o, v) {
				return false
			}
		}
		return true
	case kindExpr:
		return c.expr.run(v, s)
	default:
		return false
	}
}

func (c Condition) String() string {
	switch c.kind {
	case kindEquals:
		return fmt.Sprintf("%v", c.value)
	case kindOps:
		parts := make([]string, 0, len(c.operands))
		for _, o := range c.operands {
			parts = append(parts, fmt.Sprintf("%s %v", o.Op, o.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case kindExpr:
		return "expr(" + c.expr.code + ")"
	default:
		return "?"
	}
}

// #endregion condition

// #region criteria

// Criteria maps field names to conditions. All fields must match.
type Criteria map[string]Condition

// Match reports whether every condition in c holds against s. A field that
// is absent from s never matches. An empty Criteria matches everything.
func Match(s Fields, c Criteria) bool {
	for field, cond := range c {
		v, ok := s.Lookup(field)
		if !ok {
			return false
		}
		if !cond.match(v, s) {
			return false
		}
	}
	return true
}

// Fields returns the field names c references, sorted.
func (c Criteria) Fields() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resolve rewrites literal and operand values through fn. Used by loaders
// that decode symbolic names (phase names, for example) into typed values.
func (c Criteria) Resolve(fn func(field string, v any) (any, error)) (Criteria, error) {
	out := make(Criteria, len(c))
	for field, cond := range c {
		switch cond.kind {
		case kindEquals:
			v, err := fn(field, cond.value)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field, err)
			}
			cond.value = v
		case kindOps:
			ops := make([]Operand, len(cond.operands))
			for i, o := range cond.operands {
				v, err := fn(field, o.Value)
				if err != nil {
					return nil, fmt.Errorf("field %s %s: %w", field, o.Op, err)
				}
				ops[i] = Operand{Op: o.Op, Value: v}
			}
			cond.operands = ops
		}
		out[field] = cond
	}
	return out, nil
}

func (c Criteria) String() string {
	parts := make([]string, 0, len(c))
	for _, f := range c.Fields() {
		parts = append(parts, f+": "+c[f].String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// #endregion criteria

// #region compare

func holds(o Operand, v any) bool {
	switch o.Op {
	case OpEq:
		return equal(v, o.Value)
	case OpNe:
		return !equal(v, o.Value)
	case OpGte:
		cmp, ok := compare(v, o.Value)
		return ok && cmp >= 0
	case OpLte:
		cmp, ok := compare(v, o.Value)
		return ok && cmp <= 0
	default:
		return false
	}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if sa, ok := toString(a); ok {
		if sb, ok := toString(b); ok {
			return sa == sb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

// compare orders numbers numerically and strings lexically. Any other pair
// is not ordered.
func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case fa < fb:
			return -1, true
		case fa > fb:
			return 1, true
		default:
			return 0, true
		}
	}
	if sa, ok := toString(a); ok {
		sb, ok := toString(b)
		if !ok {
			return 0, false
		}
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func toString(v any) (string, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// #endregion compare

// #region introspection

// Dynamic reports whether c holds an expression condition. Expressions can
// read any snapshot field, so callers that track "relevant fields" must
// treat a dynamic Criteria as depending on everything.
func (c Criteria) Dynamic() bool {
	for _, cond := range c {
		if cond.kind == kindExpr {
			return true
		}
	}
	return false
}

// #endregion introspection

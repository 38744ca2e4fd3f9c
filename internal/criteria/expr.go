package criteria

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// #region expr-condition

// Mapper is implemented by snapshots that can expose every field at once.
// Expression conditions see all fields when the snapshot is a Mapper, and
// only "value" otherwise.
type Mapper interface {
	Map() map[string]any
}

type exprProgram struct {
	code    string
	program *vm.Program
	err     error
	once    sync.Once
}

// programs caches compiled expressions by source text. Rule tables are
// static, so the set stays small.
var programs sync.Map

// Expr matches when the expression evaluates to true. The expression sees
// the field under test as "value" plus every snapshot field by name. Compile
// and runtime errors count as "does not match".
func Expr(code string) Condition {
	p, _ := programs.LoadOrStore(code, &exprProgram{code: code})
	return Condition{kind: kindExpr, expr: p.(*exprProgram)}
}

// Compile reports whether code is a valid boolean expression. Loaders use it
// to reject bad rule files up front.
func Compile(code string) error {
	p, _ := programs.LoadOrStore(code, &exprProgram{code: code})
	return p.(*exprProgram).compile()
}

func (p *exprProgram) compile() error {
	p.once.Do(func() {
		p.program, p.err = expr.Compile(p.code, expr.AsBool(), expr.AllowUndefinedVariables())
		if p.err != nil {
			slog.Debug("[CRITERIA] expression compile failed", "expr", p.code, "error", p.err)
		}
	})
	return p.err
}

func (p *exprProgram) run(v any, s Fields) bool {
	if p == nil || p.compile() != nil {
		return false
	}
	env := map[string]any{}
	if m, ok := s.(Mapper); ok {
		for k, fv := range m.Map() {
			env[k] = normalize(fv)
		}
	}
	env["value"] = normalize(v)

	out, err := expr.Run(p.program, env)
	if err != nil {
		slog.Debug("[CRITERIA] expression evaluation failed", "expr", p.code, "error", err)
		return false
	}
	b, ok := out.(bool)
	if !ok {
		slog.Debug("[CRITERIA] expression returned non-boolean", "expr", p.code, "type", fmt.Sprintf("%T", out))
	}
	return ok && b
}

// normalize flattens named numeric and string types so the expression VM
// compares them like literals.
func normalize(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	if s, ok := toString(v); ok {
		return s
	}
	return v
}

// #endregion expr-condition

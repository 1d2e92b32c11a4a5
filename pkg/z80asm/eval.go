package z80asm

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/cpctools/bnd/pkg/ast"
	"github.com/cpctools/bnd/pkg/duration"
	"github.com/cpctools/bnd/pkg/symtab"
)

// Evaluator evaluates Expr trees against a symbol table and the assembler's
// current pass state ($ / $$ / pass number), Evaluation
// is pure: the same Expr against a fixed symbol table and PC always
// produces the same Value.
type Evaluator struct {
	Symbols    *symtab.Table
	PC         uint16 // $  - current logical program counter
	OutputBase uint16 // $$ - current physical output offset
	Functions  map[string]*ast.Token
	// Pages and CurPage back the duration()/opsize() assembler-state
	// queries: they read bytes already emitted on the
	// current pass, so forward references resolve to 0-filled memory
	// until a later pass fills them in, same as any other forward use.
	Pages   map[int]*Page
	CurPage int
	// Tolerant, when set by the pass driver on every pass but the last,
	// substitutes 0 for an unresolved forward-label reference instead of
	// failing outright and records the substitution in Unresolved so the
	// driver knows the pass must be repeated.
	Tolerant   bool
	Unresolved bool
	// callDepth counts nested user-function calls; evalUserFunction
	// refuses a call once it exceeds 32, blocking unbounded recursion.
	callDepth int
}

func NewEvaluator(syms *symtab.Table) *Evaluator {
	return &Evaluator{Symbols: syms, Functions: map[string]*ast.Token{}}
}

// Eval evaluates e, returning an EvalError wrapped with e's span on failure.
func (ev *Evaluator) Eval(e *ast.Expr) (Value, error) {
	v, err := ev.eval(e)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", e.Span, err)
	}
	return v, nil
}

func (ev *Evaluator) eval(e *ast.Expr) (Value, error) {
	if e == nil {
		return Value{}, &EvalError{"nil expression"}
	}
	switch e.Kind {
	case ast.ExprInt:
		return intVal(e.Int), nil
	case ast.ExprFloat:
		return floatVal(e.Float), nil
	case ast.ExprString:
		return strVal(e.Str), nil
	case ast.ExprDollar:
		return intVal(int64(ev.PC)), nil
	case ast.ExprDollar2:
		return intVal(int64(ev.OutputBase)), nil
	case ast.ExprLabel:
		return ev.evalLabel(e.Str)
	case ast.ExprUnary:
		return ev.evalUnary(e)
	case ast.ExprBinary:
		return ev.evalBinary(e)
	case ast.ExprTernary:
		c, err := ev.eval(e.Cond)
		if err != nil {
			return Value{}, err
		}
		if c.truthy() {
			return ev.eval(e.Then)
		}
		return ev.eval(e.Else)
	case ast.ExprCall:
		return ev.evalCall(e)
	case ast.ExprLabelTest:
		_, err := ev.evalLabel(e.Str)
		return intVal(boolInt(err == nil)), nil
	case ast.ExprIndex:
		list, err := ev.eval(e.X)
		if err != nil {
			return Value{}, err
		}
		_ = list
		return Value{}, &EvalError{"indexing is only valid on list literals, not evaluated values"}
	case ast.ExprList:
		return Value{}, &EvalError{"a list literal has no scalar value"}
	}
	return Value{}, &EvalError{"unsupported expression kind"}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func (ev *Evaluator) evalLabel(name string) (Value, error) {
	sv, err := ev.Symbols.Lookup(name)
	if err != nil {
		if ev.Tolerant {
			ev.Unresolved = true
			return intVal(0), nil
		}
		return Value{}, &EvalError{fmt.Sprintf("unresolved symbol '%s'", name)}
	}
	switch sv.Kind {
	case symtab.ValInt, symtab.ValCounter:
		return intVal(sv.Int), nil
	case symtab.ValFloat:
		return floatVal(sv.Float), nil
	case symtab.ValString:
		return strVal(sv.Str), nil
	case symtab.ValAddress:
		return intVal(int64(sv.Addr.Logical)), nil
	default:
		return Value{}, &EvalError{fmt.Sprintf("'%s' is not a value-typed symbol", name)}
	}
}

func (ev *Evaluator) evalUnary(e *ast.Expr) (Value, error) {
	x, err := ev.eval(e.X)
	if err != nil {
		return Value{}, err
	}
	switch e.Unary {
	case ast.OpNeg:
		if x.Kind == VFloat {
			return floatVal(-x.Flt), nil
		}
		return intVal(-x.AsInt()), nil
	case ast.OpNot:
		return intVal(boolInt(!x.truthy())), nil
	case ast.OpCompl:
		return intVal(^x.AsInt()), nil
	}
	return Value{}, &EvalError{"unknown unary operator"}
}

func (ev *Evaluator) evalBinary(e *ast.Expr) (Value, error) {
	l, err := ev.eval(e.Left)
	if err != nil {
		return Value{}, err
	}
	if e.Op == ast.OpLAnd {
		if !l.truthy() {
			return intVal(0), nil
		}
		r, err := ev.eval(e.Right)
		if err != nil {
			return Value{}, err
		}
		return intVal(boolInt(r.truthy())), nil
	}
	if e.Op == ast.OpLOr {
		if l.truthy() {
			return intVal(1), nil
		}
		r, err := ev.eval(e.Right)
		if err != nil {
			return Value{}, err
		}
		return intVal(boolInt(r.truthy())), nil
	}
	r, err := ev.eval(e.Right)
	if err != nil {
		return Value{}, err
	}
	if e.Op == ast.OpConcat {
		return strVal(l.String() + r.String()), nil
	}
	if l.Kind == VFloat || r.Kind == VFloat {
		return evalFloatBin(e.Op, l, r)
	}
	return evalIntBin(e.Op, l.AsInt(), r.AsInt())
}

func evalIntBin(op ast.BinOp, a, b int64) (Value, error) {
	switch op {
	case ast.OpAdd:
		return intVal(a + b), nil
	case ast.OpSub:
		return intVal(a - b), nil
	case ast.OpMul:
		return intVal(a * b), nil
	case ast.OpDiv:
		if b == 0 {
			return Value{}, &EvalError{"division by zero"}
		}
		return intVal(a / b), nil
	case ast.OpMod:
		if b == 0 {
			return Value{}, &EvalError{"division by zero"}
		}
		return intVal(a % b), nil
	case ast.OpAnd:
		return intVal(a & b), nil
	case ast.OpOr:
		return intVal(a | b), nil
	case ast.OpXor:
		return intVal(a ^ b), nil
	case ast.OpShl:
		return intVal(a << uint(b)), nil
	case ast.OpShr:
		return intVal(a >> uint(b)), nil
	}
	if v, ok := compareOrdered(op, a, b); ok {
		return v, nil
	}
	return Value{}, &EvalError{"unknown binary operator"}
}

// compareOrdered implements the six comparison operators shared by the
// integer and floating-point binary-op paths, over any type x/exp's
// constraints.Ordered accepts.
func compareOrdered[T constraints.Ordered](op ast.BinOp, a, b T) (Value, bool) {
	switch op {
	case ast.OpEq:
		return intVal(boolInt(a == b)), true
	case ast.OpNe:
		return intVal(boolInt(a != b)), true
	case ast.OpLt:
		return intVal(boolInt(a < b)), true
	case ast.OpLe:
		return intVal(boolInt(a <= b)), true
	case ast.OpGt:
		return intVal(boolInt(a > b)), true
	case ast.OpGe:
		return intVal(boolInt(a >= b)), true
	}
	return Value{}, false
}

func evalFloatBin(op ast.BinOp, l, r Value) (Value, error) {
	a, b := floatOf(l), floatOf(r)
	switch op {
	case ast.OpAdd:
		return floatVal(a + b), nil
	case ast.OpSub:
		return floatVal(a - b), nil
	case ast.OpMul:
		return floatVal(a * b), nil
	case ast.OpDiv:
		if b == 0 {
			return Value{}, &EvalError{"division by zero"}
		}
		return floatVal(a / b), nil
	}
	if v, ok := compareOrdered(op, a, b); ok {
		return v, nil
	}
	return Value{}, &EvalError{"operator not valid on floating values"}
}

func floatOf(v Value) float64 {
	if v.Kind == VFloat {
		return v.Flt
	}
	return float64(v.AsInt())
}

func (ev *Evaluator) evalCall(e *ast.Expr) (Value, error) {
	args := make([]Value, len(e.Args))
	for i, a := range e.Args {
		v, err := ev.eval(a)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}
	name := strings.ToLower(e.Str)
	switch name {
	case "duration", "opsize":
		return ev.evalDurationQuery(name, args)
	}
	if fn, err := builtin(name, args); err == errNotBuiltin {
		return ev.evalUserFunction(e.Str, args)
	} else {
		return fn, err
	}
}

// evalDurationQuery backs the duration(start,end)/opsize(start,end)
// assembler-state queries: both read the bytes already
// emitted on this page for this pass and step the toy duration.Measure
// stepper over them; duration returns total T-states, opsize the byte
// count covered (identical to end-start, kept as its own builtin to match
// the scene-assembler convention of naming it rather than subtracting).
func (ev *Evaluator) evalDurationQuery(name string, args []Value) (Value, error) {
	if len(args) != 2 {
		return Value{}, &EvalError{fmt.Sprintf("%s expects 2 arguments (start, end)", name)}
	}
	start, end := args[0].AsInt(), args[1].AsInt()
	if start < 0 || end < start || end > 0xFFFF {
		return Value{}, &EvalError{fmt.Sprintf("%s: invalid address range", name)}
	}
	page := ev.Pages[ev.CurPage]
	if page == nil {
		return intVal(0), nil
	}
	code := page.Mem[start:end]
	if name == "opsize" {
		return intVal(end - start), nil
	}
	cycles, _ := duration.Measure(code)
	return intVal(int64(cycles)), nil
}

var errNotBuiltin = &EvalError{"not a builtin"}

func builtin(name string, args []Value) (Value, error) {
	one := func() (Value, error) {
		if len(args) != 1 {
			return Value{}, &EvalError{fmt.Sprintf("%s expects 1 argument", name)}
		}
		return args[0], nil
	}
	switch name {
	case "hi":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return intVal((v.AsInt() >> 8) & 0xFF), nil
	case "lo":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return intVal(v.AsInt() & 0xFF), nil
	case "abs":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		if v.Kind == VFloat {
			return floatVal(math.Abs(v.Flt)), nil
		}
		n := v.AsInt()
		if n < 0 {
			n = -n
		}
		return intVal(n), nil
	case "sin":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return floatVal(math.Sin(floatOf(v))), nil
	case "cos":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return floatVal(math.Cos(floatOf(v))), nil
	case "sqrt":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return floatVal(math.Sqrt(floatOf(v))), nil
	case "floor":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return intVal(int64(math.Floor(floatOf(v)))), nil
	case "ceil":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return intVal(int64(math.Ceil(floatOf(v)))), nil
	case "int":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return intVal(v.AsInt()), nil
	case "float":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return floatVal(floatOf(v)), nil
	case "min":
		if len(args) != 2 {
			return Value{}, &EvalError{"min expects 2 arguments"}
		}
		if floatOf(args[0]) < floatOf(args[1]) {
			return args[0], nil
		}
		return args[1], nil
	case "max":
		if len(args) != 2 {
			return Value{}, &EvalError{"max expects 2 arguments"}
		}
		if floatOf(args[0]) > floatOf(args[1]) {
			return args[0], nil
		}
		return args[1], nil
	case "strlen", "len":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return intVal(int64(len(v.String()))), nil
	case "chr":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		return strVal(string(rune(v.AsInt()))), nil
	case "asc":
		v, err := one()
		if err != nil {
			return Value{}, err
		}
		if v.Str == "" {
			return Value{}, &EvalError{"asc() requires a non-empty string"}
		}
		return intVal(int64(v.Str[0])), nil
	}
	return Value{}, errNotBuiltin
}

// evalUserFunction runs a user-defined `function name(params) ... endfunction`
// body: parameters bind in a fresh scope, each statement must be an
// equ/assign directive, and the function's value is the last binding made
//.
func (ev *Evaluator) evalUserFunction(name string, args []Value) (Value, error) {
	tok, ok := ev.Functions[name]
	if !ok {
		return Value{}, &EvalError{fmt.Sprintf("unknown function '%s'", name)}
	}
	if ev.callDepth > 32 {
		return Value{}, &EvalError{"function call depth exceeded"}
	}
	if len(args) != len(tok.Params) {
		return Value{}, &EvalError{fmt.Sprintf("function '%s' expects %d arguments, got %d", name, len(tok.Params), len(args))}
	}
	ev.Symbols.EnterScope(symtab.ScopeProc, name)
	defer ev.Symbols.LeaveScope()
	for i, p := range tok.Params {
		ev.Symbols.Define(p, toSymtabValue(args[i]), false)
	}
	ev.callDepth++
	defer func() { ev.callDepth-- }()

	var last Value
	for _, stmt := range tok.FuncBody.Tokens {
		if stmt.Kind != ast.TokDirective || (stmt.Directive != ast.DirEqu && stmt.Directive != ast.DirAssign) {
			return Value{}, &EvalError{"function body statements must be equ/assign bindings"}
		}
		if len(stmt.Exprs) == 0 {
			continue
		}
		v, err := ev.eval(stmt.Exprs[0])
		if err != nil {
			return Value{}, err
		}
		if stmt.Label != "" {
			ev.Symbols.Define(stmt.Label, toSymtabValue(v), false)
		}
		last = v
	}
	return last, nil
}

func toSymtabValue(v Value) symtab.Value {
	switch v.Kind {
	case VFloat:
		return symtab.Value{Kind: symtab.ValFloat, Float: v.Flt}
	case VString:
		return symtab.Value{Kind: symtab.ValString, Str: v.Str}
	default:
		return symtab.Value{Kind: symtab.ValInt, Int: v.Int}
	}
}

// Package z80asm implements the assembler core: expression
// evaluation, multi-pass convergence, directive execution, and Z80
// instruction encoding. The directive-dispatch shape (a switch on the
// uppercased directive/mnemonic, one handler per case) is grounded on
// z80asm/directives.go's processDirective; the pass-convergence
// loop is grounded on assembler.go's AssembleString, widened
// from a fixed two passes to configurable, convergence-
// detecting driver.
package z80asm

import "fmt"

// ValueKind discriminates the runtime type an expression evaluates to.
type ValueKind int

const (
	VInt ValueKind = iota
	VFloat
	VString
)

// Value is the result of evaluating an Expr, 
type Value struct {
	Kind ValueKind
	Int  int64
	Flt  float64
	Str  string
}

func (v Value) String() string {
	switch v.Kind {
	case VInt:
		return fmt.Sprintf("%d", v.Int)
	case VFloat:
		return fmt.Sprintf("%g", v.Flt)
	default:
		return v.Str
	}
}

// AsInt coerces v to an integer, truncating floats, 's
// "expressions used where a byte/word is needed are coerced to integer".
func (v Value) AsInt() int64 {
	switch v.Kind {
	case VInt:
		return v.Int
	case VFloat:
		return int64(v.Flt)
	default:
		var n int64
		fmt.Sscanf(v.Str, "%d", &n)
		return n
	}
}

func (v Value) truthy() bool {
	switch v.Kind {
	case VInt:
		return v.Int != 0
	case VFloat:
		return v.Flt != 0
	default:
		return v.Str != ""
	}
}

func intVal(n int64) Value   { return Value{Kind: VInt, Int: n} }
func floatVal(f float64) Value { return Value{Kind: VFloat, Flt: f} }
func strVal(s string) Value  { return Value{Kind: VString, Str: s} }

// EvalError is raised by the evaluator: unresolved symbol, type mismatch,
// unknown function, division by zero.
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string { return e.Message }

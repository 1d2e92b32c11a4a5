package ast

// ExprKind discriminates the variants of Expr described in 
type ExprKind int

const (
	ExprInt ExprKind = iota
	ExprFloat
	ExprString
	ExprLabel   // optional scope-qualified label reference
	ExprDollar  // $  - current logical PC
	ExprDollar2 // $$ - current physical output offset
	ExprUnary
	ExprBinary
	ExprTernary
	ExprCall      // built-in or user-defined function call
	ExprIndex     // list subscript: expr[expr]
	ExprList      // [e1, e2, ...] literal, used for iterate-over-list and calls
	ExprLabelTest // defined(name) - label existence test
	ExprState     // assembler-state query: duration(expr) / opsize(expr)
)

// BinOp enumerates binary/bitwise/comparison/boolean operators.
type BinOp int

const (
	OpAdd BinOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd // bitwise AND
	OpOr  // bitwise OR
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpLAnd // boolean &&, short-circuit
	OpLOr  // boolean ||, short-circuit
	OpConcat
)

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpNot
	OpCompl // bitwise complement
)

// Expr is a node in the expression tree. Expressions are pure: evaluating
// the same Expr against a fixed symbol table always yields the same Value
//.
type Expr struct {
	Kind ExprKind
	Span Span

	// ExprInt
	Int int64
	// ExprFloat
	Float float64
	// ExprString
	Str string
	// ExprLabel: Str holds the (possibly scope-qualified) name
	// ExprUnary
	Unary UnaryOp
	X     *Expr
	// ExprBinary / ExprTernary
	Op          BinOp
	Left, Right *Expr
	Cond, Then, Else *Expr
	// ExprCall / ExprState: Str is the function/state-query name
	Args []*Expr
	// ExprIndex: X is the list, Index is the subscript
	Index *Expr
	// ExprList
	Items []*Expr
}

// Int creates an integer literal node.
func Int(v int64, sp Span) *Expr { return &Expr{Kind: ExprInt, Int: v, Span: sp} }

// Label creates a label-reference node.
func Label(name string, sp Span) *Expr { return &Expr{Kind: ExprLabel, Str: name, Span: sp} }

// Binary creates a binary-operator node.
func Binary(op BinOp, l, r *Expr, sp Span) *Expr {
	return &Expr{Kind: ExprBinary, Op: op, Left: l, Right: r, Span: sp}
}

// UnaryExpr creates a unary-operator node (named to avoid clashing with the Unary field).
func UnaryExpr(op UnaryOp, x *Expr, sp Span) *Expr {
	return &Expr{Kind: ExprUnary, Unary: op, X: x, Span: sp}
}

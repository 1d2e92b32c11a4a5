package macro

import (
	"fmt"
	"strings"

	"github.com/cpctools/bnd/pkg/ast"
)

// renderExpr turns a parsed Expr back into source text, used only to splice
// a macro argument's value into a raw macro body for re-lexing. This is not
// a general pretty-printer: it need only round-trip through the lexer.
func renderExpr(e *ast.Expr) string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case ast.ExprInt:
		return fmt.Sprintf("%d", e.Int)
	case ast.ExprFloat:
		return fmt.Sprintf("%g", e.Float)
	case ast.ExprString:
		return `"` + e.Str + `"`
	case ast.ExprLabel:
		return e.Str
	case ast.ExprDollar:
		return "$"
	case ast.ExprDollar2:
		return "$$"
	case ast.ExprUnary:
		return unaryText(e.Unary) + renderExpr(e.X)
	case ast.ExprBinary:
		return renderExpr(e.Left) + " " + binText(e.Op) + " " + renderExpr(e.Right)
	case ast.ExprTernary:
		return renderExpr(e.Cond) + " ? " + renderExpr(e.Then) + " : " + renderExpr(e.Else)
	case ast.ExprCall:
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = renderExpr(a)
		}
		return e.Str + "(" + strings.Join(args, ", ") + ")"
	case ast.ExprIndex:
		return renderExpr(e.X) + "[" + renderExpr(e.Index) + "]"
	case ast.ExprList:
		items := make([]string, len(e.Items))
		for i, it := range e.Items {
			items[i] = renderExpr(it)
		}
		return "[" + strings.Join(items, ", ") + "]"
	}
	return ""
}

func unaryText(op ast.UnaryOp) string {
	switch op {
	case ast.OpNeg:
		return "-"
	case ast.OpNot:
		return "!"
	case ast.OpCompl:
		return "~"
	}
	return ""
}

func binText(op ast.BinOp) string {
	switch op {
	case ast.OpAdd:
		return "+"
	case ast.OpSub:
		return "-"
	case ast.OpMul:
		return "*"
	case ast.OpDiv:
		return "/"
	case ast.OpMod:
		return "%"
	case ast.OpAnd:
		return "&"
	case ast.OpOr:
		return "|"
	case ast.OpXor:
		return "^"
	case ast.OpShl:
		return "<<"
	case ast.OpShr:
		return ">>"
	case ast.OpEq:
		return "=="
	case ast.OpNe:
		return "!="
	case ast.OpLt:
		return "<"
	case ast.OpLe:
		return "<="
	case ast.OpGt:
		return ">"
	case ast.OpGe:
		return ">="
	case ast.OpLAnd:
		return "&&"
	case ast.OpLOr:
		return "||"
	case ast.OpConcat:
		return "~"
	}
	return "?"
}

// renderArg turns a macro call argument into spliceable source text: a
// bracketed list for list arguments, the raw token text for strings, or the
// rendered expression otherwise.
func renderArg(a ast.MacroArg) string {
	if a.IsList {
		items := make([]string, len(a.List))
		for i, e := range a.List {
			items[i] = renderExpr(e)
		}
		return "[" + strings.Join(items, ", ") + "]"
	}
	if a.Raw != "" {
		return `"` + a.Raw + `"`
	}
	return renderExpr(a.Value)
}

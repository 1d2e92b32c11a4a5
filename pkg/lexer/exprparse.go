package lexer

import (
	"fmt"

	"github.com/cpctools/bnd/pkg/ast"
)

// exprParser is a precedence-climbing (Pratt) parser over a bounded window
// of Tok, used for every expression appearing in a statement: operand
// values, directive argument lists, control-flow conditions, macro
// arguments.
type exprParser struct {
	toks []Tok
	pos  int
	file string
}

func newExprParser(toks []Tok, file string) *exprParser {
	return &exprParser{toks: toks, file: file}
}

func (p *exprParser) done() bool { return p.pos >= len(p.toks) }

func (p *exprParser) peek() Tok {
	if p.done() {
		return Tok{Kind: TkEOF}
	}
	return p.toks[p.pos]
}

func (p *exprParser) next() Tok {
	t := p.peek()
	if !p.done() {
		p.pos++
	}
	return t
}

func (p *exprParser) span(t Tok) ast.Span { return ast.Span{File: p.file, Line: t.Line, Column: t.Column} }

func (p *exprParser) errf(t Tok, format string, args ...interface{}) error {
	return &ParseError{File: p.file, Line: t.Line, Column: t.Column, Message: fmt.Sprintf(format, args...)}
}

// precedence table, low to high.
var binPrec = map[string]int{
	"||": 1, "&&": 2,
	"|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6, "<": 6, "<=": 6, ">": 6, ">=": 6,
	"<<": 7, ">>": 7,
	"+": 8, "-": 8, "~": 8, // binary "~" is string concatenation; prefix "~" is complement (parseUnary)
	"*": 9, "/": 9, "%": 9,
}

var binOps = map[string]ast.BinOp{
	"+": ast.OpAdd, "-": ast.OpSub, "*": ast.OpMul, "/": ast.OpDiv, "%": ast.OpMod,
	"&": ast.OpAnd, "|": ast.OpOr, "^": ast.OpXor, "<<": ast.OpShl, ">>": ast.OpShr,
	"==": ast.OpEq, "!=": ast.OpNe, "<": ast.OpLt, "<=": ast.OpLe, ">": ast.OpGt, ">=": ast.OpGe,
	"&&": ast.OpLAnd, "||": ast.OpLOr, "~": ast.OpConcat,
}

// ParseExpr parses the highest-level expression: ternary, then binary
// precedence climbing.
func (p *exprParser) ParseExpr() (*ast.Expr, error) {
	return p.parseTernary()
}

func (p *exprParser) parseTernary() (*ast.Expr, error) {
	cond, err := p.parseBin(1)
	if err != nil {
		return nil, err
	}
	if p.peek().Kind == TkOp && p.peek().Text == "?" {
		sp := p.span(p.next())
		then, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if !(p.peek().Kind == TkColon || (p.peek().Kind == TkOp && p.peek().Text == ":")) {
			return nil, p.errf(p.peek(), "expected ':' in ternary expression")
		}
		p.next()
		els, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		return &ast.Expr{Kind: ast.ExprTernary, Cond: cond, Then: then, Else: els, Span: sp}, nil
	}
	return cond, nil
}

func (p *exprParser) parseBin(minPrec int) (*ast.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.Kind != TkOp {
			break
		}
		prec, ok := binPrec[t.Text]
		if !ok || prec < minPrec || t.Text == "?" {
			break
		}
		op, ok := binOps[t.Text]
		if !ok {
			break
		}
		opTok := p.next()
		right, err := p.parseBin(prec + 1)
		if err != nil {
			return nil, err
		}
		left = ast.Binary(op, left, right, p.span(opTok))
	}
	return left, nil
}

func (p *exprParser) parseUnary() (*ast.Expr, error) {
	t := p.peek()
	if t.Kind == TkOp {
		switch t.Text {
		case "-":
			p.next()
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return ast.UnaryExpr(ast.OpNeg, x, p.span(t)), nil
		case "!":
			p.next()
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return ast.UnaryExpr(ast.OpNot, x, p.span(t)), nil
		case "~":
			p.next()
			x, err := p.parseUnary()
			if err != nil {
				return nil, err
			}
			return ast.UnaryExpr(ast.OpCompl, x, p.span(t)), nil
		}
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (*ast.Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		if p.peek().Kind == TkLBracket {
			open := p.next()
			idx, err := p.ParseExpr()
			if err != nil {
				return nil, err
			}
			if p.peek().Kind != TkRBracket {
				return nil, p.errf(p.peek(), "expected ']'")
			}
			p.next()
			x = &ast.Expr{Kind: ast.ExprIndex, X: x, Index: idx, Span: p.span(open)}
			continue
		}
		break
	}
	return x, nil
}

func (p *exprParser) parsePrimary() (*ast.Expr, error) {
	t := p.next()
	switch t.Kind {
	case TkNumber:
		return ast.Int(t.Int, p.span(t)), nil
	case TkChar:
		return ast.Int(t.Int, p.span(t)), nil
	case TkFloat:
		return &ast.Expr{Kind: ast.ExprFloat, Float: t.Float, Span: p.span(t)}, nil
	case TkString:
		return &ast.Expr{Kind: ast.ExprString, Str: t.Text, Span: p.span(t)}, nil
	case TkDollar:
		return &ast.Expr{Kind: ast.ExprDollar, Span: p.span(t)}, nil
	case TkDollar2:
		return &ast.Expr{Kind: ast.ExprDollar2, Span: p.span(t)}, nil
	case TkLParen:
		inner, err := p.ParseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().Kind != TkRParen {
			return nil, p.errf(p.peek(), "expected ')'")
		}
		p.next()
		return inner, nil
	case TkLBracket:
		var items []*ast.Expr
		if p.peek().Kind != TkRBracket {
			for {
				it, err := p.ParseExpr()
				if err != nil {
					return nil, err
				}
				items = append(items, it)
				if p.peek().Kind == TkComma {
					p.next()
					continue
				}
				break
			}
		}
		if p.peek().Kind != TkRBracket {
			return nil, p.errf(p.peek(), "expected ']'")
		}
		p.next()
		return &ast.Expr{Kind: ast.ExprList, Items: items, Span: p.span(t)}, nil
	case TkIdent:
		if p.peek().Kind == TkLParen {
			p.next()
			var args []*ast.Expr
			if p.peek().Kind != TkRParen {
				for {
					a, err := p.ParseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.peek().Kind == TkComma {
						p.next()
						continue
					}
					break
				}
			}
			if p.peek().Kind != TkRParen {
				return nil, p.errf(p.peek(), "expected ')' closing call to %s", t.Text)
			}
			p.next()
			return &ast.Expr{Kind: ast.ExprCall, Str: t.Text, Args: args, Span: p.span(t)}, nil
		}
		return ast.Label(t.Text, p.span(t)), nil
	}
	return nil, p.errf(t, "unexpected token in expression")
}

package lexer

import (
	"strings"

	"github.com/cpctools/bnd/pkg/ast"
)

var reg8Names = map[string]ast.Reg8{
	"A": ast.RA, "B": ast.RB, "C": ast.RC, "D": ast.RD, "E": ast.RE, "H": ast.RH, "L": ast.RL,
}

var reg16Names = map[string]ast.Reg16{
	"BC": ast.RPBC, "DE": ast.RPDE, "HL": ast.RPHL, "SP": ast.RPSP, "AF": ast.RPAF,
}

var idxReg8Names = map[string]ast.IndexReg8{
	"IXH": ast.IXH, "IXL": ast.IXL, "IYH": ast.IYH, "IYL": ast.IYL,
	"HX": ast.IXH, "LX": ast.IXL, "HY": ast.IYH, "LY": ast.IYL,
}

var flagOnlyNames = map[string]ast.Flag{
	"NZ": ast.FNZ, "Z": ast.FZ, "NC": ast.FNC, "PO": ast.FPO, "PE": ast.FPE, "P": ast.FP, "M": ast.FM,
}

// parseOperand parses one bracket-and-comma-delimited operand window into a
// DataAccess, "Data access" enumeration.
func (p *Parser) parseOperand(toks []Tok) (ast.DataAccess, error) {
	if len(toks) == 0 {
		return ast.DataAccess{}, p.errfTok(Tok{}, "empty operand")
	}
	// Bare identifier: register, index-register, flag, or special register.
	if len(toks) == 1 && toks[0].Kind == TkIdent {
		up := strings.ToUpper(toks[0].Text)
		if r, ok := reg8Names[up]; ok {
			return ast.DataAccess{Kind: ast.DAReg8, Reg8: r}, nil
		}
		if r, ok := reg16Names[up]; ok {
			return ast.DataAccess{Kind: ast.DAReg16, Reg16: r}, nil
		}
		if up == "IX" {
			return ast.DataAccess{Kind: ast.DAIndexReg16, Reg16: ast.RPIX}, nil
		}
		if up == "IY" {
			return ast.DataAccess{Kind: ast.DAIndexReg16, Reg16: ast.RPIY}, nil
		}
		if r, ok := idxReg8Names[up]; ok {
			return ast.DataAccess{Kind: ast.DAIndexReg8, IndexReg8: r}, nil
		}
		if up == "I" {
			return ast.DataAccess{Kind: ast.DASpecialReg, IsR: false}, nil
		}
		if up == "R" {
			return ast.DataAccess{Kind: ast.DASpecialReg, IsR: true}, nil
		}
		if f, ok := flagOnlyNames[up]; ok && up != "C" {
			return ast.DataAccess{Kind: ast.DAFlagTest, Flag: f}, nil
		}
	}
	// Parenthesised operand: memory reference of some shape.
	if toks[0].Kind == TkLParen && toks[len(toks)-1].Kind == TkRParen {
		inner := toks[1 : len(toks)-1]
		if len(inner) == 1 && inner[0].Kind == TkIdent {
			up := strings.ToUpper(inner[0].Text)
			if up == "C" {
				return ast.DataAccess{Kind: ast.DAPortC}, nil
			}
			if r, ok := reg16Names[up]; ok && (r == ast.RPBC || r == ast.RPDE || r == ast.RPHL || r == ast.RPSP) {
				return ast.DataAccess{Kind: ast.DAMemReg16, Reg16: r}, nil
			}
		}
		if idxReg, offset, ok := splitIndexedMem(inner); ok {
			off, err := newExprParser(offset, p.file).ParseExpr()
			if err != nil && len(offset) > 0 {
				return ast.DataAccess{}, err
			}
			if len(offset) == 0 {
				off = ast.Int(0, ast.Span{})
			}
			return ast.DataAccess{Kind: ast.DAIndexedMem, Reg16: idxReg, Offset: off}, nil
		}
		e, err := newExprParser(inner, p.file).ParseExpr()
		if err != nil {
			return ast.DataAccess{}, err
		}
		return ast.DataAccess{Kind: ast.DAMemExpr, Expr: e}, nil
	}
	e, err := newExprParser(toks, p.file).ParseExpr()
	if err != nil {
		return ast.DataAccess{}, err
	}
	return ast.DataAccess{Kind: ast.DAImmediate, Expr: e}, nil
}

// splitIndexedMem recognises "IX", "+"|"-", expr... or "IY" the same way.
func splitIndexedMem(inner []Tok) (ast.Reg16, []Tok, bool) {
	if len(inner) == 0 || inner[0].Kind != TkIdent {
		return 0, nil, false
	}
	up := strings.ToUpper(inner[0].Text)
	var reg ast.Reg16
	switch up {
	case "IX":
		reg = ast.RPIX
	case "IY":
		reg = ast.RPIY
	default:
		return 0, nil, false
	}
	rest := inner[1:]
	if len(rest) == 0 {
		return reg, nil, true
	}
	// rest begins with + or - and is the displacement expression (sign kept in rest)
	return reg, rest, true
}

func (p *Parser) errfTok(t Tok, format string, args ...interface{}) error {
	return p.scanner.errf(format, args...)
}

package lexer

import (
	"strings"

	"github.com/cpctools/bnd/pkg/ast"
)

// parseDirective parses the operand list of a simple (non-block) directive,
// 
func (p *Parser) parseDirective(dir ast.Directive, kwTok Tok) (*ast.Token, error) {
	tok := &ast.Token{Kind: ast.TokDirective, Directive: dir, Span: p.span(kwTok)}
	switch dir {
	case ast.DirOrg:
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		tok.Exprs = exprs
	case ast.DirEqu, ast.DirAssign:
		// name is carried by the statement's Label when written as
		// "name equ expr"; when written as "equ name, expr" the name is
		// the first expression's label text, extracted here since the
		// statement itself has no leading label token in that form.
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		if len(exprs) >= 2 {
			if exprs[0].Kind != ast.ExprLabel {
				return nil, p.errf(kwTok, "equ/assign requires a name before the comma")
			}
			tok.Label = exprs[0].Str
			exprs = exprs[1:]
		}
		tok.Exprs = exprs
	case ast.DirDefB, ast.DirDefW, ast.DirStr:
		exprs, strs, err := p.parseDataList()
		if err != nil {
			return nil, err
		}
		tok.Exprs = exprs
		tok.Str = strs
	case ast.DirDefS:
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		tok.Exprs = exprs
	case ast.DirIncBin:
		toks := p.lineTokens()
		groups := splitTopLevelCommas(toks)
		if len(groups) == 0 || len(groups[0]) == 0 {
			return nil, p.errf(kwTok, "incbin requires a filename")
		}
		tok.Str = tokensToFilename(groups[0])
		if len(groups) > 1 {
			e, err := newExprParser(groups[1], p.file).ParseExpr()
			if err != nil {
				return nil, err
			}
			tok.IncbinOffset = e
		}
		if len(groups) > 2 {
			e, err := newExprParser(groups[2], p.file).ParseExpr()
			if err != nil {
				return nil, err
			}
			tok.IncbinLength = e
		}
		if len(groups) > 3 {
			tok.IncbinCodec = ast.CrunchKind(strings.ToLower(tokensToFilename(groups[3])))
		} else {
			tok.IncbinCodec = ast.CrunchNone
		}
	case ast.DirInclude:
		toks := p.lineTokens()
		groups := splitTopLevelCommas(toks)
		if len(groups) == 0 || len(groups[0]) == 0 {
			return nil, p.errf(kwTok, "include requires a filename")
		}
		tok.Str = tokensToFilename(groups[0])
		for _, g := range groups[1:] {
			for _, t := range g {
				if upper(ident(t)) == "ONCE" {
					tok.Once = true
				} else if t.Kind == TkIdent {
					tok.Namespace = t.Text
				}
			}
		}
	case ast.DirAlign:
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		tok.Exprs = exprs
	case ast.DirProtect, ast.DirLimit, ast.DirBank, ast.DirBankset:
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		tok.Exprs = exprs
	case ast.DirSave:
		toks := p.lineTokens()
		groups := splitTopLevelCommas(toks)
		if len(groups) < 3 {
			return nil, p.errf(kwTok, "save requires filename, address, length")
		}
		tok.Str = tokensToFilename(groups[0])
		addr, err := newExprParser(groups[1], p.file).ParseExpr()
		if err != nil {
			return nil, err
		}
		length, err := newExprParser(groups[2], p.file).ParseExpr()
		if err != nil {
			return nil, err
		}
		tok.Exprs = []*ast.Expr{addr, length}
		tok.SaveKind = "raw"
		if len(groups) > 3 {
			tok.SaveKind = strings.ToLower(tokensToFilename(groups[3]))
		}
	case ast.DirBreakpoint:
		exprs, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		tok.Exprs = exprs
	}
	return tok, nil
}

// parseDataList parses an operand list that may mix string literals and
// numeric expressions, as defb/defw/str require.
func (p *Parser) parseDataList() ([]*ast.Expr, string, error) {
	toks := p.lineTokens()
	groups := splitTopLevelCommas(toks)
	var exprs []*ast.Expr
	var strBuilder strings.Builder
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		if len(g) == 1 && g[0].Kind == TkString {
			strBuilder.WriteString(g[0].Text)
			exprs = append(exprs, &ast.Expr{Kind: ast.ExprString, Str: g[0].Text, Span: p.span(g[0])})
			continue
		}
		e, err := newExprParser(g, p.file).ParseExpr()
		if err != nil {
			return nil, "", err
		}
		exprs = append(exprs, e)
	}
	return exprs, strBuilder.String(), nil
}

func tokensToFilename(toks []Tok) string {
	if len(toks) == 1 && toks[0].Kind == TkString {
		return toks[0].Text
	}
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}

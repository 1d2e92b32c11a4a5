package lexer

import (
	"strings"

	"github.com/cpctools/bnd/pkg/ast"
)

// parseIf parses `if`/`ifdef`/`ifndef`/`ifused`/`ifnused` ... [elif ...]*
// [else ...] endif, 
func (p *Parser) parseIf() (*ast.Token, error) {
	kwTok := p.next()
	tok := &ast.Token{Kind: ast.TokIf, Span: p.span(kwTok)}
	cond, err := p.ifCondition(upper(kwTok.Text))
	if err != nil {
		return nil, err
	}
	tok.Conditions = append(tok.Conditions, cond)
	body, err := p.parseListingUntil("ELIF", "ELSE", "ENDIF", "ENDI")
	if err != nil {
		return nil, err
	}
	tok.Branches = append(tok.Branches, body)

	for upper(ident(p.peek())) == "ELIF" {
		p.next()
		cond, err := p.parseExprToEOL()
		if err != nil {
			return nil, err
		}
		tok.Conditions = append(tok.Conditions, cond)
		b, err := p.parseListingUntil("ELIF", "ELSE", "ENDIF", "ENDI")
		if err != nil {
			return nil, err
		}
		tok.Branches = append(tok.Branches, b)
	}
	if upper(ident(p.peek())) == "ELSE" {
		p.next()
		p.skipToEOL()
		els, err := p.parseListingUntil("ENDIF", "ENDI")
		if err != nil {
			return nil, err
		}
		tok.ElseBranch = els
	}
	if upper(ident(p.peek())) != "ENDIF" && upper(ident(p.peek())) != "ENDI" {
		return nil, p.errf(p.peek(), "expected endif")
	}
	p.next()
	return tok, nil
}

// ifCondition parses the condition expression appropriate to the `if`
// variant keyword, treating ifdef/ifndef/ifused/ifnused's operand as a bare
// symbol name rather than a full expression.
func (p *Parser) ifCondition(kw string) (*ast.Expr, error) {
	switch kw {
	case "IFDEF", "IFNDEF", "IFUSED", "IFNUSED":
		toks := p.lineTokens()
		if len(toks) == 0 {
			return nil, p.errf(p.peek(), "%s requires a symbol name", kw)
		}
		name := ast.Label(toks[0].Text, p.span(toks[0]))
		switch kw {
		case "IFDEF":
			return &ast.Expr{Kind: ast.ExprCall, Str: "defined", Args: []*ast.Expr{name}, Span: name.Span}, nil
		case "IFNDEF":
			return ast.UnaryExpr(ast.OpNot, &ast.Expr{Kind: ast.ExprCall, Str: "defined", Args: []*ast.Expr{name}, Span: name.Span}, name.Span), nil
		case "IFUSED":
			return &ast.Expr{Kind: ast.ExprLabelTest, Str: name.Str, Span: name.Span}, nil
		case "IFNUSED":
			return ast.UnaryExpr(ast.OpNot, &ast.Expr{Kind: ast.ExprLabelTest, Str: name.Str, Span: name.Span}, name.Span), nil
		}
	}
	return p.parseExprToEOL()
}

func (p *Parser) skipToEOL() {
	for p.peek().Kind != TkEOL && p.peek().Kind != TkEOF {
		p.next()
	}
}

// parseRepeat parses `repeat`/`rept` count[, counter] ... endr, and the
// `repeat until cond ... endr` form, which takes no count.
func (p *Parser) parseRepeat() (*ast.Token, error) {
	kwTok := p.next()
	toks := p.lineTokens()
	if len(toks) > 0 && upper(ident(toks[0])) == "UNTIL" {
		cond, err := newExprParser(toks[1:], p.file).ParseExpr()
		if err != nil {
			return nil, err
		}
		body, err := p.parseListingUntil("ENDR", "ENDW")
		if err != nil {
			return nil, err
		}
		p.next()
		return &ast.Token{Kind: ast.TokRepeatUntil, Conditions: []*ast.Expr{cond}, Body: body, Span: p.span(kwTok)}, nil
	}
	count, err := splitAndParseExprs(toks, p.file)
	if err != nil {
		return nil, err
	}
	tok := &ast.Token{Kind: ast.TokRepeatN, Span: p.span(kwTok)}
	if len(count) > 0 {
		tok.Count = count[0]
	}
	if len(count) > 1 {
		tok.Name = labelOfExpr(count[1])
	}
	body, err := p.parseListingUntil("ENDR", "ENDW")
	if err != nil {
		return nil, err
	}
	p.next()
	tok.Body = body
	return tok, nil
}

func labelOfExpr(e *ast.Expr) string {
	if e != nil && e.Kind == ast.ExprLabel {
		return e.Str
	}
	return ""
}

// parseWhile parses `while cond ... endw`.
func (p *Parser) parseWhile() (*ast.Token, error) {
	kwTok := p.next()
	cond, err := p.parseExprToEOL()
	if err != nil {
		return nil, err
	}
	body, err := p.parseListingUntil("ENDW", "ENDR")
	if err != nil {
		return nil, err
	}
	p.next()
	return &ast.Token{Kind: ast.TokWhile, Conditions: []*ast.Expr{cond}, Body: body, Span: p.span(kwTok)}, nil
}

// parseIterate parses `iterate name, expr, expr, ... ... endr`, iterating the
// body once per item with name bound to each, 
func (p *Parser) parseIterate() (*ast.Token, error) {
	kwTok := p.next()
	toks := p.lineTokens()
	groups := splitTopLevelCommas(toks)
	tok := &ast.Token{Kind: ast.TokIterate, Span: p.span(kwTok)}
	if len(groups) == 0 || len(groups[0]) == 0 {
		return nil, p.errf(kwTok, "iterate requires a binding name")
	}
	tok.Name = groups[0][0].Text
	for _, g := range groups[1:] {
		if len(g) == 0 {
			continue
		}
		e, err := newExprParser(g, p.file).ParseExpr()
		if err != nil {
			return nil, err
		}
		tok.Exprs = append(tok.Exprs, e)
	}
	body, err := p.parseListingUntil("ENDR", "ENDW")
	if err != nil {
		return nil, err
	}
	p.next()
	tok.Body = body
	return tok, nil
}

// parseFor parses `for name, start, stop[, step] ... endfor`/`endr`.
func (p *Parser) parseFor() (*ast.Token, error) {
	kwTok := p.next()
	toks := p.lineTokens()
	groups := splitTopLevelCommas(toks)
	if len(groups) < 3 {
		return nil, p.errf(kwTok, "for requires name, start, stop[, step]")
	}
	tok := &ast.Token{Kind: ast.TokFor, Span: p.span(kwTok)}
	tok.Name = strings.TrimSpace(tokensToFilename(groups[0]))
	var err error
	tok.Start, err = newExprParser(groups[1], p.file).ParseExpr()
	if err != nil {
		return nil, err
	}
	tok.Stop, err = newExprParser(groups[2], p.file).ParseExpr()
	if err != nil {
		return nil, err
	}
	if len(groups) > 3 {
		tok.Step, err = newExprParser(groups[3], p.file).ParseExpr()
		if err != nil {
			return nil, err
		}
	}
	body, err := p.parseListingUntil("ENDFOR", "ENDR", "ENDW")
	if err != nil {
		return nil, err
	}
	p.next()
	tok.Body = body
	return tok, nil
}

// parseSwitch parses `switch expr case v: ... case v2: ... default: ... endswitch`.
func (p *Parser) parseSwitch() (*ast.Token, error) {
	kwTok := p.next()
	subject, err := p.parseExprToEOL()
	if err != nil {
		return nil, err
	}
	tok := &ast.Token{Kind: ast.TokSwitch, Subject: subject, Span: p.span(kwTok)}
	p.skipEOLs()
	for upper(ident(p.peek())) == "CASE" || upper(ident(p.peek())) == "DEFAULT" {
		isDefault := upper(ident(p.peek())) == "DEFAULT"
		p.next()
		var values []*ast.Expr
		if !isDefault {
			values, err = p.parseExprList()
			if err != nil {
				return nil, err
			}
		} else {
			p.skipToEOL()
		}
		body, err := p.parseListingUntil("CASE", "DEFAULT", "ENDSWITCH")
		if err != nil {
			return nil, err
		}
		tok.Cases = append(tok.Cases, ast.SwitchCase{Values: values, Default: isDefault, Body: body})
	}
	if upper(ident(p.peek())) != "ENDSWITCH" {
		return nil, p.errf(p.peek(), "expected endswitch")
	}
	p.next()
	return tok, nil
}

// parseModule parses `module name ... endmodule`, pushing a lexical
// namespace scope.
func (p *Parser) parseModule() (*ast.Token, error) {
	kwTok := p.next()
	toks := p.lineTokens()
	if len(toks) == 0 {
		return nil, p.errf(kwTok, "module requires a name")
	}
	name := toks[0].Text
	body, err := p.parseListingUntil("ENDMODULE")
	if err != nil {
		return nil, err
	}
	p.next()
	return &ast.Token{Kind: ast.TokModule, Name: name, Body: body, Span: p.span(kwTok)}, nil
}

// parseConfined parses `confined ... endconfined`: the inner listing's
// symbols and $ are scoped to the block, 
func (p *Parser) parseConfined() (*ast.Token, error) {
	kwTok := p.next()
	p.skipToEOL()
	body, err := p.parseListingUntil("ENDCONFINED")
	if err != nil {
		return nil, err
	}
	p.next()
	return &ast.Token{Kind: ast.TokConfined, Body: body, Span: p.span(kwTok)}, nil
}

// parseRorg parses `rorg expr ... endrorg`: the inner listing assembles as
// if loaded at expr, independent of the real output cursor.
func (p *Parser) parseRorg() (*ast.Token, error) {
	kwTok := p.next()
	addr, err := p.parseExprToEOL()
	if err != nil {
		return nil, err
	}
	body, err := p.parseListingUntil("ENDRORG")
	if err != nil {
		return nil, err
	}
	p.next()
	return &ast.Token{Kind: ast.TokRorg, Exprs: []*ast.Expr{addr}, Body: body, Span: p.span(kwTok)}, nil
}

// parseCrunched parses `crunched [codec] ... endcrunched`: the inner
// listing is assembled normally and then compressed as a unit in the output
// backend.
func (p *Parser) parseCrunched() (*ast.Token, error) {
	kwTok := p.next()
	toks := p.lineTokens()
	codec := ast.CrunchLZ48
	if len(toks) > 0 {
		codec = ast.CrunchKind(strings.ToLower(toks[0].Text))
	}
	body, err := p.parseListingUntil("ENDCRUNCHED")
	if err != nil {
		return nil, err
	}
	p.next()
	return &ast.Token{Kind: ast.TokCrunched, Codec: codec, Body: body, Span: p.span(kwTok)}, nil
}

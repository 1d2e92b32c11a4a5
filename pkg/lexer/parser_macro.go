package lexer

import (
	"strings"

	"github.com/cpctools/bnd/pkg/ast"
)

// parseMacroDef parses `macro name [param, param, ...] ... endm`, capturing
// the body as raw (re-tokenised) text rather than a parsed Listing: macro
// bodies are substituted and re-lexed at call time, 
func (p *Parser) parseMacroDef() (*ast.Token, error) {
	kwTok := p.next()
	header := p.lineTokens()
	if len(header) == 0 {
		return nil, p.errf(kwTok, "macro requires a name")
	}
	tok := &ast.Token{Kind: ast.TokMacroDef, Span: p.span(kwTok), Flavor: FlavorFor(header)}
	tok.Name = header[0].Text
	tok.EvalParams = map[string]bool{}
	for _, g := range splitTopLevelCommas(header[1:]) {
		if len(g) == 0 {
			continue
		}
		name := g[0].Text
		eval := false
		for _, t := range g[1:] {
			if upper(ident(t)) == "EVAL" {
				eval = true
			}
		}
		tok.Params = append(tok.Params, name)
		if eval {
			tok.EvalParams[name] = true
		}
	}
	raw, err := p.captureRawUntil("ENDM")
	if err != nil {
		return nil, err
	}
	p.next() // ENDM
	tok.RawBody = raw
	return tok, nil
}

// FlavorFor inspects a macro header for an explicit flavor marker; absent
// one, the legacy {name}-placeholder substitution is assumed.
func FlavorFor(header []Tok) ast.MacroFlavor {
	for _, t := range header {
		if upper(ident(t)) == "ORGAMS" {
			return ast.FlavorOrgams
		}
	}
	return ast.FlavorLegacy
}

// captureRawUntil re-renders the token stream from the current position up
// to (not including) a statement whose leading keyword is term, joining
// tokens back into source-like text. This loses exact original whitespace
// but preserves everything the macro substitution pass needs: identifiers,
// punctuation, and statement boundaries.
func (p *Parser) captureRawUntil(term string) (string, error) {
	var b strings.Builder
	depth := 0
	for {
		if p.peek().Kind == TkEOF {
			return "", p.errf(p.peek(), "unterminated macro/struct/function body, expected %s", term)
		}
		if depth == 0 {
			if kw := upper(ident(p.peek())); kw == term {
				return b.String(), nil
			}
		}
		t := p.next()
		switch t.Kind {
		case TkEOL:
			b.WriteByte('\n')
			continue
		case TkIdent:
			if nestedBlockOpeners[upper(t.Text)] {
				depth++
			} else if depth > 0 && (nestedBlockClosers[upper(t.Text)] || upper(t.Text) == term) {
				depth--
			}
		}
		if b.Len() > 0 {
			last := b.String()[b.Len()-1]
			if last != '\n' && needsSpaceBefore(t) {
				b.WriteByte(' ')
			}
		}
		b.WriteString(renderTok(t))
	}
}

var nestedBlockOpeners = map[string]bool{
	"IF": true, "IFDEF": true, "IFNDEF": true, "IFUSED": true, "IFNUSED": true,
	"REPEAT": true, "REPT": true, "WHILE": true, "ITERATE": true, "FOR": true,
	"SWITCH": true, "MODULE": true, "CONFINED": true, "RORG": true, "CRUNCHED": true,
}

var nestedBlockClosers = map[string]bool{
	"ENDIF": true, "ENDI": true, "ENDR": true, "ENDW": true, "ENDFOR": true,
	"ENDSWITCH": true, "ENDMODULE": true, "ENDCONFINED": true, "ENDRORG": true, "ENDCRUNCHED": true,
}

func needsSpaceBefore(t Tok) bool {
	switch t.Kind {
	case TkComma, TkRParen, TkRBracket:
		return false
	}
	return true
}

func renderTok(t Tok) string {
	switch t.Kind {
	case TkString:
		return `"` + t.Text + `"`
	case TkLParen:
		return "("
	case TkRParen:
		return ")"
	case TkLBracket:
		return "["
	case TkRBracket:
		return "]"
	case TkComma:
		return ","
	default:
		return t.Text
	}
}

// parseStructDef parses `struct name fieldname (defb|defw) expr [, ...] |
// fieldname macroname args... ... ends`, struct-as-macro
// design.
func (p *Parser) parseStructDef() (*ast.Token, error) {
	kwTok := p.next()
	header := p.lineTokens()
	if len(header) == 0 {
		return nil, p.errf(kwTok, "struct requires a name")
	}
	tok := &ast.Token{Kind: ast.TokStructDef, Name: header[0].Text, Span: p.span(kwTok)}
	p.skipEOLs()
	for upper(ident(p.peek())) != "ENDS" {
		if p.peek().Kind == TkEOF {
			return nil, p.errf(p.peek(), "unterminated struct, expected ends")
		}
		field, err := p.parseStructField()
		if err != nil {
			return nil, err
		}
		tok.Fields = append(tok.Fields, field)
		p.skipEOLs()
	}
	p.next() // ENDS
	return tok, nil
}

func (p *Parser) parseStructField() (ast.StructField, error) {
	nameTok := p.peek()
	if nameTok.Kind != TkIdent {
		return ast.StructField{}, p.errf(nameTok, "expected field name in struct")
	}
	p.next()
	kindTok := p.peek()
	kind := upper(ident(kindTok))
	switch kind {
	case "DB", "DEFB", "BYTE":
		p.next()
		exprs, err := p.parseExprList()
		if err != nil {
			return ast.StructField{}, err
		}
		var def *ast.Expr
		if len(exprs) > 0 {
			def = exprs[0]
		}
		return ast.StructField{Name: nameTok.Text, IsWord: false, Default: def}, nil
	case "DW", "DEFW", "WORD":
		p.next()
		exprs, err := p.parseExprList()
		if err != nil {
			return ast.StructField{}, err
		}
		var def *ast.Expr
		if len(exprs) > 0 {
			def = exprs[0]
		}
		return ast.StructField{Name: nameTok.Text, IsWord: true, Default: def}, nil
	default:
		call, err := p.parseMacroCallArgs(kindTok)
		if err != nil {
			return ast.StructField{}, err
		}
		return ast.StructField{Name: nameTok.Text, IsMacroCall: true, MacroCall: call}, nil
	}
}

// parseMacroCallArgs parses `macroname arg, [list, of, args], "str", ...`
// into a TokMacroCall token.
func (p *Parser) parseMacroCallArgs(nameTok Tok) (*ast.Token, error) {
	p.next()
	toks := p.lineTokens()
	groups := splitTopLevelCommas(toks)
	tok := &ast.Token{Kind: ast.TokMacroCall, CallName: nameTok.Text, Span: p.span(nameTok)}
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		if g[0].Kind == TkLBracket {
			items, err := newExprParser(g, p.file).ParseExpr()
			if err != nil {
				return nil, err
			}
			if items.Kind == ast.ExprList {
				tok.CallArgs = append(tok.CallArgs, ast.MacroArg{IsList: true, List: items.Items})
				continue
			}
		}
		if len(g) == 1 && g[0].Kind == TkString {
			tok.CallArgs = append(tok.CallArgs, ast.MacroArg{Raw: g[0].Text, Value: &ast.Expr{Kind: ast.ExprString, Str: g[0].Text, Span: p.span(g[0])}})
			continue
		}
		e, err := newExprParser(g, p.file).ParseExpr()
		if err != nil {
			return nil, err
		}
		tok.CallArgs = append(tok.CallArgs, ast.MacroArg{Value: e})
	}
	return tok, nil
}

// parseFunctionDef parses `function name(param, param, ...) ... endfunction`,
// a user-defined pure expression function usable from any expression
// context.
func (p *Parser) parseFunctionDef() (*ast.Token, error) {
	kwTok := p.next()
	header := p.lineTokens()
	if len(header) == 0 {
		return nil, p.errf(kwTok, "function requires a name")
	}
	tok := &ast.Token{Kind: ast.TokFunctionDef, Span: p.span(kwTok)}
	tok.Name = header[0].Text
	rest := header[1:]
	if len(rest) > 0 && rest[0].Kind == TkLParen {
		depth := 0
		var params []Tok
		for _, t := range rest {
			if t.Kind == TkLParen {
				depth++
				if depth == 1 {
					continue
				}
			}
			if t.Kind == TkRParen {
				depth--
				if depth == 0 {
					break
				}
			}
			params = append(params, t)
		}
		for _, g := range splitTopLevelCommas(params) {
			if len(g) == 0 {
				continue
			}
			tok.Params = append(tok.Params, g[0].Text)
		}
	}
	body, err := p.parseListingUntil("ENDFUNCTION")
	if err != nil {
		return nil, err
	}
	p.next()
	tok.FuncBody = body
	return tok, nil
}

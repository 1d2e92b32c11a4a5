package lexer

import (
	"fmt"
	"strings"

	"github.com/cpctools/bnd/pkg/ast"
)

// Options configures the parser, "case sensitivity is a
// configuration flag applied uniformly".
type Options struct {
	CaseFold bool
}

// Parser turns a flat token stream (produced by Scanner) into a Listing.
type Parser struct {
	file    string
	opts    Options
	scanner *Scanner
	toks    []Tok // whole-file stream, EOL-delimited
	pos     int
	// onceSeen tracks resolved include paths already spliced, for the
	// `include ... once` directive.
	onceSeen map[string]bool
}

// ParseSource parses text into a Listing, contract.
func ParseSource(text, file string, opts Options) (*ast.Listing, error) {
	sc := NewScanner(text, file)
	var toks []Tok
	for {
		t, err := sc.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Kind == TkEOF {
			break
		}
	}
	p := &Parser{file: file, opts: opts, scanner: sc, toks: toks, onceSeen: map[string]bool{}}
	listing, err := p.parseListingUntil()
	if err != nil {
		return nil, err
	}
	return listing, nil
}

func (p *Parser) peek() Tok {
	if p.pos >= len(p.toks) {
		return Tok{Kind: TkEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) next() Tok {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) span(t Tok) ast.Span { return ast.Span{File: p.file, Line: t.Line, Column: t.Column} }

func (p *Parser) errf(t Tok, format string, args ...interface{}) error {
	return &ParseError{File: p.file, Line: t.Line, Column: t.Column, Message: fmt.Sprintf(format, args...)}
}

func (p *Parser) skipEOLs() {
	for p.peek().Kind == TkEOL {
		p.next()
	}
}

// lineTokens collects the tokens of the current statement up to (not
// including) the next TkEOL/TkEOF.
func (p *Parser) lineTokens() []Tok {
	var out []Tok
	for p.peek().Kind != TkEOL && p.peek().Kind != TkEOF {
		out = append(out, p.next())
	}
	return out
}

func ident(t Tok) string {
	if t.Kind != TkIdent {
		return ""
	}
	return t.Text
}

func upper(s string) string { return strings.ToUpper(s) }

var directiveNames = map[string]ast.Directive{
	"ORG": ast.DirOrg, "EQU": ast.DirEqu, "ASSIGN": ast.DirAssign, "SET": ast.DirAssign,
	"DB": ast.DirDefB, "DEFB": ast.DirDefB, "BYTE": ast.DirDefB,
	"DW": ast.DirDefW, "DEFW": ast.DirDefW, "WORD": ast.DirDefW,
	"DS": ast.DirDefS, "DEFS": ast.DirDefS,
	"STR": ast.DirStr, "TEXT": ast.DirStr,
	"INCBIN": ast.DirIncBin, "INCLUDE": ast.DirInclude, "READ": ast.DirInclude,
	"ALIGN": ast.DirAlign, "PROTECT": ast.DirProtect, "LIMIT": ast.DirLimit,
	"BANK": ast.DirBank, "BANKSET": ast.DirBankset,
	"SAVE": ast.DirSave, "BREAKPOINT": ast.DirBreakpoint,
}

var controlKeywords = map[string]bool{
	"IF": true, "IFDEF": true, "IFNDEF": true, "IFUSED": true, "IFNUSED": true,
	"REPEAT": true, "REPT": true, "WHILE": true, "ITERATE": true, "FOR": true,
	"SWITCH": true, "MODULE": true, "CONFINED": true, "RORG": true,
	"MACRO": true, "ENDM": true, "STRUCT": true, "ENDS": true,
	"FUNCTION": true, "ENDFUNCTION": true, "CRUNCHED": true, "ENDCRUNCHED": true,
	"PUSH": true, "POP": true, "MAXPASSES": true, "PRINT": true,
	"ELSE": true, "ELIF": true, "ENDIF": true, "ENDR": true, "ENDW": true, "ENDI": true,
	"NEXT": true, "CASE": true, "DEFAULT": true, "ENDSWITCH": true, "ENDMODULE": true,
	"ENDCONFINED": true, "ENDRORG": true,
}

var mnemonics = buildMnemonicSet()

// parseListingUntil parses statements until EOF or a statement whose first
// keyword is one of the block terminators understood by the caller (the
// terminator itself is left unconsumed so the caller can inspect it).
func (p *Parser) parseListingUntil(terminators ...string) (*ast.Listing, error) {
	listing := &ast.Listing{}
	for {
		p.skipEOLs()
		if p.peek().Kind == TkEOF {
			return listing, nil
		}
		if kw := upper(ident(p.peek())); kw != "" {
			for _, term := range terminators {
				if kw == term {
					return listing, nil
				}
			}
		}
		tok, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if tok != nil {
			listing.Append(tok)
		}
	}
}

// parseStatement parses exactly one logical statement, which may itself be
// a multi-line block (if/repeat/macro/...), consuming its own terminator.
func (p *Parser) parseStatement() (*ast.Token, error) {
	first := p.peek()
	var label string
	if first.Kind == TkIdent {
		kw := upper(first.Text)
		isKeyword := controlKeywords[kw] || directiveNames[kw] != 0 || kw == "ORG" || mnemonics[kw]
		if !isKeyword {
			// A bare label: "label:" (colon lexes as a statement
			// separator, so the label naturally ends its own statement)
			// or "label" followed by more tokens on the same logical
			// line without a colon.
			p.next()
			label = first.Text
		}
	}
	if p.peek().Kind == TkEOL || p.peek().Kind == TkEOF {
		if label == "" {
			return nil, nil
		}
		return &ast.Token{Kind: ast.TokLabel, Label: label, Span: p.span(first)}, nil
	}
	kwTok := p.peek()
	kw := upper(ident(kwTok))

	tok, err := p.dispatch(kw, kwTok)
	if err != nil {
		return nil, err
	}
	// Only the "label kw ..." form carries its name this way; the
	// "equ name, expr" form already set tok.Label inside parseDirective,
	// and a blank label here must not clobber it.
	if tok != nil && label != "" {
		tok.Label = label
	}
	return tok, nil
}

func (p *Parser) dispatch(kw string, kwTok Tok) (*ast.Token, error) {
	if dir, ok := directiveNames[kw]; ok {
		p.next()
		return p.parseDirective(dir, kwTok)
	}
	switch kw {
	case "IF", "IFDEF", "IFNDEF", "IFUSED", "IFNUSED":
		return p.parseIf()
	case "REPEAT", "REPT":
		return p.parseRepeat()
	case "WHILE":
		return p.parseWhile()
	case "ITERATE":
		return p.parseIterate()
	case "FOR":
		return p.parseFor()
	case "SWITCH":
		return p.parseSwitch()
	case "MODULE":
		return p.parseModule()
	case "CONFINED":
		return p.parseConfined()
	case "RORG":
		return p.parseRorg()
	case "MACRO":
		return p.parseMacroDef()
	case "STRUCT":
		return p.parseStructDef()
	case "FUNCTION":
		return p.parseFunctionDef()
	case "CRUNCHED":
		return p.parseCrunched()
	case "PUSH":
		p.next()
		return &ast.Token{Kind: ast.TokAssemblerControl, Ctrl: ast.CtrlPushContext, Span: p.span(kwTok)}, nil
	case "POP":
		p.next()
		return &ast.Token{Kind: ast.TokAssemblerControl, Ctrl: ast.CtrlPopContext, Span: p.span(kwTok)}, nil
	case "MAXPASSES":
		p.next()
		e, err := p.parseExprToEOL()
		if err != nil {
			return nil, err
		}
		n := 0
		if e != nil && e.Kind == ast.ExprInt {
			n = int(e.Int)
		}
		return &ast.Token{Kind: ast.TokAssemblerControl, Ctrl: ast.CtrlSetMaxPasses, CtrlMax: n, Span: p.span(kwTok)}, nil
	case "PRINT":
		p.next()
		args, err := p.parseExprList()
		if err != nil {
			return nil, err
		}
		return &ast.Token{Kind: ast.TokAssemblerControl, Ctrl: ast.CtrlPrint, PrintArgs: args, Span: p.span(kwTok)}, nil
	}
	if mnemonics[kw] || looksLikeMnemonic(kw) {
		return p.parseOpcode(kwTok)
	}
	return nil, p.errf(kwTok, "unexpected token %q: not a label, directive, or mnemonic", kwTok.Text)
}

func looksLikeMnemonic(kw string) bool {
	// Unknown mnemonics (macro calls, fake/virtual instructions) are
	// accepted permissively; the assembler core decides at assembly time
	// whether kw is a real opcode or a macro invocation.
	return kw != ""
}

// parseExprToEOL parses a single expression consuming the rest of the line.
func (p *Parser) parseExprToEOL() (*ast.Expr, error) {
	toks := p.lineTokens()
	if len(toks) == 0 {
		return nil, nil
	}
	return newExprParser(toks, p.file).ParseExpr()
}

// parseExprList parses a comma-separated expression list to end of line.
func (p *Parser) parseExprList() ([]*ast.Expr, error) {
	toks := p.lineTokens()
	return splitAndParseExprs(toks, p.file)
}

func splitAndParseExprs(toks []Tok, file string) ([]*ast.Expr, error) {
	groups := splitTopLevelCommas(toks)
	var out []*ast.Expr
	for _, g := range groups {
		if len(g) == 0 {
			continue
		}
		e, err := newExprParser(g, file).ParseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// splitTopLevelCommas splits a token slice on commas that are not nested
// inside (), [].
func splitTopLevelCommas(toks []Tok) [][]Tok {
	var groups [][]Tok
	var cur []Tok
	depth := 0
	for _, t := range toks {
		switch t.Kind {
		case TkLParen, TkLBracket:
			depth++
		case TkRParen, TkRBracket:
			depth--
		}
		if t.Kind == TkComma && depth == 0 {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	groups = append(groups, cur)
	return groups
}

func buildMnemonicSet() map[string]bool {
	names := []string{
		"NOP", "LD", "INC", "DEC", "ADD", "ADC", "SUB", "SBC", "AND", "OR", "XOR", "CP",
		"RLCA", "RRCA", "RLA", "RRA", "DAA", "CPL", "SCF", "CCF", "HALT", "DI", "EI",
		"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SLL", "SRL", "SL1",
		"BIT", "RES", "SET",
		"JP", "JR", "DJNZ", "CALL", "RET", "RETI", "RETN", "RST",
		"PUSH", "POP", "EXX", "EX", "IM", "IN", "OUT",
		"LDI", "LDIR", "LDD", "LDDR", "CPI", "CPIR", "CPD", "CPDR",
		"INI", "INIR", "IND", "INDR", "OUTI", "OTIR", "OUTD", "OTDR",
		"NEG",
	}
	m := map[string]bool{}
	for _, n := range names {
		m[n] = true
	}
	return m
}

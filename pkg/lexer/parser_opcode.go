package lexer

import "github.com/cpctools/bnd/pkg/ast"

// parseOpcode parses a mnemonic followed by a comma-separated operand list,
// including the 0/1/2-operand virtual and fake Z80 instructions an
// existing instruction table already enumerates.
func (p *Parser) parseOpcode(kwTok Tok) (*ast.Token, error) {
	p.next()
	tok := &ast.Token{Kind: ast.TokOpcode, Mnemonic: upper(kwTok.Text), Span: p.span(kwTok)}
	toks := p.lineTokens()
	for _, g := range splitTopLevelCommas(toks) {
		if len(g) == 0 {
			continue
		}
		op, err := p.parseOperand(g)
		if err != nil {
			return nil, err
		}
		tok.Operands = append(tok.Operands, op)
	}
	return tok, nil
}

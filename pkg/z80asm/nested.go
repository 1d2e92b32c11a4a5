package z80asm

import (
	"github.com/cpctools/bnd/pkg/ast"
	"github.com/cpctools/bnd/pkg/lexer"
)

// parseNested re-lexes macro/struct-expansion text produced by pkg/macro
// back into a Listing, so expanded bodies run through the same directive/
// opcode dispatch as hand-written source.
func parseNested(text, file string, caseFold bool) (*ast.Listing, error) {
	return lexer.ParseSource(text, file, lexer.Options{CaseFold: caseFold})
}

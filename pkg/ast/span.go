// Package ast defines the language-neutral token model shared by the
// parser, the assembler, and (in principle) a disassembler: expressions,
// data-access operands, and the Token/Listing tree.
package ast

import "fmt"

// Span is the source-location triple attached to every token.
type Span struct {
	File   string
	Line   int
	Column int
}

func (s Span) String() string {
	if s.File == "" {
		return fmt.Sprintf("%d:%d", s.Line, s.Column)
	}
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

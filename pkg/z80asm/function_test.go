package z80asm

import (
	"testing"

	"github.com/cpctools/bnd/pkg/lexer"
)

func TestAssembleUserFunctionBinding(t *testing.T) {
	src := "function double(n)\nresult equ n * 2\nendfunction\norg 0\ndb double(21)\n"
	res := assembleSource(t, src)
	if res.Pages[0].Mem[0] != 42 {
		t.Fatalf("expected double(21) == 42, got %d", res.Pages[0].Mem[0])
	}
}

func TestAssembleUserFunctionWrongArgCountErrors(t *testing.T) {
	src := "function double(n)\nresult equ n * 2\nendfunction\norg 0\ndb double(1, 2)\n"
	listing, err := lexer.ParseSource(src, "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if _, err := New(Options{MaxPasses: 3}).Assemble(listing); err == nil {
		t.Fatalf("expected an arity mismatch error")
	}
}

func TestAssembleBuiltinMinMaxAbsHiLo(t *testing.T) {
	res := assembleSource(t, "org 0\ndb min(3, 7), max(3, 7), abs(-5), hi(0x1234), lo(0x1234)\n")
	assertBytes(t, res, 0, []byte{3, 7, 5, 0x12, 0x34})
}

func TestAssembleBuiltinStrlenAndAsc(t *testing.T) {
	res := assembleSource(t, "org 0\ndb strlen(\"hello\")\ndb asc(\"A\")\n")
	assertBytes(t, res, 0, []byte{5, 'A'})
}

func TestAssembleCaseFoldMatchesLabelsAcrossCase(t *testing.T) {
	src := "org 0\nStart:\ndb 1\njp START\n"
	listing, err := lexer.ParseSource(src, "test.asm", lexer.Options{CaseFold: true})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	res, err := New(Options{MaxPasses: 3, CaseFold: true}).Assemble(listing)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if res.Pages[0].Mem[1] != 0xC3 {
		t.Fatalf("expected jp opcode at offset 1, got 0x%02x", res.Pages[0].Mem[1])
	}
	if res.Pages[0].Mem[2] != 0 || res.Pages[0].Mem[3] != 0 {
		t.Fatalf("expected jp target to resolve to address 0 despite the case mismatch, got %d,%d", res.Pages[0].Mem[2], res.Pages[0].Mem[3])
	}
}

func TestAssembleCaseSensitiveByDefaultTreatsLabelsAsDistinct(t *testing.T) {
	src := "org 0\nStart:\ndb 1\njp START\n"
	listing, err := lexer.ParseSource(src, "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if _, err := New(Options{MaxPasses: 3}).Assemble(listing); err == nil {
		t.Fatalf("expected an unresolved-symbol error for 'START' without case folding")
	}
}

package lexer

import (
	"testing"

	"github.com/cpctools/bnd/pkg/ast"
)

func TestParseSourceLabelAndOpcode(t *testing.T) {
	listing, err := ParseSource("start:\nnop\n", "t.asm", Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if len(listing.Tokens) != 2 {
		t.Fatalf("expected 2 tokens (label, opcode), got %d", len(listing.Tokens))
	}
	if listing.Tokens[0].Label != "start" {
		t.Fatalf("expected first token's label to be 'start', got %q", listing.Tokens[0].Label)
	}
	if listing.Tokens[1].Kind != ast.TokOpcode {
		t.Fatalf("expected second token to be an opcode, got %v", listing.Tokens[1].Kind)
	}
}

func TestParseSourceOrgDirective(t *testing.T) {
	listing, err := ParseSource("org 0x8000\n", "t.asm", Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	if len(listing.Tokens) != 1 || listing.Tokens[0].Directive != ast.DirOrg {
		t.Fatalf("expected a single ORG directive token, got %+v", listing.Tokens)
	}
}

func TestParseSourceSaveDirective(t *testing.T) {
	listing, err := ParseSource("save \"out.bin\", 0x4000, 100, amsdos\n", "t.asm", Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	tok := listing.Tokens[0]
	if tok.Directive != ast.DirSave || tok.Str != "out.bin" || tok.SaveKind != "amsdos" {
		t.Fatalf("unexpected save token: %+v", tok)
	}
	if len(tok.Exprs) != 2 {
		t.Fatalf("expected address and length expressions, got %d", len(tok.Exprs))
	}
}

func TestParseSourceRejectsMissingSaveArgs(t *testing.T) {
	if _, err := ParseSource("save \"out.bin\"\n", "t.asm", Options{}); err == nil {
		t.Fatalf("expected an error: save requires filename, address, length")
	}
}

func TestParseSourceDefb(t *testing.T) {
	listing, err := ParseSource("db 1, 2, 3\n", "t.asm", Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	tok := listing.Tokens[0]
	if tok.Directive != ast.DirDefB || len(tok.Exprs) != 3 {
		t.Fatalf("unexpected defb token: %+v", tok)
	}
}

package z80asm

import (
	"testing"

	"github.com/cpctools/bnd/pkg/lexer"
)

func TestAssembleOverwriteIsAWarningByDefault(t *testing.T) {
	res := assembleSource(t, "org 0x4000\ndb 1\norg 0x4000\ndb 2\n")
	if len(res.Warnings) == 0 {
		t.Fatalf("expected an overwrite warning, got none")
	}
	if res.Pages[0].Mem[0x4000] != 2 {
		t.Fatalf("expected the later write to win, got %d", res.Pages[0].Mem[0x4000])
	}
}

func TestAssembleOverwriteIsFatalUnderStrict(t *testing.T) {
	listing, err := lexer.ParseSource("org 0x4000\ndb 1\norg 0x4000\ndb 2\n", "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	_, err = New(Options{MaxPasses: 3, Strict: true}).Assemble(listing)
	if err == nil {
		t.Fatalf("expected Strict mode to turn the overwrite into a fatal error")
	}
}

func TestAssembleProtectRejectsWriteInsideRange(t *testing.T) {
	listing, err := lexer.ParseSource("protect 0x4000, 0x4005\norg 0x4000\ndb 1\n", "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	_, err = New(Options{MaxPasses: 3}).Assemble(listing)
	if err == nil {
		t.Fatalf("expected a protected-range violation")
	}
}

func TestAssembleProtectAllowsWriteOutsideRange(t *testing.T) {
	res := assembleSource(t, "protect 0x4000, 0x4005\norg 0x5000\ndb 1\n")
	if res.Pages[0].Mem[0x5000] != 1 {
		t.Fatalf("expected the write outside the protected range to succeed")
	}
}

func TestAssembleLimitRejectsWriteAtOrPastLimit(t *testing.T) {
	listing, err := lexer.ParseSource("limit 0x4002\norg 0x4000\ndb 1, 2, 3\n", "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	_, err = New(Options{MaxPasses: 3}).Assemble(listing)
	if err == nil {
		t.Fatalf("expected a limit violation at the third byte")
	}
}

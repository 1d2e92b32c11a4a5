package z80asm

import (
	"testing"

	"github.com/cpctools/bnd/pkg/lexer"
)

func TestAssembleCrunchedBlockShrinksRepetitiveData(t *testing.T) {
	src := "org 0x4000\ncrunched lz48\nrepeat 200\ndb 0x42\nendr\nendcrunched\nlabel:\n"
	listing, err := lexer.ParseSource(src, "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	res, err := New(Options{MaxPasses: 3}).Assemble(listing)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	label, err := res.Symbols.Lookup("label")
	if err != nil {
		t.Fatalf("Lookup label: %v", err)
	}
	if label.Addr.Logical >= 0x4000+200 {
		t.Fatalf("expected 200 repeated bytes to compress to fewer than 200 bytes, label at 0x%04x", label.Addr.Logical)
	}
}

func TestAssembleCrunchedNoneKeepsRawBytes(t *testing.T) {
	res := assembleSource(t, "org 0x4000\ncrunched none\ndb 1, 2, 3\nendcrunched\n")
	page := res.Pages[0]
	want := []byte{1, 2, 3}
	for i := range want {
		if page.Mem[0x4000+i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, page.Mem[0x4000+i], want[i])
		}
	}
}

func TestAssembleIncBinAppliesCodec(t *testing.T) {
	raw := make([]byte, 100)
	for i := range raw {
		raw[i] = 0x7F
	}
	src := "org 0x8000\nincbin \"blob.bin\", 0, 100, lz48\nlabel:\n"
	listing, err := lexer.ParseSource(src, "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	res, err := New(Options{
		MaxPasses: 3,
		ReadFile: func(path string) ([]byte, error) {
			return raw, nil
		},
	}).Assemble(listing)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	label, err := res.Symbols.Lookup("label")
	if err != nil {
		t.Fatalf("Lookup label: %v", err)
	}
	if label.Addr.Logical >= 0x8000+100 {
		t.Fatalf("expected incbin's codec to shrink 100 repeated bytes, label at 0x%04x", label.Addr.Logical)
	}
}

func TestAssembleIncBinWithoutCodecKeepsRawLength(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5}
	src := "org 0x8000\nincbin \"blob.bin\"\nlabel:\n"
	listing, err := lexer.ParseSource(src, "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	res, err := New(Options{
		MaxPasses: 3,
		ReadFile: func(path string) ([]byte, error) {
			return raw, nil
		},
	}).Assemble(listing)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	label, err := res.Symbols.Lookup("label")
	if err != nil {
		t.Fatalf("Lookup label: %v", err)
	}
	if label.Addr.Logical != 0x8000+uint16(len(raw)) {
		t.Fatalf("expected label at 0x%04x, got 0x%04x", 0x8000+len(raw), label.Addr.Logical)
	}
}

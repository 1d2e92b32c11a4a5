package z80asm

import (
	"testing"

	"github.com/cpctools/bnd/pkg/lexer"
)

func assembleSource(t *testing.T, src string) *Result {
	t.Helper()
	listing, err := lexer.ParseSource(src, "test.asm", lexer.Options{})
	if err != nil {
		t.Fatalf("ParseSource: %v", err)
	}
	res, err := New(Options{MaxPasses: 3}).Assemble(listing)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return res
}

func TestAssembleOrgAndData(t *testing.T) {
	res := assembleSource(t, "org 0x4000\ndb 1, 2, 3\n")
	page := res.Pages[0]
	if page == nil {
		t.Fatalf("expected page 0 to exist")
	}
	got := page.Mem[0x4000:0x4003]
	want := []byte{1, 2, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAssembleForwardLabelReference(t *testing.T) {
	res := assembleSource(t, "org 0x8000\nstart:\ndw end\nnop\nend:\n")
	page := res.Pages[0]
	lo := page.Mem[0x8000]
	hi := page.Mem[0x8001]
	got := uint16(lo) | uint16(hi)<<8
	if got != 0x8003 {
		t.Fatalf("expected forward reference to resolve to 0x8003, got 0x%04x", got)
	}
}

func TestAssembleEquConstant(t *testing.T) {
	res := assembleSource(t, "VALUE equ 42\norg 0x1000\ndb VALUE\n")
	page := res.Pages[0]
	if page.Mem[0x1000] != 42 {
		t.Fatalf("expected 42, got %d", page.Mem[0x1000])
	}
}

func TestAssembleSaveDirectiveRecordsRequest(t *testing.T) {
	res := assembleSource(t, "org 0x4000\ndb 10, 20, 30\nsave \"out.bin\", 0x4000, 3\n")
	if len(res.SaveRequests) != 1 {
		t.Fatalf("expected exactly one save request, got %d", len(res.SaveRequests))
	}
	sr := res.SaveRequests[0]
	if sr.Filename != "out.bin" || sr.Address != 0x4000 || sr.Length != 3 || sr.Kind != "raw" {
		t.Fatalf("unexpected save request: %+v", sr)
	}
	page := res.Pages[sr.Page]
	got := page.Mem[sr.Address : int(sr.Address)+sr.Length]
	want := []byte{10, 20, 30}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestAssembleSaveDirectiveWithKind(t *testing.T) {
	res := assembleSource(t, "org 0x8000\ndb 1\nsave \"out.bin\", 0x8000, 1, amsdos\n")
	if len(res.SaveRequests) != 1 || res.SaveRequests[0].Kind != "amsdos" {
		t.Fatalf("unexpected save requests: %+v", res.SaveRequests)
	}
}

func TestAssembleIfDirective(t *testing.T) {
	res := assembleSource(t, "FLAG equ 1\norg 0x2000\nif FLAG\ndb 7\nelse\ndb 9\nendif\n")
	if res.Pages[0].Mem[0x2000] != 7 {
		t.Fatalf("expected the true branch to assemble, got %d", res.Pages[0].Mem[0x2000])
	}
}

func TestAssembleRepeatDirective(t *testing.T) {
	res := assembleSource(t, "org 0x3000\nrepeat 3\ndb 5\nendr\n")
	page := res.Pages[0]
	for i := 0; i < 3; i++ {
		if page.Mem[0x3000+i] != 5 {
			t.Fatalf("byte %d: got %d, want 5", i, page.Mem[0x3000+i])
		}
	}
}

func TestAssembleConvergesAcrossPasses(t *testing.T) {
	// backward and forward label references both resolve once converged.
	res := assembleSource(t, "org 0x100\nstart:\njp next\nnop\nnext:\njp start\n")
	if res.Passes < 1 {
		t.Fatalf("expected at least one pass, got %d", res.Passes)
	}
	page := res.Pages[0]
	// "jp next" (3 bytes at 0x100) + "nop" (1 byte at 0x103) places the
	// second "jp start" at 0x104, its operand at 0x105/0x106.
	lo := page.Mem[0x105]
	hi := page.Mem[0x106]
	got := uint16(lo) | uint16(hi)<<8
	if got != 0x100 {
		t.Fatalf("expected backward reference to resolve to 0x100, got 0x%04x", got)
	}
}

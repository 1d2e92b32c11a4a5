package z80asm

import "testing"

func TestAssembleSwitchDirective(t *testing.T) {
	res := assembleSource(t, "MODE equ 2\norg 0\nswitch MODE\ncase 1\ndb 11\ncase 2\ndb 22\ndefault\ndb 33\nendswitch\n")
	if res.Pages[0].Mem[0] != 22 {
		t.Fatalf("expected the matching case to assemble, got %d", res.Pages[0].Mem[0])
	}
}

func TestAssembleSwitchDefaultFallback(t *testing.T) {
	res := assembleSource(t, "MODE equ 9\norg 0\nswitch MODE\ncase 1\ndb 11\ndefault\ndb 33\nendswitch\n")
	if res.Pages[0].Mem[0] != 33 {
		t.Fatalf("expected the default branch to assemble, got %d", res.Pages[0].Mem[0])
	}
}

func TestAssembleWhileDirective(t *testing.T) {
	res := assembleSource(t, "COUNT equ 0\norg 0\nwhile COUNT < 3\ndb COUNT\nCOUNT assign COUNT + 1\nendw\n")
	page := res.Pages[0]
	for i := 0; i < 3; i++ {
		if page.Mem[i] != byte(i) {
			t.Fatalf("byte %d: got %d, want %d", i, page.Mem[i], i)
		}
	}
}

func TestAssembleForDirective(t *testing.T) {
	res := assembleSource(t, "org 0\nfor i, 0, 3\ndb i\nendfor\n")
	page := res.Pages[0]
	want := []byte{0, 1, 2}
	for i := range want {
		if page.Mem[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, page.Mem[i], want[i])
		}
	}
}

func TestAssembleIterateDirective(t *testing.T) {
	res := assembleSource(t, "org 0\niterate v, 5, 10, 15\ndb v\nendr\n")
	page := res.Pages[0]
	want := []byte{5, 10, 15}
	for i := range want {
		if page.Mem[i] != want[i] {
			t.Fatalf("byte %d: got %d, want %d", i, page.Mem[i], want[i])
		}
	}
}

func TestAssembleModuleScopesLabels(t *testing.T) {
	res := assembleSource(t, "org 0\nmodule foo\nstart:\ndb 1\nendmodule\ndb 2\n")
	if _, err := res.Symbols.Lookup("foo.start"); err != nil {
		t.Fatalf("expected module-qualified label foo.start to be defined: %v", err)
	}
}

func TestAssembleConfinedScopesLabelsAndRestoresCursor(t *testing.T) {
	res := assembleSource(t, "org 0x4000\nconfined\ninner:\ndb 1\nendconfined\ndb 2\n")
	if _, err := res.Symbols.Lookup("inner"); err == nil {
		t.Fatalf("expected 'inner' to be out of scope once its confined block ends")
	}
	// confined restores the cursor it saved, so the statement after
	// endconfined resumes from the same address the block started at.
	if res.Pages[0].Mem[0x4000] != 2 {
		t.Fatalf("expected the cursor to resume at 0x4000 after endconfined, got %d", res.Pages[0].Mem[0x4000])
	}
}

func TestAssembleRorgAssemblesAtVirtualAddress(t *testing.T) {
	res := assembleSource(t, "org 0x100\nrorg 0x8000\nhere:\ndb 1\nendrorg\nnop\n")
	here, err := res.Symbols.Lookup("here")
	if err != nil {
		t.Fatalf("Lookup here: %v", err)
	}
	if here.Addr.Logical != 0x8000 {
		t.Fatalf("expected rorg label at 0x8000, got 0x%04x", here.Addr.Logical)
	}
	// rorg's body writes into the page at its virtual address, not the real cursor.
	if res.Pages[0].Mem[0x8000] != 1 {
		t.Fatalf("expected rorg body to write at the virtual address 0x8000, got %d", res.Pages[0].Mem[0x8000])
	}
	// endrorg restores the real cursor, so the next statement resumes there.
	if res.Pages[0].Mem[0x100] != 0x00 {
		t.Fatalf("expected the cursor to resume at 0x100 after endrorg, got opcode %#x", res.Pages[0].Mem[0x100])
	}
}

func TestAssembleBankSwitchesPage(t *testing.T) {
	res := assembleSource(t, "org 0\ndb 1\nbank 1\norg 0\ndb 2\n")
	if res.Pages[0].Mem[0] != 1 {
		t.Fatalf("expected page 0 byte 1, got %d", res.Pages[0].Mem[0])
	}
	if res.Pages[1] == nil || res.Pages[1].Mem[0] != 2 {
		t.Fatalf("expected page 1 byte 2 after bank 1")
	}
}

func TestAssembleBanksetAliasesBank(t *testing.T) {
	res := assembleSource(t, "org 0\nbankset 3\norg 0\ndb 9\n")
	if res.Pages[3] == nil || res.Pages[3].Mem[0] != 9 {
		t.Fatalf("expected bankset 3 to switch the current page like bank")
	}
}

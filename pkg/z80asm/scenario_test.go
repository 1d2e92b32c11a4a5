package z80asm

import "testing"

// TestScenario_S2_OrgLoadRet exercises "org 0x4000 : ld hl,0x1234 : ret",
// which must assemble to 21 34 12 C9 at offset 0 with an empty symbol
// table (no labels or equ/assign bindings are used).
func TestScenario_S2_OrgLoadRet(t *testing.T) {
	res := assembleSource(t, "org 0x4000 : ld hl,0x1234 : ret\n")
	assertBytes(t, res, 0x4000, []byte{0x21, 0x34, 0x12, 0xC9})
	if exported := res.Symbols.Export(""); len(exported) != 0 {
		t.Fatalf("expected an empty symbol table, got %v", exported)
	}
}

// TestScenario_S3_ForwardReferenceConverges exercises a forward reference
// to a label defined after its use, where the first pass's guess for the
// label's address is wrong and a second pass is needed to converge: the
// byte at offset 1 settles at 11 once "target" is known to sit 10 bytes
// past the "defs" block that follows it.
func TestScenario_S3_ForwardReferenceConverges(t *testing.T) {
	res := assembleSource(t, "org 0\nld a, target - $\ndefs 10, 0\ntarget:\n")
	if res.Passes < 2 {
		t.Fatalf("expected convergence to take at least two passes, got %d", res.Passes)
	}
	if res.Pages[0].Mem[1] != 11 {
		t.Fatalf("expected byte 1 to converge to 11, got %d", res.Pages[0].Mem[1])
	}
}

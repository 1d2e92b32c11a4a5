package z80asm

import "testing"

func assertBytes(t *testing.T, res *Result, addr uint16, want []byte) {
	t.Helper()
	page := res.Pages[0]
	for i, w := range want {
		got := page.Mem[addr+uint16(i)]
		if got != w {
			t.Fatalf("byte %d (addr 0x%04x): got 0x%02x, want 0x%02x", i, addr+uint16(i), got, w)
		}
	}
}

func TestEncodeALURegisterForm(t *testing.T) {
	res := assembleSource(t, "org 0\nand b\nxor c\nor d\ncp e\n")
	assertBytes(t, res, 0, []byte{0xA0, 0xA9, 0xB2, 0xBB})
}

func TestEncodeALUTwoOperandAccumulatorForm(t *testing.T) {
	res := assembleSource(t, "org 0\nadd a,b\nadc a,(hl)\n")
	assertBytes(t, res, 0, []byte{0x80, 0x8E})
}

func TestEncodeALUAddHLrp(t *testing.T) {
	res := assembleSource(t, "org 0\nadd hl,bc\nadc hl,de\nsbc hl,sp\n")
	assertBytes(t, res, 0, []byte{0x09, 0xED, 0x5A, 0xED, 0x72})
}

func TestEncodeALUImmediate(t *testing.T) {
	res := assembleSource(t, "org 0\ncp 0x20\n")
	assertBytes(t, res, 0, []byte{0xFE, 0x20})
}

func TestEncodeShiftAndBitOps(t *testing.T) {
	res := assembleSource(t, "org 0\nrlc b\nbit 3,b\nset 0,(hl)\nres 7,c\n")
	assertBytes(t, res, 0, []byte{
		0xCB, 0x00, // rlc b
		0xCB, 0x58, // bit 3,b
		0xCB, 0xC6, // set 0,(hl)
		0xCB, 0xB9, // res 7,c
	})
}

func TestEncodeIncDec(t *testing.T) {
	res := assembleSource(t, "org 0\ninc b\ndec c\ninc hl\ndec (hl)\n")
	assertBytes(t, res, 0, []byte{0x04, 0x0D, 0x23, 0x35})
}

func TestEncodeStackOps(t *testing.T) {
	res := assembleSource(t, "org 0\npush bc\npop hl\npush ix\n")
	assertBytes(t, res, 0, []byte{0xC5, 0xE1, 0xDD, 0xE5})
}

func TestEncodeJPAndJPcc(t *testing.T) {
	res := assembleSource(t, "org 0\njp 0x1234\njp z,0x1234\n")
	assertBytes(t, res, 0, []byte{0xC3, 0x34, 0x12, 0xCA, 0x34, 0x12})
}

func TestEncodeJRAndDJNZ(t *testing.T) {
	res := assembleSource(t, "org 0\njr label\nnop\nlabel:\ndjnz label\n")
	page := res.Pages[0]
	if page.Mem[0] != 0x18 {
		t.Fatalf("expected JR opcode 0x18, got 0x%02x", page.Mem[0])
	}
	if page.Mem[1] != 1 {
		t.Fatalf("expected JR displacement 1, got %d", int8(page.Mem[1]))
	}
	if page.Mem[3] != 0x10 {
		t.Fatalf("expected DJNZ opcode 0x10, got 0x%02x", page.Mem[3])
	}
}

func TestEncodeCALLAndCALLcc(t *testing.T) {
	res := assembleSource(t, "org 0\ncall 0x8000\ncall nz,0x8000\n")
	assertBytes(t, res, 0, []byte{0xCD, 0x00, 0x80, 0xC4, 0x00, 0x80})
}

func TestEncodeRETAndRST(t *testing.T) {
	res := assembleSource(t, "org 0\nret\nret c\nrst 0x10\n")
	assertBytes(t, res, 0, []byte{0xC9, 0xD8, 0xD7})
}

func TestEncodeINOUTEXIM(t *testing.T) {
	res := assembleSource(t, "org 0\nin a,(c)\nin a,(0x10)\nout (c),b\nout (0x10),a\nex de,hl\nex (sp),hl\nim 1\n")
	assertBytes(t, res, 0, []byte{
		0xED, 0x78, // in a,(c)
		0xDB, 0x10, // in a,(n)
		0xED, 0x41, // out (c),b
		0xD3, 0x10, // out (n),a
		0xEB,             // ex de,hl
		0xE3,             // ex (sp),hl
		0xED, 0x56, // im 1
	})
}

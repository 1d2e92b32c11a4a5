package z80asm

import (
	"fmt"

	"github.com/cpctools/bnd/pkg/ast"
)

// runOpcode encodes one instruction token and emits its bytes. Encoding is
// formulaic rather than table-enumerated wherever the Z80's regular 3-bit
// register fields allow it, matching an observation
// already made in z80asm/encoder.go's getRegisterCode: that register codes
// are a plain linear mapping; CB/ED-prefixed groups and the handful of
// genuinely irregular instructions (EX, IM, RST, relative jumps) get their
// own small dedicated encoders below.
func (a *Assembler) runOpcode(tok *ast.Token) error {
	bs, err := a.encode(tok)
	if err != nil {
		return a.evalErr(tok.Span, err)
	}
	a.listing = append(a.listing, ListingLine{Page: a.curPage, Address: a.pc, Bytes: bs, Label: tok.Label, Source: tok.Mnemonic})
	if err := a.emitBytes(bs); err != nil {
		return a.evalErr(tok.Span, err)
	}
	return nil
}

func (a *Assembler) encode(tok *ast.Token) ([]byte, error) {
	m := tok.Mnemonic
	ops := tok.Operands
	switch m {
	case "NOP":
		return []byte{0x00}, nil
	case "HALT":
		return []byte{0x76}, nil
	case "DI":
		return []byte{0xF3}, nil
	case "EI":
		return []byte{0xFB}, nil
	case "EXX":
		return []byte{0xD9}, nil
	case "RLCA":
		return []byte{0x07}, nil
	case "RRCA":
		return []byte{0x0F}, nil
	case "RLA":
		return []byte{0x17}, nil
	case "RRA":
		return []byte{0x1F}, nil
	case "DAA":
		return []byte{0x27}, nil
	case "CPL":
		return []byte{0x2F}, nil
	case "SCF":
		return []byte{0x37}, nil
	case "CCF":
		return []byte{0x3F}, nil
	case "RET":
		return a.encodeRet(ops)
	case "RETI":
		return []byte{0xED, 0x4D}, nil
	case "RETN":
		return []byte{0xED, 0x45}, nil
	case "NEG":
		return []byte{0xED, 0x44}, nil
	case "LDI":
		return []byte{0xED, 0xA0}, nil
	case "LDIR":
		return []byte{0xED, 0xB0}, nil
	case "LDD":
		return []byte{0xED, 0xA8}, nil
	case "LDDR":
		return []byte{0xED, 0xB8}, nil
	case "CPI":
		return []byte{0xED, 0xA1}, nil
	case "CPIR":
		return []byte{0xED, 0xB1}, nil
	case "CPD":
		return []byte{0xED, 0xA9}, nil
	case "CPDR":
		return []byte{0xED, 0xB9}, nil
	case "INI":
		return []byte{0xED, 0xA2}, nil
	case "INIR":
		return []byte{0xED, 0xB2}, nil
	case "IND":
		return []byte{0xED, 0xAA}, nil
	case "INDR":
		return []byte{0xED, 0xBA}, nil
	case "OUTI":
		return []byte{0xED, 0xA3}, nil
	case "OTIR":
		return []byte{0xED, 0xB3}, nil
	case "OUTD":
		return []byte{0xED, 0xAB}, nil
	case "OTDR":
		return []byte{0xED, 0xBB}, nil
	case "LD":
		return a.encodeLD(tok, ops)
	case "ADD", "ADC", "SUB", "SBC", "AND", "XOR", "OR", "CP":
		return a.encodeALU(m, ops)
	case "INC", "DEC":
		return a.encodeIncDec(m, ops)
	case "PUSH", "POP":
		return a.encodeStack(m, ops)
	case "JP":
		return a.encodeJP(ops)
	case "JR":
		return a.encodeJR(tok.Span, ops)
	case "DJNZ":
		return a.encodeDJNZ(tok.Span, ops)
	case "CALL":
		return a.encodeCALL(ops)
	case "RST":
		return a.encodeRST(ops)
	case "IN":
		return a.encodeIN(ops)
	case "OUT":
		return a.encodeOUT(ops)
	case "EX":
		return a.encodeEX(ops)
	case "IM":
		return a.encodeIM(ops)
	case "RLC", "RRC", "RL", "RR", "SLA", "SRA", "SLL", "SRL", "SL1":
		return a.encodeShift(m, ops)
	case "BIT", "RES", "SET":
		return a.encodeBitOp(m, ops)
	}
	return nil, fmt.Errorf("unknown or unsupported mnemonic %q", m)
}

// reg8Code returns the 3-bit field value for a Reg8, per the canonical
// B C D E H L _ A ordering.
func reg8Code(r ast.Reg8) byte { return byte(r) }

func condCode(f ast.Flag) (byte, bool) {
	switch f {
	case ast.FNZ:
		return 0, true
	case ast.FZ:
		return 1, true
	case ast.FNC:
		return 2, true
	case ast.FC:
		return 3, true
	case ast.FPO:
		return 4, true
	case ast.FPE:
		return 5, true
	case ast.FP:
		return 6, true
	case ast.FM:
		return 7, true
	}
	return 0, false
}

// jrCondCode restricts JR/DJNZ's condition set to NZ/Z/NC/C.
func jrCondCode(f ast.Flag) (byte, bool) {
	switch f {
	case ast.FNZ:
		return 0, true
	case ast.FZ:
		return 1, true
	case ast.FNC:
		return 2, true
	case ast.FC:
		return 3, true
	}
	return 0, false
}

func rp16Code(r ast.Reg16) (byte, bool) {
	switch r {
	case ast.RPBC:
		return 0, true
	case ast.RPDE:
		return 1, true
	case ast.RPHL:
		return 2, true
	case ast.RPSP:
		return 3, true
	}
	return 0, false
}

func rp2Code(r ast.Reg16) (byte, bool) {
	switch r {
	case ast.RPBC:
		return 0, true
	case ast.RPDE:
		return 1, true
	case ast.RPHL:
		return 2, true
	case ast.RPAF:
		return 3, true
	}
	return 0, false
}

func (a *Assembler) intOperand(e *ast.Expr) (int64, error) {
	v, err := a.eval.Eval(e)
	if err != nil {
		return 0, err
	}
	return v.AsInt(), nil
}

func word(n int64) (lo, hi byte) { return byte(n), byte(n >> 8) }

func idxPrefix(r ast.Reg16) (byte, bool) {
	switch r {
	case ast.RPIX:
		return 0xDD, true
	case ast.RPIY:
		return 0xFD, true
	}
	return 0, false
}

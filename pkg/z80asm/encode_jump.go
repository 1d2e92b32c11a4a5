package z80asm

import (
	"fmt"

	"github.com/cpctools/bnd/pkg/ast"
)

// asFlag resolves an operand that names a condition. "C" is lexically
// ambiguous between register C and flag C; in a jump/call condition slot
// it can only mean the flag, so a bare DAReg8{C} is accepted here too.
func asFlag(op ast.DataAccess) (ast.Flag, bool) {
	if op.Kind == ast.DAFlagTest {
		return op.Flag, true
	}
	if op.Kind == ast.DAReg8 && op.Reg8 == ast.RC {
		return ast.FC, true
	}
	return 0, false
}

func (a *Assembler) encodeJP(ops []ast.DataAccess) ([]byte, error) {
	switch len(ops) {
	case 1:
		op := ops[0]
		switch {
		case op.Kind == ast.DAMemReg16 && op.Reg16 == ast.RPHL:
			return []byte{0xE9}, nil
		case op.Kind == ast.DAIndexedMem:
			prefix, _ := idxPrefix(op.Reg16)
			return []byte{prefix, 0xE9}, nil
		case op.Kind == ast.DAImmediate:
			n, err := a.intOperand(op.Expr)
			if err != nil {
				return nil, err
			}
			lo, hi := word(n)
			return []byte{0xC3, lo, hi}, nil
		}
	case 2:
		cc, ok := asFlag(ops[0])
		ccode, okc := condCode(cc)
		if !ok || !okc || ops[1].Kind != ast.DAImmediate {
			return nil, fmt.Errorf("JP cc,nn: unsupported operand")
		}
		n, err := a.intOperand(ops[1].Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0xC2 | ccode<<3, lo, hi}, nil
	}
	return nil, fmt.Errorf("JP: unsupported operand combination")
}

// relDisplacement computes the signed 8-bit displacement for a relative
// jump whose instruction starts at a.pc (already advanced to the length
// the opcode plus displacement byte occupy is accounted for by the caller
// adding the instruction's own length before subtracting).
func (a *Assembler) relDisplacement(target int64, instrLen int64) (byte, error) {
	disp := target - (int64(a.pc) + instrLen)
	if disp < -128 || disp > 127 {
		return 0, fmt.Errorf("relative jump out of range: displacement %d", disp)
	}
	return byte(disp), nil
}

func (a *Assembler) encodeJR(span ast.Span, ops []ast.DataAccess) ([]byte, error) {
	switch len(ops) {
	case 1:
		n, err := a.intOperand(ops[0].Expr)
		if err != nil {
			return nil, err
		}
		d, err := a.relDisplacement(n, 2)
		if err != nil {
			return nil, err
		}
		return []byte{0x18, d}, nil
	case 2:
		flag, ok := asFlag(ops[0])
		cc, okc := jrCondCode(flag)
		if !ok || !okc || ops[1].Kind != ast.DAImmediate {
			return nil, fmt.Errorf("JR cc,e: unsupported operand")
		}
		n, err := a.intOperand(ops[1].Expr)
		if err != nil {
			return nil, err
		}
		d, err := a.relDisplacement(n, 2)
		if err != nil {
			return nil, err
		}
		return []byte{0x20 | cc<<3, d}, nil
	}
	return nil, fmt.Errorf("JR: unsupported operand combination")
}

func (a *Assembler) encodeDJNZ(span ast.Span, ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("DJNZ expects one operand")
	}
	n, err := a.intOperand(ops[0].Expr)
	if err != nil {
		return nil, err
	}
	d, err := a.relDisplacement(n, 2)
	if err != nil {
		return nil, err
	}
	return []byte{0x10, d}, nil
}

func (a *Assembler) encodeCALL(ops []ast.DataAccess) ([]byte, error) {
	switch len(ops) {
	case 1:
		n, err := a.intOperand(ops[0].Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0xCD, lo, hi}, nil
	case 2:
		cc, ok := asFlag(ops[0])
		ccode, okc := condCode(cc)
		if !ok || !okc {
			return nil, fmt.Errorf("CALL cc,nn: unsupported operand")
		}
		n, err := a.intOperand(ops[1].Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0xC4 | ccode<<3, lo, hi}, nil
	}
	return nil, fmt.Errorf("CALL: unsupported operand combination")
}

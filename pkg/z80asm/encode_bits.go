package z80asm

import (
	"fmt"

	"github.com/cpctools/bnd/pkg/ast"
)

// shiftBase maps each CB-prefixed rotate/shift mnemonic to its register-
// field base, following the same linear 0xCB-table layout as the ALU group.
var shiftBase = map[string]byte{
	"RLC": 0x00, "RRC": 0x08, "RL": 0x10, "RR": 0x18,
	"SLA": 0x20, "SRA": 0x28, "SLL": 0x30, "SL1": 0x30, "SRL": 0x38,
}

func (a *Assembler) encodeShift(m string, ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("%s expects one operand", m)
	}
	base := shiftBase[m]
	op := ops[0]
	switch {
	case op.Kind == ast.DAReg8:
		return []byte{0xCB, base | reg8Code(op.Reg8)}, nil
	case op.Kind == ast.DAMemReg16 && op.Reg16 == ast.RPHL:
		return []byte{0xCB, base | 6}, nil
	case op.Kind == ast.DAIndexedMem:
		prefix, _ := idxPrefix(op.Reg16)
		d, err := a.intOperand(op.Offset)
		if err != nil {
			return nil, err
		}
		return []byte{prefix, 0xCB, byte(d), base | 6}, nil
	}
	return nil, fmt.Errorf("%s: unsupported operand", m)
}

func (a *Assembler) encodeBitOp(m string, ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("%s expects bit number and operand", m)
	}
	bit, err := a.intOperand(ops[0].Expr)
	if err != nil {
		return nil, err
	}
	if bit < 0 || bit > 7 {
		return nil, fmt.Errorf("%s: bit index must be 0-7", m)
	}
	var base byte
	switch m {
	case "BIT":
		base = 0x40
	case "RES":
		base = 0x80
	case "SET":
		base = 0xC0
	}
	op := ops[1]
	switch {
	case op.Kind == ast.DAReg8:
		return []byte{0xCB, base | byte(bit)<<3 | reg8Code(op.Reg8)}, nil
	case op.Kind == ast.DAMemReg16 && op.Reg16 == ast.RPHL:
		return []byte{0xCB, base | byte(bit)<<3 | 6}, nil
	case op.Kind == ast.DAIndexedMem:
		prefix, _ := idxPrefix(op.Reg16)
		d, err := a.intOperand(op.Offset)
		if err != nil {
			return nil, err
		}
		return []byte{prefix, 0xCB, byte(d), base | byte(bit)<<3 | 6}, nil
	}
	return nil, fmt.Errorf("%s: unsupported operand", m)
}

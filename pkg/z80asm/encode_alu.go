package z80asm

import (
	"fmt"

	"github.com/cpctools/bnd/pkg/ast"
)

// aluBase is the register-form opcode base for each ALU mnemonic, in the
// fixed order ADD ADC SUB SBC AND XOR OR CP the Z80 groups them in (bits
// 543 of 0x80-0xBF). The immediate form is always base+0x46 and the (HL)/
// (IX+d) form is always base+6, both direct consequences of the same
// linear layout.
var aluBase = map[string]byte{
	"ADD": 0x80, "ADC": 0x88, "SUB": 0x90, "SBC": 0x98,
	"AND": 0xA0, "XOR": 0xA8, "OR": 0xB0, "CP": 0xB8,
}

// encodeALU handles both the implicit-accumulator one-operand form
// (AND B) and the explicit two-operand form (AND A,B / ADD HL,BC).
func (a *Assembler) encodeALU(m string, ops []ast.DataAccess) ([]byte, error) {
	if len(ops) == 2 {
		dst := ops[0]
		switch {
		case dst.Kind == ast.DAReg16 && dst.Reg16 == ast.RPHL:
			rp, ok := rp16Code(ops[1].Reg16)
			if ops[1].Kind != ast.DAReg16 || !ok {
				return nil, fmt.Errorf("%s HL,?: expects a 16-bit register pair", m)
			}
			switch m {
			case "ADD":
				return []byte{0x09 | rp<<4}, nil
			case "ADC":
				return []byte{0xED, 0x4A | rp<<4}, nil
			case "SBC":
				return []byte{0xED, 0x42 | rp<<4}, nil
			}
			return nil, fmt.Errorf("%s HL,rp is not a valid instruction", m)
		case dst.Kind == ast.DAIndexReg16:
			prefix, _ := idxPrefix(dst.Reg16)
			rp, ok := indexedRPCode(dst.Reg16, ops[1])
			if !ok {
				return nil, fmt.Errorf("%s %v,?: unsupported operand", m, dst.Reg16)
			}
			if m != "ADD" {
				return nil, fmt.Errorf("%s %v,rp is not a valid instruction", m, dst.Reg16)
			}
			return []byte{prefix, 0x09 | rp<<4}, nil
		case dst.Kind == ast.DAReg8 && dst.Reg8 == ast.RA:
			return a.encodeALU(m, ops[1:])
		}
		return nil, fmt.Errorf("%s: unsupported operand combination", m)
	}
	if len(ops) != 1 {
		return nil, fmt.Errorf("%s expects one or two operands", m)
	}
	base := aluBase[m]
	src := ops[0]
	switch {
	case src.Kind == ast.DAReg8:
		return []byte{base | reg8Code(src.Reg8)}, nil
	case src.Kind == ast.DAMemReg16 && src.Reg16 == ast.RPHL:
		return []byte{base | 6}, nil
	case src.Kind == ast.DAImmediate:
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		return []byte{base + 0x46, byte(n)}, nil
	case src.Kind == ast.DAIndexedMem:
		prefix, _ := idxPrefix(src.Reg16)
		d, err := a.intOperand(src.Offset)
		if err != nil {
			return nil, err
		}
		return []byte{prefix, base | 6, byte(d)}, nil
	case src.Kind == ast.DAIndexReg8:
		prefix := indexPrefixOf(src.IndexReg8)
		return []byte{prefix, base | halfCode(src.IndexReg8)}, nil
	}
	return nil, fmt.Errorf("%s: unsupported operand", m)
}

// indexedRPCode resolves the "rp" slot of ADD IX,rp: BC/DE/SP keep their
// usual codes, and IX's own slot (otherwise HL's code 2) is taken by a
// second reference to the same index register.
func indexedRPCode(self ast.Reg16, op ast.DataAccess) (byte, bool) {
	switch op.Kind {
	case ast.DAReg16:
		switch op.Reg16 {
		case ast.RPBC:
			return 0, true
		case ast.RPDE:
			return 1, true
		case ast.RPSP:
			return 3, true
		}
	case ast.DAIndexReg16:
		if op.Reg16 == self {
			return 2, true
		}
	}
	return 0, false
}

func (a *Assembler) encodeIncDec(m string, ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("%s expects one operand", m)
	}
	inc := m == "INC"
	op := ops[0]
	switch {
	case op.Kind == ast.DAReg8:
		if inc {
			return []byte{0x04 | reg8Code(op.Reg8)<<3}, nil
		}
		return []byte{0x05 | reg8Code(op.Reg8)<<3}, nil
	case op.Kind == ast.DAMemReg16 && op.Reg16 == ast.RPHL:
		if inc {
			return []byte{0x34}, nil
		}
		return []byte{0x35}, nil
	case op.Kind == ast.DAReg16:
		rp, ok := rp16Code(op.Reg16)
		if !ok {
			return nil, fmt.Errorf("%s: unsupported register pair %v", m, op.Reg16)
		}
		if inc {
			return []byte{0x03 | rp<<4}, nil
		}
		return []byte{0x0B | rp<<4}, nil
	case op.Kind == ast.DAIndexReg16:
		prefix, _ := idxPrefix(op.Reg16)
		if inc {
			return []byte{prefix, 0x23}, nil
		}
		return []byte{prefix, 0x2B}, nil
	case op.Kind == ast.DAIndexReg8:
		prefix := indexPrefixOf(op.IndexReg8)
		if inc {
			return []byte{prefix, 0x04 | halfCode(op.IndexReg8)<<3}, nil
		}
		return []byte{prefix, 0x05 | halfCode(op.IndexReg8)<<3}, nil
	case op.Kind == ast.DAIndexedMem:
		prefix, _ := idxPrefix(op.Reg16)
		d, err := a.intOperand(op.Offset)
		if err != nil {
			return nil, err
		}
		if inc {
			return []byte{prefix, 0x34, byte(d)}, nil
		}
		return []byte{prefix, 0x35, byte(d)}, nil
	}
	return nil, fmt.Errorf("%s: unsupported operand", m)
}

func (a *Assembler) encodeStack(m string, ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("%s expects one operand", m)
	}
	push := m == "PUSH"
	op := ops[0]
	switch {
	case op.Kind == ast.DAReg16:
		rp, ok := rp2Code(op.Reg16)
		if !ok {
			return nil, fmt.Errorf("%s: unsupported register pair %v", m, op.Reg16)
		}
		if push {
			return []byte{0xC5 | rp<<4}, nil
		}
		return []byte{0xC1 | rp<<4}, nil
	case op.Kind == ast.DAIndexReg16:
		prefix, _ := idxPrefix(op.Reg16)
		if push {
			return []byte{prefix, 0xE5}, nil
		}
		return []byte{prefix, 0xE1}, nil
	}
	return nil, fmt.Errorf("%s: unsupported operand", m)
}

func (a *Assembler) encodeRet(ops []ast.DataAccess) ([]byte, error) {
	if len(ops) == 0 {
		return []byte{0xC9}, nil
	}
	flag, isFlag := asFlag(ops[0])
	cc, ok := condCode(flag)
	if len(ops) != 1 || !isFlag || !ok {
		return nil, fmt.Errorf("RET: unsupported operand")
	}
	return []byte{0xC0 | cc<<3}, nil
}

func (a *Assembler) encodeRST(ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("RST expects one operand")
	}
	n, err := a.intOperand(ops[0].Expr)
	if err != nil {
		return nil, err
	}
	switch n {
	case 0x00, 0x08, 0x10, 0x18, 0x20, 0x28, 0x30, 0x38:
		return []byte{0xC7 | byte(n)}, nil
	}
	return nil, fmt.Errorf("RST: %#x is not one of the eight valid vectors", n)
}

func (a *Assembler) encodeIN(ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("IN expects two operands")
	}
	dst, src := ops[0], ops[1]
	if dst.Kind != ast.DAReg8 {
		return nil, fmt.Errorf("IN: destination must be an 8-bit register")
	}
	switch src.Kind {
	case ast.DAPortC:
		return []byte{0xED, 0x40 | reg8Code(dst.Reg8)<<3}, nil
	case ast.DAPortExpr, ast.DAMemExpr:
		if dst.Reg8 != ast.RA {
			return nil, fmt.Errorf("IN r,(n) is only valid for A")
		}
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		return []byte{0xDB, byte(n)}, nil
	}
	return nil, fmt.Errorf("IN: unsupported operand")
}

func (a *Assembler) encodeOUT(ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("OUT expects two operands")
	}
	dst, src := ops[0], ops[1]
	if src.Kind != ast.DAReg8 {
		return nil, fmt.Errorf("OUT: source must be an 8-bit register")
	}
	switch dst.Kind {
	case ast.DAPortC:
		return []byte{0xED, 0x41 | reg8Code(src.Reg8)<<3}, nil
	case ast.DAPortExpr, ast.DAMemExpr:
		if src.Reg8 != ast.RA {
			return nil, fmt.Errorf("OUT (n),r is only valid for A")
		}
		n, err := a.intOperand(dst.Expr)
		if err != nil {
			return nil, err
		}
		return []byte{0xD3, byte(n)}, nil
	}
	return nil, fmt.Errorf("OUT: unsupported operand")
}

func (a *Assembler) encodeEX(ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("EX expects two operands")
	}
	dst, src := ops[0], ops[1]
	switch {
	case dst.Kind == ast.DAReg16 && dst.Reg16 == ast.RPDE && src.Kind == ast.DAReg16 && src.Reg16 == ast.RPHL:
		return []byte{0xEB}, nil
	case dst.Kind == ast.DAReg16 && dst.Reg16 == ast.RPAF && src.Kind == ast.DAReg16 && src.Reg16 == ast.RPAF:
		return []byte{0x08}, nil
	case dst.Kind == ast.DAMemReg16 && dst.Reg16 == ast.RPSP && src.Kind == ast.DAReg16 && src.Reg16 == ast.RPHL:
		return []byte{0xE3}, nil
	case dst.Kind == ast.DAMemReg16 && dst.Reg16 == ast.RPSP && src.Kind == ast.DAIndexReg16:
		prefix, _ := idxPrefix(src.Reg16)
		return []byte{prefix, 0xE3}, nil
	}
	return nil, fmt.Errorf("EX: unsupported operand combination")
}

func (a *Assembler) encodeIM(ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 1 {
		return nil, fmt.Errorf("IM expects one operand")
	}
	n, err := a.intOperand(ops[0].Expr)
	if err != nil {
		return nil, err
	}
	switch n {
	case 0:
		return []byte{0xED, 0x46}, nil
	case 1:
		return []byte{0xED, 0x56}, nil
	case 2:
		return []byte{0xED, 0x5E}, nil
	}
	return nil, fmt.Errorf("IM: mode must be 0, 1 or 2")
}

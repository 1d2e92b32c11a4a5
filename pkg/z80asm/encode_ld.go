package z80asm

import (
	"fmt"

	"github.com/cpctools/bnd/pkg/ast"
)

// halfCode returns the 3-bit field an IXH/IXL/IYH/IYL half-register takes
// when substituted for H/L under a DD/FD prefix (undocumented but regular:
// same bit pattern as H/L, 4 and 5).
func halfCode(r ast.IndexReg8) byte {
	if r == ast.IXL || r == ast.IYL {
		return 5
	}
	return 4
}

func indexPrefixOf(r ast.IndexReg8) byte {
	if r == ast.IYH || r == ast.IYL {
		return 0xFD
	}
	return 0xDD
}

// encodeLD covers every LD addressing-mode pair the Z80 supports; the
// targets.go matched these by string pattern, here the typed
// DataAccess.Kind discriminant takes over that role directly.
func (a *Assembler) encodeLD(tok *ast.Token, ops []ast.DataAccess) ([]byte, error) {
	if len(ops) != 2 {
		return nil, fmt.Errorf("LD requires two operands")
	}
	dst, src := ops[0], ops[1]

	switch {
	// r, r'
	case dst.Kind == ast.DAReg8 && src.Kind == ast.DAReg8:
		return []byte{0x40 | reg8Code(dst.Reg8)<<3 | reg8Code(src.Reg8)}, nil

	// r, (HL)  /  (HL), r
	case dst.Kind == ast.DAReg8 && src.Kind == ast.DAMemReg16 && src.Reg16 == ast.RPHL:
		return []byte{0x46 | reg8Code(dst.Reg8)<<3}, nil
	case dst.Kind == ast.DAMemReg16 && dst.Reg16 == ast.RPHL && src.Kind == ast.DAReg8:
		return []byte{0x70 | reg8Code(src.Reg8)}, nil

	// r, n
	case dst.Kind == ast.DAReg8 && src.Kind == ast.DAImmediate:
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		return []byte{0x06 | reg8Code(dst.Reg8)<<3, byte(n)}, nil

	// (HL), n
	case dst.Kind == ast.DAMemReg16 && dst.Reg16 == ast.RPHL && src.Kind == ast.DAImmediate:
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		return []byte{0x36, byte(n)}, nil

	// (BC), A  /  (DE), A  /  A, (BC)  /  A, (DE)
	case dst.Kind == ast.DAMemReg16 && (dst.Reg16 == ast.RPBC || dst.Reg16 == ast.RPDE) && src.Kind == ast.DAReg8 && src.Reg8 == ast.RA:
		if dst.Reg16 == ast.RPBC {
			return []byte{0x02}, nil
		}
		return []byte{0x12}, nil
	case dst.Kind == ast.DAReg8 && dst.Reg8 == ast.RA && src.Kind == ast.DAMemReg16 && (src.Reg16 == ast.RPBC || src.Reg16 == ast.RPDE):
		if src.Reg16 == ast.RPBC {
			return []byte{0x0A}, nil
		}
		return []byte{0x1A}, nil

	// rp, nn  (BC/DE/HL/SP)
	case dst.Kind == ast.DAReg16 && src.Kind == ast.DAImmediate:
		rp, ok := rp16Code(dst.Reg16)
		if !ok {
			return nil, fmt.Errorf("LD: %v is not a valid 16-bit destination", dst.Reg16)
		}
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0x01 | rp<<4, lo, hi}, nil

	// IX/IY, nn
	case dst.Kind == ast.DAIndexReg16 && src.Kind == ast.DAImmediate:
		prefix, _ := idxPrefix(dst.Reg16)
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{prefix, 0x21, lo, hi}, nil

	// (nn), HL  /  HL, (nn)
	case dst.Kind == ast.DAMemExpr && src.Kind == ast.DAReg16 && src.Reg16 == ast.RPHL:
		n, err := a.intOperand(dst.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0x22, lo, hi}, nil
	case dst.Kind == ast.DAReg16 && dst.Reg16 == ast.RPHL && src.Kind == ast.DAMemExpr:
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0x2A, lo, hi}, nil

	// (nn), rp  /  rp, (nn)  (BC/DE/SP only - HL uses the unprefixed form above)
	case dst.Kind == ast.DAMemExpr && src.Kind == ast.DAReg16:
		rp, ok := rp16Code(src.Reg16)
		if !ok || src.Reg16 == ast.RPHL {
			return nil, fmt.Errorf("LD (nn),%v: unsupported register pair", src.Reg16)
		}
		n, err := a.intOperand(dst.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0xED, 0x43 | rp<<4, lo, hi}, nil
	case dst.Kind == ast.DAReg16 && src.Kind == ast.DAMemExpr:
		rp, ok := rp16Code(dst.Reg16)
		if !ok || dst.Reg16 == ast.RPHL {
			return nil, fmt.Errorf("LD %v,(nn): unsupported register pair", dst.Reg16)
		}
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0xED, 0x4B | rp<<4, lo, hi}, nil

	// (nn), IX  /  IX, (nn)
	case dst.Kind == ast.DAMemExpr && src.Kind == ast.DAIndexReg16:
		prefix, _ := idxPrefix(src.Reg16)
		n, err := a.intOperand(dst.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{prefix, 0x22, lo, hi}, nil
	case dst.Kind == ast.DAIndexReg16 && src.Kind == ast.DAMemExpr:
		prefix, _ := idxPrefix(dst.Reg16)
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{prefix, 0x2A, lo, hi}, nil

	// (nn), A  /  A, (nn)
	case dst.Kind == ast.DAMemExpr && src.Kind == ast.DAReg8 && src.Reg8 == ast.RA:
		n, err := a.intOperand(dst.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0x32, lo, hi}, nil
	case dst.Kind == ast.DAReg8 && dst.Reg8 == ast.RA && src.Kind == ast.DAMemExpr:
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		lo, hi := word(n)
		return []byte{0x3A, lo, hi}, nil

	// SP, HL  /  SP, IX  /  SP, IY
	case dst.Kind == ast.DAReg16 && dst.Reg16 == ast.RPSP && src.Kind == ast.DAReg16 && src.Reg16 == ast.RPHL:
		return []byte{0xF9}, nil
	case dst.Kind == ast.DAReg16 && dst.Reg16 == ast.RPSP && src.Kind == ast.DAIndexReg16:
		prefix, _ := idxPrefix(src.Reg16)
		return []byte{prefix, 0xF9}, nil

	// I/R, A  and  A, I/R
	case dst.Kind == ast.DASpecialReg && src.Kind == ast.DAReg8 && src.Reg8 == ast.RA:
		if dst.IsR {
			return []byte{0xED, 0x4F}, nil
		}
		return []byte{0xED, 0x47}, nil
	case dst.Kind == ast.DAReg8 && dst.Reg8 == ast.RA && src.Kind == ast.DASpecialReg:
		if src.IsR {
			return []byte{0xED, 0x5F}, nil
		}
		return []byte{0xED, 0x57}, nil

	// IXH/IXL/IYH/IYL, IXH/IXL/IYH/IYL  (same index register only)
	case dst.Kind == ast.DAIndexReg8 && src.Kind == ast.DAIndexReg8:
		prefix := indexPrefixOf(dst.IndexReg8)
		return []byte{prefix, 0x40 | halfCode(dst.IndexReg8)<<3 | halfCode(src.IndexReg8)}, nil

	// IXH/IXL/IYH/IYL, n
	case dst.Kind == ast.DAIndexReg8 && src.Kind == ast.DAImmediate:
		prefix := indexPrefixOf(dst.IndexReg8)
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		return []byte{prefix, 0x06 | halfCode(dst.IndexReg8)<<3, byte(n)}, nil

	// r, IXH/IXL/IYH/IYL   and   IXH/IXL/IYH/IYL, r
	case dst.Kind == ast.DAReg8 && src.Kind == ast.DAIndexReg8:
		prefix := indexPrefixOf(src.IndexReg8)
		return []byte{prefix, 0x40 | reg8Code(dst.Reg8)<<3 | halfCode(src.IndexReg8)}, nil
	case dst.Kind == ast.DAIndexReg8 && src.Kind == ast.DAReg8:
		prefix := indexPrefixOf(dst.IndexReg8)
		return []byte{prefix, 0x40 | halfCode(dst.IndexReg8)<<3 | reg8Code(src.Reg8)}, nil

	// r, (IX+d)  and  (IX+d), r
	case dst.Kind == ast.DAReg8 && src.Kind == ast.DAIndexedMem:
		prefix, _ := idxPrefix(src.Reg16)
		d, err := a.intOperand(src.Offset)
		if err != nil {
			return nil, err
		}
		return []byte{prefix, 0x46 | reg8Code(dst.Reg8)<<3, byte(d)}, nil
	case dst.Kind == ast.DAIndexedMem && src.Kind == ast.DAReg8:
		prefix, _ := idxPrefix(dst.Reg16)
		d, err := a.intOperand(dst.Offset)
		if err != nil {
			return nil, err
		}
		return []byte{prefix, 0x70 | reg8Code(src.Reg8), byte(d)}, nil

	// (IX+d), n
	case dst.Kind == ast.DAIndexedMem && src.Kind == ast.DAImmediate:
		prefix, _ := idxPrefix(dst.Reg16)
		d, err := a.intOperand(dst.Offset)
		if err != nil {
			return nil, err
		}
		n, err := a.intOperand(src.Expr)
		if err != nil {
			return nil, err
		}
		return []byte{prefix, 0x36, byte(d), byte(n)}, nil
	}

	return nil, fmt.Errorf("LD: unsupported operand combination")
}

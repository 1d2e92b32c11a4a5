// Package sna writes CPC snapshot (.SNA) files: a fixed register/peripheral
// header plus up to nine 64KiB memory pages, optionally RLE-compressed into
// chunks. The header field table is grounded on the community SNA format
// documentation's byte offsets (flags.rs in the retrieval pack's original
// sources), the RLE and chunk layout on the same pack's chunk encoder.
package sna

import "fmt"

// HeaderSize is the fixed size of the SNA header block; versions 2 and 3
// both use this same 256-byte layout, differing only in what follows it.
const HeaderSize = 256

const signature = "MV - SNA"

// Header holds every field the format's base header defines, named after
// the community SnapshotFlag table rather than raw byte offsets.
type Header struct {
	Version uint8

	AF, BC, DE, HL uint16
	IX, IY         uint16
	SP, PC         uint16
	I, R           uint8
	IFF0, IFF1     uint8
	IM             uint8

	AFx, BCx, DEx, HLx uint16

	GAPen     uint8
	GAPal     [17]uint8
	GARomCfg  uint8
	GARamCfg  uint8
	CRTCSel   uint8
	CRTCReg   [18]uint8
	ROMUp     uint8
	PPIA      uint8
	PPIB      uint8
	PPIC      uint8
	PPICtl    uint8
	PSGSel    uint8
	PSGReg    [16]uint8
	CPCType   uint8
	IntNum    uint8
	GAMulti   [6]uint8
	FDDMotor  uint8
	FDDTrack  uint8
	PrntData  uint8
	CRTCType  uint8
	CRTCHCC   uint8
	CRTCCLC   uint8
	CRTCRLC   uint8
	CRTCVAC   uint8
	CRTCVSWC  uint8
	CRTCHSWC  uint8
	CRTCState uint16
	GAVSC     uint8
	GAISC     uint8
	IntReq    uint8
}

// Default fills in the values every SNA viewer expects when a field was
// never set explicitly: bit 7 of GA_ROMCFG set, bits 6/5 clear, for CPCEMU
// compatibility (flags.rs's own comment on the field).
func Default() Header {
	return Header{
		Version:  3,
		SP:       0xC000,
		GARomCfg: 0x80,
		CPCType:  2, // CPC6128
	}
}

func le16(v uint16) (lo, hi byte) { return byte(v), byte(v >> 8) }

// Encode renders the header into its fixed 256-byte on-disk form.
func (h Header) Encode() ([HeaderSize]byte, error) {
	var b [HeaderSize]byte
	copy(b[0:8], signature)
	b[8] = h.Version

	putW := func(off int, v uint16) {
		lo, hi := le16(v)
		b[off], b[off+1] = lo, hi
	}

	putW(0x11, h.AF)
	putW(0x13, h.BC)
	putW(0x15, h.DE)
	putW(0x17, h.HL)
	b[0x19] = h.R
	b[0x1A] = h.I
	b[0x1B] = h.IFF0
	b[0x1C] = h.IFF1
	putW(0x1D, h.IX)
	putW(0x1F, h.IY)
	putW(0x21, h.SP)
	putW(0x23, h.PC)
	b[0x25] = h.IM
	putW(0x26, h.AFx)
	putW(0x28, h.BCx)
	putW(0x2A, h.DEx)
	putW(0x2C, h.HLx)
	b[0x2E] = h.GAPen
	copy(b[0x2F:0x2F+17], h.GAPal[:])
	b[0x40] = h.GARomCfg
	b[0x41] = h.GARamCfg
	b[0x42] = h.CRTCSel
	copy(b[0x43:0x43+18], h.CRTCReg[:])
	b[0x55] = h.ROMUp
	b[0x56] = h.PPIA
	b[0x57] = h.PPIB
	b[0x58] = h.PPIC
	b[0x59] = h.PPICtl
	b[0x5A] = h.PSGSel
	copy(b[0x5B:0x5B+16], h.PSGReg[:])
	b[0x6D] = h.CPCType
	b[0x6E] = h.IntNum
	copy(b[0x6F:0x6F+6], h.GAMulti[:])
	b[0x9C] = h.FDDMotor
	b[0x9D] = h.FDDTrack
	b[0xA1] = h.PrntData
	b[0xA4] = h.CRTCType
	b[0xA9] = h.CRTCHCC
	b[0xAB] = h.CRTCCLC
	b[0xAC] = h.CRTCRLC
	b[0xAD] = h.CRTCVAC
	b[0xAE] = h.CRTCVSWC
	b[0xAF] = h.CRTCHSWC
	putW(0xB0, h.CRTCState)
	b[0xB2] = h.GAVSC
	b[0xB3] = h.GAISC
	b[0xB4] = h.IntReq

	if h.Version < 1 || h.Version > 3 {
		return b, fmt.Errorf("sna: unsupported version %d", h.Version)
	}
	return b, nil
}

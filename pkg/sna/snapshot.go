package sna

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
)

// PageSize is the size of one CPC memory page/bank.
const PageSize = 65536

// Snapshot is an in-memory SNA image: a header plus a sparse set of 64KiB
// pages keyed by CPC page number (0 = base 64K, 1..8 = extra banks on a
// 128K/512K-expanded machine).
type Snapshot struct {
	Header Header
	Pages  map[int][]byte
	// Compress selects RLE chunk encoding for version 2/3 output; ignored
	// for version 1, which always writes a flat uncompressed page.
	Compress bool
}

// New creates an empty snapshot with page 0 zero-filled and the header's
// sensible defaults applied.
func New() *Snapshot {
	return &Snapshot{
		Header:   Default(),
		Pages:    map[int][]byte{0: make([]byte, PageSize)},
		Compress: true,
	}
}

// Page returns (allocating if needed) the 64KiB buffer for the given page.
func (s *Snapshot) Page(n int) []byte {
	p, ok := s.Pages[n]
	if !ok {
		p = make([]byte, PageSize)
		s.Pages[n] = p
	}
	return p
}

// LoadAt copies code into page n starting at the given logical address,
// matching the assembler's own page/offset addressing.
func (s *Snapshot) LoadAt(page int, addr uint16, code []byte) error {
	p := s.Page(page)
	if int(addr)+len(code) > len(p) {
		return fmt.Errorf("sna: write at 0x%04X length %d overflows page %d", addr, len(code), page)
	}
	copy(p[addr:], code)
	return nil
}

func (s *Snapshot) sortedPageNumbers() []int {
	var ns []int
	for n := range s.Pages {
		ns = append(ns, n)
	}
	sort.Ints(ns)
	return ns
}

// WriteTo encodes the snapshot and writes it to w: version 1 is the header
// followed by a single flat 64KiB page (no chunks, per the original v1
// format); versions 2 and 3 follow the header with one MEMn chunk per
// populated page, RLE-compressed when Compress is set.
func (s *Snapshot) WriteTo(w io.Writer) (int64, error) {
	h := s.Header
	pages := s.sortedPageNumbers()
	if h.Version == 1 {
		if len(pages) > 1 {
			return 0, fmt.Errorf("sna: version 1 snapshots support only one 64K page, got %d", len(pages))
		}
		hb, err := h.Encode()
		if err != nil {
			return 0, err
		}
		n1, err := w.Write(hb[:])
		if err != nil {
			return int64(n1), err
		}
		page := s.Page(pages[0])
		n2, err := w.Write(page)
		return int64(n1 + n2), err
	}

	hb, err := h.Encode()
	if err != nil {
		return 0, err
	}
	total, err := w.Write(hb[:])
	if err != nil {
		return int64(total), err
	}
	for _, n := range pages {
		page := s.Page(n)
		data := page
		if s.Compress {
			data = EncodeRLE(page)
		}
		chunk := Chunk{Code: pageCode(n), Data: data}
		enc := chunk.Encode()
		w2, err := w.Write(enc)
		total += w2
		if err != nil {
			return int64(total), err
		}
	}
	return int64(total), nil
}

// Save writes the snapshot to path through a buffered writer, using
// WriteTo for the header and memory layout.
func (s *Snapshot) Save(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o666)
	if err != nil {
		return err
	}
	defer f.Close()
	bw := bufio.NewWriter(f)
	if _, err := s.WriteTo(bw); err != nil {
		return err
	}
	return bw.Flush()
}

// Load reads a snapshot back from r, decoding whichever of the flat or
// chunked memory layouts its header version selects.
func Load(r io.Reader) (*Snapshot, error) {
	var hb [HeaderSize]byte
	if _, err := io.ReadFull(r, hb[:]); err != nil {
		return nil, fmt.Errorf("sna: reading header: %w", err)
	}
	if string(hb[0:8]) != signature {
		return nil, fmt.Errorf("sna: bad signature %q", hb[0:8])
	}
	h, err := decodeHeader(hb)
	if err != nil {
		return nil, err
	}
	s := &Snapshot{Header: h, Pages: map[int][]byte{}}

	if h.Version == 1 {
		page := make([]byte, PageSize)
		if _, err := io.ReadFull(r, page); err != nil {
			return nil, fmt.Errorf("sna: reading v1 memory: %w", err)
		}
		s.Pages[0] = page
		return s, nil
	}

	for {
		var code [4]byte
		_, err := io.ReadFull(r, code[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("sna: reading chunk code: %w", err)
		}
		var sz [4]byte
		if _, err := io.ReadFull(r, sz[:]); err != nil {
			return nil, fmt.Errorf("sna: reading chunk size: %w", err)
		}
		n := int(sz[0]) | int(sz[1])<<8 | int(sz[2])<<16 | int(sz[3])<<24
		data := make([]byte, n)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("sna: reading chunk data: %w", err)
		}
		if code[0] == 'M' && code[1] == 'E' && code[2] == 'M' && code[3] >= '0' && code[3] <= '8' {
			page := int(code[3] - '0')
			mem := data
			if len(data) != PageSize {
				mem, err = DecodeRLE(data)
				if err != nil {
					return nil, err
				}
			}
			s.Pages[page] = mem
		}
		// Unrecognised chunk codes (breakpoints, symbols, emulator-specific
		// state) are skipped: 's SNA contract is load/save of CPU
		// and memory state, not every emulator extension chunk.
	}
	return s, nil
}

func decodeHeader(b [HeaderSize]byte) (Header, error) {
	var h Header
	getW := func(off int) uint16 { return uint16(b[off]) | uint16(b[off+1])<<8 }
	h.Version = b[8]
	h.AF = getW(0x11)
	h.BC = getW(0x13)
	h.DE = getW(0x15)
	h.HL = getW(0x17)
	h.R = b[0x19]
	h.I = b[0x1A]
	h.IFF0 = b[0x1B]
	h.IFF1 = b[0x1C]
	h.IX = getW(0x1D)
	h.IY = getW(0x1F)
	h.SP = getW(0x21)
	h.PC = getW(0x23)
	h.IM = b[0x25]
	h.AFx = getW(0x26)
	h.BCx = getW(0x28)
	h.DEx = getW(0x2A)
	h.HLx = getW(0x2C)
	h.GAPen = b[0x2E]
	copy(h.GAPal[:], b[0x2F:0x2F+17])
	h.GARomCfg = b[0x40]
	h.GARamCfg = b[0x41]
	h.CRTCSel = b[0x42]
	copy(h.CRTCReg[:], b[0x43:0x43+18])
	h.ROMUp = b[0x55]
	h.PPIA = b[0x56]
	h.PPIB = b[0x57]
	h.PPIC = b[0x58]
	h.PPICtl = b[0x59]
	h.PSGSel = b[0x5A]
	copy(h.PSGReg[:], b[0x5B:0x5B+16])
	h.CPCType = b[0x6D]
	h.IntNum = b[0x6E]
	copy(h.GAMulti[:], b[0x6F:0x6F+6])
	h.FDDMotor = b[0x9C]
	h.FDDTrack = b[0x9D]
	h.PrntData = b[0xA1]
	h.CRTCType = b[0xA4]
	h.CRTCHCC = b[0xA9]
	h.CRTCCLC = b[0xAB]
	h.CRTCRLC = b[0xAC]
	h.CRTCVAC = b[0xAD]
	h.CRTCVSWC = b[0xAE]
	h.CRTCHSWC = b[0xAF]
	h.CRTCState = getW(0xB0)
	h.GAVSC = b[0xB2]
	h.GAISC = b[0xB3]
	h.IntReq = b[0xB4]
	if h.Version < 1 || h.Version > 3 {
		return h, fmt.Errorf("sna: unsupported version %d", h.Version)
	}
	return h, nil
}

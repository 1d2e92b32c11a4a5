// Package edsk reads and writes Extended CPC DSK (EDSK) floppy images and
// the AMSDOS filesystem layered on top of them. The binary layout (Disc
// Information Block, Track Information Blocks, sector descriptors) and the
// declarative .cfg format used to build fresh images follow the community
// "cpctools" disc tooling; no source package handles a floppy-image format,
// so this is new code in the same fixed-width binary-struct idiom the
// snapshot writer uses.
package edsk

import (
	"bytes"
	"fmt"
)

// Head identifies a disc side. Single-head discs use HeadUnspecified.
type Head uint8

const (
	HeadUnspecified Head = iota
	HeadA
	HeadB
)

func (h Head) String() string {
	switch h {
	case HeadA:
		return "A"
	case HeadB:
		return "B"
	default:
		return ""
	}
}

const (
	dibMagic      = "EXTENDED CPC DSK File\r\nDisk-Info\r\n"
	tibMagic      = "Track-Info\r\n"
	blockSize     = 256
	defaultFiller = 0xE5
)

// Sector holds one physical sector: its C/H/R/N identifiers, the two FDC
// status bytes recorded when the sector was read, and its data.
type Sector struct {
	Track    uint8 // C
	Head     uint8 // H
	SectorID uint8 // R
	SizeCode uint8 // N
	Status1  byte
	Status2  byte
	Data     []byte
}

// ActualLength is the data length EDSK records for this sector, which can
// differ from 128<<SizeCode for weak/oversized sectors.
func (s *Sector) ActualLength() uint16 { return uint16(len(s.Data)) }

// Track is one physical track: its own descriptor fields plus its sectors
// in on-disc order.
type Track struct {
	TrackNumber uint8
	HeadNumber  uint8
	Gap3        uint8
	Sectors     []Sector
}

// sizeCode reports the FDC size code implied by this track's sectors,
// defaulting to 2 (512 bytes) for an empty track.
func (t *Track) sizeCode() uint8 {
	if len(t.Sectors) == 0 {
		return 2
	}
	return t.Sectors[0].SizeCode
}

// Disc is a full EDSK image: per-track-per-head geometry plus data.
type Disc struct {
	Creator  string
	NbTracks uint8
	NbHeads  uint8
	// Tracks is indexed [head][track].
	Tracks [][]Track
}

// NewDisc creates an empty disc with nbTracks tracks on each of nbHeads
// heads, every track initially empty.
func NewDisc(creator string, nbTracks, nbHeads uint8) *Disc {
	d := &Disc{Creator: creator, NbTracks: nbTracks, NbHeads: nbHeads}
	d.Tracks = make([][]Track, nbHeads)
	for h := range d.Tracks {
		d.Tracks[h] = make([]Track, nbTracks)
		for t := range d.Tracks[h] {
			d.Tracks[h][t] = Track{TrackNumber: uint8(t), HeadNumber: uint8(h)}
		}
	}
	return d
}

// TrackAt returns the track for the given head/track index, or nil if out
// of range.
func (d *Disc) TrackAt(head, track uint8) *Track {
	if int(head) >= len(d.Tracks) || int(track) >= len(d.Tracks[head]) {
		return nil
	}
	return &d.Tracks[head][track]
}

// SectorAt finds the sector with the given sector ID on (head, track).
func (d *Disc) SectorAt(head, track, sectorID uint8) *Sector {
	tr := d.TrackAt(head, track)
	if tr == nil {
		return nil
	}
	for i := range tr.Sectors {
		if tr.Sectors[i].SectorID == sectorID {
			return &tr.Sectors[i]
		}
	}
	return nil
}

// SectorSizeBytes converts an FDC size code (0..6, or an extension code
// beyond that) to a byte count: 128 << code.
func SectorSizeBytes(code uint8) int { return 128 << code }

// BytesToSectorSizeCode converts a byte count back to an FDC size code when
// it is an exact power-of-two multiple of 128; ok is false for sizes the
// fixed FDC codes cannot represent (needing an extension code instead).
func BytesToSectorSizeCode(size int) (code uint8, ok bool) {
	for c := 0; c <= 6; c++ {
		if 128<<uint(c) == size {
			return uint8(c), true
		}
	}
	return 0, false
}

func trackPhysicalSize(t *Track) int {
	n := blockSize
	for i := range t.Sectors {
		n += len(t.Sectors[i].Data)
	}
	return n
}

// Encode renders the disc into its byte-exact EDSK form.
func (d *Disc) Encode() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(dibMagic)
	var creator [14]byte
	copy(creator[:], d.Creator)
	buf.Write(creator[:])
	buf.WriteByte(d.NbTracks)
	buf.WriteByte(d.NbHeads)
	buf.WriteByte(0) // unused track-size word, little-endian, low byte
	buf.WriteByte(0)

	sizeTable := make([]byte, int(d.NbTracks)*int(d.NbHeads))
	idx := 0
	for track := 0; track < int(d.NbTracks); track++ {
		for head := 0; head < int(d.NbHeads); head++ {
			tr := d.TrackAt(uint8(head), uint8(track))
			size := trackPhysicalSize(tr)
			if size%256 != 0 {
				return nil, fmt.Errorf("edsk: track %d head %d size %d not a multiple of 256", track, head, size)
			}
			sizeTable[idx] = byte(size / 256)
			idx++
		}
	}
	buf.Write(sizeTable)
	if pad := blockSize - buf.Len(); pad > 0 {
		buf.Write(make([]byte, pad))
	}

	for track := 0; track < int(d.NbTracks); track++ {
		for head := 0; head < int(d.NbHeads); head++ {
			tr := d.TrackAt(uint8(head), uint8(track))
			if err := encodeTrack(&buf, tr); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

func encodeTrack(buf *bytes.Buffer, t *Track) error {
	var block [blockSize]byte
	copy(block[:], tibMagic)
	block[0x10] = t.TrackNumber
	block[0x11] = t.HeadNumber
	block[0x14] = t.sizeCode()
	block[0x15] = uint8(len(t.Sectors))
	block[0x16] = t.Gap3
	block[0x17] = defaultFiller

	const descOff = 0x18
	const descLen = 8
	if descOff+descLen*len(t.Sectors) > blockSize {
		return fmt.Errorf("edsk: track %d head %d has too many sectors for one TIB", t.TrackNumber, t.HeadNumber)
	}
	for i, s := range t.Sectors {
		off := descOff + i*descLen
		block[off+0] = s.Track
		block[off+1] = s.Head
		block[off+2] = s.SectorID
		block[off+3] = s.SizeCode
		block[off+4] = s.Status1
		block[off+5] = s.Status2
		n := s.ActualLength()
		block[off+6] = byte(n)
		block[off+7] = byte(n >> 8)
	}
	buf.Write(block[:])
	for i := range t.Sectors {
		buf.Write(t.Sectors[i].Data)
	}
	return nil
}

// Decode parses a byte-exact EDSK image.
func Decode(data []byte) (*Disc, error) {
	if len(data) < blockSize || string(data[:len(dibMagic)]) != dibMagic {
		return nil, fmt.Errorf("edsk: missing Disk-Info signature")
	}
	d := &Disc{
		Creator:  string(bytes.TrimRight(data[0x22:0x22+14], "\x00 ")),
		NbTracks: data[0x30],
		NbHeads:  data[0x31],
	}
	sizeTable := data[0x34:0x34+int(d.NbTracks)*int(d.NbHeads)]
	d.Tracks = make([][]Track, d.NbHeads)
	for h := range d.Tracks {
		d.Tracks[h] = make([]Track, d.NbTracks)
	}

	off := blockSize
	idx := 0
	for track := 0; track < int(d.NbTracks); track++ {
		for head := 0; head < int(d.NbHeads); head++ {
			size := int(sizeTable[idx]) * 256
			idx++
			if size == 0 {
				d.Tracks[head][track] = Track{TrackNumber: uint8(track), HeadNumber: uint8(head)}
				continue
			}
			if off+size > len(data) {
				return nil, fmt.Errorf("edsk: track %d head %d extends past end of file", track, head)
			}
			tr, err := decodeTrack(data[off : off+size])
			if err != nil {
				return nil, err
			}
			d.Tracks[head][track] = *tr
			off += size
		}
	}
	return d, nil
}

func decodeTrack(block []byte) (*Track, error) {
	if len(block) < blockSize || string(block[:len(tibMagic)]) != tibMagic {
		return nil, fmt.Errorf("edsk: missing Track-Info signature")
	}
	t := &Track{
		TrackNumber: block[0x10],
		HeadNumber:  block[0x11],
		Gap3:        block[0x16],
	}
	nbSectors := int(block[0x15])
	const descOff = 0x18
	const descLen = 8
	dataOff := blockSize
	for i := 0; i < nbSectors; i++ {
		off := descOff + i*descLen
		if off+descLen > blockSize {
			return nil, fmt.Errorf("edsk: track %d sector table overflows TIB", t.TrackNumber)
		}
		n := int(block[off+6]) | int(block[off+7])<<8
		if dataOff+n > len(block) {
			return nil, fmt.Errorf("edsk: track %d sector %d data overflows track", t.TrackNumber, i)
		}
		s := Sector{
			Track:    block[off+0],
			Head:     block[off+1],
			SectorID: block[off+2],
			SizeCode: block[off+3],
			Status1:  block[off+4],
			Status2:  block[off+5],
			Data:     append([]byte(nil), block[dataOff:dataOff+n]...),
		}
		t.Sectors = append(t.Sectors, s)
		dataOff += n
	}
	return t, nil
}

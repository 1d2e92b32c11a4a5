package edsk

import (
	"bytes"
	"fmt"
	"sort"
)

// AmsdosType is the file-type byte recorded in an AMSDOS header.
type AmsdosType uint8

const (
	TypeBasic     AmsdosType = 0
	TypeProtected AmsdosType = 1
	TypeBinary    AmsdosType = 2
)

const (
	entrySize        = 32
	catalogueBytes   = 2048
	catalogueEntries = catalogueBytes / entrySize
	erasedUser       = 0xE5
	auSize           = 1024
)

// Header is the optional 128-byte AMSDOS file header recorded at the start
// of a binary/protected file's data.
type Header struct {
	User          uint8
	Name          string
	Ext           string
	Type          AmsdosType
	LoadAddress   uint16
	EntryAddress  uint16
	LogicalLength uint16
	FileLength    uint32 // 24-bit on disc
}

// checksum sums the first 67 bytes of an encoded header modulo 0x10000,
// the validation check AMSDOS performs before trusting the rest.
func checksum(b []byte) uint16 {
	var sum uint32
	for _, v := range b[:67] {
		sum += uint32(v)
	}
	return uint16(sum)
}

// Encode renders the header into its 128-byte on-disc form with a valid
// checksum.
func (h Header) Encode() [128]byte {
	var b [128]byte
	b[0] = h.User
	copy(b[1:9], padField(h.Name, 8))
	copy(b[9:12], padField(h.Ext, 3))
	b[0x12] = byte(h.Type)
	b[0x15] = byte(h.LoadAddress)
	b[0x16] = byte(h.LoadAddress >> 8)
	b[0x17] = 0xFF
	b[0x18] = byte(h.LogicalLength)
	b[0x19] = byte(h.LogicalLength >> 8)
	b[0x1A] = byte(h.EntryAddress)
	b[0x1B] = byte(h.EntryAddress >> 8)
	b[0x40] = byte(h.FileLength)
	b[0x41] = byte(h.FileLength >> 8)
	b[0x42] = byte(h.FileLength >> 16)
	sum := checksum(b[:])
	b[0x43] = byte(sum)
	b[0x44] = byte(sum >> 8)
	return b
}

func padField(s string, n int) []byte {
	b := bytes.Repeat([]byte{' '}, n)
	copy(b, s)
	return b
}

// DecodeHeader parses a 128-byte block as an AMSDOS header. ok is false
// when the recorded checksum doesn't match, meaning the block is probably
// plain file data rather than a header.
func DecodeHeader(b [128]byte) (h Header, ok bool) {
	want := uint16(b[0x43]) | uint16(b[0x44])<<8
	if checksum(b[:]) != want {
		return Header{}, false
	}
	h.User = b[0]
	h.Name = string(bytes.TrimRight(b[1:9], " "))
	h.Ext = string(bytes.TrimRight(b[9:12], " "))
	h.Type = AmsdosType(b[0x12])
	h.LoadAddress = uint16(b[0x15]) | uint16(b[0x16])<<8
	h.LogicalLength = uint16(b[0x18]) | uint16(b[0x19])<<8
	h.EntryAddress = uint16(b[0x1A]) | uint16(b[0x1B])<<8
	h.FileLength = uint32(b[0x40]) | uint32(b[0x41])<<8 | uint32(b[0x42])<<16
	return h, true
}

// CatalogueEntry is one 32-byte AMSDOS directory entry.
type CatalogueEntry struct {
	User       uint8
	Name       string
	Ext        string
	ReadOnly   bool
	System     bool
	Extent     uint8
	RecordCnt  uint8
	// AUs holds allocation-unit indices used by this extent, 0-based;
	// unused trailing slots are represented by a shorter slice.
	AUs []uint16
}

// Erased reports whether this is a tombstoned ("deleted") entry.
func (e CatalogueEntry) Erased() bool { return e.User == erasedUser }

// Encode renders the entry into its 32-byte on-disc form. AU indices are
// stored 1-based on disc (0 is reserved to mean "unused slot"); an index
// greater than 254 cannot be represented (each AU slot is one byte) and is
// an error.
func (e CatalogueEntry) Encode() ([entrySize]byte, error) {
	var b [entrySize]byte
	b[0] = e.User
	ext := padField(e.Ext, 3)
	if e.ReadOnly {
		ext[0] |= 0x80
	}
	if e.System {
		ext[1] |= 0x80
	}
	copy(b[1:9], padField(e.Name, 8))
	copy(b[9:12], ext)
	b[12] = e.Extent
	b[15] = e.RecordCnt
	if len(e.AUs) > 16 {
		return b, fmt.Errorf("edsk: entry for %s.%s has %d allocation units, max 16", e.Name, e.Ext, len(e.AUs))
	}
	for i, au := range e.AUs {
		if au+1 > 255 {
			return b, fmt.Errorf("edsk: allocation unit %d out of 1-byte range", au)
		}
		b[16+i] = byte(au + 1)
	}
	return b, nil
}

// DecodeEntry parses a 32-byte catalogue entry.
func DecodeEntry(b [entrySize]byte) CatalogueEntry {
	var e CatalogueEntry
	e.User = b[0]
	e.Name = string(bytes.TrimRight([]byte{b[1] &^ 0x80, b[2] &^ 0x80, b[3] &^ 0x80, b[4] &^ 0x80, b[5] &^ 0x80, b[6] &^ 0x80, b[7] &^ 0x80, b[8] &^ 0x80}, " "))
	e.ReadOnly = b[9]&0x80 != 0
	e.System = b[10]&0x80 != 0
	e.Ext = string(bytes.TrimRight([]byte{b[9] &^ 0x80, b[10] &^ 0x80, b[11] &^ 0x80}, " "))
	e.Extent = b[12]
	e.RecordCnt = b[15]
	for i := 0; i < 16; i++ {
		if b[16+i] != 0 {
			e.AUs = append(e.AUs, uint16(b[16+i])-1)
		}
	}
	return e
}

// Catalogue is the set of directory entries held on track 0, head 0.
type Catalogue struct {
	Entries []CatalogueEntry
}

func catalogueSectorRefs(d *Disc) ([]sectorRef, int, error) {
	tr := d.TrackAt(0, 0)
	if tr == nil || len(tr.Sectors) == 0 {
		return nil, 0, fmt.Errorf("edsk: disc has no track 0 head 0 to hold a catalogue")
	}
	sectorSize := len(tr.Sectors[0].Data)
	if sectorSize == 0 || catalogueBytes%sectorSize != 0 {
		return nil, 0, fmt.Errorf("edsk: sector size %d does not evenly divide a 2KiB catalogue", sectorSize)
	}
	n := catalogueBytes / sectorSize
	if n > len(tr.Sectors) {
		return nil, 0, fmt.Errorf("edsk: track 0 head 0 has only %d sectors, need %d for the catalogue", len(tr.Sectors), n)
	}
	sorted := append([]Sector(nil), tr.Sectors[:n]...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SectorID < sorted[j].SectorID })
	refs := make([]sectorRef, n)
	for i, s := range sorted {
		refs[i] = sectorRef{Head: 0, Track: 0, SectorID: s.SectorID}
	}
	return refs, sectorSize, nil
}

// ReadCatalogue reads the 64-entry directory from track 0, head 0.
func ReadCatalogue(d *Disc) (Catalogue, error) {
	refs, sectorSize, err := catalogueSectorRefs(d)
	if err != nil {
		return Catalogue{}, err
	}
	var raw []byte
	for _, r := range refs {
		s := d.SectorAt(r.Head, r.Track, r.SectorID)
		if s == nil || len(s.Data) != sectorSize {
			return Catalogue{}, fmt.Errorf("edsk: catalogue sector C%d H%d R%d missing or wrong size", r.Track, r.Head, r.SectorID)
		}
		raw = append(raw, s.Data...)
	}
	var cat Catalogue
	for off := 0; off+entrySize <= len(raw) && len(cat.Entries) < catalogueEntries; off += entrySize {
		var e [entrySize]byte
		copy(e[:], raw[off:off+entrySize])
		cat.Entries = append(cat.Entries, DecodeEntry(e))
	}
	return cat, nil
}

// WriteCatalogue writes the directory back to track 0, head 0, padding
// with erased entries up to the fixed 64-entry table.
func WriteCatalogue(d *Disc, cat Catalogue) error {
	refs, sectorSize, err := catalogueSectorRefs(d)
	if err != nil {
		return err
	}
	raw := make([]byte, 0, catalogueBytes)
	for i := 0; i < catalogueEntries; i++ {
		var e CatalogueEntry
		if i < len(cat.Entries) {
			e = cat.Entries[i]
		} else {
			e = CatalogueEntry{User: erasedUser}
		}
		enc, err := e.Encode()
		if err != nil {
			return err
		}
		raw = append(raw, enc[:]...)
	}
	for i, r := range refs {
		s := d.SectorAt(r.Head, r.Track, r.SectorID)
		if s == nil {
			return fmt.Errorf("edsk: catalogue sector C%d H%d R%d missing", r.Track, r.Head, r.SectorID)
		}
		copy(s.Data, raw[i*sectorSize:(i+1)*sectorSize])
	}
	return nil
}

// VisibleEntries returns every non-erased entry.
func (c Catalogue) VisibleEntries() []CatalogueEntry {
	var out []CatalogueEntry
	for _, e := range c.Entries {
		if !e.Erased() {
			out = append(out, e)
		}
	}
	return out
}

type sectorRef struct {
	Head, Track, SectorID uint8
}

// Filesystem layers AMSDOS file semantics (allocation units, the
// catalogue) on top of a raw Disc.
type Filesystem struct {
	Disc *Disc
}

// dataSectors returns every sector available for allocation units: every
// sector on head 0 except the ones reserved for the catalogue on track 0.
func (fs *Filesystem) dataSectors() ([]sectorRef, int, error) {
	catRefs, sectorSize, err := catalogueSectorRefs(fs.Disc)
	if err != nil {
		return nil, 0, err
	}
	reserved := map[sectorRef]bool{}
	for _, r := range catRefs {
		reserved[r] = true
	}
	var out []sectorRef
	for track := uint8(0); track < fs.Disc.NbTracks; track++ {
		tr := fs.Disc.TrackAt(0, track)
		if tr == nil {
			continue
		}
		sorted := append([]Sector(nil), tr.Sectors...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].SectorID < sorted[j].SectorID })
		for _, s := range sorted {
			r := sectorRef{Head: 0, Track: track, SectorID: s.SectorID}
			if reserved[r] {
				continue
			}
			if len(s.Data) != sectorSize {
				return nil, 0, fmt.Errorf("edsk: mixed sector sizes on head 0 are not supported by the allocation scheme")
			}
			out = append(out, r)
		}
	}
	return out, sectorSize, nil
}

func (fs *Filesystem) auSectors() ([][]sectorRef, error) {
	sectors, sectorSize, err := fs.dataSectors()
	if err != nil {
		return nil, err
	}
	if auSize%sectorSize != 0 {
		return nil, fmt.Errorf("edsk: sector size %d does not evenly divide a 1KiB allocation unit", sectorSize)
	}
	perAU := auSize / sectorSize
	var aus [][]sectorRef
	for i := 0; i+perAU <= len(sectors); i += perAU {
		aus = append(aus, sectors[i:i+perAU])
	}
	return aus, nil
}

func (fs *Filesystem) readAU(au uint16) ([]byte, error) {
	aus, err := fs.auSectors()
	if err != nil {
		return nil, err
	}
	if int(au) >= len(aus) {
		return nil, fmt.Errorf("edsk: allocation unit %d out of range", au)
	}
	var out []byte
	for _, r := range aus[au] {
		s := fs.Disc.SectorAt(r.Head, r.Track, r.SectorID)
		if s == nil {
			return nil, fmt.Errorf("edsk: allocation unit %d references missing sector", au)
		}
		out = append(out, s.Data...)
	}
	return out, nil
}

func (fs *Filesystem) writeAU(au uint16, data []byte) error {
	aus, err := fs.auSectors()
	if err != nil {
		return err
	}
	if int(au) >= len(aus) {
		return fmt.Errorf("edsk: allocation unit %d out of range", au)
	}
	off := 0
	for _, r := range aus[au] {
		s := fs.Disc.SectorAt(r.Head, r.Track, r.SectorID)
		if s == nil {
			return fmt.Errorf("edsk: allocation unit %d references missing sector", au)
		}
		n := copy(s.Data, data[off:])
		off += n
		if off >= len(data) {
			break
		}
	}
	return nil
}

func usedAUs(cat Catalogue) map[uint16]bool {
	used := map[uint16]bool{}
	for _, e := range cat.Entries {
		if e.Erased() {
			continue
		}
		for _, au := range e.AUs {
			used[au] = true
		}
	}
	return used
}

// AddFile allocates free allocation units for data, writes it across them,
// and stores one or more catalogue entries (one per 16-AU extent) in the
// first erased catalogue slots. It fails if the catalogue has no slot left,
// if there is insufficient free space, or if (user, name, ext)
// already has a non-erased entry and override is false.
func AddFile(d *Disc, user uint8, name, ext string, data []byte, readOnly, system, override bool) error {
	fs := &Filesystem{Disc: d}
	cat, err := ReadCatalogue(d)
	if err != nil {
		return err
	}
	for _, e := range cat.VisibleEntries() {
		if e.User == user && e.Name == name && e.Ext == ext {
			if !override {
				return fmt.Errorf("edsk: %d:%s.%s already exists", user, name, ext)
			}
		}
	}

	aus, err := fs.auSectors()
	if err != nil {
		return err
	}
	used := usedAUs(cat)
	var free []uint16
	for i := range aus {
		if !used[uint16(i)] {
			free = append(free, uint16(i))
		}
	}

	nbAUs := (len(data) + auSize - 1) / auSize
	if nbAUs == 0 {
		nbAUs = 1
	}
	if nbAUs > len(free) {
		return fmt.Errorf("edsk: need %d allocation units, only %d free", nbAUs, len(free))
	}
	allocated := free[:nbAUs]

	for i, au := range allocated {
		start := i * auSize
		end := start + auSize
		if end > len(data) {
			end = len(data)
		}
		buf := make([]byte, auSize)
		copy(buf, data[start:end])
		if err := fs.writeAU(au, buf); err != nil {
			return err
		}
	}

	const ausPerExtent = 16
	const recordSize = 128
	remaining := len(data)
	lo := 0
	for extent := 0; lo < len(allocated) || extent == 0; extent++ {
		hi := lo + ausPerExtent
		if hi > len(allocated) {
			hi = len(allocated)
		}
		chunk := allocated[lo:hi]
		extentBytes := len(chunk) * auSize
		records := extentBytes / recordSize
		if remaining < extentBytes {
			records = (remaining + recordSize - 1) / recordSize
		}
		entry := CatalogueEntry{
			User:      user,
			Name:      name,
			Ext:       ext,
			ReadOnly:  readOnly,
			System:    system,
			Extent:    uint8(extent),
			RecordCnt: uint8(records),
			AUs:       chunk,
		}
		placed := false
		for i := range cat.Entries {
			if cat.Entries[i].Erased() {
				cat.Entries[i] = entry
				placed = true
				break
			}
		}
		if !placed {
			if len(cat.Entries) >= catalogueEntries {
				return fmt.Errorf("edsk: catalogue full")
			}
			cat.Entries = append(cat.Entries, entry)
		}
		remaining -= extentBytes
		lo = hi
		if lo >= len(allocated) {
			break
		}
	}
	return WriteCatalogue(d, cat)
}

// DeleteFile marks every catalogue entry matching (user, name, ext) as
// erased.
func DeleteFile(d *Disc, user uint8, name, ext string) error {
	cat, err := ReadCatalogue(d)
	if err != nil {
		return err
	}
	found := false
	for i := range cat.Entries {
		e := &cat.Entries[i]
		if !e.Erased() && e.User == user && e.Name == name && e.Ext == ext {
			e.User = erasedUser
			found = true
		}
	}
	if !found {
		return fmt.Errorf("edsk: %d:%s.%s not found", user, name, ext)
	}
	return WriteCatalogue(d, cat)
}

// ReadFile assembles the AUs from every extent of (user, name, ext), in
// extent order, into one contiguous byte stream.
func ReadFile(d *Disc, user uint8, name, ext string) ([]byte, error) {
	fs := &Filesystem{Disc: d}
	cat, err := ReadCatalogue(d)
	if err != nil {
		return nil, err
	}
	var matches []CatalogueEntry
	for _, e := range cat.VisibleEntries() {
		if e.User == user && e.Name == name && e.Ext == ext {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("edsk: %d:%s.%s not found", user, name, ext)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Extent < matches[j].Extent })

	var out []byte
	for _, e := range matches {
		for _, au := range e.AUs {
			chunk, err := fs.readAU(au)
			if err != nil {
				return nil, err
			}
			out = append(out, chunk...)
		}
	}
	return out, nil
}

// SectorialAdd writes data into consecutive sectors starting at
// (head, track, sectorID), crossing into subsequent tracks as needed,
// bypassing the AMSDOS catalogue entirely. It returns the (head, track,
// sector) position immediately after the last byte written.
func SectorialAdd(d *Disc, head, track, sectorID uint8, data []byte) (nextHead, nextTrack, nextSector uint8, err error) {
	off := 0
	for off < len(data) {
		s := d.SectorAt(head, track, sectorID)
		if s == nil {
			return 0, 0, 0, fmt.Errorf("edsk: sector C%d H%d R%d not found", track, head, sectorID)
		}
		n := copy(s.Data, data[off:])
		off += n
		sectorID, track, head, err = advance(d, head, track, sectorID)
		if err != nil && off < len(data) {
			return 0, 0, 0, err
		}
	}
	return head, track, sectorID, nil
}

func advance(d *Disc, head, track, sectorID uint8) (nextSector, nextTrack, nextHead uint8, err error) {
	tr := d.TrackAt(head, track)
	if tr == nil {
		return 0, 0, 0, fmt.Errorf("edsk: track %d head %d not found", track, head)
	}
	sorted := append([]Sector(nil), tr.Sectors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].SectorID < sorted[j].SectorID })
	for i, s := range sorted {
		if s.SectorID == sectorID {
			if i+1 < len(sorted) {
				return sorted[i+1].SectorID, track, head, nil
			}
			break
		}
	}
	nt := track + 1
	if int(nt) >= len(d.Tracks[head]) {
		if head+1 >= d.NbHeads {
			return 0, 0, 0, fmt.Errorf("edsk: ran off the end of the disc")
		}
		return firstSectorID(d, head+1, 0), 0, head + 1, nil
	}
	return firstSectorID(d, head, nt), nt, head, nil
}

func firstSectorID(d *Disc, head, track uint8) uint8 {
	tr := d.TrackAt(head, track)
	if tr == nil || len(tr.Sectors) == 0 {
		return 0
	}
	min := tr.Sectors[0].SectorID
	for _, s := range tr.Sectors[1:] {
		if s.SectorID < min {
			min = s.SectorID
		}
	}
	return min
}

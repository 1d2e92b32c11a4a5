package edsk

import (
	"fmt"
	"strconv"
	"strings"
)

// TrackGroup describes a set of tracks sharing the same sector layout: a
// set of track indices, the head, the sector size, gap3 length, and
// parallel lists of sector IDs and their logical heads.
type TrackGroup struct {
	Tracks       []uint8
	Head         Head
	SectorSize   uint16
	Gap3         uint8
	SectorID     []uint8
	SectorIDHead []uint8
}

// DiscConfig is a declarative disc format description: the community
// "cpctools" .cfg format used by the Arkos Loader and friends to describe
// non-standard disc layouts.
type DiscConfig struct {
	NbTracks    uint8
	NbHeads     uint8
	TrackGroups []TrackGroup
}

// SingleHeadDataFormat returns the 40-track single-head "Data" format
// (512-byte sectors, gap3 82, sector IDs 0xC1..0xC9) used by most CPC
// utility discs.
func SingleHeadDataFormat() DiscConfig {
	return DiscConfig{
		NbTracks: 40,
		NbHeads:  1,
		TrackGroups: []TrackGroup{{
			Tracks:       rangeU8(0, 40),
			Head:         HeadUnspecified,
			SectorSize:   512,
			Gap3:         82,
			SectorID:     []uint8{0xC1, 0xC6, 0xC2, 0xC7, 0xC3, 0xC8, 0xC4, 0xC9, 0xC5},
			SectorIDHead: make([]uint8, 9),
		}},
	}
}

// SingleHeadData42Format is the 42-track variant of SingleHeadDataFormat,
// with a tighter gap3 of 0x4E to fit the extra two tracks.
func SingleHeadData42Format() DiscConfig {
	return DiscConfig{
		NbTracks: 42,
		NbHeads:  1,
		TrackGroups: []TrackGroup{{
			Tracks:       rangeU8(0, 42),
			Head:         HeadUnspecified,
			SectorSize:   512,
			Gap3:         0x4E,
			SectorID:     []uint8{0xC1, 0xC6, 0xC2, 0xC7, 0xC3, 0xC8, 0xC4, 0xC9, 0xC5},
			SectorIDHead: make([]uint8, 9),
		}},
	}
}

func rangeU8(from, to int) []uint8 {
	out := make([]uint8, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, uint8(i))
	}
	return out
}

// TrackGroupFor finds the group covering (head, track), or nil.
func (c *DiscConfig) TrackGroupFor(head Head, track uint8) *TrackGroup {
	for i := range c.TrackGroups {
		g := &c.TrackGroups[i]
		if g.Head != head {
			continue
		}
		for _, t := range g.Tracks {
			if t == track {
				return g
			}
		}
	}
	return nil
}

// String renders the config back into its textual .cfg form.
func (c DiscConfig) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "NbTrack = %d\n", c.NbTracks)
	fmt.Fprintf(&b, "NbHead = %d\n", c.NbHeads)
	for _, g := range c.TrackGroups {
		b.WriteString("\n")
		b.WriteString(g.String())
	}
	return b.String()
}

func (g TrackGroup) String() string {
	var b strings.Builder
	headSuffix := ""
	switch g.Head {
	case HeadA:
		headSuffix = "-A"
	case HeadB:
		headSuffix = "-B"
	}
	fmt.Fprintf(&b, "[Track%s:%s]\n", headSuffix, joinU8(g.Tracks))
	fmt.Fprintf(&b, "SectorSize = %d\n", g.SectorSize)
	fmt.Fprintf(&b, "Gap3 = 0x%x\n", g.Gap3)
	fmt.Fprintf(&b, "SectorID = %s\n", joinHexU8(g.SectorID))
	fmt.Fprintf(&b, "SectorIDHead = %s\n", joinU8(g.SectorIDHead))
	return b.String()
}

func joinU8(vs []uint8) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(int(v))
	}
	return strings.Join(parts, ",")
}

func joinHexU8(vs []uint8) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprintf("0x%x", v)
	}
	return strings.Join(parts, ",")
}

// ParseDiscConfig parses the textual .cfg format: a leading NbTrack/NbHead
// pair of key=value lines, followed by one or more [Track:...] / [Track-A:...]
// / [Track-B:...] groups, each with SectorSize, Gap3, SectorID and
// SectorIDHead key=value lines. Keys are case-insensitive; blank lines
// between entries are ignored.
func ParseDiscConfig(text string) (DiscConfig, error) {
	lines := splitNonEmptyLines(text)
	var cfg DiscConfig
	i := 0

	nbTracks, err := expectKey(lines, &i, "nbtrack")
	if err != nil {
		return cfg, err
	}
	cfg.NbTracks = uint8(nbTracks)

	nbHeads, err := expectKeyAny(lines, &i, "nbhead", "nbside")
	if err != nil {
		return cfg, err
	}
	cfg.NbHeads = uint8(nbHeads)

	for i < len(lines) {
		group, err := parseTrackGroup(lines, &i)
		if err != nil {
			return cfg, err
		}
		cfg.TrackGroups = append(cfg.TrackGroups, group)
	}
	if len(cfg.TrackGroups) == 0 {
		return cfg, fmt.Errorf("edsk: config has no [Track:...] groups")
	}
	return cfg, nil
}

func splitNonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

func keyValue(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(line[:idx])), strings.TrimSpace(line[idx+1:]), true
}

func expectKey(lines []string, i *int, key string) (int64, error) {
	return expectKeyAny(lines, i, key)
}

func expectKeyAny(lines []string, i *int, keys ...string) (int64, error) {
	if *i >= len(lines) {
		return 0, fmt.Errorf("edsk: expected %s, got end of input", keys[0])
	}
	k, v, ok := keyValue(lines[*i])
	if !ok {
		return 0, fmt.Errorf("edsk: expected key=value at %q", lines[*i])
	}
	for _, want := range keys {
		if k == want {
			*i++
			return parseNumber(v)
		}
	}
	return 0, fmt.Errorf("edsk: expected one of %v, got %q", keys, k)
}

func parseNumber(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

func parseNumberList(s string) ([]uint8, error) {
	var out []uint8
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		n, err := parseNumber(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("edsk: bad number %q: %w", part, err)
		}
		out = append(out, uint8(n))
	}
	return out, nil
}

func parseTrackGroup(lines []string, i *int) (TrackGroup, error) {
	var g TrackGroup
	if *i >= len(lines) {
		return g, fmt.Errorf("edsk: expected [Track:...], got end of input")
	}
	header := strings.TrimSpace(lines[*i])
	lower := strings.ToLower(header)
	switch {
	case strings.HasPrefix(lower, "[track-a:"):
		g.Head = HeadA
		header = header[len("[Track-A:"):]
	case strings.HasPrefix(lower, "[track-b:"):
		g.Head = HeadB
		header = header[len("[Track-B:"):]
	case strings.HasPrefix(lower, "[track:"):
		g.Head = HeadUnspecified
		header = header[len("[Track:"):]
	default:
		return g, fmt.Errorf("edsk: expected [Track:...] group header, got %q", lines[*i])
	}
	header = strings.TrimSuffix(strings.TrimSpace(header), "]")
	tracks, err := parseNumberList(header)
	if err != nil {
		return g, fmt.Errorf("edsk: track list: %w", err)
	}
	g.Tracks = tracks
	*i++

	sectorSize, err := expectKey(lines, i, "sectorsize")
	if err != nil {
		return g, err
	}
	g.SectorSize = uint16(sectorSize)

	gap3, err := expectKey(lines, i, "gap3")
	if err != nil {
		return g, err
	}
	g.Gap3 = uint8(gap3)

	if *i >= len(lines) {
		return g, fmt.Errorf("edsk: expected SectorID, got end of input")
	}
	k, v, ok := keyValue(lines[*i])
	if !ok || k != "sectorid" {
		return g, fmt.Errorf("edsk: expected SectorID=..., got %q", lines[*i])
	}
	sectorID, err := parseNumberList(v)
	if err != nil {
		return g, err
	}
	g.SectorID = sectorID
	*i++

	if *i < len(lines) {
		if k, v, ok := keyValue(lines[*i]); ok && k == "sectoridhead" {
			sectorIDHead, err := parseNumberList(v)
			if err != nil {
				return g, err
			}
			g.SectorIDHead = sectorIDHead
			*i++
		}
	}
	if len(g.SectorIDHead) == 0 {
		g.SectorIDHead = make([]uint8, len(g.SectorID))
	}
	return g, nil
}

// BuildFromConfig expands a DiscConfig into a fresh Disc: for each
// (head, track) the matching group's sectors are created in listed order,
// each filled with fill (0x00 when unspecified elsewhere by the caller).
func BuildFromConfig(cfg DiscConfig, fill byte) (*Disc, error) {
	d := NewDisc("bnd", cfg.NbTracks, cfg.NbHeads)
	for head := uint8(0); head < cfg.NbHeads; head++ {
		h := HeadUnspecified
		if cfg.NbHeads == 2 {
			if head == 0 {
				h = HeadA
			} else {
				h = HeadB
			}
		}
		for track := uint8(0); track < cfg.NbTracks; track++ {
			g := cfg.TrackGroupFor(h, track)
			if g == nil {
				return nil, fmt.Errorf("edsk: no track group covers head %d track %d", head, track)
			}
			sizeCode, ok := BytesToSectorSizeCode(int(g.SectorSize))
			if !ok {
				return nil, fmt.Errorf("edsk: sector size %d has no FDC size code", g.SectorSize)
			}
			tr := d.TrackAt(head, track)
			tr.Gap3 = g.Gap3
			tr.Sectors = make([]Sector, len(g.SectorID))
			for i, id := range g.SectorID {
				data := make([]byte, g.SectorSize)
				for j := range data {
					data[j] = fill
				}
				tr.Sectors[i] = Sector{
					Track:    track,
					Head:     g.SectorIDHead[i],
					SectorID: id,
					SizeCode: sizeCode,
					Data:     data,
				}
			}
		}
	}
	return d, nil
}

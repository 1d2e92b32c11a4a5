package edsk

import "testing"

func TestParseDiscConfigDataFormat(t *testing.T) {
	cfg, err := ParseDiscConfig(SingleHeadDataFormat().String())
	if err != nil {
		t.Fatalf("ParseDiscConfig: %v", err)
	}
	if cfg.NbTracks != 40 || cfg.NbHeads != 1 {
		t.Fatalf("geometry mismatch: %+v", cfg)
	}
	if len(cfg.TrackGroups) != 1 {
		t.Fatalf("expected 1 track group, got %d", len(cfg.TrackGroups))
	}
	g := cfg.TrackGroups[0]
	if g.SectorSize != 512 || g.Gap3 != 82 {
		t.Fatalf("group fields mismatch: %+v", g)
	}
	if len(g.SectorID) != 9 || g.SectorID[0] != 0xC1 {
		t.Fatalf("sector IDs mismatch: %v", g.SectorID)
	}
}

func TestParseDiscConfigTwoHeads(t *testing.T) {
	text := `
NbTrack = 1
NbHead = 2

[Track-A:0]
SectorSize = 512
Gap3 = 0x4e
SectorID = 0xc1
SectorIDHead = 0

[Track-B:0]
SectorSize = 512
Gap3 = 0x4e
SectorID = 0xc1
SectorIDHead = 1
`
	cfg, err := ParseDiscConfig(text)
	if err != nil {
		t.Fatalf("ParseDiscConfig: %v", err)
	}
	if len(cfg.TrackGroups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(cfg.TrackGroups))
	}
	if cfg.TrackGroupFor(HeadA, 0) == nil || cfg.TrackGroupFor(HeadB, 0) == nil {
		t.Fatal("expected groups for both heads")
	}
}

func TestParseDiscConfigRejectsMissingKey(t *testing.T) {
	if _, err := ParseDiscConfig("NbTrack = 40\n"); err == nil {
		t.Fatal("expected error for missing NbHead")
	}
}

func TestBuildFromConfig(t *testing.T) {
	cfg := SingleHeadDataFormat()
	d, err := BuildFromConfig(cfg, 0xE5)
	if err != nil {
		t.Fatalf("BuildFromConfig: %v", err)
	}
	if d.NbTracks != 40 || d.NbHeads != 1 {
		t.Fatalf("disc geometry mismatch: %+v", d)
	}
	tr := d.TrackAt(0, 0)
	if len(tr.Sectors) != 9 {
		t.Fatalf("track 0 sector count = %d, want 9", len(tr.Sectors))
	}
	for _, s := range tr.Sectors {
		if len(s.Data) != 512 {
			t.Fatalf("sector size = %d, want 512", len(s.Data))
		}
		if s.Data[0] != 0xE5 {
			t.Fatalf("fill byte not applied")
		}
	}
}

func TestDiscConfigStringRoundTrip(t *testing.T) {
	cfg := SingleHeadData42Format()
	text := cfg.String()
	parsed, err := ParseDiscConfig(text)
	if err != nil {
		t.Fatalf("ParseDiscConfig: %v", err)
	}
	if parsed.NbTracks != cfg.NbTracks || parsed.NbHeads != cfg.NbHeads {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, cfg)
	}
}

package edsk

import "testing"

// TestScenario_S4_SingleHeadDataFormatSectorBytes builds the standard
// 40-track single-head "Data" format and checks its total encoded sector
// payload: 40 tracks * 9 sectors * 512 bytes = 184320 bytes.
func TestScenario_S4_SingleHeadDataFormatSectorBytes(t *testing.T) {
	d, err := BuildFromConfig(SingleHeadDataFormat(), 0xE5)
	if err != nil {
		t.Fatalf("BuildFromConfig: %v", err)
	}
	total := 0
	for track := uint8(0); track < 40; track++ {
		tr := d.TrackAt(0, track)
		if tr == nil {
			t.Fatalf("missing track %d", track)
		}
		for _, s := range tr.Sectors {
			total += len(s.Data)
		}
	}
	if total != 184320 {
		t.Fatalf("expected 184320 bytes of sector data, got %d", total)
	}
}

// TestScenario_S6_AddThreeKiBFile adds a 3072-byte file to a freshly
// formatted single-head data disc and checks that it lands in exactly one
// catalogue entry with 24 records across 3 allocation units.
func TestScenario_S6_AddThreeKiBFile(t *testing.T) {
	d, err := BuildFromConfig(SingleHeadDataFormat(), 0xE5)
	if err != nil {
		t.Fatalf("BuildFromConfig: %v", err)
	}
	data := make([]byte, 3072)
	for i := range data {
		data[i] = byte(i)
	}
	if err := AddFile(d, 0, "GAME", "BIN", data, false, false, false); err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	cat, err := ReadCatalogue(d)
	if err != nil {
		t.Fatalf("ReadCatalogue: %v", err)
	}
	var visible []CatalogueEntry
	for _, e := range cat.Entries {
		if !e.Erased() {
			visible = append(visible, e)
		}
	}
	if len(visible) != 1 {
		t.Fatalf("expected exactly one catalogue entry, got %d", len(visible))
	}
	entry := visible[0]
	if entry.RecordCnt != 24 {
		t.Fatalf("expected 24 records, got %d", entry.RecordCnt)
	}
	if len(entry.AUs) != 3 {
		t.Fatalf("expected 3 allocation units, got %d", len(entry.AUs))
	}
}

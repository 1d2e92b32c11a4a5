package sna

import (
	"bytes"
	"testing"
)

func TestSnapshotRoundTripV3Compressed(t *testing.T) {
	s := New()
	s.Header.PC = 0x4000
	s.Header.SP = 0xBFFF
	if err := s.LoadAt(0, 0x4000, []byte{0x3E, 0x01, 0xC9}); err != nil {
		t.Fatalf("LoadAt: %v", err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Header.PC != 0x4000 || got.Header.SP != 0xBFFF {
		t.Fatalf("header mismatch: %+v", got.Header)
	}
	page := got.Page(0)
	if !bytes.Equal(page[0x4000:0x4003], []byte{0x3E, 0x01, 0xC9}) {
		t.Fatalf("memory mismatch at 0x4000: %v", page[0x4000:0x4003])
	}
}

func TestSnapshotRoundTripV3Uncompressed(t *testing.T) {
	s := New()
	s.Compress = false
	s.LoadAt(0, 0, []byte{1, 2, 3, 4})

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !bytes.Equal(got.Page(0)[:4], []byte{1, 2, 3, 4}) {
		t.Fatalf("uncompressed round trip mismatch")
	}
}

func TestSnapshotRoundTripV1Flat(t *testing.T) {
	s := New()
	s.Header.Version = 1
	s.LoadAt(0, 0x8000, []byte{0xAA, 0xBB})

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	if buf.Len() != HeaderSize+PageSize {
		t.Fatalf("v1 size = %d, want %d", buf.Len(), HeaderSize+PageSize)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	page := got.Page(0)
	if page[0x8000] != 0xAA || page[0x8001] != 0xBB {
		t.Fatalf("v1 memory mismatch")
	}
}

func TestSnapshotMultiPage(t *testing.T) {
	s := New()
	s.LoadAt(1, 0, []byte{7, 7, 7})
	s.LoadAt(3, 0, []byte{9})

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	got, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.Pages) != 3 {
		t.Fatalf("got %d pages, want 3 (0,1,3)", len(got.Pages))
	}
	if !bytes.Equal(got.Page(1)[:3], []byte{7, 7, 7}) {
		t.Fatalf("page 1 mismatch")
	}
	if got.Page(3)[0] != 9 {
		t.Fatalf("page 3 mismatch")
	}
}

func TestSnapshotLoadAtOverflow(t *testing.T) {
	s := New()
	if err := s.LoadAt(0, 0xFFFE, []byte{1, 2, 3}); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestSnapshotVersion1RejectsMultiplePages(t *testing.T) {
	s := New()
	s.Header.Version = 1
	s.LoadAt(1, 0, []byte{1})

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err == nil {
		t.Fatal("expected error writing v1 snapshot with more than one page")
	}
}

func TestLoadRejectsBadSignature(t *testing.T) {
	bad := bytes.Repeat([]byte{0}, HeaderSize)
	if _, err := Load(bytes.NewReader(bad)); err == nil {
		t.Fatal("expected signature error")
	}
}

package crunch

import (
	"bytes"
	"testing"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{1, 2, 3},
		bytes.Repeat([]byte{9}, 300),
		append(bytes.Repeat([]byte{0xAA}, 10), []byte{1, 2, 3, 0xAA, 0xAA}...),
		{escape, escape, 1, 2},
	}
	for i, data := range cases {
		packed := Compress(data)
		got, err := Decompress(packed)
		if err != nil {
			t.Fatalf("case %d: Decompress: %v", i, err)
		}
		if !bytes.Equal(got, data) && !(len(got) == 0 && len(data) == 0) {
			t.Fatalf("case %d: round trip mismatch: got %v, want %v", i, got, data)
		}
	}
}

func TestCompressShrinksLongRuns(t *testing.T) {
	data := bytes.Repeat([]byte{0x42}, 200)
	packed := Compress(data)
	if len(packed) >= len(data) {
		t.Fatalf("expected a long run to compress smaller, got %d bytes from %d", len(packed), len(data))
	}
}

func TestCompressLeavesShortRunsLiteral(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	packed := Compress(data)
	if !bytes.Equal(packed, data) {
		t.Fatalf("expected no-run data to pass through unchanged, got %v", packed)
	}
}

package sna

import (
	"bytes"
	"testing"
)

func TestEncodeRLERoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty page", make([]byte, 65536)},
		{"single run", bytes.Repeat([]byte{0x42}, 65536)},
		{"escape byte run", append(bytes.Repeat([]byte{0xE5}, 300), make([]byte, 65536-300)...)},
		{"lone escape byte", append([]byte{0xE5}, make([]byte, 65535)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := EncodeRLE(tt.data)
			dec, err := DecodeRLE(enc)
			if err != nil {
				t.Fatalf("DecodeRLE: %v", err)
			}
			if !bytes.Equal(dec, tt.data) {
				t.Fatalf("round trip mismatch, got %d bytes want %d", len(dec), len(tt.data))
			}
		})
	}
}

func TestEncodeRLETwoByteRunLeftLiteral(t *testing.T) {
	data := make([]byte, 65536)
	data[0], data[1] = 0x11, 0x11
	enc := EncodeRLE(data)
	if enc[0] != 0x11 || enc[1] != 0x11 {
		t.Fatalf("run of 2 should stay literal, got %02X %02X", enc[0], enc[1])
	}
}

func TestEncodeRLELoneEscapeByte(t *testing.T) {
	data := make([]byte, 65536)
	data[100] = 0xE5
	enc := EncodeRLE(data)
	dec, err := DecodeRLE(enc)
	if err != nil {
		t.Fatalf("DecodeRLE: %v", err)
	}
	if dec[100] != 0xE5 {
		t.Fatalf("lone escape byte lost in round trip")
	}
}

func TestDecodeRLETruncated(t *testing.T) {
	if _, err := DecodeRLE([]byte{0xE5}); err == nil {
		t.Fatal("expected error on truncated escape")
	}
	if _, err := DecodeRLE([]byte{0xE5, 0x05}); err == nil {
		t.Fatal("expected error on truncated run")
	}
}

func TestChunkEncode(t *testing.T) {
	c := Chunk{Code: [4]byte{'M', 'E', 'M', '0'}, Data: []byte{1, 2, 3}}
	enc := c.Encode()
	want := []byte{'M', 'E', 'M', '0', 3, 0, 0, 0, 1, 2, 3}
	if !bytes.Equal(enc, want) {
		t.Fatalf("got %v want %v", enc, want)
	}
}

func TestPageCodeRange(t *testing.T) {
	for i := 0; i <= 8; i++ {
		code := pageCode(i)
		if code != [4]byte{'M', 'E', 'M', byte('0' + i)} {
			t.Fatalf("pageCode(%d) = %v", i, code)
		}
	}
}

func TestPageCodePanicsOutOfRange(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for page 9")
		}
	}()
	pageCode(9)
}

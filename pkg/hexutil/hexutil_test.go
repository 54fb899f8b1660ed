package hexutil

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		capacity int
		want     []byte
		wantErr  bool
	}{
		{"Plain pairs", "3F00", 8, []byte{0x3F, 0x00}, false},
		{"Lower case", "a0b1", 8, []byte{0xA0, 0xB1}, false},
		{"Colon separators", "AB:CD", 8, []byte{0xAB, 0xCD}, false},
		{"Spaces and punctuation", " a0 - 00,00.00/03 ", 8, []byte{0xA0, 0x00, 0x00, 0x00, 0x03}, false},
		{"All garbage", "zz--!!", 8, []byte{}, false},
		{"Empty", "", 8, []byte{}, false},
		{"Odd digit count", "ABC", 8, nil, true},
		{"Odd after separators", "A:B:C", 8, nil, true},
		{"Capacity bound, extra ignored", "AABBCC", 2, []byte{0xAA, 0xBB}, false},
		{"Capacity bound mid-pair still completes", "AABB", 2, []byte{0xAA, 0xBB}, false},
		{"Trailing digit beyond capacity not an error", "AABBC", 2, []byte{0xAA, 0xBB}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, tt.capacity)
			n, err := Decode(dst, tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrOddLength) {
					t.Errorf("error = %v, want ErrOddLength", err)
				}
				if n != 0 {
					t.Errorf("n = %d after failure, want 0", n)
				}
				return
			}
			if !bytes.Equal(dst[:n], tt.want) {
				t.Errorf("Decode(%q) = % X, want % X", tt.in, dst[:n], tt.want)
			}
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	orig := []byte{0x00, 0x1F, 0x80, 0xFF, 0x3F}
	s := EncodeToString(orig)

	back, err := DecodeString(s, len(orig))
	if err != nil {
		t.Fatalf("DecodeString(%q): %v", s, err)
	}
	if !bytes.Equal(back, orig) {
		t.Errorf("round trip = % X, want % X", back, orig)
	}
}

func TestEncodeToString(t *testing.T) {
	if got := EncodeToString([]byte{0x3F, 0x00}); got != "3F00" {
		t.Errorf("EncodeToString = %q, want 3F00", got)
	}
	if got := EncodeToString(nil); got != "" {
		t.Errorf("EncodeToString(nil) = %q, want empty", got)
	}
}

func TestDump(t *testing.T) {
	var buf bytes.Buffer
	data := append([]byte("CardFile"), 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0xAA, 0xBB)

	Dump(&buf, data, 0)
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "00000000: ") {
		t.Errorf("first line missing offset column: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "00000010: ") {
		t.Errorf("second line offset wrong: %q", lines[1])
	}
	if !strings.HasSuffix(lines[0], "CardFile........") {
		t.Errorf("ASCII column mismatch: %q", lines[0])
	}
	// Short final line still aligns its ASCII column.
	if !strings.Contains(lines[1], "AA BB ") || !strings.HasSuffix(lines[1], "..") {
		t.Errorf("final line mismatch: %q", lines[1])
	}
}

func TestDumpNoAddress(t *testing.T) {
	var buf bytes.Buffer
	Dump(&buf, []byte{0x90, 0x00}, -1)

	if strings.Contains(buf.String(), ":") {
		t.Errorf("expected no offset column, got %q", buf.String())
	}
	if !strings.HasPrefix(buf.String(), "90 00 ") {
		t.Errorf("unexpected dump: %q", buf.String())
	}
}

func TestPrintable(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "plain ascii", data: []byte("portfolio"), want: "portfolio"},
		{name: "escaped bytes", data: []byte{0xA0, 'P', 'K', 0x00}, want: `\xA0PK\x00`},
		{name: "empty", data: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Printable(tt.data); got != tt.want {
				t.Errorf("Printable(% X) = %q, want %q", tt.data, got, tt.want)
			}
		})
	}
}

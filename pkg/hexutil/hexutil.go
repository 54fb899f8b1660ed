// Package hexutil converts between hex text and raw bytes the way card
// tools traditionally accept operator input: separators and other non-hex
// characters are ignored, so "3f00", "3F 00" and "3f:00" all decode to the
// same two bytes. Only an odd count of hex digits is an error.
package hexutil

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrOddLength is returned when an input contains an odd number of hex
// digits once all non-hex characters have been discarded.
var ErrOddLength = errors.New("odd number of hex digits")

// Decode scans s for hex digits and packs them pairwise into dst,
// high nibble first. Non-hex characters are skipped, not rejected.
// Writing stops silently once dst is full; input beyond that point is
// left unexamined. The number of bytes written is returned.
//
// If the consumed portion of s ends on a half byte, Decode returns
// ErrOddLength and the contents of dst must not be used.
func Decode(dst []byte, s string) (int, error) {
	n := 0
	half := false

	for i := 0; i < len(s); i++ {
		// Out of room and not mid-byte: done, the rest is not our business.
		if n == len(dst) && !half {
			return n, nil
		}

		v, ok := nibble(s[i])
		if !ok {
			continue
		}

		if half {
			dst[n-1] = dst[n-1]<<4 | v
		} else {
			dst[n] = v
			n++
		}
		half = !half
	}

	if half {
		return 0, ErrOddLength
	}
	return n, nil
}

// DecodeString is Decode into a fresh buffer of at most max bytes.
func DecodeString(s string, max int) ([]byte, error) {
	buf := make([]byte, max)
	n, err := Decode(buf, s)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// EncodeToString renders data as upper-case hex pairs with no separators.
func EncodeToString(data []byte) string {
	return fmt.Sprintf("%X", data)
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Printable renders data for a terminal, keeping printable ASCII as is
// and escaping everything else as \xHH. Card-supplied names travel here
// before they reach a prompt or listing.
func Printable(data []byte) string {
	var b strings.Builder
	for _, c := range data {
		if c >= 0x20 && c <= 0x7E {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "\\x%02X", c)
		}
	}
	return b.String()
}

// Dump writes data as a classic hex dump: sixteen bytes per line, an
// optional offset column, and an ASCII column with non-printable bytes
// shown as dots. A negative addr suppresses the offset column.
func Dump(w io.Writer, data []byte, addr int) {
	for len(data) > 0 {
		line := data
		if len(line) > 16 {
			line = line[:16]
		}
		data = data[len(line):]

		if addr >= 0 {
			fmt.Fprintf(w, "%08X: ", addr)
			addr += 16
		}

		var hexCol, ascCol strings.Builder
		for _, b := range line {
			fmt.Fprintf(&hexCol, "%02X ", b)
			if b >= 0x20 && b <= 0x7E {
				ascCol.WriteByte(b)
			} else {
				ascCol.WriteByte('.')
			}
		}
		for i := len(line); i < 16; i++ {
			hexCol.WriteString("   ")
		}

		fmt.Fprintf(w, "%s%s\n", hexCol.String(), ascCol.String())
	}
}

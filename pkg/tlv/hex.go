package tlv

import (
	"encoding/hex"
	"strings"
)

// Hex builds a byte slice from hexadecimal string parts. It exists to
// keep TLV fixtures in tests readable, one data object per part, and
// panics on malformed input since a bad fixture is a programming error.
func Hex(parts ...string) []byte {
	decoded, err := hex.DecodeString(strings.Join(parts, ""))
	if err != nil {
		panic(err)
	}

	return decoded
}

// MakeSafeASCII replaces every byte outside the printable ASCII range
// with a dot, making card-supplied names and labels safe to echo on a
// terminal.
func MakeSafeASCII(data []byte) string {
	safe := make([]byte, len(data))
	for i, b := range data {
		if b < 0x20 || b > 0x7E {
			safe[i] = '.'
		} else {
			safe[i] = b
		}
	}

	return string(safe)
}

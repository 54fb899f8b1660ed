// Package bits manipulates single bytes with the 1-based bit numbering used
// throughout ISO/IEC 7816-4 tables (bit 1 is the least significant, bit 8
// the most significant).
package bits

// Bit returns a byte with only the n-th bit set (1 to 8).
// Out-of-range positions yield 0.
func Bit(n uint) byte {
	if n < 1 || n > 8 {
		return 0
	}
	return 1 << (n - 1)
}

// IsSet reports whether the n-th bit of b is set (1 to 8).
func IsSet(b byte, n uint) bool {
	return b&Bit(n) != 0
}

// Set returns b with the n-th bit set.
func Set(b byte, n uint) byte {
	return b | Bit(n)
}

// GetRange extracts the value held in bits high..low of b.
// Example: GetRange(0b0000_1100, 4, 3) returns 3.
func GetRange(b byte, high, low uint) byte {
	if high < low || high > 8 || low < 1 {
		return 0
	}

	width := high - low + 1
	mask := byte((1 << width) - 1)

	return (b >> (low - 1)) & mask
}

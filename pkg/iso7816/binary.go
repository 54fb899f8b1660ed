package iso7816

// BINARY COMMAND LOGIC (ISO 7816-4):
// READ BINARY (INS 'B0') and UPDATE BINARY (INS 'D6') address the content
// of a transparent EF by byte offset.
//
// P1-P2 (Offset):
// With bit 8 of P1 cleared, P1-P2 carry a 15-bit offset into the current EF
// (0 to 32767). Setting bit 8 of P1 switches to Short File Identifier
// addressing instead; these builders never emit that form, the file is
// always selected first.

// MaxBinaryOffset is the highest offset addressable through plain P1-P2 (15 bits).
const MaxBinaryOffset = 0x7FFF

// ReadBinary reads up to ne bytes of the current transparent EF starting at offset.
func ReadBinary(cla Class, offset uint16, ne int) *CommandAPDU {
	ins, _ := NewInstruction(INS_READ_BINARY)

	return NewCommandAPDU(cla, ins, byte(offset>>8), byte(offset), nil, ne)
}

// UpdateBinary overwrites len(data) bytes of the current transparent EF
// starting at offset.
func UpdateBinary(cla Class, offset uint16, data []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_UPDATE_BINARY)

	return NewCommandAPDU(cla, ins, byte(offset>>8), byte(offset), data, 0)
}

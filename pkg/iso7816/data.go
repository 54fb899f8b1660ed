package iso7816

// DATA OBJECT & CHALLENGE COMMAND LOGIC (ISO 7816-4):
// GET DATA (INS 'CA') retrieves a single data object named by the tag in
// P1-P2; PUT DATA (INS 'DA') stores one. GET CHALLENGE (INS '84') asks the
// card for random bytes, typically as input to an authentication protocol.

// GetChallenge requests ne random bytes from the card.
func GetChallenge(cla Class, ne int) *CommandAPDU {
	ins, _ := NewInstruction(INS_GET_CHALLENGE)

	return NewCommandAPDU(cla, ins, 0x00, 0x00, nil, ne)
}

// GetData retrieves the data object named by tag (a 2-byte value carried
// in P1-P2).
func GetData(cla Class, tag uint16) *CommandAPDU {
	ins, _ := NewInstruction(INS_GET_DATA)

	return NewCommandAPDU(cla, ins, byte(tag>>8), byte(tag), nil, MaxShortLe)
}

// PutData stores value into the data object named by tag.
func PutData(cla Class, tag uint16, value []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_PUT_DATA)

	return NewCommandAPDU(cla, ins, byte(tag>>8), byte(tag), value, 0)
}

package iso7816

// REFERENCE DATA COMMAND LOGIC (ISO 7816-4):
// VERIFY (INS '20') compares verification data (typically a PIN) against
// the reference data the card holds.
// CHANGE REFERENCE DATA (INS '24') replaces reference data, either after
// checking the current value or unconditionally.
// RESET RETRY COUNTER (INS '2C') resets the retry counter of blocked
// reference data using a resetting code (PUK) and optionally installs new
// reference data in the same exchange.
//
// P2 (Qualifier):
// Bit 8 clear targets global reference data, bit 8 set targets data
// specific to the current DF; the low bits carry the reference number.
// Callers pass the qualifier byte through unchanged.

// Verify checks data against the reference data named by ref.
// With an empty data field the command merely queries the verification
// state (the card answers 63CX with the remaining tries, or 9000).
func Verify(cla Class, ref byte, data []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_VERIFY)

	return NewCommandAPDU(cla, ins, 0x00, ref, data, 0)
}

// ChangeReferenceData replaces the reference data named by ref. When
// current is empty, P1 '01' tells the card the data field carries the
// replacement only; otherwise P1 '00' sends current and replacement
// back to back.
func ChangeReferenceData(cla Class, ref byte, current, replacement []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_CHANGE_REFERENCE_DATA)

	p1 := byte(0x00)
	if len(current) == 0 {
		p1 = 0x01
	}

	data := make([]byte, 0, len(current)+len(replacement))
	data = append(data, current...)
	data = append(data, replacement...)

	return NewCommandAPDU(cla, ins, p1, ref, data, 0)
}

// ResetRetryCounter resets the retry counter of the reference data named
// by ref. P1 encodes which parts the data field carries: '00' resetting
// code followed by new reference data, '01' resetting code only, '02' new
// reference data only, '03' neither.
func ResetRetryCounter(cla Class, ref byte, resetting, replacement []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_RESET_RETRY_COUNTER)

	var p1 byte
	switch {
	case len(resetting) > 0 && len(replacement) > 0:
		p1 = 0x00
	case len(resetting) > 0:
		p1 = 0x01
	case len(replacement) > 0:
		p1 = 0x02
	default:
		p1 = 0x03
	}

	data := make([]byte, 0, len(resetting)+len(replacement))
	data = append(data, resetting...)
	data = append(data, replacement...)

	return NewCommandAPDU(cla, ins, p1, ref, data, 0)
}

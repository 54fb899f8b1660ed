package iso7816

// FILE MANAGEMENT COMMAND LOGIC (ISO 7816-4 / 7816-9):
// CREATE FILE (INS 'E0') carries an FCP template describing the file to
// create. DELETE FILE (INS 'E4') targets a file by identifier in the data
// field, or the current file when the data field is absent.
//
// LIST FILES has no interindustry encoding. The de-facto 'CLA 80 INS AA'
// variant implemented by several eID profiles returns the children of the
// current DF as a run of 2-byte file identifiers.

// insListFiles is the de-facto proprietary LIST FILES instruction.
const insListFiles InsCode = 0xAA

// CreateFile creates a file under the current DF from an encoded FCP
// template (tag '62').
func CreateFile(cla Class, fcp []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_CREATE_FILE)

	return NewCommandAPDU(cla, ins, 0x00, 0x00, fcp, 0)
}

// DeleteFile deletes the file named by a 2-byte identifier under the
// current DF. A nil identifier deletes the currently selected file.
func DeleteFile(cla Class, fileID []byte) *CommandAPDU {
	ins, _ := NewInstruction(INS_DELETE_FILE)

	return NewCommandAPDU(cla, ins, 0x00, 0x00, fileID, 0)
}

// ListFiles enumerates the children of the current DF. The command class
// is fixed: the 'AA' instruction only exists under the proprietary CLA 80.
func ListFiles() *CommandAPDU {
	cla, _ := NewClass(0x80)
	ins, _ := NewInstruction(insListFiles)

	return NewCommandAPDU(cla, ins, 0x00, 0x00, nil, MaxShortLe)
}

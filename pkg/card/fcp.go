package card

import (
	"fmt"
	"strings"

	"github.com/moov-io/bertlv"

	"github.com/gregLibert/card-explorer/pkg/tlv"
)

// FILE CONTROL INFORMATION (ISO 7816-4):
// A successful SELECT answers with a BER-TLV template describing the file:
// '6F' (FCI), '62' (FCP) or '64' (FMD). Inside, each attribute is one
// primitive TLV:
//
//	'80'  body size in bytes
//	'81'  total allocated size
//	'82'  file descriptor: type and EF structure, optionally followed by
//	      a data coding byte, the maximum record size and the record count
//	'83'  file identifier
//	'84'  DF name (AID)
//	'85'  proprietary attributes (kept raw)
//	'86'  security attributes (kept raw, coding is card specific)
//	'8A'  life cycle status
//
// CREATE FILE takes the same '62' template as its command payload, which is
// why this file owns both directions of the conversion.

// fileControl maps the FCP attribute tags onto struct fields.
type fileControl struct {
	Size       []byte `tlv:"80"`
	TotalSize  []byte `tlv:"81"`
	Descriptor []byte `tlv:"82"`
	Identifier []byte `tlv:"83"`
	Name       []byte `tlv:"84"`
	PropAttr   []byte `tlv:"85"`
	SecAttr    []byte `tlv:"86"`
	LifeCycle  []byte `tlv:"8A"`
}

// ParseFCP interprets a SELECT response payload as a file description.
func ParseFCP(data []byte) (*File, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data cannot be parsed")
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("BER-TLV decode failed: %w", err)
	}

	// Unwrap the outer template when present. Some cards answer with the
	// bare attribute list instead.
	processing := packets
	if len(packets) > 0 && isControlTemplate(packets[0].Tag) {
		processing = packets[0].TLVs
	}

	var fc fileControl
	if err := tlv.UnmarshalFromPackets(processing, &fc); err != nil {
		return nil, fmt.Errorf("failed to map structure: %w", err)
	}

	file := &File{ACL: ACL{}}

	if len(fc.Identifier) == 2 {
		file.ID = uint16(fc.Identifier[0])<<8 | uint16(fc.Identifier[1])
	}
	switch {
	case len(fc.Size) > 0:
		file.Size = bigEndianInt(fc.Size)
	case len(fc.TotalSize) > 0:
		file.Size = bigEndianInt(fc.TotalSize)
	}

	if len(fc.Descriptor) > 0 {
		decodeDescriptor(fc.Descriptor, file)
	}

	file.Name = cloneBytes(fc.Name)
	file.PropAttr = cloneBytes(fc.PropAttr)
	file.SecAttr = cloneBytes(fc.SecAttr)

	if len(fc.LifeCycle) > 0 {
		file.Status = decodeLifeCycle(fc.LifeCycle[0])
	}

	return file, nil
}

func isControlTemplate(tag string) bool {
	return strings.EqualFold(tag, "6F") ||
		strings.EqualFold(tag, "62") ||
		strings.EqualFold(tag, "64")
}

// decodeDescriptor unpacks the '82' file descriptor.
//
// Byte 1 carries the category in bits 7-4 and the EF structure in bits
// 3-1 ('38' as a whole marks a DF). Byte 2, when present, is the data
// coding byte. Bytes 3-4 are the maximum record size and bytes 5(-6) the
// number of records.
func decodeDescriptor(d []byte, file *File) {
	fdb := d[0]

	switch (fdb >> 3) & 0x07 {
	case 0x00:
		file.Type = FileTypeWorkingEF
	case 0x01:
		file.Type = FileTypeInternalEF
	case 0x07:
		file.Type = FileTypeDF
	default:
		file.Type = FileTypeWorkingEF
	}

	if file.Type != FileTypeDF {
		file.Structure = EFStructure(fdb & 0x07)
	}

	switch {
	case len(d) >= 4:
		file.RecordLength = int(d[2])<<8 | int(d[3])
	case len(d) == 3:
		file.RecordLength = int(d[2])
	}
	switch {
	case len(d) >= 6:
		file.RecordCount = int(d[4])<<8 | int(d[5])
	case len(d) == 5:
		file.RecordCount = int(d[4])
	}
}

func decodeLifeCycle(v byte) FileStatus {
	switch v {
	case 0x01:
		return StatusCreation
	case 0x03:
		return StatusInitialisation
	case 0x05, 0x07:
		return StatusActivated
	case 0x04, 0x06:
		return StatusDeactivated
	}
	if v >= 0x0C {
		return StatusTerminated
	}
	return StatusUnknown
}

// EncodeFCP renders the file as the '62' template CREATE FILE expects.
func (f *File) EncodeFCP() ([]byte, error) {
	var fields []bertlv.TLV

	if f.Size > 0 || !f.IsDF() {
		if f.Size > 0xFFFF {
			return nil, fmt.Errorf("file size %d does not fit the 2-byte FCP field", f.Size)
		}
		fields = append(fields, bertlv.TLV{
			Tag:   "80",
			Value: []byte{byte(f.Size >> 8), byte(f.Size)},
		})
	}

	fields = append(fields, bertlv.TLV{Tag: "82", Value: f.encodeDescriptor()})
	fields = append(fields, bertlv.TLV{
		Tag:   "83",
		Value: []byte{byte(f.ID >> 8), byte(f.ID)},
	})

	if f.IsDF() && len(f.Name) > 0 {
		if len(f.Name) > MaxAIDLen {
			return nil, ErrAIDTooLong
		}
		fields = append(fields, bertlv.TLV{Tag: "84", Value: f.Name})
	}
	if len(f.PropAttr) > 0 {
		fields = append(fields, bertlv.TLV{Tag: "85", Value: f.PropAttr})
	}
	if len(f.SecAttr) > 0 {
		fields = append(fields, bertlv.TLV{Tag: "86", Value: f.SecAttr})
	}
	if f.Status != StatusUnknown {
		fields = append(fields, bertlv.TLV{Tag: "8A", Value: []byte{encodeLifeCycle(f.Status)}})
	}

	out, err := bertlv.Encode([]bertlv.TLV{{Tag: "62", TLVs: fields}})
	if err != nil {
		return nil, fmt.Errorf("FCP encode failed: %w", err)
	}
	return out, nil
}

func (f *File) encodeDescriptor() []byte {
	if f.IsDF() {
		return []byte{0x38}
	}

	fdb := byte(f.Structure) & 0x07
	if f.Type == FileTypeInternalEF {
		fdb |= 0x08
	}
	if f.RecordLength == 0 {
		return []byte{fdb}
	}

	d := []byte{fdb, 0x00, byte(f.RecordLength >> 8), byte(f.RecordLength)}
	if f.RecordCount > 0 {
		d = append(d, byte(f.RecordCount>>8), byte(f.RecordCount))
	}
	return d
}

func encodeLifeCycle(s FileStatus) byte {
	switch s {
	case StatusCreation:
		return 0x01
	case StatusInitialisation:
		return 0x03
	case StatusDeactivated:
		return 0x04
	case StatusTerminated:
		return 0x0C
	default:
		return 0x05
	}
}

func bigEndianInt(b []byte) int {
	// Oversized length fields would overflow; cap at 4 bytes which is
	// already far beyond any real card.
	if len(b) > 4 {
		b = b[len(b)-4:]
	}
	n := 0
	for _, v := range b {
		n = n<<8 | int(v)
	}
	return n
}

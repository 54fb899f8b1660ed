package iso7816

import (
	"fmt"

	"github.com/gregLibert/card-explorer/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// The INS byte identifies the specific command to be performed by the card.
//
// 1. Data Encoding (Bit 1):
//    When using the interindustry class, the least significant bit (Bit 1) often indicates
//    the format of the data field.
//    - 0: Standard or no specific formatting.
//    - 1: BER-TLV encoded data structure.
//    Example: READ BINARY (0xB0) vs READ BINARY (BER-TLV) (0xB1).
//
// 2. Reserved Ranges:
//    INS values where the upper nibble is '6' or '9' (0x6X or 0x9X) are invalid.
//    These values are reserved for Status Words (SW1) or transport layer control
//    procedures (ISO/IEC 7816-3).

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Standard Instruction (INS) codes as defined in ISO/IEC 7816-4.
const (
	INS_DEACTIVATE_FILE              InsCode = 0x04
	INS_ERASE_RECORD                 InsCode = 0x0C
	INS_ERASE_BINARY                 InsCode = 0x0E
	INS_ERASE_BINARY_BER             InsCode = 0x0F
	INS_PERFORM_SCQL_OPERATION       InsCode = 0x10
	INS_PERFORM_TRANSACTION_OPER     InsCode = 0x12
	INS_PERFORM_USER_OPERATION       InsCode = 0x14
	INS_VERIFY                       InsCode = 0x20
	INS_VERIFY_BER                   InsCode = 0x21
	INS_MANAGE_SECURITY_ENVIRONMENT  InsCode = 0x22
	INS_CHANGE_REFERENCE_DATA        InsCode = 0x24
	INS_DISABLE_VERIF_REQ            InsCode = 0x26
	INS_ENABLE_VERIF_REQ             InsCode = 0x28
	INS_PERFORM_SECURITY_OPERATION   InsCode = 0x2A
	INS_RESET_RETRY_COUNTER          InsCode = 0x2C
	INS_ACTIVATE_FILE                InsCode = 0x44
	INS_GENERATE_ASYMMETRIC_KEY_PAIR InsCode = 0x46
	INS_MANAGE_CHANNEL               InsCode = 0x70
	INS_EXTERNAL_AUTHENTICATE        InsCode = 0x82
	INS_GET_CHALLENGE                InsCode = 0x84
	INS_GENERAL_AUTHENTICATE         InsCode = 0x86
	INS_GENERAL_AUTHENTICATE_BER     InsCode = 0x87
	INS_INTERNAL_AUTHENTICATE        InsCode = 0x88
	INS_SEARCH_BINARY                InsCode = 0xA0
	INS_SEARCH_BINARY_BER            InsCode = 0xA1
	INS_SEARCH_RECORD                InsCode = 0xA2
	INS_SELECT                       InsCode = 0xA4
	INS_READ_BINARY                  InsCode = 0xB0
	INS_READ_BINARY_BER              InsCode = 0xB1
	INS_READ_RECORD                  InsCode = 0xB2
	INS_READ_RECORD_BER              InsCode = 0xB3
	INS_GET_RESPONSE                 InsCode = 0xC0
	INS_ENVELOPE                     InsCode = 0xC2
	INS_ENVELOPE_BER                 InsCode = 0xC3
	INS_GET_DATA                     InsCode = 0xCA
	INS_GET_DATA_BER                 InsCode = 0xCB
	INS_WRITE_BINARY                 InsCode = 0xD0
	INS_WRITE_BINARY_BER             InsCode = 0xD1
	INS_WRITE_RECORD                 InsCode = 0xD2
	INS_UPDATE_BINARY                InsCode = 0xD6
	INS_UPDATE_BINARY_BER            InsCode = 0xD7
	INS_PUT_DATA                     InsCode = 0xDA
	INS_PUT_DATA_BER                 InsCode = 0xDB
	INS_UPDATE_RECORD                InsCode = 0xDC
	INS_UPDATE_RECORD_BER            InsCode = 0xDD
	INS_CREATE_FILE                  InsCode = 0xE0
	INS_APPEND_RECORD                InsCode = 0xE2
	INS_DELETE_FILE                  InsCode = 0xE4
	INS_TERMINATE_DF                 InsCode = 0xE6
	INS_TERMINATE_EF                 InsCode = 0xE8
	INS_TERMINATE_CARD_USAGE         InsCode = 0xFE
)

// Name returns the standard ISO command name for the instruction code.
func (i InsCode) Name() string {
	switch i {
	case INS_DEACTIVATE_FILE:
		return "DEACTIVATE FILE"
	case INS_ERASE_RECORD:
		return "ERASE RECORD"
	case INS_ERASE_BINARY, INS_ERASE_BINARY_BER:
		return "ERASE BINARY"
	case INS_PERFORM_SCQL_OPERATION:
		return "PERFORM SCQL OPERATION"
	case INS_PERFORM_TRANSACTION_OPER:
		return "PERFORM TRANSACTION OPERATION"
	case INS_PERFORM_USER_OPERATION:
		return "PERFORM USER OPERATION"
	case INS_VERIFY, INS_VERIFY_BER:
		return "VERIFY"
	case INS_MANAGE_SECURITY_ENVIRONMENT:
		return "MANAGE SECURITY ENVIRONMENT"
	case INS_CHANGE_REFERENCE_DATA:
		return "CHANGE REFERENCE DATA"
	case INS_DISABLE_VERIF_REQ:
		return "DISABLE VERIFICATION REQUIREMENT"
	case INS_ENABLE_VERIF_REQ:
		return "ENABLE VERIFICATION REQUIREMENT"
	case INS_PERFORM_SECURITY_OPERATION:
		return "PERFORM SECURITY OPERATION"
	case INS_RESET_RETRY_COUNTER:
		return "RESET RETRY COUNTER"
	case INS_ACTIVATE_FILE:
		return "ACTIVATE FILE"
	case INS_GENERATE_ASYMMETRIC_KEY_PAIR:
		return "GENERATE ASYMMETRIC KEY PAIR"
	case INS_MANAGE_CHANNEL:
		return "MANAGE CHANNEL"
	case INS_EXTERNAL_AUTHENTICATE:
		return "EXTERNAL AUTHENTICATE"
	case INS_GET_CHALLENGE:
		return "GET CHALLENGE"
	case INS_GENERAL_AUTHENTICATE, INS_GENERAL_AUTHENTICATE_BER:
		return "GENERAL AUTHENTICATE"
	case INS_INTERNAL_AUTHENTICATE:
		return "INTERNAL AUTHENTICATE"
	case INS_SEARCH_BINARY, INS_SEARCH_BINARY_BER:
		return "SEARCH BINARY"
	case INS_SEARCH_RECORD:
		return "SEARCH RECORD"
	case INS_SELECT:
		return "SELECT"
	case INS_READ_BINARY, INS_READ_BINARY_BER:
		return "READ BINARY"
	case INS_READ_RECORD, INS_READ_RECORD_BER:
		return "READ RECORD"
	case INS_GET_RESPONSE:
		return "GET RESPONSE"
	case INS_ENVELOPE, INS_ENVELOPE_BER:
		return "ENVELOPE"
	case INS_GET_DATA, INS_GET_DATA_BER:
		return "GET DATA"
	case INS_WRITE_BINARY, INS_WRITE_BINARY_BER:
		return "WRITE BINARY"
	case INS_WRITE_RECORD:
		return "WRITE RECORD"
	case INS_UPDATE_BINARY, INS_UPDATE_BINARY_BER:
		return "UPDATE BINARY"
	case INS_PUT_DATA, INS_PUT_DATA_BER:
		return "PUT DATA"
	case INS_UPDATE_RECORD, INS_UPDATE_RECORD_BER:
		return "UPDATE RECORD"
	case INS_CREATE_FILE:
		return "CREATE FILE"
	case INS_APPEND_RECORD:
		return "APPEND RECORD"
	case INS_DELETE_FILE:
		return "DELETE FILE"
	case INS_TERMINATE_DF:
		return "TERMINATE DF"
	case INS_TERMINATE_EF:
		return "TERMINATE EF"
	case INS_TERMINATE_CARD_USAGE:
		return "TERMINATE CARD USAGE"
	default:
		return fmt.Sprintf("UNKNOWN (0x%02X)", byte(i))
	}
}

// Instruction represents the parsed ISO 7816-4 Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction creates an Instruction object with validation.
// It rejects '6X' and '9X' values as they are invalid according to ISO 7816-3.
func NewInstruction(ins InsCode) (Instruction, error) {
	// Validation: values starting with '6' or '9' are invalid for INS.
	highNibble := byte(ins) & 0xF0
	if highNibble == 0x60 || highNibble == 0x90 {
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", ins)
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1), // Bit 1 indicates BER-TLV preference
	}, nil
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	format := "Standard"
	if i.IsBERTLV {
		format = "BER-TLV"
	}
	return fmt.Sprintf("INS: 0x%02X | Command: %s | Format: %s", byte(i.Raw), i.Raw.Name(), format)
}

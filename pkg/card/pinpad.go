package card

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gregLibert/card-explorer/pkg/iso7816"
)

// PIN PAD READERS (PC/SC part 10):
// Readers with their own keypad collect the PIN themselves so the code
// never crosses the host. The interface is vendor-neutral: a GET_FEATURE
// control call returns a TLV list mapping feature tags to reader-specific
// control codes, and the verify/modify features each take a fixed header
// describing the entry session followed by the command APDU the reader
// completes and sends.
//
// The reader answers with a status word. Genuine card words pass through
// unchanged; the reader itself reports entry problems in the '64XX'
// space (timeout, cancel, mismatch).

// Controller is the reader control channel a PinPad drives. A connected
// PC/SC card handle satisfies it.
type Controller interface {
	Control(ioctl uint32, in []byte) ([]byte, error)
}

// ErrNoPinPad is reported when a PIN entry is deferred to the reader but
// the reader advertises no pin pad features.
var ErrNoPinPad = errors.New("reader has no pin pad")

const (
	// scardCtlBase is the pcsclite SCARD_CTL_CODE(0) value; control codes
	// are offsets from it.
	scardCtlBase uint32 = 0x42000000

	cmIoctlGetFeatureRequest = scardCtlBase + 3400

	featureVerifyPinDirect byte = 0x06
	featureModifyPinDirect byte = 0x07
)

// Reader-side status words for pad entry sessions.
const (
	SWPinPadTimeout   iso7816.StatusWord = 0x6400
	SWPinPadCancelled iso7816.StatusWord = 0x6401
	SWPinPadMismatch  iso7816.StatusWord = 0x6402
	SWPinPadTooShort  iso7816.StatusWord = 0x6403
)

// PinPad drives PIN entry on a part-10 capable reader.
type PinPad struct {
	ctrl   Controller
	verify uint32
	modify uint32
}

// DetectPinPad queries the reader's feature list. It returns nil (with
// no error) when the reader offers no direct PIN verification; control
// failures usually just mean the driver does not implement the query and
// are treated the same way.
func DetectPinPad(ctrl Controller) *PinPad {
	if ctrl == nil {
		return nil
	}
	out, err := ctrl.Control(cmIoctlGetFeatureRequest, nil)
	if err != nil {
		return nil
	}

	features := parseFeatureList(out)
	verify, ok := features[featureVerifyPinDirect]
	if !ok {
		return nil
	}
	return &PinPad{
		ctrl:   ctrl,
		verify: verify,
		modify: features[featureModifyPinDirect],
	}
}

// parseFeatureList walks the tag/length/control-code triples of a
// GET_FEATURE response. The control code is a 4-byte big endian value.
func parseFeatureList(data []byte) map[byte]uint32 {
	features := make(map[byte]uint32)
	for i := 0; i+2 <= len(data); {
		tag, length := data[i], int(data[i+1])
		i += 2
		if i+length > len(data) {
			break
		}
		if length == 4 {
			features[tag] = binary.BigEndian.Uint32(data[i : i+4])
		}
		i += length
	}
	return features
}

// SupportsModify reports whether the reader can also run change/unblock
// entry sessions.
func (p *PinPad) SupportsModify() bool {
	return p != nil && p.modify != 0
}

// Verify runs one PIN entry session on the pad. cmd is the VERIFY
// command the reader completes with the collected digits and forwards to
// the card. The returned status word is the card's answer, or one of the
// SWPinPad codes when the session itself failed.
func (p *PinPad) Verify(cmd *iso7816.CommandAPDU) (iso7816.StatusWord, error) {
	if p == nil {
		return 0, ErrNoPinPad
	}
	raw, err := cmd.Bytes()
	if err != nil {
		return 0, err
	}
	return p.control(p.verify, verifyBlock(raw))
}

// Modify runs a change/unblock entry session. promptOld makes the pad
// collect the current value before the new one; the new value is always
// entered twice for confirmation. When the template already carries data
// (a host-supplied resetting code) the pad is told to insert the
// collected value after it.
func (p *PinPad) Modify(cmd *iso7816.CommandAPDU, promptOld bool) (iso7816.StatusWord, error) {
	if !p.SupportsModify() {
		return 0, ErrNoPinPad
	}
	raw, err := cmd.Bytes()
	if err != nil {
		return 0, err
	}
	var offsetNew byte
	if !promptOld {
		offsetNew = byte(len(cmd.Data))
	}
	return p.control(p.modify, modifyBlock(raw, promptOld, offsetNew))
}

func (p *PinPad) control(ioctl uint32, block []byte) (iso7816.StatusWord, error) {
	out, err := p.ctrl.Control(ioctl, block)
	if err != nil {
		return 0, fmt.Errorf("pin pad control failed: %w", err)
	}
	if len(out) < 2 {
		return 0, fmt.Errorf("pin pad returned %d bytes, want a status word", len(out))
	}
	return iso7816.NewStatusWord(out[len(out)-2], out[len(out)-1]), nil
}

// Shared entry session parameters: ASCII digits typed straight into the
// command body, 4 to 8 of them, terminated by the validation key, one
// display message in en-US.
const (
	padFormatASCII    byte = 0x82
	padMinDigits      byte = 0x04
	padMaxDigits      byte = 0x08
	padValidationKey  byte = 0x02
	padLangID              = 0x0409
	padConfirmNew     byte = 0x01
	padConfirmWithOld byte = 0x03
)

// verifyBlock lays out a PIN_VERIFY structure followed by the APDU. All
// multi-byte fields are little endian per part 10.
func verifyBlock(apdu []byte) []byte {
	b := make([]byte, 0, 19+len(apdu))
	b = append(b,
		0x00,           // bTimerOut
		0x00,           // bTimerOut2
		padFormatASCII, // bmFormatString
		0x00,           // bmPINBlockString
		0x00,           // bmPINLengthFormat
		padMinDigits, padMaxDigits, // wPINMaxExtraDigit
		padValidationKey, // bEntryValidationCondition
		0x01,             // bNumberMessage
		byte(padLangID&0xFF), byte(padLangID>>8), // wLangId
		0x00,             // bMsgIndex
		0x00, 0x00, 0x00, // bTeoPrologue
	)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(apdu)))
	return append(b, apdu...)
}

// modifyBlock lays out a PIN_MODIFY structure followed by the APDU.
// offsetNew positions the collected value within the template's data
// field, counted in bytes from its start.
func modifyBlock(apdu []byte, promptOld bool, offsetNew byte) []byte {
	confirm := padConfirmNew
	messages := byte(0x02)
	if promptOld {
		confirm = padConfirmWithOld
		messages = 0x03
	}

	b := make([]byte, 0, 24+len(apdu))
	b = append(b,
		0x00,           // bTimerOut
		0x00,           // bTimerOut2
		padFormatASCII, // bmFormatString
		0x00,           // bmPINBlockString
		0x00,           // bmPINLengthFormat
		0x00,           // bInsertionOffsetOld
		offsetNew,      // bInsertionOffsetNew
		padMinDigits, padMaxDigits, // wPINMaxExtraDigit
		confirm,          // bConfirmPIN
		padValidationKey, // bEntryValidationCondition
		messages,         // bNumberMessage
		byte(padLangID&0xFF), byte(padLangID>>8), // wLangId
		0x00,             // bMsgIndex1
		0x01,             // bMsgIndex2
		0x02,             // bMsgIndex3
		0x00, 0x00, 0x00, // bTeoPrologue
	)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(apdu)))
	return append(b, apdu...)
}

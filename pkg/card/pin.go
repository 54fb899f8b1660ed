package card

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gregLibert/card-explorer/pkg/iso7816"
)

// PIN HANDLING (ISO 7816-4):
// VERIFY presents a secret and unlocks the matching security status.
// CHANGE REFERENCE DATA replaces the secret, optionally presenting the
// old one in the same exchange. RESET RETRY COUNTER restores the retry
// budget of a blocked secret, optionally presenting a resetting code
// (PUK) and/or installing a new value.
//
// All three address the secret through a one-byte reference in P2. What
// a given number means is the card's business; the PinType only records
// how the user named the secret.

var (
	ErrInvalidPinType      = errors.New("invalid PIN type")
	ErrInvalidPinReference = errors.New("invalid PIN reference")
)

// PinType is the naming scheme of a secret reference.
type PinType byte

const (
	// PinTypeCHV is a card holder verification code, a regular PIN.
	PinTypeCHV PinType = iota
	// PinTypeAuth is an authentication key (named KEY or AUT).
	PinTypeAuth
	// PinTypePro is a secure messaging key.
	PinTypePro
)

func (t PinType) String() string {
	switch t {
	case PinTypeCHV:
		return "CHV"
	case PinTypeAuth:
		return "AUT"
	case PinTypePro:
		return "PRO"
	default:
		return fmt.Sprintf("PIN type %d", byte(t))
	}
}

// PinReference names one secret on the card.
type PinReference struct {
	Type   PinType
	Number int
}

func (r PinReference) String() string {
	return fmt.Sprintf("%s%d", r.Type, r.Number)
}

// ParsePinReference reads tokens of the form <type><number> with no
// separator: "CHV1", "KEY0", "AUT3", "PRO2". The type tag is matched
// case-insensitively.
func ParsePinReference(token string) (PinReference, error) {
	if len(token) < 3 {
		return PinReference{}, ErrInvalidPinType
	}

	var typ PinType
	switch strings.ToUpper(token[:3]) {
	case "CHV":
		typ = PinTypeCHV
	case "KEY", "AUT":
		typ = PinTypeAuth
	case "PRO":
		typ = PinTypePro
	default:
		return PinReference{}, ErrInvalidPinType
	}

	n, err := strconv.Atoi(token[3:])
	if err != nil {
		return PinReference{}, ErrInvalidPinReference
	}
	return PinReference{Type: typ, Number: n}, nil
}

// VerifyPin presents pin against the referenced secret. A wrong code
// surfaces as *PinError carrying the retry counter when the card
// disclosed one.
func (c *Card) VerifyPin(ref PinReference, pin []byte) error {
	resp, err := c.client.Send(iso7816.Verify(c.cla, byte(ref.Number), pin))
	if err != nil {
		return err
	}
	return pinStatusToError(resp.Status)
}

// ChangePin replaces the referenced secret. An empty current value asks
// the card to install the new one without prior verification.
func (c *Card) ChangePin(ref PinReference, current, replacement []byte) error {
	resp, err := c.client.Send(iso7816.ChangeReferenceData(c.cla, byte(ref.Number), current, replacement))
	if err != nil {
		return err
	}
	return pinStatusToError(resp.Status)
}

// UnblockPin resets the referenced secret's retry counter. Either value
// may be empty: an empty resetting code skips PUK presentation, an empty
// replacement keeps the old PIN value.
func (c *Card) UnblockPin(ref PinReference, resetting, replacement []byte) error {
	resp, err := c.client.Send(iso7816.ResetRetryCounter(c.cla, byte(ref.Number), resetting, replacement))
	if err != nil {
		return err
	}
	return pinStatusToError(resp.Status)
}

// VerifyPinPad runs VERIFY with the code collected on the reader's pin
// pad instead of supplied by the host.
func (c *Card) VerifyPinPad(pad *PinPad, ref PinReference) error {
	sw, err := pad.Verify(iso7816.Verify(c.cla, byte(ref.Number), nil))
	if err != nil {
		return err
	}
	return pinStatusToError(sw)
}

// ChangePinPad runs CHANGE REFERENCE DATA with both the current and the
// new value collected on the pad.
func (c *Card) ChangePinPad(pad *PinPad, ref PinReference) error {
	ins, _ := iso7816.NewInstruction(iso7816.INS_CHANGE_REFERENCE_DATA)
	cmd := iso7816.NewCommandAPDU(c.cla, ins, 0x00, byte(ref.Number), nil, 0)

	sw, err := pad.Modify(cmd, true)
	if err != nil {
		return err
	}
	return pinStatusToError(sw)
}

// UnblockPinPad runs RESET RETRY COUNTER with the new value collected on
// the pad. With collectPuk set the pad asks for the resetting code too
// and puk is ignored; otherwise a non-empty puk travels in the command
// body and an empty one means the unblock installs a new value without
// PUK presentation.
func (c *Card) UnblockPinPad(pad *PinPad, ref PinReference, puk []byte, collectPuk bool) error {
	ins, _ := iso7816.NewInstruction(iso7816.INS_RESET_RETRY_COUNTER)

	var cmd *iso7816.CommandAPDU
	promptOld := false
	switch {
	case collectPuk:
		cmd = iso7816.NewCommandAPDU(c.cla, ins, 0x00, byte(ref.Number), nil, 0)
		promptOld = true
	case len(puk) > 0:
		cmd = iso7816.NewCommandAPDU(c.cla, ins, 0x00, byte(ref.Number), puk, 0)
	default:
		cmd = iso7816.NewCommandAPDU(c.cla, ins, 0x02, byte(ref.Number), nil, 0)
	}

	sw, err := pad.Modify(cmd, promptOld)
	if err != nil {
		return err
	}
	return pinStatusToError(sw)
}

package explorer

import (
	"errors"
	"fmt"

	"github.com/gregLibert/card-explorer/pkg/card"
	"github.com/gregLibert/card-explorer/pkg/hexutil"
)

// pinMaterial reads a key argument: quoted text becomes literal bytes
// truncated to max, anything else is decoded as hex.
func (s *Session) pinMaterial(tok token, max int) ([]byte, error) {
	if tok.quoted {
		b := []byte(tok.text)
		if len(b) > max {
			b = b[:max]
		}
		return b, nil
	}
	data, err := hexutil.DecodeString(tok.text, max)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid key value.\n")
		return nil, err
	}
	return data, nil
}

// reportReference prints the message for a reference that failed to
// parse, or did parse but names a key type the command does not take.
func (s *Session) reportReference(err error) error {
	if errors.Is(err, card.ErrInvalidPinReference) {
		fmt.Fprintf(s.out, "Invalid key reference.\n")
		return err
	}
	fmt.Fprintf(s.out, "Invalid type.\n")
	if err == nil {
		err = card.ErrInvalidPinType
	}
	return err
}

func (s *Session) verifyUsage() {
	fmt.Fprintf(s.out, "Usage: verify <key type><key ref> [<key in hex>]\n")
	fmt.Fprintf(s.out, "Possible values of <key type>:\n")
	for _, t := range []string{"CHV", "KEY", "AUT", "PRO"} {
		fmt.Fprintf(s.out, "\t%s\n", t)
	}
	fmt.Fprintf(s.out, "Example: verify CHV2 31:32:33:34:00:00:00:00\n")
	fmt.Fprintf(s.out, "If key is omitted, card reader's keypad will be used to collect PIN.\n")
}

func (s *Session) cmdVerify(args []token) error {
	if len(args) < 1 || len(args) > 2 {
		s.verifyUsage()
		return errUsage
	}
	ref, err := card.ParsePinReference(args[0].text)
	if err != nil {
		err = s.reportReference(err)
		s.verifyUsage()
		return err
	}

	if len(args) < 2 {
		if s.pad == nil {
			fmt.Fprintf(s.out, "Card reader or driver doesn't support PIN PAD\n")
			return card.ErrNoPinPad
		}
		fmt.Fprintf(s.out, "Please enter PIN on the reader's pin pad.\n")
		err = s.card.VerifyPinPad(s.pad, ref)
	} else {
		pin, perr := s.pinMaterial(args[1], 64)
		if perr != nil {
			s.verifyUsage()
			return perr
		}
		err = s.card.VerifyPin(ref, pin)
	}

	if err != nil {
		var pe *card.PinError
		if errors.As(err, &pe) {
			if pe.Retries >= 0 {
				fmt.Fprintf(s.out, "Incorrect code, %d tries left.\n", pe.Retries)
			} else {
				fmt.Fprintf(s.out, "Incorrect code.\n")
			}
		} else {
			fmt.Fprintf(s.out, "Unable to verify PIN code: %s\n", err)
		}
		return err
	}
	fmt.Fprintf(s.out, "Code correct.\n")
	return nil
}

func (s *Session) changeUsage() {
	fmt.Fprintf(s.out, "Usage: change CHV<pin ref> [[<old pin>] <new pin>]\n")
	fmt.Fprintf(s.out, "Examples: \n")
	fmt.Fprintf(s.out, "\tChange PIN: change CHV2 00:00:00:00:00:00 \"foobar\"\n")
	fmt.Fprintf(s.out, "\tSet PIN: change CHV2 \"foobar\"\n")
	fmt.Fprintf(s.out, "\tChange PIN with pinpad': change CHV2\n")
}

func (s *Session) cmdChange(args []token) error {
	if len(args) < 1 || len(args) > 3 {
		s.changeUsage()
		return errUsage
	}
	ref, err := card.ParsePinReference(args[0].text)
	if err != nil || ref.Type != card.PinTypeCHV {
		err = s.reportReference(err)
		s.changeUsage()
		return err
	}

	var oldPin, newPin []byte
	if len(args) == 3 {
		oldPin, err = s.pinMaterial(args[1], 30)
		if err != nil {
			s.changeUsage()
			return err
		}
	}
	if len(args) >= 2 {
		newPin, err = s.pinMaterial(args[len(args)-1], 30)
		if err != nil {
			s.changeUsage()
			return err
		}
	}

	if len(args) == 1 && s.pad != nil {
		err = s.card.ChangePinPad(s.pad, ref)
	} else {
		err = s.card.ChangePin(ref, oldPin, newPin)
	}
	if err != nil {
		var pe *card.PinError
		if errors.As(err, &pe) {
			if pe.Retries >= 0 {
				fmt.Fprintf(s.out, "Incorrect code, %d tries left.\n", pe.Retries)
			} else {
				fmt.Fprintf(s.out, "Incorrect code.\n")
			}
		}
		fmt.Fprintf(s.out, "Unable to change PIN code: %s\n", err)
		return err
	}
	fmt.Fprintf(s.out, "PIN changed.\n")
	return nil
}

func (s *Session) unblockUsage() {
	fmt.Fprintf(s.out, "Usage: unblock CHV<pin ref> [<puk>] [<new pin>]\n")
	fmt.Fprintf(s.out, "PUK and PIN values can be hexadecimal, ASCII, empty (\"\") or absent\n")
	fmt.Fprintf(s.out, "Examples:\n")
	fmt.Fprintf(s.out, "\tUnblock PIN and set a new value:   unblock CHV2 00:00:00:00:00:00 \"foobar\"\n")
	fmt.Fprintf(s.out, "\tUnblock PIN keeping the old value: unblock CHV2 00:00:00:00:00:00 \"\"\n")
	fmt.Fprintf(s.out, "\tSet new PIN value:                 unblock CHV2 \"\" \"foobar\"\n")
	fmt.Fprintf(s.out, "Examples with pinpad:\n")
	fmt.Fprintf(s.out, "\tUnblock PIN: new PIN value is prompted by pinpad:                   unblock CHV2 00:00:00:00:00:00\n")
	fmt.Fprintf(s.out, "\tSet PIN: new PIN value is prompted by pinpad:                       unblock CHV2 \"\"\n")
	fmt.Fprintf(s.out, "\tUnblock PIN: unblock code and new PIN value are prompted by pinpad: unblock CHV2\n")
}

func (s *Session) cmdUnblock(args []token) error {
	if len(args) < 1 || len(args) > 3 {
		s.unblockUsage()
		return errUsage
	}
	ref, err := card.ParsePinReference(args[0].text)
	if err != nil || ref.Type != card.PinTypeCHV {
		err = s.reportReference(err)
		s.unblockUsage()
		return err
	}

	pukGiven := len(args) >= 2
	newGiven := len(args) >= 3

	var puk, newPin []byte
	if pukGiven {
		puk, err = s.pinMaterial(args[1], 30)
		if err != nil {
			s.unblockUsage()
			return err
		}
	}
	if newGiven {
		newPin, err = s.pinMaterial(args[2], 30)
		if err != nil {
			s.unblockUsage()
			return err
		}
	}

	// Without an explicit new value the pad collects it. The unblock
	// code is still taken from the command line when present; an empty
	// value means the card unblocks without one.
	if !newGiven && s.pad != nil {
		err = s.card.UnblockPinPad(s.pad, ref, puk, !pukGiven)
	} else {
		err = s.card.UnblockPin(ref, puk, newPin)
	}
	if err != nil {
		var pe *card.PinError
		if errors.As(err, &pe) {
			fmt.Fprintf(s.out, "Incorrect code.\n")
		}
		fmt.Fprintf(s.out, "Unable to unblock PIN code: %s\n", err)
		return err
	}
	fmt.Fprintf(s.out, "PIN unblocked.\n")
	return nil
}

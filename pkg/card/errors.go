package card

import (
	"errors"
	"fmt"

	"github.com/gregLibert/card-explorer/pkg/iso7816"
)

// The ISO status word space is wide but commands care about a handful of
// outcomes. Those are surfaced as sentinel errors so callers can branch
// with errors.Is; everything else stays a StatusError carrying the raw
// word.
var (
	ErrNotFound       = errors.New("file not found")
	ErrRecordNotFound = errors.New("record not found")
	// ErrSecurityStatus means the card refused the operation until an
	// access condition is satisfied.
	ErrSecurityStatus = errors.New("security status not satisfied")
	ErrNotSupported   = errors.New("not supported")
)

// StatusError reports a command the card answered with a non-success
// status word.
type StatusError struct {
	Status iso7816.StatusWord
}

func (e *StatusError) Error() string {
	return e.Status.Verbose()
}

// Unwrap maps well-known status words onto the sentinel errors above.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case iso7816.SW_ERR_FILE_NOT_FOUND:
		return ErrNotFound
	case iso7816.SW_ERR_RECORD_NOT_FOUND:
		return ErrRecordNotFound
	case iso7816.SW_ERR_SECURITY_STATUS_NOT_SAT:
		return ErrSecurityStatus
	case iso7816.SW_ERR_FUNC_NOT_SUPPORTED, iso7816.SW_ERR_INS_INVALID:
		return ErrNotSupported
	}
	return nil
}

// PinError reports a PIN presented to the card and rejected. Retries is
// the remaining-attempts counter when the card disclosed one ('63CX'),
// -1 otherwise.
type PinError struct {
	Retries int
}

func (e *PinError) Error() string {
	if e.Retries >= 0 {
		return fmt.Sprintf("PIN incorrect, %d tries left", e.Retries)
	}
	return "PIN incorrect"
}

// LengthError reports a transfer that moved fewer bytes than requested
// where that is not a legitimate end-of-data signal.
type LengthError struct {
	Expected int
	Got      int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("expected %d bytes, got %d", e.Expected, e.Got)
}

// statusToError converts a response status into the matching error,
// nil for success. End-of-file warnings are not failures: the data that
// did arrive is still valid and the caller accounts for the length.
func statusToError(sw iso7816.StatusWord) error {
	if sw.IsSuccess() || sw == iso7816.SW_WARN_EOF_REACHED {
		return nil
	}
	return &StatusError{Status: sw}
}

// pinStatusToError is statusToError specialised for PIN commands, where
// '63CX' and '6300' mean a wrong code rather than a generic warning.
func pinStatusToError(sw iso7816.StatusWord) error {
	if n, ok := sw.RetryCount(); ok {
		return &PinError{Retries: n}
	}
	if sw == iso7816.SW_WARN_NV_CHANGED_NO_INFO {
		return &PinError{Retries: -1}
	}
	return statusToError(sw)
}

// Package card implements the ISO 7816-4 file system operations an
// explorer needs on top of the wire-level iso7816 package: selection by
// identifier, path or DF name, transparent and record-oriented reads and
// writes, file management, data objects and PIN handling.
//
// The package keeps no navigation state. Every call addresses whatever
// the card currently has selected; callers that care about a working
// directory re-select it themselves.
package card

import (
	"fmt"
	"log/slog"

	"github.com/gregLibert/card-explorer/pkg/iso7816"
)

// Card issues file system commands over one connected smart card.
type Card struct {
	client *iso7816.Client
	cla    iso7816.Class
	log    *slog.Logger

	// Quirks adjust strict ISO behavior for known card families.
	Quirks Quirks
}

// NewCard wraps a transport in a Card speaking plain first-interindustry
// APDUs. A nil logger falls back to slog.Default().
func NewCard(transport iso7816.Transmitter, log *slog.Logger) *Card {
	if log == nil {
		log = slog.Default()
	}
	cla, _ := iso7816.NewClass(0x00)
	return &Card{
		client: iso7816.NewClient(transport, log),
		cla:    cla,
		log:    log,
	}
}

// Select opens the file addressed by p and returns its description.
//
// A DF name path selects the application directly. An absolute path is
// sent relative to the MF, with the '3F00' prefix stripped the way the
// SELECT path form expects. An identifier chain is walked one component
// at a time, opening the chain's application first when the path hangs
// under an AID.
func (c *Card) Select(p Path) (*File, error) {
	var (
		resp *iso7816.ResponseAPDU
		err  error
	)

	switch p.Kind {
	case PathKindDFName:
		resp, err = c.selectOne(iso7816.SelectByDFName, p.Value)

	case PathKindAbsolute:
		value := p.Value
		if len(value) == 2 && p.ID() == MasterFileID {
			resp, err = c.selectOne(iso7816.SelectByFileID, value)
			break
		}
		if len(value) > 2 && uint16(value[0])<<8|uint16(value[1]) == MasterFileID {
			value = value[2:]
		}
		resp, err = c.selectOne(iso7816.SelectPathFromMF, value)

	case PathKindFileID:
		if len(p.AID) > 0 {
			if _, err = c.selectOne(iso7816.SelectByDFName, p.AID); err != nil {
				return nil, err
			}
		}
		comps := p.Components()
		if len(comps) == 0 {
			return nil, fmt.Errorf("cannot select an empty path")
		}
		for _, comp := range comps {
			if resp, err = c.selectOne(iso7816.SelectByFileID, comp); err != nil {
				break
			}
		}

	default:
		return nil, fmt.Errorf("cannot select a %s path", p.Kind)
	}
	if err != nil {
		return nil, err
	}

	file := c.fileFromSelect(resp.Data)
	file.Path = p
	if file.ID == 0 {
		file.ID = p.ID()
	}
	return file, nil
}

func (c *Card) selectOne(method iso7816.SelectionMethod, data []byte) (*iso7816.ResponseAPDU, error) {
	cmd := iso7816.NewSelectCommand(c.cla, method, iso7816.FirstOrOnlyOccurrence, iso7816.ReturnFCI, data)
	resp, err := c.client.Send(cmd)
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.Status); err != nil {
		return nil, err
	}
	return resp, nil
}

// fileFromSelect builds a File from a SELECT response body. Cards are
// free to answer with nothing, or with proprietary bytes the template
// parser rejects; selection still succeeded in both cases.
func (c *Card) fileFromSelect(data []byte) *File {
	if len(data) == 0 {
		return &File{ACL: ACL{}}
	}
	file, err := ParseFCP(data)
	if err != nil {
		c.log.Debug("select response not a control template", "error", err)
		return &File{ACL: ACL{}}
	}
	return file
}

// ReadBinary reads up to le bytes at offset from the selected
// transparent EF. The returned slice may be shorter than le; the caller
// decides whether that is acceptable.
func (c *Card) ReadBinary(offset, le int) ([]byte, error) {
	if offset < 0 || offset > iso7816.MaxBinaryOffset {
		return nil, fmt.Errorf("offset %d outside the 15-bit READ BINARY range", offset)
	}
	resp, err := c.client.Send(iso7816.ReadBinary(c.cla, uint16(offset), le))
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.Status); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdateBinary overwrites len(data) bytes at offset in the selected
// transparent EF and returns the count written.
func (c *Card) UpdateBinary(offset int, data []byte) (int, error) {
	if offset < 0 || offset > iso7816.MaxBinaryOffset {
		return 0, fmt.Errorf("offset %d outside the 15-bit UPDATE BINARY range", offset)
	}
	resp, err := c.client.Send(iso7816.UpdateBinary(c.cla, uint16(offset), data))
	if err != nil {
		return 0, err
	}
	if err := statusToError(resp.Status); err != nil {
		return 0, err
	}
	return len(data), nil
}

// ReadRecord fetches one record by number. A zero sfi addresses the
// selected file, 1..30 address a sibling EF by short identifier.
// The record-not-found status maps onto ErrRecordNotFound, which record
// loops use as their end marker.
func (c *Card) ReadRecord(sfi, rec byte) ([]byte, error) {
	resp, err := c.client.Send(iso7816.ReadRecord(c.cla, sfi, rec))
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.Status); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// UpdateRecord rewrites one record of the selected file and returns the
// count written.
func (c *Card) UpdateRecord(rec byte, data []byte) (int, error) {
	resp, err := c.client.Send(iso7816.UpdateRecord(c.cla, 0, rec, data))
	if err != nil {
		return 0, err
	}
	if err := statusToError(resp.Status); err != nil {
		return 0, err
	}
	return len(data), nil
}

// CreateFile creates the file f describes inside the selected DF. Some
// cards leave the new file selected afterwards; callers must re-select
// their working directory.
func (c *Card) CreateFile(f *File) error {
	fcp, err := f.EncodeFCP()
	if err != nil {
		return err
	}
	resp, err := c.client.Send(iso7816.CreateFile(c.cla, fcp))
	if err != nil {
		return err
	}
	return statusToError(resp.Status)
}

// DeleteFile removes a child of the selected DF by identifier.
func (c *Card) DeleteFile(id uint16) error {
	resp, err := c.client.Send(iso7816.DeleteFile(c.cla, []byte{byte(id >> 8), byte(id)}))
	if err != nil {
		return err
	}
	return statusToError(resp.Status)
}

// ListFiles asks the card for the identifiers of the selected DF's
// children. The command is a de facto convention rather than ISO, so
// plenty of cards reject it.
func (c *Card) ListFiles() ([]uint16, error) {
	resp, err := c.client.Send(iso7816.ListFiles())
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.Status); err != nil {
		return nil, err
	}

	ids := make([]uint16, 0, len(resp.Data)/2)
	for i := 0; i+2 <= len(resp.Data); i += 2 {
		ids = append(ids, uint16(resp.Data[i])<<8|uint16(resp.Data[i+1]))
	}
	return ids, nil
}

// GetChallenge asks the card for n random bytes.
func (c *Card) GetChallenge(n int) ([]byte, error) {
	resp, err := c.client.Send(iso7816.GetChallenge(c.cla, n))
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.Status); err != nil {
		return nil, err
	}
	if len(resp.Data) < n {
		return nil, &LengthError{Expected: n, Got: len(resp.Data)}
	}
	return resp.Data[:n], nil
}

// GetData retrieves the data object named by tag.
func (c *Card) GetData(tag uint16) ([]byte, error) {
	resp, err := c.client.Send(iso7816.GetData(c.cla, tag))
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.Status); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// PutData stores value under the data object named by tag.
func (c *Card) PutData(tag uint16, value []byte) error {
	resp, err := c.client.Send(iso7816.PutData(c.cla, tag, value))
	if err != nil {
		return err
	}
	return statusToError(resp.Status)
}

// EraseCard would wipe the card. There is no interindustry command for
// it; without a vendor driver there is nothing to send.
func (c *Card) EraseCard() error {
	return ErrNotSupported
}

// Send transmits a prepared command and returns the raw response with no
// status interpretation. This is the escape hatch for hand-built APDUs.
func (c *Card) Send(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	return c.client.Send(cmd)
}

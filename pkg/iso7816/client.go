package iso7816

import (
	"fmt"
	"log/slog"
)

// CLIENT & PROTOCOL LOGIC:
// The Client acts as a high-level driver over the physical connection.
// It implements the automatic handling of ISO 7816-3 transport behaviors that are
// often exposed to the application layer in T=0 protocols:
//
// 1. "61 XX" (Response Available):
//    The card indicates that XX bytes are waiting. The client automatically generates
//    and sends GET RESPONSE commands until the chain ends, concatenating the data.
//
// 2. "6C XX" (Wrong Length):
//    The card indicates that the expected length (Le) was incorrect and suggests XX.
//    The client automatically re-sends the original command with Le = XX.
//
// Send() therefore returns the final data and status of the logical exchange.
// The atomic wire traffic is logged at Debug level for diagnosis.

// Transmitter abstracts the physical card connection.
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter
	Log  *slog.Logger
}

// NewClient creates a new Client instance. A nil logger falls back to
// slog.Default().
func NewClient(card Transmitter, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{Card: card, Log: log}
}

// Send transmits a command and handles protocol logic (61xx, 6Cxx).
// The returned response carries the reassembled data field and the status
// word that ended the exchange.
func (c *Client) Send(cmd *CommandAPDU) (*ResponseAPDU, error) {
	resp, err := c.exchange(cmd)
	if err != nil {
		return nil, err
	}

	// Case 6CXX: Wrong Length -> Re-issue original command with correct Le
	if resp.Status.SW1() == 0x6C {
		retry := *cmd
		retry.Ne = int(resp.Status.SW2())

		if resp, err = c.exchange(&retry); err != nil {
			return nil, err
		}
	}

	data := append([]byte(nil), resp.Data...)

	// Case 61XX: More data available -> Drain with GET RESPONSE
	for resp.Status.SW1() == 0x61 {
		// ISO 7816-4: GET RESPONSE must use the same logical channel as the
		// original command, with chaining cleared.
		respCls := cmd.Class
		respCls.IsChained = false

		ins, _ := NewInstruction(INS_GET_RESPONSE)

		// Le = sw2 (number of bytes available); 0x00 means at least 256 remain.
		ne := int(resp.Status.SW2())
		if ne == 0 {
			ne = MaxShortLe
		}

		if resp, err = c.exchange(NewCommandAPDU(respCls, ins, 0x00, 0x00, nil, ne)); err != nil {
			return nil, err
		}
		data = append(data, resp.Data...)
	}

	return &ResponseAPDU{Data: data, Status: resp.Status}, nil
}

// exchange performs one atomic command-response round trip.
func (c *Client) exchange(cmd *CommandAPDU) (*ResponseAPDU, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}

	c.Log.Debug("APDU sent", "command", fmt.Sprintf("% X", rawCmd))

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}

	resp, err := ParseResponseAPDU(rawResp)
	if err != nil {
		return nil, err
	}

	c.Log.Debug("APDU received",
		"data", fmt.Sprintf("% X", resp.Data),
		"status", fmt.Sprintf("%04X", uint16(resp.Status)))

	return resp, nil
}

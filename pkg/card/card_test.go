package card

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/card-explorer/pkg/iso7816"
	"github.com/gregLibert/card-explorer/pkg/tlv"
)

// replayCard replays canned responses and records every command it saw.
type replayCard struct {
	responses []string // hex, consumed front to back
	sent      []string // hex, uppercase
}

func (r *replayCard) Transmit(cmd []byte) ([]byte, error) {
	r.sent = append(r.sent, strings.ToUpper(hex.EncodeToString(cmd)))

	if len(r.responses) == 0 {
		return nil, fmt.Errorf("unexpected command % X", cmd)
	}

	resp := r.responses[0]
	r.responses = r.responses[1:]
	return hex.DecodeString(resp)
}

func newTestCard(responses ...string) (*Card, *replayCard) {
	rc := &replayCard{responses: responses}
	return NewCard(rc, slog.New(slog.DiscardHandler)), rc
}

func TestSelectMasterFile(t *testing.T) {
	c, rc := newTestCard("6F0783023F008201389000")

	file, err := c.Select(MasterFile())
	require.NoError(t, err)

	assert.Equal(t, []string{"00A40000023F00"}, rc.sent)
	assert.Equal(t, uint16(0x3F00), file.ID)
	assert.True(t, file.IsDF())
}

func TestSelectAbsolutePath(t *testing.T) {
	// The MF prefix is stripped before the path form goes on the wire.
	c, rc := newTestCard("6F0E800201F4820101830250158A01059000")

	p, err := NewPath(PathKindAbsolute, tlv.Hex("3F00", "5015"))
	require.NoError(t, err)

	file, err := c.Select(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"00A40800025015"}, rc.sent)
	assert.Equal(t, uint16(0x5015), file.ID)
	assert.Equal(t, 500, file.Size)
	assert.Equal(t, StructureTransparent, file.Structure)
	assert.True(t, file.Path.Equal(p))
}

func TestSelectByDFName(t *testing.T) {
	c, rc := newTestCard("6F0A8405A0000000038201389000")

	p, err := NewPath(PathKindDFName, tlv.Hex("A000000003"))
	require.NoError(t, err)

	file, err := c.Select(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"00A4040005A000000003"}, rc.sent)
	assert.True(t, file.Path.Equal(p))
}

func TestSelectWalksIdentifierChain(t *testing.T) {
	c, rc := newTestCard("9000", "6F06830200018201019000")

	p := Path{Kind: PathKindFileID, Value: tlv.Hex("5015", "0001")}
	file, err := c.Select(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"00A40000025015", "00A40000020001"}, rc.sent)
	assert.Equal(t, uint16(0x0001), file.ID)
}

func TestSelectChainUnderApplication(t *testing.T) {
	// An identifier path hanging under an AID opens the application first.
	c, rc := newTestCard("9000", "6F06830201018201019000")

	p := Path{Kind: PathKindFileID, Value: tlv.Hex("0101"), AID: tlv.Hex("A000000003")}
	_, err := c.Select(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"00A4040005A000000003", "00A40000020101"}, rc.sent)
}

func TestSelectEmptyPath(t *testing.T) {
	c, rc := newTestCard()

	_, err := c.Select(Path{})
	require.Error(t, err)
	assert.Empty(t, rc.sent)
}

func TestSelectErrors(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     error
	}{
		{
			name:     "file not found",
			response: "6A82",
			want:     ErrNotFound,
		},
		{
			name:     "security status not satisfied",
			response: "6982",
			want:     ErrSecurityStatus,
		},
		{
			name:     "instruction not supported",
			response: "6D00",
			want:     ErrNotSupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCard(tt.response)

			_, err := c.Select(MasterFile())
			assert.ErrorIs(t, err, tt.want)

			var se *StatusError
			require.ErrorAs(t, err, &se)
		})
	}
}

func TestSelectWithoutResponseBody(t *testing.T) {
	// Plenty of cards answer a SELECT with nothing but 9000. The file
	// identifier then comes from the path that was asked for.
	c, _ := newTestCard("9000")

	p, err := NewPath(PathKindAbsolute, tlv.Hex("3F00", "2F00"))
	require.NoError(t, err)

	file, err := c.Select(p)
	require.NoError(t, err)

	assert.Equal(t, uint16(0x2F00), file.ID)
	assert.NotNil(t, file.ACL)
}

func TestSelectUnparsableBody(t *testing.T) {
	// A proprietary response body is not an error; selection succeeded.
	c, _ := newTestCard("6F9000")

	file, err := c.Select(MasterFile())
	require.NoError(t, err)
	assert.Equal(t, uint16(0x3F00), file.ID)
}

func TestReadBinary(t *testing.T) {
	c, rc := newTestCard("AABB9000")

	data, err := c.ReadBinary(8, 127)
	require.NoError(t, err)

	assert.Equal(t, []string{"00B000087F"}, rc.sent)
	assert.Equal(t, tlv.Hex("AABB"), data)
}

func TestReadBinaryOffsetRange(t *testing.T) {
	c, rc := newTestCard()

	_, err := c.ReadBinary(iso7816.MaxBinaryOffset+1, 1)
	require.Error(t, err)

	_, err = c.ReadBinary(-1, 1)
	require.Error(t, err)

	assert.Empty(t, rc.sent)
}

func TestUpdateBinary(t *testing.T) {
	c, rc := newTestCard("9000")

	n, err := c.UpdateBinary(4, tlv.Hex("CAFE"))
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"00D6000402CAFE"}, rc.sent)
}

func TestReadRecord(t *testing.T) {
	c, rc := newTestCard("DEADBEEF9000")

	data, err := c.ReadRecord(0, 1)
	require.NoError(t, err)

	assert.Equal(t, []string{"00B2010400"}, rc.sent)
	assert.Equal(t, tlv.Hex("DEADBEEF"), data)
}

func TestReadRecordBySFI(t *testing.T) {
	c, rc := newTestCard("019000")

	_, err := c.ReadRecord(10, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{"00B2035400"}, rc.sent)
}

func TestReadRecordEndOfFile(t *testing.T) {
	c, _ := newTestCard("6A83")

	_, err := c.ReadRecord(0, 5)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestUpdateRecord(t *testing.T) {
	c, rc := newTestCard("9000")

	n, err := c.UpdateRecord(2, tlv.Hex("CAFE"))
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"00DC020402CAFE"}, rc.sent)
}

func TestCreateFile(t *testing.T) {
	c, rc := newTestCard("9000")

	err := c.CreateFile(&File{
		ID:        0x4000,
		Type:      FileTypeWorkingEF,
		Structure: StructureTransparent,
		Size:      16,
		Status:    StatusActivated,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"00E0000010620E80020010820101830240008A0105"}, rc.sent)
}

func TestDeleteFile(t *testing.T) {
	c, rc := newTestCard("9000")

	require.NoError(t, c.DeleteFile(0x5015))
	assert.Equal(t, []string{"00E40000025015"}, rc.sent)
}

func TestListFiles(t *testing.T) {
	c, rc := newTestCard("2F00501550159000")

	ids, err := c.ListFiles()
	require.NoError(t, err)

	assert.Equal(t, []string{"80AA000000"}, rc.sent)
	assert.Equal(t, []uint16{0x2F00, 0x5015, 0x5015}, ids)
}

func TestListFilesIgnoresTrailingByte(t *testing.T) {
	c, _ := newTestCard("2F00509000")

	ids, err := c.ListFiles()
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x2F00}, ids)
}

func TestGetChallenge(t *testing.T) {
	c, rc := newTestCard("01020304FF9000")

	data, err := c.GetChallenge(4)
	require.NoError(t, err)

	// A card handing out extra bytes is trimmed to what was asked for.
	assert.Equal(t, tlv.Hex("01020304"), data)
	assert.Equal(t, []string{"0084000004"}, rc.sent)
}

func TestGetChallengeShortAnswer(t *testing.T) {
	c, _ := newTestCard("01029000")

	_, err := c.GetChallenge(4)

	var le *LengthError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 4, le.Expected)
	assert.Equal(t, 2, le.Got)
}

func TestGetData(t *testing.T) {
	c, rc := newTestCard("CAFE9000")

	data, err := c.GetData(0x9F7F)
	require.NoError(t, err)

	assert.Equal(t, tlv.Hex("CAFE"), data)
	assert.Equal(t, []string{"00CA9F7F00"}, rc.sent)
}

func TestPutData(t *testing.T) {
	c, rc := newTestCard("9000")

	require.NoError(t, c.PutData(0x0101, tlv.Hex("DEAD")))
	assert.Equal(t, []string{"00DA010102DEAD"}, rc.sent)
}

func TestVerifyPin(t *testing.T) {
	ref := PinReference{Type: PinTypeCHV, Number: 1}

	t.Run("correct code", func(t *testing.T) {
		c, rc := newTestCard("9000")

		require.NoError(t, c.VerifyPin(ref, tlv.Hex("31323334")))
		assert.Equal(t, []string{"002000010431323334"}, rc.sent)
	})

	t.Run("wrong code with counter", func(t *testing.T) {
		c, _ := newTestCard("63C2")

		err := c.VerifyPin(ref, tlv.Hex("31323334"))

		var pe *PinError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 2, pe.Retries)
	})

	t.Run("wrong code without counter", func(t *testing.T) {
		c, _ := newTestCard("6300")

		err := c.VerifyPin(ref, tlv.Hex("31323334"))

		var pe *PinError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, -1, pe.Retries)
	})

	t.Run("blocked", func(t *testing.T) {
		c, _ := newTestCard("6983")

		err := c.VerifyPin(ref, tlv.Hex("31323334"))
		require.Error(t, err)

		var pe *PinError
		assert.False(t, errors.As(err, &pe))
	})
}

func TestChangePin(t *testing.T) {
	ref := PinReference{Type: PinTypeCHV, Number: 2}

	t.Run("verify old then set new", func(t *testing.T) {
		c, rc := newTestCard("9000")

		err := c.ChangePin(ref, tlv.Hex("31313131"), tlv.Hex("32323232"))
		require.NoError(t, err)
		assert.Equal(t, []string{"002400020831313131" + "32323232"}, rc.sent)
	})

	t.Run("set without verification", func(t *testing.T) {
		c, rc := newTestCard("9000")

		err := c.ChangePin(ref, nil, tlv.Hex("32323232"))
		require.NoError(t, err)
		assert.Equal(t, []string{"002401020432323232"}, rc.sent)
	})
}

func TestUnblockPin(t *testing.T) {
	ref := PinReference{Type: PinTypeCHV, Number: 1}

	t.Run("reset and set new", func(t *testing.T) {
		c, rc := newTestCard("9000")

		err := c.UnblockPin(ref, tlv.Hex("38383838"), tlv.Hex("31313131"))
		require.NoError(t, err)
		assert.Equal(t, []string{"002C00010838383838" + "31313131"}, rc.sent)
	})

	t.Run("reset only", func(t *testing.T) {
		c, rc := newTestCard("9000")

		err := c.UnblockPin(ref, tlv.Hex("38383838"), nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"002C01010438383838"}, rc.sent)
	})

	t.Run("new code only", func(t *testing.T) {
		c, rc := newTestCard("9000")

		err := c.UnblockPin(ref, nil, tlv.Hex("31313131"))
		require.NoError(t, err)
		assert.Equal(t, []string{"002C02010431313131"}, rc.sent)
	})

	t.Run("neither", func(t *testing.T) {
		c, rc := newTestCard("9000")

		err := c.UnblockPin(ref, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"002C0301"}, rc.sent)
	})
}

func TestEraseCard(t *testing.T) {
	c, rc := newTestCard()

	assert.ErrorIs(t, c.EraseCard(), ErrNotSupported)
	assert.Empty(t, rc.sent)
}

func TestSendKeepsStatusUninterpreted(t *testing.T) {
	c, _ := newTestCard("6D00")

	cls, err := iso7816.NewClass(0x00)
	require.NoError(t, err)
	ins, err := iso7816.NewInstruction(iso7816.INS_GET_CHALLENGE)
	require.NoError(t, err)

	resp, err := c.Send(iso7816.NewCommandAPDU(cls, ins, 0, 0, nil, 8))
	require.NoError(t, err)
	assert.Equal(t, iso7816.SW_ERR_INS_INVALID, resp.Status)
}

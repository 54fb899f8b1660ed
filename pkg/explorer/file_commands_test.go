package explorer

import (
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregLibert/card-explorer/pkg/card"
	"github.com/gregLibert/card-explorer/pkg/tlv"
)

func TestLs(t *testing.T) {
	ts := newTestShellAtMF(t,
		"2F0050159000",                   // LIST FILES
		"6F0B8002001982010183022F009000", // SELECT 2F00, transparent EF of 25 bytes
		masterFCI,                        // reselect MF
		"6F0A820138830250158A01059000",   // SELECT 5015, a DF
		masterFCI,
	)

	require.NoError(t, ts.run("ls"))

	assert.Equal(t, []string{
		"80AA000000",
		"00A40800022F00",
		"00A40000023F00",
		"00A40800025015",
		"00A40000023F00",
	}, ts.rc.sent)
	assert.Equal(t,
		"FileID\tType  Size\n"+
			" 2F00 \t wEF    25\n"+
			"[5015]\t  DF     0\n",
		ts.out.String())
}

func TestLsShowsDFName(t *testing.T) {
	ts := newTestShellAtMF(t,
		"50159000",
		"6F0E8201388302501584054F53432D459000",
		masterFCI,
	)

	require.NoError(t, ts.run("ls"))
	assert.Equal(t,
		"FileID\tType  Size\n"+
			"[5015]\t  DF     0\tName: OSC-E\n",
		ts.out.String())
}

func TestLsUnderAid(t *testing.T) {
	aidFCI := "6F0A8405A0000000038201389000"
	ts := newTestShellAtMF(t,
		aidFCI,                                 // cd aid:...
		"50159000",                             // LIST FILES
		"6F0E800201F4820101830250158A01059000", // SELECT 5015 as direct child
		aidFCI,                                 // reselect by name
	)

	require.NoError(t, ts.run("cd aid:A000000003"))
	assert.Equal(t, "card-explorer [A000000003]> ", ts.s.Prompt())

	require.NoError(t, ts.run("ls"))
	assert.Equal(t, []string{
		"00A4040005A000000003",
		"80AA000000",
		"00A40000025015",
		"00A4040005A000000003",
	}, ts.rc.sent)
	assert.Equal(t,
		"FileID\tType  Size\n"+
			" 5015 \t wEF   500\n",
		ts.out.String())
}

func TestLsReportsUnselectableChild(t *testing.T) {
	ts := newTestShellAtMF(t,
		"3A009000",
		"6A82",
		masterFCI,
	)

	require.NoError(t, ts.run("ls"))
	assert.Equal(t,
		"FileID\tType  Size\n"+
			" 3A00 unable to select file, [6A82] File or application not found\n",
		ts.out.String())
}

func TestLsListingFailure(t *testing.T) {
	ts := newTestShellAtMF(t, "6D00")

	assert.Error(t, ts.run("ls"))
	assert.Contains(t, ts.errOut.String(),
		"unable to receive file listing: [6D00] Instruction code not supported or invalid\n")
	assert.Empty(t, ts.out.String())
}

func TestCdDescendAndReturn(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0A820138830250158A01059000", // SELECT 5015
		masterFCI,                      // SELECT parent
	)

	require.NoError(t, ts.run("cd 5015"))
	assert.Equal(t, "card-explorer [3F00/5015]> ", ts.s.Prompt())

	require.NoError(t, ts.run("cd .."))
	assert.Equal(t, "card-explorer [3F00]> ", ts.s.Prompt())

	assert.Equal(t, []string{"00A40800025015", "00A40000023F00"}, ts.rc.sent)
}

func TestCdUpFromRoot(t *testing.T) {
	ts := newTestShellAtMF(t)

	assert.Error(t, ts.run("cd .."))
	assert.Equal(t, "unable to go up, already in MF.\n", ts.out.String())
	assert.Empty(t, ts.rc.sent)
}

func TestCdRejectsNonDF(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002001982010183022F009000", // an EF, not a DF
		masterFCI,
	)

	assert.Error(t, ts.run("cd 2F00"))

	assert.Equal(t, "Error: file is not a DF.\n", ts.out.String())
	assert.Equal(t, "card-explorer [3F00]> ", ts.s.Prompt())
	assert.Equal(t, []string{"00A40800022F00", "00A40000023F00"}, ts.rc.sent)
}

func TestCdQuirkAllowsNonDF(t *testing.T) {
	ts := newTestShellAtMF(t, "6F0B8002001982010183022F009000")
	ts.s.card.Quirks = card.QuirksForDriver("belpic")

	require.NoError(t, ts.run("cd 2F00"))
	assert.Equal(t, "card-explorer [3F00/2F00]> ", ts.s.Prompt())
}

func TestCdFailureKeepsPosition(t *testing.T) {
	ts := newTestShellAtMF(t, "6A82")

	assert.Error(t, ts.run("cd 5015"))

	assert.Equal(t, "unable to select DF: [6A82] File or application not found\n",
		ts.errOut.String())
	assert.Equal(t, "card-explorer [3F00]> ", ts.s.Prompt())
	assert.Equal(t, []string{"00A40800025015"}, ts.rc.sent)
}

func TestCdBadAddress(t *testing.T) {
	ts := newTestShellAtMF(t)

	assert.Error(t, ts.run("cd WXYZ"))
	assert.Equal(t, "Invalid ID.\nUsage: cd <file_id>|aid:<DF name>\n", ts.out.String())
	assert.Empty(t, ts.rc.sent)
}

func TestCatTransparentEF(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000482010183022F009000", // 4 byte transparent EF
		"DEADBEEF9000",
		masterFCI,
	)

	require.NoError(t, ts.run("cat 2F00"))

	assert.Equal(t, []string{"00A40800022F00", "00B0000004", "00A40000023F00"}, ts.rc.sent)
	assert.Equal(t, "00000000: DE AD BE EF"+strings.Repeat(" ", 37)+"....\n", ts.out.String())
}

func TestCatRecordsBySfi(t *testing.T) {
	ts := newTestShellAtMF(t,
		"AABB9000", // record 1
		"6A83",     // no record 2
	)

	require.NoError(t, ts.run("cat sfi:5"))

	assert.Equal(t, []string{"00B2012C00", "00B2022C00"}, ts.rc.sent)
	assert.Equal(t,
		"Record 1:\n00000000: AA BB"+strings.Repeat(" ", 43)+"..\n",
		ts.out.String())
}

func TestCatInvalidSfi(t *testing.T) {
	for _, sfi := range []string{"31", "abc"} {
		t.Run(sfi, func(t *testing.T) {
			ts := newTestShellAtMF(t)

			assert.Error(t, ts.run("cat sfi:"+sfi))
			assert.Equal(t,
				"Invalid SFI: "+sfi+"\n"+
					"Usage: cat [file_id] or\n"+
					"       cat sfi:<sfi_id>\n",
				ts.out.String())
			assert.Empty(t, ts.rc.sent)
		})
	}
}

func TestCatSfiNeedsDF(t *testing.T) {
	ts := newTestShell()

	assert.Error(t, ts.run("cat sfi:5"))
	assert.Equal(t, "A DF must be selected to read by SFI\n", ts.out.String())
}

func TestCatNothingSelected(t *testing.T) {
	ts := newTestShell()

	assert.Error(t, ts.run("cat"))
	assert.Equal(t, "No file selected.\n", ts.out.String())
}

func TestCatRejectsDF(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0A820138830250158A01059000",
		masterFCI,
	)

	assert.Error(t, ts.run("cat 5015"))

	assert.Equal(t, "only working EFs may be read\n", ts.out.String())
	assert.Equal(t, []string{"00A40800025015", "00A40000023F00"}, ts.rc.sent)
}

func TestCatShortRead(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000A82010183022F009000", // claims 10 bytes
		"DEADBEEF9000",                   // delivers 4
		masterFCI,
	)

	err := ts.run("cat 2F00")
	var le *card.LengthError
	require.ErrorAs(t, err, &le)

	assert.Equal(t, "expecting 10, got only 4 bytes.\n", ts.out.String())
	assert.Equal(t, []string{"00A40800022F00", "00B000000A", "00A40000023F00"}, ts.rc.sent)
}

func TestCatQuirkShortReadEndsFile(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000A82010183022F009000",
		"DEADBEEF9000",
		"9000", // empty follow-up read marks the end
		masterFCI,
	)
	ts.s.card.Quirks = card.QuirksForDriver("belpic")

	require.NoError(t, ts.run("cat 2F00"))

	assert.Equal(t, []string{
		"00A40800022F00",
		"00B000000A",
		"00B0000406",
		"00A40000023F00",
	}, ts.rc.sent)
	assert.Equal(t, "00000000: DE AD BE EF"+strings.Repeat(" ", 37)+"....\n", ts.out.String())
}

func TestInfoEF(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002001982010183022F009000",
		masterFCI,
	)

	require.NoError(t, ts.run("info 2F00"))

	assert.Equal(t, []string{"00A40800022F00", "00A40000023F00"}, ts.rc.sent)
	assert.Equal(t,
		"\nElementary File  ID 2F00\n\n"+
			"File path:     3F00/2F00\n"+
			"File size:     25 bytes\n"+
			"EF structure:  Transparent\n"+
			"ACL for READ:         N/A\n"+
			"ACL for UPDATE:       N/A\n"+
			"ACL for DELETE:       N/A\n"+
			"ACL for WRITE:        N/A\n"+
			"ACL for REHABILITATE: N/A\n"+
			"ACL for INVALIDATE:   N/A\n"+
			"ACL for LIST FILES:   N/A\n"+
			"ACL for CRYPTO:       N/A\n"+
			"\n",
		ts.out.String())
}

func TestInfoCurrentDF(t *testing.T) {
	ts := newTestShellAtMF(t)

	require.NoError(t, ts.run("info"))

	assert.Empty(t, ts.rc.sent)
	assert.Equal(t,
		"\nDedicated File  ID 3F00\n\n"+
			"File path:     3F00\n"+
			"File size:     0 bytes\n"+
			"ACL for SELECT:       N/A\n"+
			"ACL for LOCK:         N/A\n"+
			"ACL for DELETE:       N/A\n"+
			"ACL for CREATE:       N/A\n"+
			"ACL for REHABILITATE: N/A\n"+
			"ACL for INVALIDATE:   N/A\n"+
			"ACL for LIST FILES:   N/A\n"+
			"ACL for CRYPTO:       N/A\n"+
			"ACL for DELETE SELF:  N/A\n"+
			"\n",
		ts.out.String())
}

func TestInfoSelectFailure(t *testing.T) {
	ts := newTestShellAtMF(t, "6A82")

	assert.Error(t, ts.run("info 5015"))
	assert.Equal(t, "unable to select file: [6A82] File or application not found\n",
		ts.out.String())
	assert.Equal(t, []string{"00A40800025015"}, ts.rc.sent)
}

func TestCreate(t *testing.T) {
	ts := newTestShellAtMF(t, "9000", masterFCI)

	require.NoError(t, ts.run("create 4000 16"))

	assert.Equal(t, []string{
		"00E0000010620E80020010820101830240008A0105",
		"00A40000023F00",
	}, ts.rc.sent)
	assert.Empty(t, ts.out.String())
}

func TestCreateUsage(t *testing.T) {
	for _, line := range []string{"create 4000", "create 4000 x", "create 4000 -5"} {
		t.Run(line, func(t *testing.T) {
			ts := newTestShellAtMF(t)

			assert.Error(t, ts.run(line))
			assert.Equal(t, "Usage: create <file_id> <file_size>\n", ts.out.String())
			assert.Empty(t, ts.rc.sent)
		})
	}
}

func TestCreateFailureShowsACL(t *testing.T) {
	ts := newTestShellAtMF(t, "6982")

	assert.Error(t, ts.run("create 4000 16"))
	assert.Equal(t,
		"CREATE FILE failed: [6982] Security status not satisfied\n"+
			"ACL for operation: N/A\n",
		ts.errOut.String())
}

func TestMkdir(t *testing.T) {
	ts := newTestShellAtMF(t, "9000", masterFCI)

	require.NoError(t, ts.run("mkdir 5000 0"))

	assert.Equal(t, []string{
		"00E000000C620A820138830250008A0105",
		"00A40000023F00",
	}, ts.rc.sent)
}

func TestDelete(t *testing.T) {
	ts := newTestShellAtMF(t, "9000")

	require.NoError(t, ts.run("delete 5015"))

	assert.Equal(t, []string{"00E40000025015"}, ts.rc.sent)
	assert.Empty(t, ts.out.String())
}

func TestDeleteTakesOnlyIdentifiers(t *testing.T) {
	ts := newTestShellAtMF(t)

	assert.Error(t, ts.run("delete aid:A000000003"))
	assert.Equal(t, "Usage: delete <file_id>\n", ts.out.String())
	assert.Empty(t, ts.rc.sent)
}

func TestGetSavesFile(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000482010183022F009000",
		"DEADBEEF9000",
		masterFCI,
	)

	require.NoError(t, ts.run("get 2F00 dump.bin"))

	assert.Equal(t, []string{"00A40800022F00", "00B0000004", "00A40000023F00"}, ts.rc.sent)
	assert.Equal(t, "Total of 4 bytes read from 2F00 and saved to dump.bin.\n", ts.out.String())

	saved, err := afero.ReadFile(ts.s.fs, "dump.bin")
	require.NoError(t, err)
	assert.Equal(t, tlv.Hex("DEADBEEF"), saved)
}

func TestGetDefaultName(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000482010183022F009000",
		"DEADBEEF9000",
		masterFCI,
	)

	require.NoError(t, ts.run("get 2F00"))

	assert.Equal(t, "Total of 4 bytes read from 2F00 and saved to 3F00_2F00.\n", ts.out.String())
	_, err := ts.s.fs.Stat("3F00_2F00")
	assert.NoError(t, err)
}

func TestGetToStdout(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000482010183022F009000",
		"DEADBEEF9000",
		masterFCI,
	)

	require.NoError(t, ts.run("get 2F00 -"))
	assert.Equal(t, append(tlv.Hex("DEADBEEF"), '\n'), ts.out.Bytes())
}

func TestGetRejectsDF(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0A820138830250158A01059000",
		masterFCI,
	)

	assert.Error(t, ts.run("get 5015 dump.bin"))
	assert.Equal(t, "only working EFs may be read\n", ts.out.String())
}

func TestGetQuirkStopsAtShortRead(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000A82010183022F009000",
		"DEADBEEF9000",
		"9000",
		masterFCI,
	)
	ts.s.card.Quirks = card.QuirksForDriver("belpic")

	require.NoError(t, ts.run("get 2F00 part.bin"))

	assert.Equal(t, "Total of 4 bytes read from 2F00 and saved to part.bin.\n", ts.out.String())
	saved, err := afero.ReadFile(ts.s.fs, "part.bin")
	require.NoError(t, err)
	assert.Equal(t, tlv.Hex("DEADBEEF"), saved)
}

func TestPut(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000482010183022F009000",
		"9000",
		masterFCI,
	)
	require.NoError(t, afero.WriteFile(ts.s.fs, "patch.bin", tlv.Hex("CAFEBABE"), 0o644))

	require.NoError(t, ts.run("put 2F00 patch.bin"))

	assert.Equal(t, []string{
		"00A40800022F00",
		"00D6000004CAFEBABE",
		"00A40000023F00",
	}, ts.rc.sent)
	assert.Equal(t, "Total of 4 bytes written.\n", ts.out.String())
}

func TestPutShortLocalFile(t *testing.T) {
	// A local file smaller than the EF writes what it has and stops.
	ts := newTestShellAtMF(t,
		"6F0B8002000482010183022F009000",
		"9000",
		masterFCI,
	)
	require.NoError(t, afero.WriteFile(ts.s.fs, "patch.bin", tlv.Hex("CAFE"), 0o644))

	require.NoError(t, ts.run("put 2F00 patch.bin"))

	assert.Equal(t, []string{
		"00A40800022F00",
		"00D6000002CAFE",
		"00A40000023F00",
	}, ts.rc.sent)
	assert.Equal(t, "Total of 2 bytes written.\n", ts.out.String())
}

func TestPutMissingLocalFile(t *testing.T) {
	ts := newTestShellAtMF(t, masterFCI)

	assert.Error(t, ts.run("put 2F00 missing.bin"))

	assert.Contains(t, ts.errOut.String(), "missing.bin")
	// The position is reasserted even though nothing was selected yet.
	assert.Equal(t, []string{"00A40000023F00"}, ts.rc.sent)
}

func TestUpdateBinary(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002001982010183022F009000",
		"9000",
		masterFCI,
	)

	require.NoError(t, ts.run("update_binary 2F00 4 CAFE"))

	assert.Equal(t, []string{
		"00A40800022F00",
		"00D6000402CAFE",
		"00A40000023F00",
	}, ts.rc.sent)
	assert.Equal(t,
		"in: 4; CAFE\n"+
			"Total of 2 bytes written to 2F00 at 4 offset.\n",
		ts.out.String())
}

func TestUpdateBinaryQuotedString(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002001982010183022F009000",
		"9000",
		masterFCI,
	)

	require.NoError(t, ts.run(`update_binary 2F00 0 "hi"`))

	assert.Equal(t, []string{
		"00A40800022F00",
		"00D60000026869",
		"00A40000023F00",
	}, ts.rc.sent)
}

func TestUpdateBinaryOddHex(t *testing.T) {
	ts := newTestShellAtMF(t)

	assert.Error(t, ts.run("update_binary 2F00 0 CAF"))

	assert.Equal(t,
		"in: 0; CAF\n"+
			"Error: the number of hex digits must be even.\n"+
			"unable to parse hex value\n",
		ts.out.String())
	assert.Empty(t, ts.rc.sent)
}

func TestUpdateBinaryWrongStructure(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0C8206040000140002830240029000", // linear variable EF
		masterFCI,
	)

	assert.Error(t, ts.run("update_binary 4002 0 AA"))
	assert.Contains(t, ts.out.String(), "EF structure should be transparent\n")
}

func TestUpdateRecord(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0C8206040000140002830240029000", // 2 records of up to 20 bytes
		"AABBCCDD9000",                     // READ RECORD 1
		"9000",                             // UPDATE RECORD 1
		masterFCI,
	)

	require.NoError(t, ts.run("update_record 4002 1 2 BBBB"))

	assert.Equal(t, []string{
		"00A40800024002",
		"00B2010400",
		"00DC010404AABBBBBB",
		"00A40000023F00",
	}, ts.rc.sent)
	assert.Equal(t,
		"in: 1; 2; BBBB\n"+
			"Total of 2 bytes written to record 1 at 2 offset.\n",
		ts.out.String())
}

func TestUpdateRecordBadNumber(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0C8206040000140002830240029000",
		masterFCI,
	)

	assert.Error(t, ts.run("update_record 4002 5 0 AA"))

	assert.Contains(t, ts.out.String(), "Invalid record number 5\n")
	assert.Equal(t, []string{"00A40800024002", "00A40000023F00"}, ts.rc.sent)
}

func TestUpdateRecordBadOffset(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0C8206040000140002830240029000",
		"AABBCCDD9000",
		masterFCI,
	)

	assert.Error(t, ts.run("update_record 4002 1 10 AA"))

	assert.Contains(t, ts.out.String(), "Invalid offset 10\n")
	assert.Equal(t, []string{"00A40800024002", "00B2010400", "00A40000023F00"}, ts.rc.sent)
}

func TestAsn1(t *testing.T) {
	ts := newTestShellAtMF(t,
		"6F0B8002000582010183022F009000",
		"8403AABBCC9000",
		masterFCI,
	)

	require.NoError(t, ts.run("asn1 2F00"))

	assert.Equal(t, []string{"00A40800022F00", "00B0000005", "00A40000023F00"}, ts.rc.sent)
	assert.Equal(t, "84 [3] AA BB CC  ...\n", ts.out.String())
}

func TestAsn1BadAddress(t *testing.T) {
	ts := newTestShellAtMF(t)

	assert.Error(t, ts.run("asn1 WXYZ"))
	assert.Equal(t, "Invalid ID.\nInvalid file path\n", ts.out.String())
	assert.Empty(t, ts.rc.sent)
}

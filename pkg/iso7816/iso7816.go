/*
Package iso7816 implements the APDU wire layer used to talk to smart cards
according to the ISO/IEC 7816 standard.

This package provides Command and Response APDU structures with both
encoding and parsing across the four ISO 7816-3 cases (Short and Extended
length modes), Class and Instruction byte decoding, Status Word analysis, a
Client that hides the T=0 transport behaviors (61XX response chaining, 6CXX
length correction), and builders for the interindustry command set a
file-system tool needs: SELECT, READ/UPDATE BINARY, READ/UPDATE RECORD,
CREATE/DELETE FILE, VERIFY, CHANGE REFERENCE DATA, RESET RETRY COUNTER,
GET CHALLENGE and GET/PUT DATA.

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.

# Usage Example: Reading the current file

The Client resolves the transport statuses internally, so a logical read is
one call even when the card answers in 61XX installments:

	client := iso7816.NewClient(conn, slog.Default())

	resp, err := client.Send(iso7816.ReadBinary(cla, 0, iso7816.MaxShortLe))
	if err != nil {
	    log.Fatal(err)
	}

	if !resp.Status.IsSuccess() {
	    log.Fatalf("card refused: %s", resp.Status.Verbose())
	}
	fmt.Printf("% X\n", resp.Data)
*/
package iso7816
